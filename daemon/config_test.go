/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebookincubator/timeapi/chrony"
)

func TestEvalAndValidate(t *testing.T) {
	c := &Config{
		MonitoringPort: 99999,
		MaxConnections: -1,
		TLSCert:        "/etc/timeapi/cert.pem",
		MQTTBroker:     "http://broker.example.com",
		Fetcher:        "dbus",
		Interval:       -1 * time.Second,
		RingSize:       -5,
	}
	require.Equal(t, fmt.Errorf("bad config: 'monitoringport' 99999 out of range"), c.EvalAndValidate())

	c.MonitoringPort = 0
	require.Equal(t, fmt.Errorf("bad config: 'maxconnections' must be >0"), c.EvalAndValidate())

	c.MaxConnections = 0
	require.Equal(t, fmt.Errorf("bad config: 'tlscert' and 'tlskey' must be set together"), c.EvalAndValidate())

	c.TLSKey = "/etc/timeapi/key.pem"
	require.EqualError(t, c.EvalAndValidate(), `bad config: unsupported broker scheme "http" (want mqtt or mqtts)`)

	c.MQTTBroker = "mqtt://broker.example.com"
	require.Equal(t, fmt.Errorf("bad config: unknown fetcher mode %q", "dbus"), c.EvalAndValidate())

	c.Fetcher = FetcherSocket
	require.Equal(t, fmt.Errorf("bad config: 'interval' must be positive"), c.EvalAndValidate())

	c.Interval = 2 * time.Minute
	require.Equal(t, fmt.Errorf("bad config: 'interval' is over a minute"), c.EvalAndValidate())

	c.Interval = 0
	require.Equal(t, fmt.Errorf("bad config: 'ringsize' must be >0"), c.EvalAndValidate())

	c.RingSize = 0
	require.NoError(t, c.EvalAndValidate())
}

func TestEvalAndValidateDefaults(t *testing.T) {
	c := &Config{}
	require.NoError(t, c.EvalAndValidate())
	require.Equal(t, DefaultListenAddr, c.ListenAddr)
	require.Equal(t, DefaultMonitoringPort, c.MonitoringPort)
	require.Equal(t, DefaultMaxConnections, c.MaxConnections)
	require.Equal(t, FetcherCommand, c.Fetcher)
	require.Equal(t, DefaultInterval, c.Interval)
	require.Equal(t, MathDefaultRingSize, c.RingSize)
	require.Equal(t, MathDefaultScore, c.Math.Score)
	require.NotNil(t, c.Math.scoreExpr)
}

func TestMakeFetcher(t *testing.T) {
	c := &Config{Fetcher: FetcherCommand, ChronycPath: "/usr/bin/chronyc"}
	cmd, ok := c.MakeFetcher().(*chrony.CommandFetcher)
	require.True(t, ok)
	require.Equal(t, "/usr/bin/chronyc", cmd.Path)

	c = &Config{Fetcher: FetcherSocket, ChronyAddr: "/var/run/chrony/chronyd.sock"}
	sock, ok := c.MakeFetcher().(*chrony.SocketFetcher)
	require.True(t, ok)
	require.Equal(t, "/var/run/chrony/chronyd.sock", sock.Address)
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "timeapi")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestReadConfig(t *testing.T) {
	path := writeTestConfig(t, `listenaddr: ":9999"
mqttbroker: "mqtts://broker.example.com"
mqttbasetopic: "lab/time"
fetcher: "socket"
chronyaddr: "/var/run/chrony/chronyd.sock"
interval: "5s"
ringsize: 10
math:
  score: "abs(mean(offset))"
`)
	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.ListenAddr)
	require.Equal(t, "mqtts://broker.example.com", cfg.MQTTBroker)
	require.Equal(t, "lab/time", cfg.MQTTBaseTopic)
	require.Equal(t, FetcherSocket, cfg.Fetcher)
	require.Equal(t, 5*time.Second, cfg.Interval)
	require.Equal(t, 10, cfg.RingSize)
	require.Equal(t, "abs(mean(offset))", cfg.Math.Score)

	require.NoError(t, cfg.EvalAndValidate())
	require.Equal(t, DefaultMonitoringPort, cfg.MonitoringPort)
}

func TestReadConfigUnknownField(t *testing.T) {
	path := writeTestConfig(t, "listenaddr: \":9999\"\nnosuchfield: 1\n")
	_, err := ReadConfig(path)
	require.Error(t, err)
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig("/nonexistent/timeapi.yaml")
	require.Error(t, err)
}
