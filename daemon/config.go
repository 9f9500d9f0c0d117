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
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/facebookincubator/timeapi/chrony"
	"github.com/facebookincubator/timeapi/mqtt"
)

// Fetcher modes: query chronyd by running chronyc, or speak its command
// protocol directly.
const (
	FetcherCommand = "command"
	FetcherSocket  = "socket"
)

// Defaults filled in by EvalAndValidate for unset optional fields.
const (
	DefaultListenAddr     = ":8463"
	DefaultMonitoringPort = 8464
	DefaultMaxConnections = 128
	DefaultInterval       = time.Second
)

// Config represents configuration we expect to read from file
type Config struct {
	ListenAddr     string // HTTP API listen address
	MonitoringPort int    // port the stats/metrics server listens on
	TLSCert        string // path to TLS certificate, requires tlskey
	TLSKey         string // path to TLS key, requires tlscert
	MaxConnections int    // cap on concurrent API connections

	MQTTBroker    string // mqtt:// or mqtts:// URL, empty disables MQTT
	MQTTUsername  string
	MQTTPassword  string
	MQTTBaseTopic string

	Fetcher     string // command | socket
	ChronycPath string // chronyc binary, for the command fetcher
	ChronyAddr  string // chronyd socket path or host:port, for the socket fetcher

	Interval time.Duration // offset sampling interval
	RingSize int           // number of offset samples kept for statistics
	Math     Math          // quality score calculation
}

// EvalAndValidate makes sure config is valid and evaluates expressions for further use.
func (c *Config) EvalAndValidate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.MonitoringPort == 0 {
		c.MonitoringPort = DefaultMonitoringPort
	}
	if c.MonitoringPort < 0 || c.MonitoringPort > 65535 {
		return fmt.Errorf("bad config: 'monitoringport' %d out of range", c.MonitoringPort)
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("bad config: 'maxconnections' must be >0")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("bad config: 'tlscert' and 'tlskey' must be set together")
	}
	if c.MQTTBroker != "" {
		if _, err := mqtt.BrokerAddr(c.MQTTBroker); err != nil {
			return fmt.Errorf("bad config: %w", err)
		}
	}
	switch c.Fetcher {
	case "":
		c.Fetcher = FetcherCommand
	case FetcherCommand, FetcherSocket:
	default:
		return fmt.Errorf("bad config: unknown fetcher mode %q", c.Fetcher)
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < 0 {
		return fmt.Errorf("bad config: 'interval' must be positive")
	}
	if c.Interval > time.Minute {
		return fmt.Errorf("bad config: 'interval' is over a minute")
	}
	if c.RingSize == 0 {
		c.RingSize = MathDefaultRingSize
	}
	if c.RingSize < 0 {
		return fmt.Errorf("bad config: 'ringsize' must be >0")
	}
	if c.Math.Score == "" {
		c.Math.Score = MathDefaultScore
	}
	return c.Math.Prepare()
}

// MakeFetcher builds the chronyd query transport the config describes.
func (c *Config) MakeFetcher() chrony.Fetcher {
	if c.Fetcher == FetcherSocket {
		return &chrony.SocketFetcher{Address: c.ChronyAddr}
	}
	return &chrony.CommandFetcher{Path: c.ChronycPath}
}

// MQTTClientConfig maps the broker settings onto the client config.
func (c *Config) MQTTClientConfig() mqtt.ClientConfig {
	return mqtt.ClientConfig{
		Broker:    c.MQTTBroker,
		Username:  c.MQTTUsername,
		Password:  c.MQTTPassword,
		BaseTopic: c.MQTTBaseTopic,
	}
}

// ReadConfig reads config and unmarshals it from yaml into Config
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Config{}
	err = yaml.UnmarshalStrict(data, &c)
	return &c, err
}
