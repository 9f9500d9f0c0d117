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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // embedded zone database, minimal images have no /usr/share/zoneinfo

	log "github.com/sirupsen/logrus"

	"github.com/facebookincubator/timeapi/daemon"
	"github.com/facebookincubator/timeapi/mqtt"
)

func main() {
	var (
		cfg      = &daemon.Config{}
		err      error
		cfgPath  string
		logLevel string
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "time-api daemon\n")
		fmt.Fprintf(flag.CommandLine.Output(), "%s\n\nFlags:\n", daemon.MathHelp)
		flag.PrintDefaults()
	}

	flag.StringVar(&cfg.ListenAddr, "listen", daemon.DefaultListenAddr, "Address to serve the HTTP API on")
	flag.IntVar(&cfg.MonitoringPort, "monitoringport", daemon.DefaultMonitoringPort, "Port to run monitoring server on")
	flag.StringVar(&cfg.TLSCert, "tlscert", "", "Path to TLS certificate, enables HTTPS")
	flag.StringVar(&cfg.TLSKey, "tlskey", "", "Path to TLS key")
	flag.IntVar(&cfg.MaxConnections, "maxconnections", daemon.DefaultMaxConnections, "Limit of concurrent API connections")
	flag.StringVar(&cfg.MQTTBroker, "broker", "", "MQTT broker URL, mqtt:// or mqtts://. Empty disables MQTT")
	flag.StringVar(&cfg.MQTTUsername, "brokeruser", "", "MQTT username")
	flag.StringVar(&cfg.MQTTPassword, "brokerpass", "", "MQTT password")
	flag.StringVar(&cfg.MQTTBaseTopic, "basetopic", mqtt.DefaultBaseTopic, "Base MQTT topic to publish under")
	flag.StringVar(&cfg.Fetcher, "fetcher", daemon.FetcherCommand, fmt.Sprintf("How to query chronyd: %q or %q", daemon.FetcherCommand, daemon.FetcherSocket))
	flag.StringVar(&cfg.ChronycPath, "chronyc", "", "Path to the chronyc binary, for the command fetcher")
	flag.StringVar(&cfg.ChronyAddr, "chronyaddr", "", "chronyd command socket path or host:port, for the socket fetcher")
	flag.DurationVar(&cfg.Interval, "i", daemon.DefaultInterval, "Interval at which we sample the chronyd offset")
	flag.IntVar(&cfg.RingSize, "buffer", daemon.MathDefaultRingSize, "Number of offset samples kept for statistics")
	flag.StringVar(&cfg.Math.Score, "score", daemon.MathDefaultScore, "Math expression for the quality score")

	flag.StringVar(&cfgPath, "cfg", "", "Path to config")
	flag.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")

	flag.Parse()

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("Unrecognized log level: %v", logLevel)
	}

	if cfgPath != "" {
		log.Warningf("using config from %s, flag values are ignored", cfgPath)
		cfg, err = daemon.ReadConfig(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.EvalAndValidate(); err != nil {
		log.Fatal(err)
	}
	log.Debugf("Config: %+v", *cfg)

	ctx, cancel := context.WithCancel(context.Background())
	sigStop := make(chan os.Signal, 1)
	signal.Notify(sigStop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigStop
		log.Warning("Graceful shutdown")
		cancel()
	}()

	d, err := daemon.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := d.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
