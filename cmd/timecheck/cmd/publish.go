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

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/facebookincubator/timeapi/chrony"
	"github.com/facebookincubator/timeapi/health"
	"github.com/facebookincubator/timeapi/mqtt"
	"github.com/facebookincubator/timeapi/sysclock"
)

var (
	publishBrokerFlag    string
	publishUsernameFlag  string
	publishPasswordFlag  string
	publishBaseTopicFlag string
	publishHealthFlag    bool
)

func init() {
	RootCmd.AddCommand(publishCmd)
	addFetcherFlags(publishCmd)
	publishCmd.Flags().StringVarP(&publishBrokerFlag, "broker", "b", "", "MQTT broker URL, mqtt:// or mqtts://")
	publishCmd.Flags().StringVarP(&publishUsernameFlag, "username", "u", "", "MQTT username")
	publishCmd.Flags().StringVarP(&publishPasswordFlag, "password", "p", "", "MQTT password, prompted for when a username is set without one")
	publishCmd.Flags().StringVarP(&publishBaseTopicFlag, "basetopic", "t", mqtt.DefaultBaseTopic, "base MQTT topic to publish under")
	publishCmd.Flags().BoolVar(&publishHealthFlag, "health", false, "publish the current health status instead of a heartbeat")
	if err := publishCmd.MarkFlagRequired("broker"); err != nil {
		log.Fatal(err)
	}
}

type staticSource struct {
	quality *chrony.TimeQuality
}

func (s staticSource) Quality(_ context.Context) *chrony.TimeQuality {
	return s.quality
}

func publishPayload(ctx context.Context) (string, interface{}, error) {
	if !publishHealthFlag {
		return mqtt.TopicHeartbeat, map[string]int64{"unix": time.Now().Unix()}, nil
	}
	fetcher, err := makeFetcher()
	if err != nil {
		return "", nil, err
	}
	// a fetch failure is not fatal here, the health message degrades instead
	quality, err := fetcher.Fetch(ctx)
	if err != nil {
		log.Debugf("fetching quality: %v", err)
	}
	checker := health.NewChecker(sysclock.Check, staticSource{quality: quality})
	return mqtt.TopicHealthChange, checker.Check(ctx), nil
}

func publishRun() error {
	password := publishPasswordFlag
	if publishUsernameFlag != "" && password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}

	client, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:    publishBrokerFlag,
		Username:  publishUsernameFlag,
		Password:  password,
		BaseTopic: publishBaseTopicFlag,
	})
	if err != nil {
		return err
	}
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), chrony.FetchTimeout)
	defer cancel()
	subtopic, payload, err := publishPayload(ctx)
	if err != nil {
		return err
	}
	if err := client.Publish(subtopic, payload); err != nil {
		return err
	}
	log.Infof("published %s to %s", subtopic, publishBrokerFlag)
	return nil
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a one-shot heartbeat or health message to an MQTT broker",
	Long:  "Publish a one-shot heartbeat or health message to an MQTT broker, on the same topics the daemon uses.",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := publishRun(); err != nil {
			log.Fatal(err)
		}
	},
}
