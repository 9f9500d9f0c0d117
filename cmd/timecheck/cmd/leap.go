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
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebookincubator/timeapi/timezone"
)

var (
	leapSrcFlag  string
	leapJSONFlag bool
)

func init() {
	RootCmd.AddCommand(leapCmd)
	leapCmd.Flags().StringVarP(&leapSrcFlag, "srcfile", "s", timezone.DefaultLeapFile, "tzdata file to read leap seconds from")
	leapCmd.Flags().BoolVarP(&leapJSONFlag, "json", "j", false, "JSON output")
}

func leapRun(srcfile string, jsonOut bool) error {
	leaps, err := timezone.ReadLeaps(srcfile)
	if err != nil {
		return err
	}

	if jsonOut {
		toPrint, err := json.MarshalIndent(leaps, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(toPrint))
		return nil
	}

	for _, l := range leaps {
		fmt.Printf("%s  #%-2d  TAI-UTC %s\n", l.Time.Format(time.RFC3339), l.Count, l.TAIOffset())
	}
	last, err := timezone.LastLeap(leaps, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("%d leap seconds on record, TAI-UTC is %s since %s\n",
		len(leaps), last.TAIOffset(), last.Time.Format("2006-01-02"))
	return nil
}

var leapCmd = &cobra.Command{
	Use:   "leap",
	Short: "Print leap second history from the timezone database",
	Long: `Print leap second history from the timezone database. The default source is
the right/ hierarchy, plain zoneinfo files carry no leap second records.
Handy context when chronyd starts reporting a pending leap second.`,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := leapRun(leapSrcFlag, leapJSONFlag); err != nil {
			log.Fatal(err)
		}
	},
}
