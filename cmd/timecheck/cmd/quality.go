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
	"encoding/json"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebookincubator/timeapi/chrony"
)

var (
	qualityJSONFlag bool
	qualityRawFlag  bool
)

func init() {
	RootCmd.AddCommand(qualityCmd)
	addFetcherFlags(qualityCmd)
	qualityCmd.Flags().BoolVarP(&qualityJSONFlag, "json", "j", false, "JSON output")
	qualityCmd.Flags().BoolVarP(&qualityRawFlag, "raw", "r", false, "dump the quality struct as is")
}

func printQuality(q *chrony.TimeQuality) {
	fmt.Println("Time quality:")
	fmt.Printf("\tstratum: %d\n", q.Stratum)
	fmt.Printf("\toffset_seconds: %.9f\n", q.OffsetSeconds)
	fmt.Printf("\treference_id: %s\n", q.ReferenceID)
	fmt.Printf("\tleap_status: %s\n", q.LeapStatus)
}

func qualityRun(jsonOut, rawOut bool) error {
	fetcher, err := makeFetcher()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), chrony.FetchTimeout)
	defer cancel()
	quality, err := fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	if rawOut {
		spew.Dump(quality)
		return nil
	}
	if jsonOut {
		toPrint, err := json.MarshalIndent(quality, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(toPrint))
		return nil
	}
	printQuality(quality)
	return nil
}

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Print the time quality chronyd reports",
	Long:  "Print the time quality chronyd reports. Like `chronyc tracking`, but trimmed to the fields the API serves.",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := qualityRun(qualityJSONFlag, qualityRawFlag); err != nil {
			log.Fatal(err)
		}
	},
}
