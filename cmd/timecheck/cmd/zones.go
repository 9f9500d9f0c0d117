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
	"os"
	"sort"
	"time"
	_ "time/tzdata" // embedded zone database, minimal images have no /usr/share/zoneinfo

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/facebookincubator/timeapi/timezone"
)

var zonesJSONFlag bool

func init() {
	RootCmd.AddCommand(zonesCmd)
	zonesCmd.Flags().BoolVarP(&zonesJSONFlag, "json", "j", false, "JSON output")
}

func zonesRun(names []string, jsonOut bool) error {
	if len(names) == 0 {
		names = []string{"UTC"}
	}
	unix, zones, err := timezone.Convert(names, time.Now())
	if err != nil {
		return err
	}

	if jsonOut {
		toPrint, err := json.MarshalIndent(map[string]interface{}{
			"unix":  unix,
			"zones": zones,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(toPrint))
		return nil
	}

	fmt.Printf("unix: %d\n", unix)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetColWidth(30)
	table.SetHeader([]string{"zone", "local", "offset(sec)"})
	keys := maps.Keys(zones)
	sort.Strings(keys)
	for _, name := range keys {
		info := zones[name]
		table.Append([]string{name, info.Local, fmt.Sprintf("%d", info.Offset)})
	}
	table.Render()
	return nil
}

var zonesCmd = &cobra.Command{
	Use:   "zones [zone ...]",
	Short: "Print the current time in the given time zones",
	Long:  "Print the current time in the given IANA time zones, UTC when none are given.",
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		if err := zonesRun(args, zonesJSONFlag); err != nil {
			log.Fatal(err)
		}
	},
}
