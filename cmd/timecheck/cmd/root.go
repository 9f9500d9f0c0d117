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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebookincubator/timeapi/chrony"
	"github.com/facebookincubator/timeapi/daemon"
)

// RootCmd is a main entry point. It's exported so timecheck could be easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "timecheck",
	Short: "Swiss Army Knife for the time service",
}

// flags
var rootVerboseFlag bool
var rootFetcherFlag string
var rootChronycFlag string
var rootChronyAddrFlag string

var rootFetcherFlagDesc = fmt.Sprintf("How to query chronyd: %q runs chronyc, %q speaks the command protocol directly", daemon.FetcherCommand, daemon.FetcherSocket)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
}

// addFetcherFlags registers the chronyd connection flags on subcommands that talk to it.
func addFetcherFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&rootFetcherFlag, "fetcher", "f", daemon.FetcherCommand, rootFetcherFlagDesc)
	cmd.Flags().StringVar(&rootChronycFlag, "chronyc", "", "path to the chronyc binary, for the command fetcher")
	cmd.Flags().StringVar(&rootChronyAddrFlag, "chronyaddr", "", "chronyd command socket path or host:port, for the socket fetcher")
}

func makeFetcher() (chrony.Fetcher, error) {
	switch rootFetcherFlag {
	case daemon.FetcherSocket:
		return &chrony.SocketFetcher{Address: rootChronyAddrFlag}, nil
	case daemon.FetcherCommand:
		return &chrony.CommandFetcher{Path: rootChronycFlag}, nil
	}
	return nil, fmt.Errorf("unknown fetcher mode %q", rootFetcherFlag)
}

// ConfigureVerbosity configures log verbosity based on parsed flags. Needs to be called by any subcommand.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
