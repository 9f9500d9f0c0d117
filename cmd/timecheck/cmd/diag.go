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
	"math"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fatih/color"
	version "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/constraints"

	"github.com/facebookincubator/timeapi/chrony"
	"github.com/facebookincubator/timeapi/health"
	"github.com/facebookincubator/timeapi/mqtt"
	"github.com/facebookincubator/timeapi/sysclock"
)

// flag
var diagBrokerFlag string

type status int

// possible check results
const (
	OK status = iota
	WARN
	FAIL
	CRITICAL
)

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")
var failString = color.RedString("[FAIL]")

var statusToColor = []string{okString, warnString, failString}

// minChronycVersion is the oldest chrony whose tracking report we know how to read
var minChronycVersion = version.Must(version.NewVersion("3.5.0"))

// diagReport is everything the checks look at, collected up front
type diagReport struct {
	clock          health.Check
	quality        *chrony.TimeQuality
	fetchErr       error
	chronycVersion *version.Version
	versionErr     error
}

// diagnoser is function that does checks on diagReport
type diagnoser func(r *diagReport) (status, string)

func fmtThreshold(warnThreshold any) string {
	return color.BlueString("%v", warnThreshold)
}

// generic function to check value against some thresholds
func checkAgainstThreshold[T constraints.Ordered](name string, value, warnThreshold, failThreshold T, explanation string) (status, string) {
	msgTemplate := "%s is %s, we expect it to be within %s%s"
	thresholdStr := fmtThreshold(warnThreshold)

	if value > failThreshold {
		return FAIL, fmt.Sprintf(
			msgTemplate,
			name,
			color.RedString("%v", value),
			thresholdStr,
			". "+explanation,
		)
	}
	if value > warnThreshold {
		return WARN, fmt.Sprintf(
			msgTemplate,
			name,
			color.YellowString("%v", value),
			thresholdStr,
			". "+explanation,
		)
	}
	return OK, fmt.Sprintf(
		msgTemplate,
		name,
		color.GreenString("%v", value),
		thresholdStr,
		"",
	)
}

func checkSystemClock(r *diagReport) (status, string) {
	if r.clock.Status != health.CheckOK {
		return FAIL, r.clock.Message
	}
	return OK, "System clock is within the sane range"
}

func checkChronycVersion(r *diagReport) (status, string) {
	if r.versionErr != nil {
		return WARN, fmt.Sprintf("Cannot determine chronyc version: %v", r.versionErr)
	}
	if r.chronycVersion.LessThan(minChronycVersion) {
		return WARN, fmt.Sprintf("chronyc version %s is older than %s", color.YellowString(r.chronycVersion.String()), minChronycVersion)
	}
	return OK, fmt.Sprintf("chronyc version is %s", color.BlueString(r.chronycVersion.String()))
}

func checkTracking(r *diagReport) (status, string) {
	if r.fetchErr != nil {
		return CRITICAL, fmt.Sprintf("No tracking data, sync state is unknown: %v", r.fetchErr)
	}
	return OK, fmt.Sprintf("chronyd is tracking %s", color.BlueString(r.quality.ReferenceID))
}

func checkStratum(r *diagReport) (status, string) {
	return checkAgainstThreshold(
		"Stratum",
		r.quality.Stratum,
		health.StratumDegraded-1,
		health.StratumUnsynchronized-1,
		"Stratum 16 means chronyd is not synchronized at all.",
	)
}

func checkOffset(r *diagReport) (status, string) {
	// We expect our clock difference from chronyd's true time estimate to be
	// no more than 1ms. Currently there is no SLA, so it's just a warning.
	const warnThreshold = time.Millisecond
	// If offset is > 1s something is very very wrong
	const failThreshold = time.Second
	offset := time.Duration(math.Abs(r.quality.OffsetSeconds) * float64(time.Second))
	return checkAgainstThreshold(
		"Offset",
		offset,
		warnThreshold,
		failThreshold,
		"Offset is the difference between our clock and chronyd's estimate of true time.",
	)
}

func checkLeap(r *diagReport) (status, string) {
	if r.quality.LeapStatus != chrony.LeapNormal {
		return WARN, fmt.Sprintf("Leap status is '%s'", r.quality.LeapStatus)
	}
	return OK, "Leap status is 'Normal'"
}

// checkBroker dials the MQTT broker the daemon would publish to
func checkBroker(broker string) (status, string) {
	addr, err := mqtt.BrokerAddr(broker)
	if err != nil {
		return FAIL, fmt.Sprintf("Bad broker URL: %v", err)
	}
	u, err := url.Parse(addr)
	if err != nil {
		return FAIL, fmt.Sprintf("Bad broker URL: %v", err)
	}
	conn, err := net.DialTimeout("tcp", u.Host, 2*time.Second)
	if err != nil {
		return FAIL, fmt.Sprintf("Cannot connect to broker: %v", err)
	}
	conn.Close()
	return OK, fmt.Sprintf("Broker %s is reachable", color.BlueString(u.Host))
}

func chronycVersionRun(path string) (*version.Version, error) {
	chronyc := path
	if chronyc == "" {
		chronyc = "chronyc"
	}
	out, err := exec.Command(chronyc, "--version").Output()
	if err != nil {
		return nil, err
	}
	return parseChronycVersion(string(out))
}

// parseChronycVersion picks the version out of a line like
// "chronyc (chrony) version 4.3 (+CMDMON +NTP +REFCLOCK ...)"
func parseChronycVersion(out string) (*version.Version, error) {
	fields := strings.Fields(out)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return version.NewVersion(fields[i+1])
		}
	}
	return nil, fmt.Errorf("no version in %q", strings.TrimSpace(out))
}

var diagnosers = []diagnoser{
	checkSystemClock,
	checkChronycVersion,
	checkTracking,
	checkStratum,
	checkOffset,
	checkLeap,
}

func runDiagnosers(r *diagReport, toRun []diagnoser) int {
	failed := 0
	for _, check := range toRun {
		status, msg := check(r)
		if status != OK {
			failed++
		}
		switch status {
		case CRITICAL:
			fmt.Printf("%s %s\n", failString, msg)
			return 127
		default:
			fmt.Printf("%s %s\n", statusToColor[status], msg)
		}
	}
	return failed
}

func diagRun() int {
	r := &diagReport{clock: sysclock.Check()}
	r.chronycVersion, r.versionErr = chronycVersionRun(rootChronycFlag)

	fetcher, err := makeFetcher()
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), chrony.FetchTimeout)
	defer cancel()
	r.quality, r.fetchErr = fetcher.Fetch(ctx)

	failed := runDiagnosers(r, diagnosers)
	if failed == 127 {
		return failed
	}
	if diagBrokerFlag != "" {
		status, msg := checkBroker(diagBrokerFlag)
		if status != OK {
			failed++
		}
		fmt.Printf("%s %s\n", statusToColor[status], msg)
	}
	return failed
}

func init() {
	RootCmd.AddCommand(diagCmd)
	addFetcherFlags(diagCmd)
	diagCmd.Flags().StringVarP(&diagBrokerFlag, "broker", "b", "", "also check that this MQTT broker is reachable")
}

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Perform basic diagnosis of the time service host, report in human-readable form.",
	Long: `Perform basic diagnosis of the time service host, report in human-readable form.
Runs a set of checks against the system clock and chronyd, and prints the results.
Exit code will be equal to the number of failed checks, or 127 in case of critical problem.
`,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		os.Exit(diagRun())
	},
}
