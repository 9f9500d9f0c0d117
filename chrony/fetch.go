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

package chrony

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path"
	"strings"
	"time"
)

// FetchTimeout bounds a single tracking query end to end
const FetchTimeout = 2 * time.Second

// Fetcher obtains one fresh quality sample from chronyd. The Tracker doesn't
// care how: shelling out to chronyc and speaking cmdmon directly are
// interchangeable behind this interface.
type Fetcher interface {
	Fetch(ctx context.Context) (*TimeQuality, error)
}

// CommandFetcher runs `chronyc tracking` and parses the textual report
type CommandFetcher struct {
	// Path to the chronyc binary, looked up in $PATH when empty
	Path string
	// Timeout for the whole invocation, FetchTimeout when zero
	Timeout time.Duration
}

// Fetch implements Fetcher
func (f *CommandFetcher) Fetch(ctx context.Context) (*TimeQuality, error) {
	chronyc := f.Path
	if chronyc == "" {
		chronyc = "chronyc"
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout(f.Timeout))
	defer cancel()
	out, err := exec.CommandContext(ctx, chronyc, "tracking").Output()
	if err != nil {
		return nil, fmt.Errorf("running %s tracking: %w", chronyc, err)
	}
	q := ParseTracking(string(out))
	if q == nil {
		return nil, fmt.Errorf("incomplete tracking report from %s", chronyc)
	}
	return q, nil
}

// SocketFetcher speaks the cmdmon protocol to chronyd directly, over its
// unix datagram socket or UDP command port
type SocketFetcher struct {
	// Address is an absolute socket path or host:port, SocketPath when empty
	Address string
	Timeout time.Duration
}

// Fetch implements Fetcher
func (f *SocketFetcher) Fetch(ctx context.Context) (*TimeQuality, error) {
	address := f.Address
	if address == "" {
		address = SocketPath
	}
	timeout := fetchTimeout(f.Timeout)
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn, cleanup, err := dialChronyd(address, timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to chronyd at %s: %w", address, err)
	}
	defer cleanup()
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	client := &Client{Connection: conn}
	resp, err := client.Communicate(NewTrackingPacket())
	if err != nil {
		return nil, fmt.Errorf("querying tracking from %s: %w", address, err)
	}
	tracking, ok := resp.(*ReplyTracking)
	if !ok {
		return nil, fmt.Errorf("got wrong 'tracking' response %+v", resp)
	}
	return qualityFromTracking(&tracking.Tracking), nil
}

// dialChronyd connects the way chronyc does: a unix datagram socket needs a
// bound local socket chronyd can answer to, UDP just dials.
func dialChronyd(address string, timeout time.Duration) (net.Conn, func(), error) {
	if strings.HasPrefix(address, "/") {
		base, _ := path.Split(address)
		local := path.Join(base, fmt.Sprintf("chronyc.%d.sock", os.Getpid()))
		conn, err := net.DialUnix("unixgram",
			&net.UnixAddr{Name: local, Net: "unixgram"},
			&net.UnixAddr{Name: address, Net: "unixgram"},
		)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			conn.Close()
			os.RemoveAll(local)
		}
		// chronyd must be able to write back to our socket
		if err := os.Chmod(local, 0666); err != nil {
			cleanup()
			return nil, nil, err
		}
		return conn, cleanup, nil
	}
	conn, err := net.DialTimeout("udp", address, timeout)
	if err != nil {
		return nil, nil, err
	}
	return conn, func() { conn.Close() }, nil
}

// qualityFromTracking maps a binary tracking reply onto the same fields the
// textual report yields. CurrentCorrection is what chronyd still has to
// apply to the clock, so its sign is the inverse of the reported offset
// (chronyc prints "slow" for a positive correction).
func qualityFromTracking(t *Tracking) *TimeQuality {
	refID := RefidToString(t.RefID)
	if t.IPAddr != nil {
		refID = t.IPAddr.String()
	}
	return &TimeQuality{
		Stratum:       int(t.Stratum),
		OffsetSeconds: -t.CurrentCorrection,
		ReferenceID:   refID,
		LeapStatus:    LeapToString(t.LeapStatus),
	}
}

func fetchTimeout(d time.Duration) time.Duration {
	if d == 0 {
		return FetchTimeout
	}
	return d
}
