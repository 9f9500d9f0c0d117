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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// SocketPath is the default path to chronyd's command socket
const SocketPath = "/var/run/chrony/chronyd.sock"

// CmdAddr is chronyd's UDP command endpoint, enough for read-only
// commands like tracking
const CmdAddr = "127.0.0.1:323"

// replies arrive in a single datagram, tracking ones well under this
const replyBufSize = 1024

// Client issues cmdmon commands to chronyd over an established connection
type Client struct {
	Connection io.ReadWriter
	Sequence   uint32
	sync.Mutex
}

// exchange writes one request datagram and reads back one reply datagram,
// holding the lock so concurrent commands never interleave on the socket.
func (n *Client) exchange(request []byte) ([]byte, error) {
	n.Lock()
	defer n.Unlock()
	if _, err := n.Connection.Write(request); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	reply := make([]uint8, replyBufSize)
	read, err := n.Connection.Read(reply)
	if err != nil {
		return nil, fmt.Errorf("reading reply: %w", err)
	}
	if read == 0 {
		return nil, fmt.Errorf("empty reply from chronyd")
	}
	return reply[:read], nil
}

// Communicate sends the packet to chronyd and decodes the response. The
// reply must echo the request's sequence number; a stale datagram from an
// earlier timed-out command is rejected rather than mistaken for the answer.
func (n *Client) Communicate(packet RequestPacket) (ResponsePacket, error) {
	seq := atomic.AddUint32(&n.Sequence, 1)
	packet.SetSequence(seq)

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, packet); err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	reply, err := n.exchange(buf.Bytes())
	if err != nil {
		return nil, err
	}
	decoded, err := decodePacket(reply)
	if err != nil {
		return nil, err
	}
	if got := decoded.GetSequence(); got != seq {
		return nil, fmt.Errorf("reply sequence %d does not match request sequence %d", got, seq)
	}
	return decoded, nil
}
