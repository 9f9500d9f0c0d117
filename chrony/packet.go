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
	"math"
	"net"
	"strconv"
	"time"
)

// The subset of chronyd's cmdmon protocol needed for the tracking query.
// Original C structs and constants live in
// https://github.com/mlichvar/chrony/blob/master/candm.h

// PacketType - request or reply
type PacketType uint8

// CommandType identifies the command in both request and reply
type CommandType uint16

// ReplyType identifies the reply packet type
type ReplyType uint16

// ResponseStatusType identifies the response status
type ResponseStatusType uint16

// we implement protocol version 6
const protoVersionNumber uint8 = 6
const maxDataLen = 396

const (
	pktTypeCmdRequest PacketType = 1
	pktTypeCmdReply   PacketType = 2
)

const reqTracking CommandType = 33

// RpyTracking is the reply type chronyd uses for tracking data
const RpyTracking ReplyType = 5

const sttSuccess ResponseStatusType = 0

var statusDesc = [20]string{
	"SUCCESS",
	"FAILED",
	"UNAUTH",
	"INVALID",
	"NOSUCHSOURCE",
	"INVALIDTS",
	"NOTENABLED",
	"BADSUBNET",
	"ACCESSALLOWED",
	"ACCESSDENIED",
	"NOHOSTACCESS",
	"SOURCEALREADYKNOWN",
	"TOOMANYSOURCES",
	"NORTC",
	"BADRTCFILE",
	"INACTIVE",
	"BADSAMPLE",
	"INVALIDAF",
	"BADPKTVERSION",
	"BADPKTLENGTH",
}

func (r ResponseStatusType) String() string {
	if int(r) >= len(statusDesc) {
		return fmt.Sprintf("UNKNOWN (%d)", r)
	}
	return statusDesc[r]
}

// RequestHead is the common first part of every request, laid out so it can
// be passed straight to binary.Write.
type RequestHead struct {
	Version  uint8
	PKTType  PacketType
	Res1     uint8
	Res2     uint8
	Command  CommandType
	Attempt  uint16
	Sequence uint32
	Pad1     uint32
	Pad2     uint32
}

// GetCommand returns the request packet command
func (r *RequestHead) GetCommand() CommandType {
	return r.Command
}

// SetSequence sets the request packet sequence number
func (r *RequestHead) SetSequence(n uint32) {
	r.Sequence = n
}

// RequestPacket abstracts outgoing packets
type RequestPacket interface {
	GetCommand() CommandType
	SetSequence(n uint32)
}

// ResponsePacket abstracts incoming packets
type ResponsePacket interface {
	GetCommand() CommandType
	GetType() ReplyType
	GetStatus() ResponseStatusType
	GetSequence() uint32
}

// RequestTracking is the packet asking for 'tracking' data
type RequestTracking struct {
	RequestHead
	// chronyd expects requests padded to the longest reply it may send back
	data [maxDataLen]uint8
}

// NewTrackingPacket creates a new request for 'tracking' information
func NewTrackingPacket() *RequestTracking {
	return &RequestTracking{
		RequestHead: RequestHead{
			Version: protoVersionNumber,
			PKTType: pktTypeCmdRequest,
			Command: reqTracking,
		},
		data: [maxDataLen]uint8{},
	}
}

// ReplyHead is the common first part of every reply, laid out so it can be
// passed straight to binary.Read.
type ReplyHead struct {
	Version  uint8
	PKTType  PacketType
	Res1     uint8
	Res2     uint8
	Command  CommandType
	Reply    ReplyType
	Status   ResponseStatusType
	Pad1     uint16
	Pad2     uint16
	Pad3     uint16
	Sequence uint32
	Pad4     uint32
	Pad5     uint32
}

// GetCommand returns the reply packet command
func (r *ReplyHead) GetCommand() CommandType {
	return r.Command
}

// GetType returns the reply packet type
func (r *ReplyHead) GetType() ReplyType {
	return r.Reply
}

// GetStatus returns the reply packet status
func (r *ReplyHead) GetStatus() ResponseStatusType {
	return r.Status
}

// GetSequence returns the sequence number echoed back from the request
func (r *ReplyHead) GetSequence() uint32 {
	return r.Sequence
}

type replyTrackingContent struct {
	RefID              uint32
	IPAddr             ipAddr // current sync source
	Stratum            uint16
	LeapStatus         uint16
	RefTime            timeSpec
	CurrentCorrection  chronyFloat
	LastOffset         chronyFloat
	RMSOffset          chronyFloat
	FreqPPM            chronyFloat
	ResidFreqPPM       chronyFloat
	SkewPPM            chronyFloat
	RootDelay          chronyFloat
	RootDispersion     chronyFloat
	LastUpdateInterval chronyFloat
}

// Tracking is the decoded version of a 'tracking' reply
type Tracking struct {
	RefID              uint32
	IPAddr             net.IP
	Stratum            uint16
	LeapStatus         uint16
	RefTime            time.Time
	CurrentCorrection  float64
	LastOffset         float64
	RMSOffset          float64
	FreqPPM            float64
	ResidFreqPPM       float64
	SkewPPM            float64
	RootDelay          float64
	RootDispersion     float64
	LastUpdateInterval float64
}

func newTracking(r *replyTrackingContent) *Tracking {
	return &Tracking{
		RefID:              r.RefID,
		IPAddr:             r.IPAddr.ToNetIP(),
		Stratum:            r.Stratum,
		LeapStatus:         r.LeapStatus,
		RefTime:            r.RefTime.ToTime(),
		CurrentCorrection:  r.CurrentCorrection.ToFloat(),
		LastOffset:         r.LastOffset.ToFloat(),
		RMSOffset:          r.RMSOffset.ToFloat(),
		FreqPPM:            r.FreqPPM.ToFloat(),
		ResidFreqPPM:       r.ResidFreqPPM.ToFloat(),
		SkewPPM:            r.SkewPPM.ToFloat(),
		RootDelay:          r.RootDelay.ToFloat(),
		RootDispersion:     r.RootDispersion.ToFloat(),
		LastUpdateInterval: r.LastUpdateInterval.ToFloat(),
	}
}

// ReplyTracking is what the caller gets for a tracking request
type ReplyTracking struct {
	ReplyHead
	Tracking
}

// decodePacket decodes bytes into a valid response packet
func decodePacket(response []byte) (ResponsePacket, error) {
	r := bytes.NewReader(response)
	head := new(ReplyHead)
	if err := binary.Read(r, binary.BigEndian, head); err != nil {
		return nil, err
	}
	if head.Status != sttSuccess {
		return nil, fmt.Errorf("got status %s (%d)", head.Status, head.Status)
	}
	switch head.Reply {
	case RpyTracking:
		data := new(replyTrackingContent)
		if err := binary.Read(r, binary.BigEndian, data); err != nil {
			return nil, err
		}
		return &ReplyTracking{
			ReplyHead: *head,
			Tracking:  *newTracking(data),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported reply type %d from %+v", head.Reply, head)
	}
}

// IPAddr family constants, corresponding to IPAddr_Family in chrony's addressing.h
const (
	ipAddrInet4 uint16 = 1
	ipAddrInet6 uint16 = 2
)

type ipAddr struct {
	IP     [16]uint8
	Family uint16
	Pad    uint16
}

func newIPAddr(ip net.IP) *ipAddr {
	family := ipAddrInet6
	if ip4 := ip.To4(); ip4 != nil {
		family = ipAddrInet4
		ip = ip4
	}
	var buf [16]uint8
	copy(buf[:], ip)
	return &ipAddr{IP: buf, Family: family}
}

func (ip *ipAddr) ToNetIP() net.IP {
	switch ip.Family {
	case ipAddrInet4:
		return net.IP(ip.IP[:4])
	case ipAddrInet6:
		return net.IP(ip.IP[:])
	default:
		// unspecified or an unresolved source ID, no address to report
		return nil
	}
}

// This is used in timeSpec.SecHigh for 32-bit timestamps
const noHighSec uint32 = 0x7fffffff

type timeSpec struct {
	SecHigh uint32
	SecLow  uint32
	Nsec    uint32
}

func (t *timeSpec) ToTime() time.Time {
	highU64 := uint64(t.SecHigh)
	if t.SecHigh == noHighSec {
		highU64 = 0
	}
	lowU64 := uint64(t.SecLow)
	return time.Unix(int64(highU64<<32|lowU64), int64(t.Nsec))
}

// magic numbers to convert chronyFloat to a normal float
const (
	floatExpBits  = 7
	floatCoefBits = (4*8 - floatExpBits)
)

/*
32-bit floating-point format consisting of 7-bit signed exponent
and 25-bit signed coefficient without hidden bit.
The result is calculated as: 2^(exp - 25) * coef
*/
type chronyFloat int32

// ToFloat does magic to decode float from int32.
// Code is copied and translated to Go from original C sources.
func (f chronyFloat) ToFloat() float64 {
	var exp, coef int32

	x := uint32(f)

	exp = int32(x >> floatCoefBits)
	if exp >= 1<<(floatExpBits-1) {
		exp -= 1 << floatExpBits
	}
	exp -= floatCoefBits

	coef = int32(x % (1 << floatCoefBits))
	if coef >= 1<<(floatCoefBits-1) {
		coef -= 1 << floatCoefBits
	}

	return float64(coef) * math.Pow(2.0, float64(exp))
}

// RefidAsHEX prints a ref id as hex
func RefidAsHEX(refID uint32) string {
	return fmt.Sprintf("%08X", refID)
}

// RefidToString decodes an ASCII string packed into a uint32, falling back
// to hex when any byte is not printable
func RefidToString(refID uint32) string {
	result := []rune{}

	for i := 0; i < 4; i++ {
		c := rune((refID >> (24 - uint(i)*8)) & 0xff)
		if c == 0 {
			continue
		}
		if strconv.IsPrint(c) {
			result = append(result, c)
		} else {
			return RefidAsHEX(refID)
		}
	}

	return string(result)
}
