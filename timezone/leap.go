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

package timezone

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultLeapFile is the tzdata file leap second records are read from.
// Plain zoneinfo files drop them, the right/ hierarchy keeps them.
const DefaultLeapFile = "/usr/share/zoneinfo/right/UTC"

// taiUTC1972 is the TAI-UTC offset in effect when the leap second scheme
// started. tzdata counts corrections from there.
const taiUTC1972 = 10 * time.Second

var (
	errBadTZif     = errors.New("malformed TZif file")
	errTZifVersion = errors.New("unsupported TZif version")

	// ErrNoLeaps means the file parsed fine but carries no leap second
	// records, which is what reading a plain zoneinfo file gets you.
	ErrNoLeaps = errors.New("no leap second records in file")
)

// Leap is one leap second record from the timezone database.
type Leap struct {
	// Time is the UTC instant right after the inserted second.
	Time time.Time `json:"time"`
	// Count is the cumulative number of corrections, 1 for the first
	// event in 1972.
	Count int `json:"count"`
}

// TAIOffset returns the TAI-UTC offset in effect after the event.
func (l Leap) TAIOffset() time.Duration {
	return taiUTC1972 + time.Duration(l.Count)*time.Second
}

// ReadLeaps parses all leap second records from a TZif file.
func ReadLeaps(path string) ([]Leap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseTZif(f)
}

// LastLeap returns the most recent entry of leaps on or before now.
func LastLeap(leaps []Leap, now time.Time) (Leap, error) {
	var last Leap
	for _, l := range leaps {
		if l.Time.After(now) {
			continue
		}
		if last.Count == 0 || l.Time.After(last.Time) {
			last = l
		}
	}
	if last.Count == 0 {
		return Leap{}, fmt.Errorf("no leap second on record before %s", now.Format(time.RFC3339))
	}
	return last, nil
}

// tzifCounts holds the six record counts of a TZif header, in wire order.
type tzifCounts struct {
	IsUTC uint32
	IsStd uint32
	Leap  uint32
	Time  uint32
	Type  uint32
	Char  uint32
}

// leapOffset is the distance in bytes from the end of the header to the
// leap second array. Transition times take timeSize bytes each plus one
// type index byte, local time types six bytes each.
func (c tzifCounts) leapOffset(timeSize int64) int64 {
	return int64(c.Time)*(timeSize+1) + int64(c.Type)*6 + int64(c.Char)
}

// bodyLen is the length in bytes of one whole data block.
func (c tzifCounts) bodyLen(timeSize int64) int64 {
	return c.leapOffset(timeSize) + int64(c.Leap)*(timeSize+4) + int64(c.IsStd) + int64(c.IsUTC)
}

func readTZifHeader(r io.Reader) (byte, tzifCounts, error) {
	// four bytes of magic, the version byte, 15 reserved bytes
	var pre [20]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return 0, tzifCounts{}, errBadTZif
	}
	if string(pre[:4]) != "TZif" {
		return 0, tzifCounts{}, errBadTZif
	}
	version := pre[4]
	if version != 0 && version < '2' {
		return 0, tzifCounts{}, errTZifVersion
	}
	var counts tzifCounts
	if err := binary.Read(r, binary.BigEndian, &counts); err != nil {
		return 0, tzifCounts{}, err
	}
	return version, counts, nil
}

func parseTZif(r io.Reader) ([]Leap, error) {
	version, counts, err := readTZifHeader(r)
	if err != nil {
		return nil, err
	}
	wide := false
	if version != 0 {
		// version 2+ files restate everything in a second block with
		// 64-bit times, the narrow block only serves old readers
		if _, err := io.CopyN(io.Discard, r, counts.bodyLen(4)); err != nil {
			return nil, err
		}
		if version, counts, err = readTZifHeader(r); err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, errBadTZif
		}
		wide = true
	}

	if counts.Leap == 0 {
		return nil, ErrNoLeaps
	}
	timeSize := int64(4)
	if wide {
		timeSize = 8
	}
	if _, err := io.CopyN(io.Discard, r, counts.leapOffset(timeSize)); err != nil {
		return nil, err
	}

	var leaps []Leap
	for i := uint32(0); i < counts.Leap; i++ {
		var when int64
		if wide {
			if err := binary.Read(r, binary.BigEndian, &when); err != nil {
				return nil, err
			}
		} else {
			var narrow int32
			if err := binary.Read(r, binary.BigEndian, &narrow); err != nil {
				return nil, err
			}
			when = int64(narrow)
		}
		var count int32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, err
		}
		// when is seconds on the leap-inclusive timeline, subtracting
		// the corrections already applied maps it back to the UTC epoch
		leaps = append(leaps, Leap{
			Time:  time.Unix(when-int64(count)+1, 0).UTC(),
			Count: int(count),
		})
	}
	return leaps, nil
}
