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
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTZifHeader(buf *bytes.Buffer, version byte, leapCnt uint32) {
	buf.WriteString("TZif")
	buf.WriteByte(version)
	buf.Write(make([]byte, 15))
	// isutcnt, isstdcnt, leapcnt, timecnt, typecnt, charcnt
	_ = binary.Write(buf, binary.BigEndian, []uint32{0, 0, leapCnt, 0, 0, 0})
}

// two well known records: 1972-07-01, the first leap second ever, and
// 2017-01-01, the most recent one as of this writing
func requireKnownLeaps(t *testing.T, leaps []Leap) {
	t.Helper()
	require.Len(t, leaps, 2)
	require.Equal(t, time.Date(1972, time.July, 1, 0, 0, 0, 0, time.UTC), leaps[0].Time)
	require.Equal(t, 1, leaps[0].Count)
	require.Equal(t, 11*time.Second, leaps[0].TAIOffset())
	require.Equal(t, time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC), leaps[1].Time)
	require.Equal(t, 27, leaps[1].Count)
	require.Equal(t, 37*time.Second, leaps[1].TAIOffset())
}

func tzifV1(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	writeTZifHeader(buf, 0, 2)
	_ = binary.Write(buf, binary.BigEndian, []uint32{78796800, 1})
	_ = binary.Write(buf, binary.BigEndian, []uint32{1483228826, 27})
	return buf.Bytes()
}

func TestParseTZifV1(t *testing.T) {
	leaps, err := parseTZif(bytes.NewReader(tzifV1(t)))
	require.NoError(t, err)
	requireKnownLeaps(t, leaps)
}

func TestParseTZifV2(t *testing.T) {
	buf := &bytes.Buffer{}
	// narrow block with one record of junk that the parser must skip
	writeTZifHeader(buf, '2', 1)
	buf.Write(bytes.Repeat([]byte{0xff}, 8))
	// the wide block carries the real records
	writeTZifHeader(buf, '2', 2)
	_ = binary.Write(buf, binary.BigEndian, int64(78796800))
	_ = binary.Write(buf, binary.BigEndian, int32(1))
	_ = binary.Write(buf, binary.BigEndian, int64(1483228826))
	_ = binary.Write(buf, binary.BigEndian, int32(27))

	leaps, err := parseTZif(buf)
	require.NoError(t, err)
	requireKnownLeaps(t, leaps)
}

func TestParseTZifNoLeaps(t *testing.T) {
	buf := &bytes.Buffer{}
	writeTZifHeader(buf, 0, 0)
	_, err := parseTZif(buf)
	require.ErrorIs(t, err, ErrNoLeaps)
}

func TestParseTZifBadMagic(t *testing.T) {
	_, err := parseTZif(bytes.NewReader(bytes.Repeat([]byte{'x'}, 50)))
	require.ErrorContains(t, err, "malformed TZif file")
}

func TestParseTZifBadVersion(t *testing.T) {
	buf := &bytes.Buffer{}
	writeTZifHeader(buf, '1', 1)
	_, err := parseTZif(buf)
	require.ErrorIs(t, err, errTZifVersion)
}

func TestParseTZifTruncated(t *testing.T) {
	// header promises two records, only one follows
	buf := &bytes.Buffer{}
	writeTZifHeader(buf, 0, 2)
	_ = binary.Write(buf, binary.BigEndian, []uint32{78796800, 1})
	_, err := parseTZif(buf)
	require.Error(t, err)
}

func TestReadLeaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "UTC")
	require.NoError(t, os.WriteFile(path, tzifV1(t), 0644))

	leaps, err := ReadLeaps(path)
	require.NoError(t, err)
	requireKnownLeaps(t, leaps)
}

func TestReadLeapsMissingFile(t *testing.T) {
	_, err := ReadLeaps(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestLastLeap(t *testing.T) {
	leaps := []Leap{
		{Time: time.Date(1972, time.July, 1, 0, 0, 0, 0, time.UTC), Count: 1},
		{Time: time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC), Count: 27},
	}

	last, err := LastLeap(leaps, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 27, last.Count)
	require.Equal(t, 37*time.Second, last.TAIOffset())

	// between the two records only the first one counts
	last, err = LastLeap(leaps, time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, last.Count)

	_, err = LastLeap(leaps, time.Unix(0, 0))
	require.ErrorContains(t, err, "no leap second on record before")
}
