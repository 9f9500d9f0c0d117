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

package sysclock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebookincubator/timeapi/health"
)

func TestClassifyBoundaries(t *testing.T) {
	// window is inclusive on both ends
	require.Equal(t, health.CheckOK, classify(MinValidUnix).Status)
	require.Equal(t, health.CheckOK, classify(MaxValidUnix).Status)
	require.Equal(t, health.CheckError, classify(MinValidUnix-1).Status)
	require.Equal(t, health.CheckError, classify(MaxValidUnix+1).Status)
}

func TestClassifyMessages(t *testing.T) {
	require.Empty(t, classify(MinValidUnix+1).Message)

	check := classify(0)
	require.Equal(t, health.CheckError, check.Status)
	require.Equal(t, "System clock out of range: 0", check.Message)
}

func TestCheckOnRealClock(t *testing.T) {
	// the machine running tests has a set clock
	check := Check()
	require.Equal(t, health.CheckOK, check.Status)
	require.Empty(t, check.Message)
}

func TestNow(t *testing.T) {
	now, err := Now()
	require.NoError(t, err)
	require.Greater(t, now.Unix(), MinValidUnix)
}
