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

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata" // keep zone resolution working on hosts without tzdata

	"github.com/stretchr/testify/require"

	"github.com/facebookincubator/timeapi/chrony"
	"github.com/facebookincubator/timeapi/health"
	"github.com/facebookincubator/timeapi/stats"
)

type fakeSource struct {
	quality *chrony.TimeQuality
}

func (f *fakeSource) Quality(_ context.Context) *chrony.TimeQuality {
	return f.quality
}

type fakeChecker struct {
	resp health.Response
}

func (f *fakeChecker) Check(_ context.Context) health.Response {
	return f.resp
}

var testQuality = &chrony.TimeQuality{
	Stratum:       2,
	OffsetSeconds: -0.000014514,
	ReferenceID:   "ntp1.example.com",
	LeapStatus:    chrony.LeapNormal,
}

// 2023-02-27T13:22:36.5Z
var testInstant = time.Unix(1677504156, 500000000).UTC()

func newTestServer(t *testing.T, quality *chrony.TimeQuality, resp health.Response) (*httptest.Server, *stats.Stats) {
	t.Helper()
	handler := &Handler{
		Source:  &fakeSource{quality: quality},
		Checker: &fakeChecker{resp: resp},
		now:     func() time.Time { return testInstant },
	}
	st := stats.NewStats()
	srv := httptest.NewServer(NewRouter(handler, st))
	t.Cleanup(srv.Close)
	return srv, st
}

func getJSON(t *testing.T, url string) (int, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body := map[string]json.RawMessage{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestTimesDefaultsToUTC(t *testing.T) {
	srv, _ := newTestServer(t, testQuality, health.Response{})

	statusCode, body := getJSON(t, srv.URL+"/times")
	require.Equal(t, http.StatusOK, statusCode)
	require.JSONEq(t, `1677504156`, string(body["unix"]))
	require.JSONEq(t, `{"UTC": {"local": "2023-02-27T13:22:36", "offset": 0}}`, string(body["zones"]))
	require.NotContains(t, body, "time_quality")
}

func TestTimesMultipleZonesWithQuality(t *testing.T) {
	srv, _ := newTestServer(t, testQuality, health.Response{})

	statusCode, body := getJSON(t, srv.URL+"/times?tz=UTC,America/New_York&include_quality=true")
	require.Equal(t, http.StatusOK, statusCode)

	zones := map[string]map[string]interface{}{}
	require.NoError(t, json.Unmarshal(body["zones"], &zones))
	require.Len(t, zones, 2)
	require.Equal(t, "2023-02-27T08:22:36", zones["America/New_York"]["local"])
	require.Equal(t, float64(-18000), zones["America/New_York"]["offset"])

	require.JSONEq(t, `{
		"stratum": 2,
		"offset_seconds": -0.000014514,
		"reference_id": "ntp1.example.com",
		"leap_status": "Normal"
	}`, string(body["time_quality"]))
}

func TestTimesQualityUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, nil, health.Response{})

	// requested but unknown: the field is simply absent, never an error
	statusCode, body := getJSON(t, srv.URL+"/times?include_quality=true")
	require.Equal(t, http.StatusOK, statusCode)
	require.NotContains(t, body, "time_quality")
}

func TestTimesEmptyTz(t *testing.T) {
	srv, _ := newTestServer(t, nil, health.Response{})

	statusCode, body := getJSON(t, srv.URL+"/times?tz=")
	require.Equal(t, http.StatusOK, statusCode)
	require.JSONEq(t, `1677504156`, string(body["unix"]))
	require.JSONEq(t, `{}`, string(body["zones"]))
}

func TestTimesInvalidZone(t *testing.T) {
	srv, _ := newTestServer(t, nil, health.Response{})

	statusCode, body := getJSON(t, srv.URL+"/times?tz=UTC,Not/AZone")
	require.Equal(t, http.StatusBadRequest, statusCode)
	require.JSONEq(t, `"Unrecognized time zone 'Not/AZone'"`, string(body["detail"]))
}

func TestTimesTooManyZones(t *testing.T) {
	srv, _ := newTestServer(t, nil, health.Response{})

	names := make([]string, 51)
	for i := range names {
		names[i] = "UTC"
	}
	statusCode, body := getJSON(t, srv.URL+"/times?tz="+strings.Join(names, ","))
	require.Equal(t, http.StatusBadRequest, statusCode)
	require.JSONEq(t, `"Too many time zones requested (max: 50)"`, string(body["detail"]))
}

func TestHealthHealthy(t *testing.T) {
	srv, _ := newTestServer(t, testQuality, health.Response{
		Status:    health.StatusHealthy,
		Timestamp: testInstant.Unix(),
		Checks: health.Checks{
			SystemClock: health.Check{Status: health.CheckOK},
			Chrony:      health.Check{Status: health.CheckOK},
		},
		TimeQuality: testQuality,
	})

	statusCode, body := getJSON(t, srv.URL+"/health")
	require.Equal(t, http.StatusOK, statusCode)
	require.JSONEq(t, `"healthy"`, string(body["status"]))
	require.JSONEq(t, `{"system_clock": {"status": "ok"}, "chrony": {"status": "ok"}}`, string(body["checks"]))
	require.Contains(t, body, "time_quality")
	// unlike the MQTT message, the HTTP body carries no timestamp
	require.NotContains(t, body, "timestamp")
}

func TestHealthUnhealthy(t *testing.T) {
	srv, _ := newTestServer(t, nil, health.Response{
		Status: health.StatusUnhealthy,
		Checks: health.Checks{
			SystemClock: health.Check{Status: health.CheckError, Message: "System clock out of range: 0"},
			Chrony:      health.Check{Status: health.CheckWarning, Message: "chrony unavailable or not synchronized"},
		},
	})

	statusCode, body := getJSON(t, srv.URL+"/health")
	require.Equal(t, http.StatusServiceUnavailable, statusCode)
	require.JSONEq(t, `"unhealthy"`, string(body["status"]))
	require.NotContains(t, body, "time_quality")
}

func TestReady(t *testing.T) {
	srv, _ := newTestServer(t, nil, health.Response{})

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Empty(t, body)
}

func TestRootDocs(t *testing.T) {
	srv, _ := newTestServer(t, nil, health.Response{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Time API")
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t, nil, health.Response{})

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()

	headers := map[string]string{
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Referrer-Policy":           "no-referrer",
		"Permissions-Policy":        "geolocation=(), microphone=(), camera=()",
		"Content-Security-Policy":   "default-src 'self'; style-src 'unsafe-inline'",
	}
	for name, want := range headers {
		require.Equal(t, want, resp.Header.Get(name), name)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil, health.Response{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/times", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "GET, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	require.Equal(t, "Content-Type, Accept", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestRequestIDEcho(t *testing.T) {
	srv, _ := newTestServer(t, nil, health.Response{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/ready", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "rid-12345")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "rid-12345", resp.Header.Get("X-Request-Id"))

	resp2, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NotEmpty(t, resp2.Header.Get("X-Request-Id"))
}

func TestRequestCounters(t *testing.T) {
	srv, st := newTestServer(t, nil, health.Response{Status: health.StatusHealthy})

	for _, path := range []string{"/times", "/times", "/health", "/ready", "/nope"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	counters := st.Get()
	require.Equal(t, int64(2), counters["http.requests.times"])
	require.Equal(t, int64(1), counters["http.requests.health"])
	require.Equal(t, int64(1), counters["http.requests.ready"])
	require.Equal(t, int64(1), counters["http.requests.other"])
	require.Equal(t, int64(4), counters["http.responses.2xx"])
	require.Equal(t, int64(1), counters["http.responses.4xx"])
}
