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
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebookincubator/timeapi/chrony"
	"github.com/facebookincubator/timeapi/health"
	"github.com/facebookincubator/timeapi/timezone"
)

// QualitySource yields the latest known synchronization quality, nil when
// unknown.
type QualitySource interface {
	Quality(ctx context.Context) *chrony.TimeQuality
}

// HealthChecker runs one health evaluation.
type HealthChecker interface {
	Check(ctx context.Context) health.Response
}

// Handler owns the API endpoints. Collaborators are injected so handler
// tests run against fakes.
type Handler struct {
	Source  QualitySource
	Checker HealthChecker

	// swapped out in tests
	now func() time.Time
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

type timesResponse struct {
	Unix        int64                        `json:"unix"`
	Zones       map[string]timezone.ZoneInfo `json:"zones"`
	TimeQuality *chrony.TimeQuality          `json:"time_quality,omitempty"`
}

// healthResponse is the HTTP rendering of an evaluation: unlike the MQTT
// message it carries no timestamp, the response itself is current.
type healthResponse struct {
	Status      health.Status       `json:"status"`
	Checks      health.Checks       `json:"checks"`
	TimeQuality *chrony.TimeQuality `json:"time_quality,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, detail string) {
	writeJSON(w, statusCode, errorResponse{Detail: detail})
}

// times serves the current time plus its rendering in the requested zones.
// A missing tz parameter means UTC; an empty one is a valid request for just
// the epoch.
func (h *Handler) times(w http.ResponseWriter, r *http.Request) {
	names := []string{"UTC"}
	if vals, ok := r.URL.Query()["tz"]; ok {
		names = strings.Split(vals[0], ",")
	}
	unix, zones, err := timezone.Convert(names, h.clock())
	if err != nil {
		var invalid timezone.InvalidZoneError
		if errors.As(err, &invalid) || errors.Is(err, timezone.ErrTooManyZones) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			log.Errorf("converting zones: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	resp := timesResponse{Unix: unix, Zones: zones}
	if include, _ := strconv.ParseBool(r.URL.Query().Get("include_quality")); include {
		resp.TimeQuality = h.Source.Quality(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

// health serves one evaluation; an unhealthy verdict maps to 503 so load
// balancers take the instance out of rotation.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := h.Checker.Check(r.Context())
	statusCode := http.StatusOK
	if resp.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, healthResponse{
		Status:      resp.Status,
		Checks:      resp.Checks,
		TimeQuality: resp.TimeQuality,
	})
}

// ready reports only that the process serves requests; no dependencies are
// consulted.
func (h *Handler) ready(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(docsPage)); err != nil {
		log.Errorf("writing docs page: %v", err)
	}
}

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Time API</title>
<style>
body { font-family: monospace; margin: 2em auto; max-width: 42em; }
code { background: #eee; padding: 0 0.3em; }
</style>
</head>
<body>
<h1>Time API</h1>
<p>Authoritative wall-clock time and synchronization quality.</p>
<ul>
<li><code>GET /times?tz=UTC,Europe/London&amp;include_quality=true</code>
&mdash; epoch seconds plus per-zone local time and UTC offset.</li>
<li><code>GET /health</code> &mdash; system clock and chronyd checks;
503 when unhealthy.</li>
<li><code>GET /ready</code> &mdash; liveness only.</li>
</ul>
<p>The same data is published over MQTT on the <code>heartbeat</code> and
<code>health-change</code> subtopics.</p>
</body>
</html>
`
