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

package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// promPrefix namespaces every exported metric.
const promPrefix = "timeapi_"

// Server exposes the counter map on the monitoring port: "/" serves the raw
// JSON snapshot, "/metrics" the prometheus rendering of the same counters.
type Server struct {
	stats *Stats
	mux   *http.ServeMux
}

// NewServer wires the monitoring handlers around the given counters.
func NewServer(st *Stats) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(&collector{stats: st})

	s := &Server{stats: st, mux: http.NewServeMux()}
	s.mux.HandleFunc("/", s.handleCounters)
	s.mux.Handle("/metrics", promhttp.HandlerFor(
		registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleCounters(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.stats.Get())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

// Serve runs the monitoring listener until ctx is canceled, then shuts it
// down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.Infof("monitoring server listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// collector renders the counter snapshot as prometheus gauges at scrape
// time, so new counters show up without registration churn.
type collector struct {
	stats *Stats
}

// Describe sends nothing: the metric set follows the counter map, so this is
// an unchecked collector.
func (c *collector) Describe(_ chan<- *prometheus.Desc) {}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for key, val := range c.stats.Get() {
		metric, err := prometheus.NewConstMetric(
			prometheus.NewDesc(promPrefix+flattenKey(key), key, nil, nil),
			prometheus.GaugeValue,
			float64(val),
		)
		if err != nil {
			log.Errorf("failed to collect metric %s: %v", key, err)
			continue
		}
		ch <- metric
	}
}

func flattenKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, "=", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return key
}
