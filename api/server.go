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

// Package api serves the public HTTP surface: wall-clock time with zone
// conversions, synchronization quality and service health.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"github.com/facebookincubator/timeapi/stats"
)

// Config carries the listener settings.
type Config struct {
	ListenAddr     string
	TLSCert        string // serve TLS when both cert and key are set
	TLSKey         string
	MaxConnections int // cap on concurrent connections, 0 means unlimited
}

// Server is the public HTTP API.
type Server struct {
	cfg    Config
	router http.Handler
}

// NewServer wires the handlers and middleware around the given
// collaborators.
func NewServer(cfg Config, source QualitySource, checker HealthChecker, st *stats.Stats) *Server {
	handler := &Handler{Source: source, Checker: checker}
	return &Server{
		cfg:    cfg,
		router: NewRouter(handler, st),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens until ctx is canceled, then drains in-flight requests and
// returns. The listener itself caps concurrent connections.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.ListenAddr, err)
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if s.cfg.TLSCert != "" {
			log.Infof("API server listening on https://%s", ln.Addr())
			errc <- srv.ServeTLS(ln, s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			log.Infof("API server listening on http://%s", ln.Addr())
			errc <- srv.Serve(ln)
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
