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

// Package daemon wires the time service together: chronyd tracking behind
// the cache, health evaluation, the HTTP API, the monitoring server and the
// MQTT publishers, all running as one unit.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	systemd "github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebookincubator/timeapi/api"
	"github.com/facebookincubator/timeapi/chrony"
	"github.com/facebookincubator/timeapi/health"
	"github.com/facebookincubator/timeapi/mqtt"
	"github.com/facebookincubator/timeapi/stats"
	"github.com/facebookincubator/timeapi/sysclock"
)

const sysStatsInterval = 10 * time.Second

// countingFetcher counts refreshes and failures around the real fetcher.
type countingFetcher struct {
	fetcher chrony.Fetcher
	stats   *stats.Stats
}

func (f *countingFetcher) Fetch(ctx context.Context) (*chrony.TimeQuality, error) {
	f.stats.Inc("quality.refresh")
	quality, err := f.fetcher.Fetch(ctx)
	if err != nil {
		f.stats.Inc("quality.refresh.failed")
		return nil, err
	}
	return quality, nil
}

// countingPublisher counts publishes and failures per subtopic.
type countingPublisher struct {
	publisher mqtt.Publisher
	stats     *stats.Stats
}

func (p *countingPublisher) Publish(subtopic string, payload interface{}) error {
	if err := p.publisher.Publish(subtopic, payload); err != nil {
		p.stats.Inc("mqtt.publish." + subtopic + ".failed")
		return err
	}
	p.stats.Inc("mqtt.publish." + subtopic)
	return nil
}

// Daemon is the fully wired service.
type Daemon struct {
	cfg        *Config
	stats      *stats.Stats
	tracker    *chrony.Tracker
	checker    *health.Checker
	window     *offsetWindow
	api        *api.Server
	monitoring *stats.Server
	mqttClient *mqtt.Client
}

// New wires a Daemon from validated config.
func New(cfg *Config) (*Daemon, error) {
	st := stats.NewStats()
	tracker := chrony.NewTracker(
		&countingFetcher{fetcher: cfg.MakeFetcher(), stats: st},
		chrony.CacheTTL,
	)
	checker := health.NewChecker(sysclock.Check, tracker)

	d := &Daemon{
		cfg:     cfg,
		stats:   st,
		tracker: tracker,
		checker: checker,
		window:  newOffsetWindow(cfg.RingSize),
		api: api.NewServer(api.Config{
			ListenAddr:     cfg.ListenAddr,
			TLSCert:        cfg.TLSCert,
			TLSKey:         cfg.TLSKey,
			MaxConnections: cfg.MaxConnections,
		}, tracker, checker, st),
		monitoring: stats.NewServer(st),
	}
	if cfg.MQTTBroker != "" {
		client, err := mqtt.NewClient(cfg.MQTTClientConfig())
		if err != nil {
			return nil, fmt.Errorf("setting up MQTT client: %w", err)
		}
		d.mqttClient = client
	}
	return d, nil
}

// Run starts every component and blocks until ctx is canceled or one of
// them fails. Cancellation is a clean shutdown, not an error. A broker that
// cannot be reached at startup downgrades the daemon to HTTP-only instead of
// failing it.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.monitoring.Serve(ctx, fmt.Sprintf(":%d", d.cfg.MonitoringPort))
	})
	g.Go(func() error {
		return stats.NewSysStats(d.stats, sysStatsInterval).Run(ctx)
	})
	g.Go(func() error {
		return d.offsetSampler(ctx)
	})
	g.Go(func() error {
		return d.api.Serve(ctx)
	})

	if d.mqttClient != nil {
		if err := d.mqttClient.Connect(); err != nil {
			log.Warningf("MQTT disabled, continuing HTTP-only: %v", err)
		} else {
			defer d.mqttClient.Disconnect()
			publisher := &countingPublisher{publisher: d.mqttClient, stats: d.stats}
			g.Go(func() error {
				return mqtt.NewHeartbeat(publisher).Run(ctx)
			})
			g.Go(func() error {
				return mqtt.NewHealthNotifier(publisher, d.checker).Run(ctx)
			})
		}
	}

	if ok, err := systemd.SdNotify(false, systemd.SdNotifyReady); ok && err == nil {
		log.Debugf("notified systemd we are ready")
	}
	go func() {
		<-ctx.Done()
		_, _ = systemd.SdNotify(false, systemd.SdNotifyStopping)
	}()

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// offsetSampler records the chronyd offset once per interval and refreshes
// the offset gauges.
func (d *Daemon) offsetSampler(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		quality := d.tracker.Quality(ctx)
		if quality == nil {
			continue
		}
		d.window.push(quality.OffsetSeconds * 1e9)
		d.updateOffsetStats()
	}
}

func (d *Daemon) updateOffsetStats() {
	samples := d.window.take(d.cfg.RingSize)
	if len(samples) == 0 {
		return
	}
	set := func(key string, v float64) {
		d.stats.SetCounter(key, int64(math.Round(v)))
	}
	set("offset.last_ns", samples[0])
	set("offset.mean_ns", mean(samples))
	set("offset.stddev_ns", stddev(samples))

	sorted := append([]float64{}, samples...)
	sort.Float64s(sorted)
	set("offset.min_ns", sorted[0])
	set("offset.max_ns", sorted[len(sorted)-1])
	set("offset.p50_ns", percentile(sorted, 50))
	set("offset.p90_ns", percentile(sorted, 90))
	set("offset.p99_ns", percentile(sorted, 99))
	d.stats.SetCounter("offset.samples", int64(len(samples)))

	score, err := d.cfg.Math.Evaluate(samples)
	if err != nil {
		log.Warningf("evaluating offset score: %v", err)
		return
	}
	set("offset.score_ns", score)
}
