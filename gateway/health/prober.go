// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package health implements the gateway's periodic upstream health
// prober: it owns the long-running probe loop and is the sole writer of
// a provider's liveness attributes in the registry.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
	"github.com/gatewaylabs/llmgateway/gateway/chatapi"
	"github.com/gatewaylabs/llmgateway/gateway/registry"
	"github.com/gatewaylabs/llmgateway/internal/metrics"
)

// Config tunes the Prober's probe loop.
type Config struct {
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold int
	Concurrency      int
}

// Result is the outcome of a single probe, returned by Test for the
// manual on-demand probe operation.
type Result struct {
	Status    catalog.Status
	HTTPCode  int
	LatencyMS int64
	Detail    string
	// Skip is set when the probe never reached the network (credential
	// decrypt failure). Such outcomes are logged but do not count
	// against the provider's consecutive-failure threshold.
	Skip bool
}

// Prober runs the periodic `<base_url>/models` probe against every active
// provider and updates the Registry's live health attributes. It holds no
// state beyond the Registry it writes to and the HTTP client it probes
// with; a single Prober is started at process init and stopped via
// context cancellation on shutdown.
type Prober struct {
	cfg     Config
	reg     *registry.Registry
	store   catalog.Store
	client  *http.Client
	log     *zap.Logger
	metrics *metrics.Collector
	limiter *rate.Limiter
}

// New builds a Prober. client is shared with the dispatch pipeline so the
// process keeps one connection-pooling client.
func New(cfg Config, reg *registry.Registry, store catalog.Store, client *http.Client, log *zap.Logger) *Prober {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	// The errgroup limit bounds how many probes run at once; the limiter
	// bounds how fast new ones are issued, so a burst of providers coming
	// back into rotation mid-cycle doesn't slam every base_url at once
	// even when concurrency width would otherwise allow it.
	return &Prober{cfg: cfg, reg: reg, store: store, client: client, log: log,
		limiter: rate.NewLimiter(rate.Limit(cfg.Concurrency), cfg.Concurrency)}
}

// SetCollector attaches a metrics.Collector that probe outcomes and
// provider health transitions are reported to. Optional.
func (p *Prober) SetCollector(c *metrics.Collector) {
	p.metrics = c
}

// Run starts the periodic probe loop and blocks until ctx is cancelled.
// It terminates within one probe-timeout window of cancellation, since
// every in-flight probe carries ctx as its parent.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.probeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeAll(ctx)
		}
	}
}

// probeAll snapshots the active provider list at cycle start — admin
// edits mid-cycle apply to the next cycle, not this one — and probes each
// concurrently, bounded by cfg.Concurrency.
func (p *Prober) probeAll(ctx context.Context) {
	providers := p.reg.ListActive()
	if len(providers) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, prov := range providers {
		prov := prov
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return nil
			}
			p.probeOne(gctx, prov)
			return nil
		})
	}

	_ = g.Wait()
}

func (p *Prober) probeOne(ctx context.Context, prov catalog.Provider) {
	result := p.probe(ctx, prov)
	p.apply(ctx, prov, result)
}

// Test runs the same probe logic as the periodic loop, on demand, and
// still updates live fields — it is not a dry run.
func (p *Prober) Test(ctx context.Context, id string) (Result, error) {
	prov, err := p.reg.Get(id)
	if err != nil {
		return Result{}, err
	}
	result := p.probe(ctx, prov)
	p.apply(ctx, prov, result)
	return result, nil
}

func (p *Prober) probe(ctx context.Context, prov catalog.Provider) Result {
	plaintext, err := p.store.Decrypt(ctx, prov.Credential)
	if err != nil {
		// Decrypt failure does not count as a network failure: log and
		// skip, let the next probe try again.
		p.log.Warn("probe: credential decrypt failed", zap.String("provider", prov.ID), zap.Error(err))
		return Result{Status: catalog.StatusError, Detail: err.Error(), Skip: true}
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	url := chatapi.JoinURL(prov.BaseURL, "/models")
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Status: catalog.StatusError, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+plaintext)

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return Result{Status: catalog.StatusTimeout, LatencyMS: latency.Milliseconds(), Detail: err.Error()}
		}
		return Result{Status: catalog.StatusUnreachable, LatencyMS: latency.Milliseconds(), Detail: err.Error()}
	}
	defer resp.Body.Close()

	status := classify(resp.StatusCode)
	return Result{Status: status, HTTPCode: resp.StatusCode, LatencyMS: latency.Milliseconds()}
}

func classify(httpCode int) catalog.Status {
	switch {
	case httpCode >= 200 && httpCode < 300:
		return catalog.StatusOnline
	default:
		return catalog.StatusDegraded
	}
}

// apply implements the failure-threshold state machine: any non-online
// outcome increments consecutive_failures; at the threshold, healthy
// flips false. A single online outcome resets both.
func (p *Prober) apply(ctx context.Context, prov catalog.Provider, result Result) {
	if p.metrics != nil {
		p.metrics.RecordProbe(prov.ID, string(result.Status), time.Duration(result.LatencyMS)*time.Millisecond)
	}

	if result.Skip {
		return
	}

	fields := catalog.LiveFields{
		LastStatus:    result.Status,
		LastLatencyMS: result.LatencyMS,
		LastProbedAt:  time.Now(),
	}

	if result.Status == catalog.StatusOnline {
		fields.Healthy = true
		fields.ConsecutiveFailures = 0
	} else {
		fields.ConsecutiveFailures = prov.ConsecutiveFailures + 1
		fields.Healthy = fields.ConsecutiveFailures < p.cfg.FailureThreshold
	}

	if p.metrics != nil {
		p.metrics.SetProviderHealthy(prov.ID, fields.Healthy)
	}

	if err := p.reg.UpdateLiveFields(ctx, prov.ID, fields); err != nil {
		p.log.Warn("probe: failed to record result", zap.String("provider", prov.ID), zap.Error(err))
	}
}
