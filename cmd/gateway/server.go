// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gatewaylabs/llmgateway/api/handlers"
	"github.com/gatewaylabs/llmgateway/config"
	"github.com/gatewaylabs/llmgateway/gateway/catalog"
	"github.com/gatewaylabs/llmgateway/gateway/dialect"
	"github.com/gatewaylabs/llmgateway/gateway/dispatch"
	"github.com/gatewaylabs/llmgateway/gateway/health"
	"github.com/gatewaylabs/llmgateway/gateway/registry"
	"github.com/gatewaylabs/llmgateway/gateway/routing"
	"github.com/gatewaylabs/llmgateway/internal/metrics"
	"github.com/gatewaylabs/llmgateway/internal/server"
	"github.com/gatewaylabs/llmgateway/internal/telemetry"
	"github.com/gatewaylabs/llmgateway/internal/tlsutil"
)

// Server owns every long-lived component the gateway process runs: the
// provider catalog, the background registry/prober loops, and the two
// HTTP listeners (the canonical+admin surface, and metrics).
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	store    *catalog.MemoryStore
	reg      *registry.Registry
	prober   *health.Prober
	selector *routing.Selector
	pipeline *dispatch.Pipeline

	httpManager    *server.Manager
	metricsManager *server.Manager
	collector      *metrics.Collector
	otel           *telemetry.Providers

	cancelBackground context.CancelFunc
	wg               sync.WaitGroup
}

// NewServer wires every gateway component from cfg, but starts nothing.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	store := catalog.NewMemoryStore()
	if err := catalog.LoadFile(cfg.Catalog.Path, store); err != nil {
		logger.Warn("failed to load catalog file, starting with an empty catalog", zap.Error(err))
	}

	reg := registry.New(store)
	selector := routing.New(reg, store)
	dialects := dialect.DefaultRegistry()

	// Shared client for both the dispatch pipeline and the prober, hardened
	// against the upstream providers it reaches over the public internet.
	httpClient := tlsutil.SecureHTTPClient(cfg.Dispatch.RequestTimeout)

	prober := health.New(health.Config{
		Interval:         cfg.Probe.Interval,
		Timeout:          cfg.Probe.Timeout,
		FailureThreshold: cfg.Probe.FailureThreshold,
		Concurrency:      cfg.Probe.Concurrency,
	}, reg, store, httpClient, logger)

	pipeline := dispatch.New(dispatch.Config{
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		RequestTimeout: cfg.Dispatch.RequestTimeout,
	}, selector, reg, store, dialects, httpClient, logger)

	collector := metrics.NewCollector("llmgateway", logger)
	selector.SetCollector(collector)
	prober.SetCollector(collector)
	pipeline.SetCollector(collector)

	return &Server{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		reg:       reg,
		prober:    prober,
		selector:  selector,
		pipeline:  pipeline,
		collector: collector,
		otel:      otelProviders,
	}
}

// Start loads the initial catalog snapshot, starts the background
// registry/prober loops, and binds both HTTP listeners.
func (s *Server) Start() error {
	ctx := context.Background()
	if err := s.reg.Refresh(ctx); err != nil {
		return err
	}

	bgCtx, cancel := context.WithCancel(ctx)
	s.cancelBackground = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.reg.Watch(bgCtx)
	}()
	go func() {
		defer s.wg.Done()
		if s.cfg.Probe.Enabled {
			s.prober.Run(bgCtx)
		}
	}()

	if err := s.startHTTPServer(); err != nil {
		return err
	}
	return s.startMetricsServer()
}

func (s *Server) startHTTPServer() error {
	router := chi.NewRouter()

	chatHandler := handlers.NewChatHandler(s.pipeline, s.logger)
	providerHandler := handlers.NewProviderHandler(s.store, s.logger)
	routeHandler := handlers.NewRouteHandler(s.store, s.selector, s.logger)
	healthHandler := handlers.NewHealthHandler(s.reg, s.prober, s.logger)

	base := Chain(router,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		SecurityHeaders(),
	)

	router.Get("/health", healthHandler.HandleHealth)
	router.Get("/healthz", healthHandler.HandleHealth)
	router.Get("/ready", healthHandler.HandleReady)
	router.Get("/readyz", healthHandler.HandleReady)
	router.Get("/version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	router.Post("/v1/chat/completions", chatHandler.HandleCompletion)

	router.Route("/admin/v1", func(r chi.Router) {
		if s.cfg.Auth.JWTSecret != "" {
			r.Use(JWTAuth(s.cfg.Auth, s.logger))
		}

		r.Get("/providers", providerHandler.HandleList)
		r.Put("/providers/{id}", providerHandler.HandlePut)
		r.Get("/providers/{id}", providerHandler.HandleGet)
		r.Delete("/providers/{id}", providerHandler.HandleDelete)
		r.Post("/providers/{id}/probe", healthHandler.HandleProbe)

		r.Get("/routes", routeHandler.HandleList)
		r.Put("/routes/{id}", routeHandler.HandlePut)
		r.Get("/routes/{id}", routeHandler.HandleGet)
		r.Delete("/routes/{id}", routeHandler.HandleDelete)
		r.Post("/routes/select", routeHandler.HandleSelect)
	})

	serverCfg := server.Config{
		Addr:            portAddr(s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(base, serverCfg, s.logger)
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverCfg := server.Config{
		Addr:            portAddr(s.cfg.Server.MetricsPort),
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}

	s.metricsManager = server.NewManager(mux, serverCfg, s.logger)
	return s.metricsManager.Start()
}

// WaitForShutdown blocks for SIGINT/SIGTERM (or a listener error), then
// tears everything down: the canonical HTTP listener first, then the
// background loops, the metrics listener and the telemetry exporters.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Shutdown()
}

// Shutdown stops the background loops and the metrics listener. The
// canonical HTTP listener is stopped by WaitForShutdown itself.
func (s *Server) Shutdown() {
	if s.cancelBackground != nil {
		s.cancelBackground()
	}
	s.wg.Wait()

	if s.metricsManager != nil {
		_ = s.metricsManager.Shutdown(context.Background())
	}

	if s.otel != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.otel.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
}

func portAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}
