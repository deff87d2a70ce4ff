// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gatewaylabs/llmgateway/gateway/health"
	"github.com/gatewaylabs/llmgateway/gateway/registry"
)

// HealthHandler serves the process liveness/readiness probes and the
// on-demand per-provider probe debug endpoint.
type HealthHandler struct {
	reg    *registry.Registry
	prober *health.Prober
	logger *zap.Logger
}

// NewHealthHandler builds a HealthHandler. prober may be nil when probing
// is disabled; HandleProbe then reports 503.
func NewHealthHandler(reg *registry.Registry, prober *health.Prober, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{reg: reg, prober: prober, logger: logger}
}

// Status is the liveness/readiness response body.
type Status struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Providers int       `json:"providers_active,omitempty"`
}

// HandleHealth reports the process is up, with no dependency checks.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, Status{Status: "healthy", Timestamp: time.Now()})
}

// HandleReady reports whether the registry has at least one eligible
// provider to dispatch against. An empty catalog or an all-unhealthy
// fleet both fail readiness, since neither can serve traffic.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	active := h.reg.ListActive()
	eligible := 0
	for _, p := range active {
		if p.Eligible() {
			eligible++
		}
	}

	status := Status{Status: "ready", Timestamp: time.Now(), Providers: eligible}
	if eligible == 0 {
		status.Status = "not_ready"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleVersion reports build metadata.
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

// HandleProbe runs an immediate probe of one provider, independent of the
// periodic loop, and returns the result.
//
// POST /admin/v1/providers/{id}/probe
func (h *HealthHandler) HandleProbe(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		WriteErrorMessage(w, http.StatusServiceUnavailable, "probing_disabled", "health probing is disabled", h.logger)
		return
	}

	id := chi.URLParam(r, "id")
	result, err := h.prober.Test(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}
