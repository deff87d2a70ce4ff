// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
	"github.com/gatewaylabs/llmgateway/types"
)

// ProviderHandler serves the admin CRUD surface over the provider
// catalog. Credentials are write-only: responses always mask them.
type ProviderHandler struct {
	store  *catalog.MemoryStore
	logger *zap.Logger
}

// NewProviderHandler builds a ProviderHandler.
func NewProviderHandler(store *catalog.MemoryStore, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{store: store, logger: logger}
}

// providerView is the admin-facing provider shape: the credential
// ciphertext never leaves the process.
type providerView struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	BaseURL             string            `json:"base_url"`
	Dialect             catalog.Dialect   `json:"dialect"`
	Models              []string          `json:"models"`
	Active              bool              `json:"active"`
	Weight              int               `json:"weight"`
	Healthy             bool              `json:"healthy"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	LastStatus          catalog.Status    `json:"last_status"`
	LastLatencyMS       int64             `json:"last_latency_ms"`
}

func toProviderView(p catalog.Provider) providerView {
	return providerView{
		ID:                  p.ID,
		Name:                p.Name,
		BaseURL:             p.BaseURL,
		Dialect:             p.Dialect,
		Models:              p.Models,
		Active:              p.Active,
		Weight:              p.Weight,
		Healthy:             p.Healthy,
		ConsecutiveFailures: p.ConsecutiveFailures,
		LastStatus:          p.LastStatus,
		LastLatencyMS:       p.LastLatencyMS,
	}
}

// HandleList serves GET /admin/v1/providers.
func (h *ProviderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	providers, _ := h.store.ListProviders(r.Context())
	out := make([]providerView, 0, len(providers))
	for _, p := range providers {
		out = append(out, toProviderView(p))
	}
	WriteSuccess(w, out)
}

// HandleGet serves GET /admin/v1/providers/{id}.
func (h *ProviderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProvider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteErrorMessage(w, http.StatusNotFound, "not_found", "provider not found", h.logger)
		return
	}
	WriteSuccess(w, toProviderView(p))
}

// upsertProviderRequest is the create/replace request body. Credential is
// plaintext on the wire — callers are expected to use TLS — and is
// encrypted at rest before it reaches the store.
type upsertProviderRequest struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	BaseURL    string          `json:"base_url"`
	Dialect    catalog.Dialect `json:"dialect"`
	Credential string          `json:"credential"`
	Models     []string        `json:"models"`
	Active     *bool           `json:"active"`
	Weight     int             `json:"weight"`
}

// HandlePut serves PUT /admin/v1/providers/{id}, creating or replacing
// the provider definition in full.
func (h *ProviderHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req upsertProviderRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	id := chi.URLParam(r, "id")
	if err := validateUpsertProvider(id, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	existing, getErr := h.store.GetProvider(r.Context(), id)
	isUpdate := getErr == nil

	credential := catalog.Encrypt(req.Credential)
	if req.Credential == "" && isUpdate {
		// Caller omitted credential on an update: keep the existing one.
		credential = existing.Credential
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	p := catalog.Provider{
		ID:         id,
		Name:       req.Name,
		BaseURL:    req.BaseURL,
		Dialect:    req.Dialect,
		Credential: credential,
		Models:     req.Models,
		Active:     active,
		Weight:     req.Weight,
	}
	if isUpdate {
		// Preserve live health attributes across an update; only the
		// Prober is allowed to reset them.
		p.Healthy = existing.Healthy
		p.ConsecutiveFailures = existing.ConsecutiveFailures
		p.LastStatus = existing.LastStatus
		p.LastLatencyMS = existing.LastLatencyMS
		p.LastProbedAt = existing.LastProbedAt
	}

	h.store.PutProvider(p)
	WriteCreated(w, toProviderView(p))
}

// HandleDelete serves DELETE /admin/v1/providers/{id}.
func (h *ProviderHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetProvider(r.Context(), id); err != nil {
		WriteErrorMessage(w, http.StatusNotFound, "not_found", "provider not found", h.logger)
		return
	}
	h.store.DeleteProvider(id)
	WriteSuccess(w, map[string]string{"id": id, "status": "deleted"})
}

func validateUpsertProvider(id string, req *upsertProviderRequest) error {
	if strings.TrimSpace(id) == "" {
		return types.NewError(types.ErrorCode("invalid_request"), "provider id is required").WithHTTPStatus(http.StatusBadRequest)
	}
	if strings.TrimSpace(req.BaseURL) == "" {
		return types.NewError(types.ErrorCode("invalid_request"), "base_url is required").WithHTTPStatus(http.StatusBadRequest)
	}
	switch req.Dialect {
	case catalog.DialectOpenAI, catalog.DialectAnthropic, catalog.DialectGemini:
	default:
		return types.NewError(types.ErrorCode("invalid_request"), "dialect must be one of openai, anthropic, gemini").WithHTTPStatus(http.StatusBadRequest)
	}
	if len(req.Models) == 0 {
		return types.NewError(types.ErrorCode("invalid_request"), "models cannot be empty").WithHTTPStatus(http.StatusBadRequest)
	}
	return nil
}
