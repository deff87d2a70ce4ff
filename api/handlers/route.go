// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
	"github.com/gatewaylabs/llmgateway/gateway/routing"
	"github.com/gatewaylabs/llmgateway/types"
)

// RouteHandler serves the admin CRUD surface over routes, plus a debug
// endpoint that exercises the live Selector without dispatching a call.
type RouteHandler struct {
	store    *catalog.MemoryStore
	selector *routing.Selector
	logger   *zap.Logger
}

// NewRouteHandler builds a RouteHandler.
func NewRouteHandler(store *catalog.MemoryStore, selector *routing.Selector, logger *zap.Logger) *RouteHandler {
	return &RouteHandler{store: store, selector: selector, logger: logger}
}

// HandleList serves GET /admin/v1/routes.
func (h *RouteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	routes, _ := h.store.ListRoutes(r.Context())
	WriteSuccess(w, routes)
}

// HandleGet serves GET /admin/v1/routes/{id}.
func (h *RouteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	route, err := h.store.GetRoute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteErrorMessage(w, http.StatusNotFound, "not_found", "route not found", h.logger)
		return
	}
	WriteSuccess(w, route)
}

// upsertRouteRequest mirrors catalog.Route, flattened for JSON transport.
type upsertRouteRequest struct {
	Name   string               `json:"name"`
	Active *bool                `json:"active"`
	Mode   catalog.Mode         `json:"mode"`
	Config catalog.RouteConfig  `json:"config"`
	Nodes  []catalog.Node       `json:"nodes"`
}

// HandlePut serves PUT /admin/v1/routes/{id}, creating or replacing the
// route definition in full.
func (h *RouteHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req upsertRouteRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	id := chi.URLParam(r, "id")
	if err := validateUpsertRoute(id, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	route := catalog.Route{
		ID:     id,
		Name:   req.Name,
		Active: active,
		Mode:   req.Mode,
		Config: req.Config,
		Nodes:  req.Nodes,
	}

	h.store.PutRoute(route)
	WriteCreated(w, route)
}

// HandleDelete serves DELETE /admin/v1/routes/{id}.
func (h *RouteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetRoute(r.Context(), id); err != nil {
		WriteErrorMessage(w, http.StatusNotFound, "not_found", "route not found", h.logger)
		return
	}
	h.store.DeleteRoute(id)
	WriteSuccess(w, map[string]string{"id": id, "status": "deleted"})
}

// selectDebugRequest is the body for the manual selection probe.
type selectDebugRequest struct {
	RouteName string             `json:"route_name"`
	ModelHint string             `json:"model_hint"`
	Exclude   []string           `json:"exclude"`
}

// HandleSelect serves POST /admin/v1/routes/select, running the live
// Selector against the given route name and returning its pick without
// dispatching a request — an operator tool for debugging routing rules.
func (h *RouteHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req selectDebugRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.RouteName) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "invalid_request", "route_name is required", h.logger)
		return
	}

	exclude := make(routing.ExcludeSet, len(req.Exclude))
	for _, id := range req.Exclude {
		exclude[id] = true
	}

	selection, err := h.selector.Select(r.Context(), req.RouteName, req.ModelHint, exclude)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, map[string]any{
		"provider_id": selection.Provider.ID,
		"model":       selection.Model,
	})
}

func validateUpsertRoute(id string, req *upsertRouteRequest) error {
	if strings.TrimSpace(id) == "" {
		return types.NewError(types.ErrorCode("invalid_request"), "route id is required").WithHTTPStatus(http.StatusBadRequest)
	}
	if strings.TrimSpace(req.Name) == "" {
		return types.NewError(types.ErrorCode("invalid_request"), "name is required").WithHTTPStatus(http.StatusBadRequest)
	}
	switch req.Mode {
	case catalog.ModeAuto:
		if req.Config.Auto == nil {
			return types.NewError(types.ErrorCode("invalid_request"), "auto mode requires config.auto").WithHTTPStatus(http.StatusBadRequest)
		}
	case catalog.ModeSpecific:
		if req.Config.Specific == nil || len(req.Nodes) != 1 {
			return types.NewError(types.ErrorCode("invalid_request"), "specific mode requires config.specific and exactly one node").WithHTTPStatus(http.StatusBadRequest)
		}
	case catalog.ModeMulti:
		if len(req.Nodes) == 0 {
			return types.NewError(types.ErrorCode("invalid_request"), "multi mode requires at least one node").WithHTTPStatus(http.StatusBadRequest)
		}
	default:
		return types.NewError(types.ErrorCode("invalid_request"), "mode must be one of auto, specific, multi").WithHTTPStatus(http.StatusBadRequest)
	}
	return nil
}
