// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package routing implements the Route Selector: given a route name and
// an optional model hint, it picks one eligible provider and target
// model, rotating fairly across repeated calls and honoring an
// exclude set so the dispatch pipeline can retry against a different
// provider without re-selecting the one that just failed.
package routing

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
	"github.com/gatewaylabs/llmgateway/gateway/registry"
	"github.com/gatewaylabs/llmgateway/gwerrors"
	"github.com/gatewaylabs/llmgateway/internal/metrics"
)

// Selection is the outcome of one Select call: the provider to dispatch
// to and the model to request from it.
type Selection struct {
	Provider catalog.Provider
	Model    string
}

// ExcludeSet names providers the Selector must skip, accumulated by the
// dispatch pipeline across failed attempts at the same request.
type ExcludeSet map[string]bool

// Selector resolves routes against the live Registry. It holds no route
// data of its own; routes are read straight from the catalog Store on
// every call since they change far less often than provider health.
type Selector struct {
	reg     *registry.Registry
	store   catalog.Store
	metrics *metrics.Collector

	mu      sync.Mutex
	cursors map[cursorKey]*cursor
}

// New builds a Selector over reg (provider health) and store (route
// definitions).
func New(reg *registry.Registry, store catalog.Store) *Selector {
	return &Selector{
		reg:     reg,
		store:   store,
		cursors: make(map[cursorKey]*cursor),
	}
}

// SetCollector attaches a metrics.Collector that Select reports picks
// to. Optional: a Selector built without one simply records nothing.
func (s *Selector) SetCollector(c *metrics.Collector) {
	s.metrics = c
}

type cursorKey struct {
	routeID string
	scope   string
}

// cursor is a single rotation position, advanced modulo the current ring
// size at selection time; the ring may shrink between calls as providers
// drop out of eligibility, so the modulus is never cached.
type cursor struct {
	mu   sync.Mutex
	next int
}

func (c *cursor) advance(n int) int {
	if n <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.next % n
	c.next = (c.next + 1) % n
	return idx
}

// cursorFor returns the cursor for (routeID, scope), creating it on first
// use. The map lookup is brief and globally locked; the rotation itself
// is locked per cursor, so unrelated routes and scopes never contend.
func (s *Selector) cursorFor(routeID, scope string) *cursor {
	key := cursorKey{routeID: routeID, scope: scope}

	s.mu.Lock()
	c, ok := s.cursors[key]
	if !ok {
		c = &cursor{}
		s.cursors[key] = c
	}
	s.mu.Unlock()

	return c
}

// Select resolves routeName against the catalog and picks an eligible
// provider and model, honoring modelHint and exclude. modelHint, when
// non-empty, takes precedence over every route's own model configuration
// as long as the chosen provider declares it.
func (s *Selector) Select(ctx context.Context, routeName, modelHint string, exclude ExcludeSet) (Selection, error) {
	route, err := s.store.GetRouteByName(ctx, routeName)
	if err != nil {
		if err == catalog.ErrNotFound {
			return Selection{}, gwerrors.Newf(gwerrors.KindRouteNotActive, "route %q not found", routeName)
		}
		return Selection{}, err
	}
	if !route.Active {
		return Selection{}, gwerrors.Newf(gwerrors.KindRouteNotActive, "route %q is not active", routeName)
	}

	var sel Selection
	switch route.Mode {
	case catalog.ModeAuto:
		sel, err = s.selectAuto(route, modelHint, exclude)
	case catalog.ModeSpecific:
		sel, err = s.selectSpecific(route, modelHint, exclude)
	case catalog.ModeMulti:
		sel, err = s.selectMulti(route, modelHint, exclude)
	default:
		return Selection{}, gwerrors.Newf(gwerrors.KindRouteNotActive, "route %q has unknown mode %q", routeName, route.Mode)
	}
	if err == nil && s.metrics != nil {
		s.metrics.RecordSelection(route.Name, sel.Provider.ID)
	}
	return sel, err
}

const autoProviderPrefix = "provider_"

func (s *Selector) selectAuto(route catalog.Route, modelHint string, exclude ExcludeSet) (Selection, error) {
	cfg := route.Config.Auto
	if cfg == nil {
		return Selection{}, gwerrors.Newf(gwerrors.KindRouteNotActive, "route %q has no auto config", route.Name)
	}

	var candidates []catalog.Provider
	if cfg.ProviderMode == "all" {
		candidates = s.reg.ListActive()
	} else if id, ok := strings.CutPrefix(cfg.ProviderMode, autoProviderPrefix); ok {
		p, err := s.reg.Get(id)
		if err == nil {
			candidates = []catalog.Provider{p}
		}
	}

	eligible := filterEligible(candidates, exclude, cfg.SelectedModels)
	if len(eligible) == 0 {
		return Selection{}, gwerrors.Newf(gwerrors.KindNoProviderAvailable, "no eligible provider for route %q", route.Name)
	}
	sortByID(eligible)

	idx := s.cursorFor(route.ID, "provider").advance(len(eligible))
	provider := eligible[idx]

	model, err := s.selectModel(route.ID, provider, modelHint, cfg.SelectedModels)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Provider: provider, Model: model}, nil
}

// selectSpecific resolves the sole node's provider and model directly
// off node.Models, per the specific-mode algorithm: model_hint wins when
// the node declares it, a single declared model is used outright, and
// more than one rotates via a per-node cursor. Config.Specific is
// validated to exist but never consulted for model resolution, since
// node.Models is the source of truth an admin edit could otherwise drift
// out of sync with.
func (s *Selector) selectSpecific(route catalog.Route, modelHint string, exclude ExcludeSet) (Selection, error) {
	if route.Config.Specific == nil || len(route.Nodes) != 1 {
		return Selection{}, gwerrors.Newf(gwerrors.KindRouteNotActive, "route %q has no specific config", route.Name)
	}

	node := route.Nodes[0]
	if exclude[node.ProviderID] {
		return Selection{}, gwerrors.Newf(gwerrors.KindNoProviderAvailable, "route %q's provider already excluded", route.Name)
	}
	provider, err := s.reg.Get(node.ProviderID)
	if err != nil || !provider.Eligible() {
		return Selection{}, gwerrors.Newf(gwerrors.KindNoProviderAvailable, "route %q's provider is not eligible", route.Name)
	}

	model, err := s.selectNodeModel(route.ID, node, provider, modelHint)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Provider: provider, Model: model}, nil
}

func (s *Selector) selectMulti(route catalog.Route, modelHint string, exclude ExcludeSet) (Selection, error) {
	nodes := make([]catalog.Node, len(route.Nodes))
	copy(nodes, route.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Priority < nodes[j].Priority })

	for _, node := range nodes {
		if exclude[node.ProviderID] {
			continue
		}
		provider, err := s.reg.Get(node.ProviderID)
		if err != nil || !provider.Eligible() {
			continue
		}

		model, err := s.selectNodeModel(route.ID, node, provider, modelHint)
		if err != nil {
			continue
		}
		return Selection{Provider: provider, Model: model}, nil
	}

	return Selection{}, gwerrors.Newf(gwerrors.KindNoProviderAvailable, "no eligible node for route %q", route.Name)
}

// selectNodeModel resolves the target model for a multi- or specific-mode node:
// model_hint takes precedence when the node declares it; otherwise the
// node's own strategy governs rotation among its declared models.
func (s *Selector) selectNodeModel(routeID string, node catalog.Node, provider catalog.Provider, modelHint string) (string, error) {
	if modelHint != "" && contains(node.Models, modelHint) {
		return modelHint, nil
	}
	if len(node.Models) == 0 {
		return firstDeclaredModel(provider), nil
	}
	if len(node.Models) == 1 || node.Strategy == catalog.NodeFailover {
		return node.Models[0], nil
	}

	idx := s.cursorFor(routeID, "node:"+node.ProviderID).advance(len(node.Models))
	return node.Models[idx], nil
}

// selectModel resolves the target model for auto routes once a
// provider has been chosen: model_hint wins when the provider declares
// it; otherwise the route's selected models intersected with what the
// provider actually declares are cycled via a per-provider cursor. An
// empty selection falls back to the provider's first declared model.
func (s *Selector) selectModel(routeID string, provider catalog.Provider, modelHint string, selectedModels []string) (string, error) {
	if modelHint != "" && provider.HasModel(modelHint) {
		return modelHint, nil
	}

	candidates := intersect(provider.Models, selectedModels)
	if len(candidates) == 0 {
		return firstDeclaredModel(provider), nil
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	idx := s.cursorFor(routeID, "model:"+provider.ID).advance(len(candidates))
	return candidates[idx], nil
}

func firstDeclaredModel(provider catalog.Provider) string {
	if len(provider.Models) == 0 {
		return ""
	}
	return provider.Models[0]
}

func filterEligible(providers []catalog.Provider, exclude ExcludeSet, selectedModels []string) []catalog.Provider {
	var out []catalog.Provider
	for _, p := range providers {
		if exclude[p.ID] || !p.Eligible() {
			continue
		}
		if len(selectedModels) > 0 && len(intersect(p.Models, selectedModels)) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

func sortByID(providers []catalog.Provider) {
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })
}

func intersect(a, b []string) []string {
	if len(b) == 0 {
		return nil
	}
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
