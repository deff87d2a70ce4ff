// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package registry holds the Provider Registry: an in-memory read view
// over the catalog, refreshed on a change notification, that the Selector
// and Prober both read. Live health fields are written by the Prober and
// by the SetHealth manual override.
package registry

import (
	"context"
	"sync"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
)

// Registry is a read-mostly snapshot of active providers with live health
// attributes. Reads take an RLock; the write paths (Refresh swapping in a
// new snapshot, and UpdateLiveFields and SetHealth each rewriting a single
// provider's fields) take a brief Lock, so concurrent Selector reads never
// observe a partially-updated provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]catalog.Provider
	store     catalog.Store
}

// New builds an empty Registry backed by store. Call Refresh once before
// serving traffic, then Watch to keep it current.
func New(store catalog.Store) *Registry {
	return &Registry{
		providers: make(map[string]catalog.Provider),
		store:     store,
	}
}

// Refresh reloads the full provider snapshot from the catalog.
func (r *Registry) Refresh(ctx context.Context) error {
	providers, err := r.store.ListProviders(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]catalog.Provider, len(providers))
	for _, p := range providers {
		next[p.ID] = p
	}

	r.mu.Lock()
	r.providers = next
	r.mu.Unlock()
	return nil
}

// Watch blocks, calling Refresh every time the store signals a change,
// until ctx is cancelled. Intended to run as its own goroutine.
func (r *Registry) Watch(ctx context.Context) {
	changes := r.store.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			_ = r.Refresh(ctx)
		}
	}
}

// ListActive returns every provider with Active set, regardless of health.
func (r *Registry) ListActive() []catalog.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]catalog.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the provider with id, or catalog.ErrNotFound.
func (r *Registry) Get(id string) (catalog.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return catalog.Provider{}, catalog.ErrNotFound
	}
	return p, nil
}

// Eligible reports whether id names an active, healthy provider.
func (r *Registry) Eligible(id string) bool {
	p, err := r.Get(id)
	if err != nil {
		return false
	}
	return p.Eligible()
}

// UpdateLiveFields is the Prober's write path: it updates both the
// Registry's in-memory copy and, through the store, the durable catalog,
// atomically with respect to concurrent Registry reads of that provider.
func (r *Registry) UpdateLiveFields(ctx context.Context, id string, fields catalog.LiveFields) error {
	if err := r.store.UpdateLiveFields(ctx, id, fields); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return catalog.ErrNotFound
	}
	p.Healthy = fields.Healthy
	p.ConsecutiveFailures = fields.ConsecutiveFailures
	p.LastStatus = fields.LastStatus
	p.LastLatencyMS = fields.LastLatencyMS
	p.LastProbedAt = fields.LastProbedAt
	r.providers[id] = p
	return nil
}

// SetHealth applies a manual admin override, visible immediately to the
// Selector; the next probe cycle may overwrite it.
func (r *Registry) SetHealth(ctx context.Context, id string, healthy bool) error {
	if err := r.store.SetHealth(ctx, id, healthy); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return catalog.ErrNotFound
	}
	p.Healthy = healthy
	p.ConsecutiveFailures = 0
	r.providers[id] = p
	return nil
}
