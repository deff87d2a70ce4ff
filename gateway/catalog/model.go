// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package catalog defines the data model the gateway reads its providers
// and routes from, and the Store interface the core consumes: a read
// snapshot plus a narrow set of writes the Prober is allowed to make.
// Persistence, encryption at rest and the admin CRUD surface that mutates
// this data all live outside the core. Besides the shape, the package
// carries MemoryStore, an in-process Store, and LoadFile, a YAML loader
// that fills one.
package catalog

import "time"

// Status is a provider's most recently observed health classification.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusOnline      Status = "online"
	StatusDegraded    Status = "degraded"
	StatusTimeout     Status = "timeout"
	StatusUnreachable Status = "unreachable"
	StatusError       Status = "error"
)

// Dialect identifies which wire format a provider speaks.
type Dialect string

const (
	DialectOpenAI    Dialect = "openai"
	DialectAnthropic Dialect = "anthropic"
	DialectGemini    Dialect = "gemini"
)

// Provider is one configured upstream LLM backend.
type Provider struct {
	ID         string
	Name       string
	BaseURL    string
	Dialect    Dialect
	Credential string // opaque ciphertext; decrypted only at dispatch/probe time
	Models     []string
	Active     bool
	Weight     int // optional hint for weighted strategies; zero means unweighted

	// Live attributes, owned exclusively by the Prober. Never set by
	// admin CRUD except through SetHealth.
	Healthy             bool
	ConsecutiveFailures int
	LastStatus          Status
	LastLatencyMS       int64
	LastProbedAt        time.Time
}

// Eligible reports whether a provider may currently be selected.
func (p Provider) Eligible() bool {
	return p.Active && p.Healthy
}

// HasModel reports whether the provider declares model among its models.
func (p Provider) HasModel(model string) bool {
	for _, m := range p.Models {
		if m == model {
			return true
		}
	}
	return false
}

// NodeStrategy is a per-node model-selection strategy inside a multi route.
type NodeStrategy string

const (
	NodeRoundRobin NodeStrategy = "round_robin"
	NodeFailover   NodeStrategy = "failover"
)

// Node is one provider entry inside a multi-mode route.
type Node struct {
	ProviderID string
	Models     []string
	Strategy   NodeStrategy
	Priority   int
	Metadata   map[string]string
}

// Mode selects which RouteConfig variant a route carries.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeSpecific Mode = "specific"
	ModeMulti    Mode = "multi"
)

// ModelStrategy governs how a route cycles through its selected models.
type ModelStrategy string

const (
	ModelSingle ModelStrategy = "single"
	ModelCycle  ModelStrategy = "cycle"
)

// RouteConfig is a tagged union over the three route modes. Exactly one of
// Auto, Specific or Multi is populated, matching Route.Mode. Validated at
// the CRUD boundary (outside this package) and carried as a discriminated
// value thereafter.
type RouteConfig struct {
	Auto     *AutoConfig
	Specific *SpecificConfig
	Multi    *MultiConfig
}

// AutoConfig configures an auto-mode route.
type AutoConfig struct {
	// ProviderMode is "all" or "provider_<id>".
	ProviderMode   string
	SelectedModels []string
}

// ModelStrategy derives "single" iff exactly one model is selected, else "cycle".
func (c AutoConfig) ModelStrategy() ModelStrategy {
	return derivedStrategy(c.SelectedModels)
}

// SpecificConfig configures a specific-mode route, which carries exactly
// one Node identifying its target provider.
type SpecificConfig struct {
	SelectedModels []string
}

func (c SpecificConfig) ModelStrategy() ModelStrategy {
	return derivedStrategy(c.SelectedModels)
}

// MultiConfig is intentionally empty: every piece of multi-mode
// configuration lives in the route's Nodes.
type MultiConfig struct{}

func derivedStrategy(models []string) ModelStrategy {
	if len(models) == 1 {
		return ModelSingle
	}
	return ModelCycle
}

// Route groups an ordered set of Nodes behind a single routable name.
type Route struct {
	ID     string
	Name   string
	Active bool
	Mode   Mode
	Config RouteConfig
	Nodes  []Node
}
