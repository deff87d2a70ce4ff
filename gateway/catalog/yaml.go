// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// file is the on-disk shape of a catalog YAML file: the provider and
// route definitions an operator hand-edits or generates, loaded once at
// startup and thereafter mutated only through the admin CRUD surface.
type file struct {
	Providers []fileProvider `yaml:"providers"`
	Routes    []fileRoute    `yaml:"routes"`
}

type fileProvider struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	BaseURL    string   `yaml:"base_url"`
	Dialect    Dialect  `yaml:"dialect"`
	Credential string   `yaml:"credential"` // plaintext in the file, encrypted on load
	Models     []string `yaml:"models"`
	Active     bool     `yaml:"active"`
	Weight     int      `yaml:"weight"`
}

type fileRoute struct {
	ID     string          `yaml:"id"`
	Name   string          `yaml:"name"`
	Active bool            `yaml:"active"`
	Mode   Mode            `yaml:"mode"`
	Auto   *fileAutoConfig `yaml:"auto,omitempty"`
	Nodes  []fileNode      `yaml:"nodes,omitempty"`
}

type fileAutoConfig struct {
	ProviderMode   string   `yaml:"provider_mode"`
	SelectedModels []string `yaml:"selected_models"`
}

type fileNode struct {
	ProviderID string            `yaml:"provider_id"`
	Models     []string          `yaml:"models"`
	Strategy   NodeStrategy      `yaml:"strategy"`
	Priority   int               `yaml:"priority"`
	Metadata   map[string]string `yaml:"metadata,omitempty"`
}

// LoadFile reads a catalog YAML file from path and populates store with
// its providers and routes, encrypting each provider's plaintext
// credential before it ever reaches the Store. A missing file is not an
// error: the gateway starts with an empty catalog and relies on the
// admin CRUD surface to populate it.
func LoadFile(path string, store *MemoryStore) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	for _, p := range f.Providers {
		store.PutProvider(Provider{
			ID:         p.ID,
			Name:       p.Name,
			BaseURL:    p.BaseURL,
			Dialect:    p.Dialect,
			Credential: Encrypt(p.Credential),
			Models:     p.Models,
			Active:     p.Active,
			Weight:     p.Weight,
		})
	}

	for _, r := range f.Routes {
		route := Route{
			ID:     r.ID,
			Name:   r.Name,
			Active: r.Active,
			Mode:   r.Mode,
		}
		if r.Auto != nil {
			route.Config.Auto = &AutoConfig{
				ProviderMode:   r.Auto.ProviderMode,
				SelectedModels: r.Auto.SelectedModels,
			}
		}
		for _, n := range r.Nodes {
			route.Nodes = append(route.Nodes, Node{
				ProviderID: n.ProviderID,
				Models:     n.Models,
				Strategy:   n.Strategy,
				Priority:   n.Priority,
				Metadata:   n.Metadata,
			})
		}
		if r.Mode == ModeSpecific && len(route.Nodes) == 1 {
			route.Config.Specific = &SpecificConfig{SelectedModels: route.Nodes[0].Models}
		}
		store.PutRoute(route)
	}

	return nil
}
