// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config loads and validates the gateway's runtime configuration.

Configuration is merged from three layers, in increasing priority:
defaults, an optional YAML file, and environment variables prefixed
GATEWAY_. The Loader builds the merge with a small chained API:

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("GATEWAY").
		Load()

Config groups the server listener, the health prober, the dispatch
pipeline, the provider catalog source, logging and telemetry.
*/
package config
