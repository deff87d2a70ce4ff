// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

package dialect

import (
	"github.com/gatewaylabs/llmgateway/gateway/catalog"
	"github.com/gatewaylabs/llmgateway/gateway/dialect/anthropic"
	"github.com/gatewaylabs/llmgateway/gateway/dialect/gemini"
	"github.com/gatewaylabs/llmgateway/gateway/dialect/openai"
)

// DefaultRegistry returns the Registry wired with every adapter the
// gateway ships, keyed by the catalog.Dialect each one implements.
func DefaultRegistry() Registry {
	return Registry{
		catalog.DialectOpenAI:    openai.New(),
		catalog.DialectAnthropic: anthropic.New(),
		catalog.DialectGemini:    gemini.New(),
	}
}
