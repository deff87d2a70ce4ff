// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package dialect defines the narrow contract every provider wire format
// implements, and resolves a catalog.Dialect to its concrete adapter. An
// adapter only translates bytes; it never performs I/O — the dispatch
// pipeline owns the HTTP connection, retry and cancellation.
package dialect

import (
	"context"
	"io"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
	"github.com/gatewaylabs/llmgateway/gateway/chatapi"
)

// Adapter translates between the gateway's canonical chat shape and one
// provider dialect's wire format. Implementations hold no connection
// state; TranslateRequest and TranslateResponse are pure functions over
// byte payloads.
type Adapter interface {
	// TranslateRequest renders req, targeting targetModel, as the bytes
	// to POST to the provider.
	TranslateRequest(req chatapi.Request, targetModel string) ([]byte, error)

	// TranslateResponse parses a buffered, non-streaming provider
	// response body into the canonical shape.
	TranslateResponse(body []byte) (chatapi.Response, error)

	// StreamChunks reads body as the dialect's streaming wire format and
	// emits canonical StreamEvents. It owns body: on ctx cancellation or
	// exhaustion it closes body and closes the returned channel. It
	// buffers at most one chunk ahead of the consumer.
	StreamChunks(ctx context.Context, body io.ReadCloser) <-chan chatapi.StreamEvent

	// AuthHeader renders the decrypted credential as the headers this
	// dialect expects on every outbound request. Dialects that
	// authenticate via query string (Gemini) return nil here.
	AuthHeader(credential string) map[string]string

	// AuthQuery renders the decrypted credential as query parameters to
	// append to the request URL. Dialects that authenticate via header
	// return nil here.
	AuthQuery(credential string) map[string]string

	// EndpointPath returns the path appended to the provider's base URL,
	// given the target model and whether this call streams. The dispatch
	// pipeline joins it with chatapi.JoinURL.
	EndpointPath(targetModel string, stream bool) string
}

// Registry maps each dialect to the adapter that serves it. Dialect
// selection is a pure function of a provider's catalog attributes: the
// registry lookup is the entirety of that function.
type Registry map[catalog.Dialect]Adapter

// Resolve returns the Adapter for d, or false if none is registered.
func (r Registry) Resolve(d catalog.Dialect) (Adapter, bool) {
	a, ok := r[d]
	return a, ok
}
