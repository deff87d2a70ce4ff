// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package gwerrors defines the gateway's error taxonomy: the typed kinds
// raised by the selector and dispatch pipeline, and the HTTP status each
// one maps to at the canonical endpoint.
package gwerrors

import (
	"fmt"
	"net/http"

	"github.com/gatewaylabs/llmgateway/types"
)

// Kind classifies a gateway-raised error. Unlike a raw upstream error, a
// Kind is stable across providers and dialects.
type Kind string

const (
	// KindRouteNotActive means the route id is unknown or active=false.
	KindRouteNotActive Kind = "route_not_active"
	// KindNoProviderAvailable means the Selector exhausted every candidate.
	KindNoProviderAvailable Kind = "no_provider_available"
	// KindUpstreamTimeout means the upstream connection timed out.
	KindUpstreamTimeout Kind = "upstream_timeout"
	// KindUpstreamUnreachable means the upstream connection could not be established.
	KindUpstreamUnreachable Kind = "upstream_unreachable"
	// KindUpstreamClientError means the upstream returned 4xx.
	KindUpstreamClientError Kind = "upstream_client_error"
	// KindUpstreamServerError means the upstream returned a status outside
	// 2xx and 4xx (normally 5xx). It is retriable; a dispatch that runs out
	// of attempts reports KindUpstreamUnavailable instead.
	KindUpstreamServerError Kind = "upstream_server_error"
	// KindDecryptError means a provider's credential could not be decrypted.
	KindDecryptError Kind = "decrypt_error"
	// KindAdapterError means an upstream payload could not be translated.
	KindAdapterError Kind = "adapter_error"
	// KindUpstreamUnavailable means every dispatch attempt was exhausted without success.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

// httpStatus maps each Kind to the status the canonical endpoint returns,
// absent a provider-preserved status on KindUpstreamClientError.
var httpStatus = map[Kind]int{
	KindRouteNotActive:      http.StatusNotFound,
	KindNoProviderAvailable: http.StatusServiceUnavailable,
	KindUpstreamTimeout:     http.StatusGatewayTimeout,
	KindUpstreamUnreachable: http.StatusBadGateway,
	KindUpstreamClientError: http.StatusBadRequest,
	KindUpstreamServerError: http.StatusBadGateway,
	KindDecryptError:        http.StatusBadGateway,
	KindAdapterError:        http.StatusBadGateway,
	KindUpstreamUnavailable: http.StatusServiceUnavailable,
}

// retriable is the set of Kinds the dispatch pipeline re-enters the
// Selector for, masking the failed provider, instead of surfacing
// immediately to the caller.
var retriable = map[Kind]bool{
	KindUpstreamTimeout:     true,
	KindUpstreamUnreachable: true,
	KindUpstreamServerError: true,
	KindDecryptError:        true,
}

// Error is the gateway's structured error. It embeds a *types.Error so
// callers that only understand the generic carrier (logging middleware,
// metrics) still work. The carrier is embedded through an alias so the
// field is not named Error, which would hide the promoted Error() method.
type Error struct {
	*carrier
	Kind Kind
}

type carrier = types.Error

// New builds an Error of the given kind with message, deriving its HTTP
// status and retryability from the kind.
func New(kind Kind, message string) *Error {
	return &Error{
		carrier: &types.Error{
			Code:       types.ErrorCode(kind),
			Message:    message,
			HTTPStatus: httpStatus[kind],
			Retryable:  retriable[kind],
		},
		Kind: kind,
	}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// WithCause attaches the underlying error and returns e for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.carrier.Cause = cause
	return e
}

// WithProvider records which provider the error occurred against.
func (e *Error) WithProvider(provider string) *Error {
	e.carrier.Provider = provider
	return e
}

// WithHTTPStatus overrides the derived status, used when an upstream 4xx
// carries a status worth preserving verbatim.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.carrier.HTTPStatus = status
	return e
}

// IsRetriable reports whether the dispatch pipeline should mask this
// error's provider and re-enter the Selector rather than surface it.
func IsRetriable(err error) bool {
	var ge *Error
	if e, ok := err.(*Error); ok {
		ge = e
	} else {
		return false
	}
	return retriable[ge.Kind]
}

// As extracts a *Error from err, mirroring errors.As without requiring a
// target pointer at call sites that just need a type switch.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
