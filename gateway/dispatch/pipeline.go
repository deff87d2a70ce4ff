// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package dispatch implements the Dispatch Pipeline: it resolves a
// chat-completion request to a provider and model through the Selector,
// translates it into that provider's wire dialect, performs the HTTP
// call, and translates the response back. Failures upstream of the
// first response byte retry against a different provider, up to a
// configured attempt limit; failures after streaming has started are
// surfaced to the caller as-is, since bytes already sent can't be
// un-sent.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
	"github.com/gatewaylabs/llmgateway/gateway/chatapi"
	"github.com/gatewaylabs/llmgateway/gateway/dialect"
	"github.com/gatewaylabs/llmgateway/gateway/registry"
	"github.com/gatewaylabs/llmgateway/gateway/routing"
	"github.com/gatewaylabs/llmgateway/gwerrors"
	"github.com/gatewaylabs/llmgateway/internal/metrics"
)

// tracer instruments the resolve->select->dispatch path distinctly from
// the generic HTTP span the middleware chain starts, so a trace shows
// how much of a request's latency is catalog resolution and provider
// round trips versus transport overhead.
var tracer = otel.Tracer("llmgateway/dispatch")

// DefaultRouteName is the well-known auto/all route dispatch falls back
// to when request.model does not resolve to an active route (the Selector
// reports KindRouteNotActive, which also covers an inactive route). A deployment
// that wants this fallback active must provision a route with this name.
const DefaultRouteName = "default"

// Config tunes the pipeline's attempt budget.
type Config struct {
	MaxAttempts    int
	RequestTimeout time.Duration
}

// Pipeline is the Dispatch Pipeline. It holds no per-request state.
type Pipeline struct {
	cfg      Config
	sel      *routing.Selector
	reg      *registry.Registry
	store    catalog.Store
	dialects dialect.Registry
	client   *http.Client
	log      *zap.Logger
	metrics  *metrics.Collector
}

// New builds a Pipeline. client is shared with the health Prober.
func New(cfg Config, sel *routing.Selector, reg *registry.Registry, store catalog.Store, dialects dialect.Registry, client *http.Client, log *zap.Logger) *Pipeline {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Pipeline{cfg: cfg, sel: sel, reg: reg, store: store, dialects: dialects, client: client, log: log}
}

// SetCollector attaches a metrics.Collector that dispatch outcomes and
// retries are reported to. Optional.
func (p *Pipeline) SetCollector(c *metrics.Collector) {
	p.metrics = c
}

// attempt is the outcome of resolving one provider and issuing the HTTP
// call for it, short of reading a streaming body.
type attempt struct {
	provider catalog.Provider
	model    string
	adapter  dialect.Adapter
	resp     *http.Response
}

// Dispatch serves a non-streaming chat completion: it buffers the
// upstream body and returns the translated canonical response.
func (p *Pipeline) Dispatch(ctx context.Context, req chatapi.Request) (chatapi.Response, error) {
	req.Stream = false

	a, err := p.attemptUntilSuccess(ctx, req)
	if err != nil {
		return chatapi.Response{}, err
	}
	defer a.resp.Body.Close()

	body, err := io.ReadAll(a.resp.Body)
	if err != nil {
		return chatapi.Response{}, gwerrors.Newf(gwerrors.KindAdapterError, "read response body: %v", err).WithProvider(a.provider.ID)
	}

	resp, err := a.adapter.TranslateResponse(body)
	if err != nil {
		return chatapi.Response{}, gwerrors.Newf(gwerrors.KindAdapterError, "translate response: %v", err).WithProvider(a.provider.ID)
	}
	resp.Provider = a.provider.ID
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now()
	}
	return resp, nil
}

// DispatchStream serves a streaming chat completion. Once it returns
// successfully the HTTP response has already started (status 2xx was
// observed); the returned channel forwards the dialect's translated
// events and closes when the upstream stream ends or ctx is cancelled.
// Failures surfaced on the channel are never retried — only failures
// before this call returns are.
func (p *Pipeline) DispatchStream(ctx context.Context, req chatapi.Request) (<-chan chatapi.StreamEvent, error) {
	req.Stream = true

	a, err := p.attemptUntilSuccess(ctx, req)
	if err != nil {
		return nil, err
	}

	provider, model := a.provider, a.model
	upstream := a.adapter.StreamChunks(ctx, a.resp.Body)
	out := make(chan chatapi.StreamEvent)

	go func() {
		defer close(out)
		for ev := range upstream {
			if ev.Chunk != nil {
				ev.Chunk.Provider = provider.ID
				if ev.Chunk.Model == "" {
					ev.Chunk.Model = model
				}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// attemptUntilSuccess resolves and calls providers until one returns a
// non-retriable outcome (success or a client error) or the attempt
// budget is exhausted.
func (p *Pipeline) attemptUntilSuccess(ctx context.Context, req chatapi.Request) (*attempt, error) {
	ctx, span := tracer.Start(ctx, "dispatch.resolve_select_dispatch",
		trace.WithAttributes(attribute.String("gateway.requested_model", req.Model)))
	defer span.End()

	a, err := p.attemptLoop(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("gateway.provider", a.provider.ID),
		attribute.String("gateway.model", a.model),
	)
	return a, nil
}

// attemptLoop is attemptUntilSuccess's retry loop, split out so the span
// above wraps every attempt rather than just the first.
func (p *Pipeline) attemptLoop(ctx context.Context, req chatapi.Request) (*attempt, error) {
	routeName, hint := p.resolveRouteName(ctx, req.Model)
	exclude := routing.ExcludeSet{}

	var lastErr error
	for i := 0; i < p.cfg.MaxAttempts; i++ {
		sel, err := p.sel.Select(ctx, routeName, hint, exclude)
		if err != nil {
			if routeName != DefaultRouteName && isRouteNotFound(err) {
				routeName = DefaultRouteName
				hint = req.Model
				sel, err = p.sel.Select(ctx, routeName, hint, exclude)
			}
			if err != nil {
				if len(exclude) > 0 {
					if ge, ok := gwerrors.As(err); ok && ge.Kind == gwerrors.KindNoProviderAvailable {
						return nil, gwerrors.Newf(gwerrors.KindUpstreamUnavailable, "no remaining provider after exclusions: %v", err)
					}
				}
				return nil, err
			}
		}

		a, err := p.call(ctx, sel, req)
		if err == nil {
			return a, nil
		}

		lastErr = err
		if !gwerrors.IsRetriable(err) {
			return nil, err
		}
		exclude[sel.Provider.ID] = true
		reason := "unknown"
		if ge, ok := gwerrors.As(err); ok {
			reason = string(ge.Kind)
		}
		if p.metrics != nil {
			p.metrics.RecordRetry(routeName, reason)
		}
		p.log.Warn("dispatch: attempt failed, retrying", zap.String("provider", sel.Provider.ID), zap.Error(err))
	}

	return nil, gwerrors.Newf(gwerrors.KindUpstreamUnavailable, "exhausted %d attempts: %v", p.cfg.MaxAttempts, lastErr)
}

// resolveRouteName treats request.model as a route name and also as the
// model hint passed to the Selector, so a client naming an exact
// provider model id still resolves through whichever route's providers
// declare it.
func (p *Pipeline) resolveRouteName(ctx context.Context, model string) (routeName, hint string) {
	if model == "" {
		return DefaultRouteName, ""
	}
	return model, model
}

func isRouteNotFound(err error) bool {
	ge, ok := gwerrors.As(err)
	return ok && ge.Kind == gwerrors.KindRouteNotActive
}

// call performs one dialect translation and HTTP round trip against a
// single selected provider, returning a retriable *gwerrors.Error for
// any failure the pipeline should fail over on.
func (p *Pipeline) call(ctx context.Context, sel routing.Selection, req chatapi.Request) (*attempt, error) {
	provider := sel.Provider
	start := time.Now()

	// Token usage is only known once the response body is parsed, which
	// happens in Dispatch after call returns; this records the transport
	// outcome alone.
	record := func(status string) {
		if p.metrics != nil {
			p.metrics.RecordDispatch(provider.ID, sel.Model, status, time.Since(start), 0, 0)
		}
	}

	adapter, ok := p.dialects.Resolve(provider.Dialect)
	if !ok {
		return nil, gwerrors.Newf(gwerrors.KindAdapterError, "no adapter for dialect %q", provider.Dialect).WithProvider(provider.ID)
	}

	credential, err := p.store.Decrypt(ctx, provider.Credential)
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.KindDecryptError, "decrypt credential: %v", err).WithProvider(provider.ID)
	}

	payload, err := adapter.TranslateRequest(req, sel.Model)
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.KindAdapterError, "translate request: %v", err).WithProvider(provider.ID)
	}

	url := chatapi.JoinURL(provider.BaseURL, adapter.EndpointPath(sel.Model, req.Stream))
	if q := adapter.AuthQuery(credential); len(q) > 0 {
		url = appendQuery(url, q)
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if !req.Stream && p.cfg.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.KindAdapterError, "build request: %v", err).WithProvider(provider.ID)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range adapter.AuthHeader(credential) {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, gwerrors.Newf(gwerrors.KindUpstreamUnreachable, "request cancelled: %v", err).WithProvider(provider.ID)
		}
		if errors.Is(err, context.DeadlineExceeded) || (reqCtx.Err() == context.DeadlineExceeded) {
			return nil, gwerrors.Newf(gwerrors.KindUpstreamTimeout, "upstream timeout: %v", err).WithProvider(provider.ID)
		}
		return nil, gwerrors.Newf(gwerrors.KindUpstreamUnreachable, "upstream unreachable: %v", err).WithProvider(provider.ID)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		record("success")
		return &attempt{provider: provider, model: sel.Model, adapter: adapter, resp: resp}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		record("client_error")
		defer resp.Body.Close()
		return nil, gwerrors.Newf(gwerrors.KindUpstreamClientError, "upstream returned %d: %s", resp.StatusCode, readErrorBody(resp)).
			WithProvider(provider.ID).WithHTTPStatus(resp.StatusCode)

	default:
		record("server_error")
		defer resp.Body.Close()
		return nil, gwerrors.Newf(gwerrors.KindUpstreamServerError, "upstream returned %d: %s", resp.StatusCode, readErrorBody(resp)).
			WithProvider(provider.ID)
	}
}

func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}

	var eb chatapi.ErrorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
		return eb.Error.Message
	}
	return string(body)
}

func appendQuery(rawURL string, params map[string]string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
