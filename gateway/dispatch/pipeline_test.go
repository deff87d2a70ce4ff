package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
	"github.com/gatewaylabs/llmgateway/gateway/chatapi"
	"github.com/gatewaylabs/llmgateway/gateway/dialect"
	"github.com/gatewaylabs/llmgateway/gateway/dialect/openai"
	"github.com/gatewaylabs/llmgateway/gateway/registry"
	"github.com/gatewaylabs/llmgateway/gateway/routing"
	"github.com/gatewaylabs/llmgateway/gwerrors"
)

func newPipeline(t *testing.T, providers []catalog.Provider, routes []catalog.Route, cfg Config) (*Pipeline, *catalog.MemoryStore) {
	t.Helper()
	store := catalog.NewMemoryStore()
	for _, p := range providers {
		store.PutProvider(p)
	}
	for _, r := range routes {
		store.PutRoute(r)
	}
	reg := registry.New(store)
	require.NoError(t, reg.Refresh(context.Background()))
	sel := routing.New(reg, store)
	dialects := dialect.Registry{catalog.DialectOpenAI: openai.New()}
	return New(cfg, sel, reg, store, dialects, http.DefaultClient, zap.NewNop()), store
}

func autoAllRoute() catalog.Route {
	return catalog.Route{
		ID: "r1", Name: "gpt-4", Active: true, Mode: catalog.ModeAuto,
		Config: catalog.RouteConfig{Auto: &catalog.AutoConfig{ProviderMode: "all", SelectedModels: []string{"gpt-4"}}},
	}
}

func TestDispatch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"resp1","model":"gpt-4","choices":[{"index":0,"message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer server.Close()

	provider := catalog.Provider{ID: "p1", Active: true, Healthy: true, BaseURL: server.URL, Dialect: catalog.DialectOpenAI, Models: []string{"gpt-4"}, Credential: catalog.Encrypt("k")}
	pipe, _ := newPipeline(t, []catalog.Provider{provider}, []catalog.Route{autoAllRoute()}, Config{MaxAttempts: 3})

	resp, err := pipe.Dispatch(context.Background(), chatapi.Request{Model: "gpt-4", Messages: []chatapi.Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "p1", resp.Provider)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
}

func TestDispatch_FailsOverOn5xx(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"resp1","model":"gpt-4","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer good.Close()

	providers := []catalog.Provider{
		{ID: "bad", Active: true, Healthy: true, BaseURL: bad.URL, Dialect: catalog.DialectOpenAI, Models: []string{"gpt-4"}, Credential: catalog.Encrypt("k")},
		{ID: "good", Active: true, Healthy: true, BaseURL: good.URL, Dialect: catalog.DialectOpenAI, Models: []string{"gpt-4"}, Credential: catalog.Encrypt("k")},
	}
	pipe, _ := newPipeline(t, providers, []catalog.Route{autoAllRoute()}, Config{MaxAttempts: 5})

	resp, err := pipe.Dispatch(context.Background(), chatapi.Request{Model: "gpt-4", Messages: []chatapi.Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Choices[0].Message.Content)
}

func TestDispatch_DoesNotRetryOn4xx(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	provider := catalog.Provider{ID: "p1", Active: true, Healthy: true, BaseURL: server.URL, Dialect: catalog.DialectOpenAI, Models: []string{"gpt-4"}, Credential: catalog.Encrypt("k")}
	pipe, _ := newPipeline(t, []catalog.Provider{provider}, []catalog.Route{autoAllRoute()}, Config{MaxAttempts: 3})

	_, err := pipe.Dispatch(context.Background(), chatapi.Request{Model: "gpt-4", Messages: []chatapi.Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.KindUpstreamClientError, ge.Kind)
	assert.Equal(t, 1, calls)
}

func TestDispatch_ExhaustsAttemptsReturnsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := catalog.Provider{ID: "p1", Active: true, Healthy: true, BaseURL: server.URL, Dialect: catalog.DialectOpenAI, Models: []string{"gpt-4"}, Credential: catalog.Encrypt("k")}
	pipe, _ := newPipeline(t, []catalog.Provider{provider}, []catalog.Route{autoAllRoute()}, Config{MaxAttempts: 2})

	_, err := pipe.Dispatch(context.Background(), chatapi.Request{Model: "gpt-4", Messages: []chatapi.Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.KindUpstreamUnavailable, ge.Kind)
}

func TestDispatch_FallsBackToDefaultRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"resp1","model":"custom-model","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	defaultRoute := catalog.Route{
		ID: "r-default", Name: DefaultRouteName, Active: true, Mode: catalog.ModeAuto,
		Config: catalog.RouteConfig{Auto: &catalog.AutoConfig{ProviderMode: "all"}},
	}
	provider := catalog.Provider{ID: "p1", Active: true, Healthy: true, BaseURL: server.URL, Dialect: catalog.DialectOpenAI, Models: []string{"custom-model"}, Credential: catalog.Encrypt("k")}
	pipe, _ := newPipeline(t, []catalog.Provider{provider}, []catalog.Route{defaultRoute}, Config{MaxAttempts: 3})

	resp, err := pipe.Dispatch(context.Background(), chatapi.Request{Model: "custom-model", Messages: []chatapi.Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "p1", resp.Provider)
	assert.Equal(t, "ok", resp.Choices[0].Message.Content)
}

func TestDispatchStream_ForwardsChunksWithProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		w.Write([]byte("data: {\"id\":\"c1\",\"model\":\"gpt-4\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"hi\"}}]}\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	provider := catalog.Provider{ID: "p1", Active: true, Healthy: true, BaseURL: server.URL, Dialect: catalog.DialectOpenAI, Models: []string{"gpt-4"}, Credential: catalog.Encrypt("k")}
	pipe, _ := newPipeline(t, []catalog.Provider{provider}, []catalog.Route{autoAllRoute()}, Config{MaxAttempts: 3})

	ch, err := pipe.DispatchStream(context.Background(), chatapi.Request{Model: "gpt-4", Stream: true, Messages: []chatapi.Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)

	var events []chatapi.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	assert.Equal(t, "p1", events[0].Chunk.Provider)
	assert.Equal(t, "hi", events[0].Chunk.Delta.Content)
}

func TestDispatch_RespectsRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := catalog.Provider{ID: "p1", Active: true, Healthy: true, BaseURL: server.URL, Dialect: catalog.DialectOpenAI, Models: []string{"gpt-4"}, Credential: catalog.Encrypt("k")}
	pipe, _ := newPipeline(t, []catalog.Provider{provider}, []catalog.Route{autoAllRoute()}, Config{MaxAttempts: 1, RequestTimeout: 5 * time.Millisecond})

	_, err := pipe.Dispatch(context.Background(), chatapi.Request{Model: "gpt-4", Messages: []chatapi.Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.KindUpstreamUnavailable, ge.Kind)
}
