package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
	"github.com/gatewaylabs/llmgateway/gateway/chatapi"
	"github.com/gatewaylabs/llmgateway/gateway/dialect"
	"github.com/gatewaylabs/llmgateway/gateway/dialect/openai"
	"github.com/gatewaylabs/llmgateway/gateway/dispatch"
	"github.com/gatewaylabs/llmgateway/gateway/registry"
	"github.com/gatewaylabs/llmgateway/gateway/routing"
)

func newChatHandler(t *testing.T, upstream *httptest.Server) *ChatHandler {
	t.Helper()
	store := catalog.NewMemoryStore()
	store.PutProvider(catalog.Provider{
		ID: "p1", Active: true, Healthy: true, BaseURL: upstream.URL,
		Dialect: catalog.DialectOpenAI, Models: []string{"gpt-4"}, Credential: catalog.Encrypt("k"),
	})
	store.PutRoute(catalog.Route{
		ID: "r1", Name: "gpt-4", Active: true, Mode: catalog.ModeAuto,
		Config: catalog.RouteConfig{Auto: &catalog.AutoConfig{ProviderMode: "all", SelectedModels: []string{"gpt-4"}}},
	})
	reg := registry.New(store)
	require.NoError(t, reg.Refresh(context.Background()))
	sel := routing.New(reg, store)
	dialects := dialect.Registry{catalog.DialectOpenAI: openai.New()}
	pipe := dispatch.New(dispatch.Config{MaxAttempts: 3}, sel, reg, store, dialects, http.DefaultClient, zap.NewNop())
	return NewChatHandler(pipe, zap.NewNop())
}

func TestChatHandler_HandleCompletion(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"r1","model":"gpt-4","choices":[{"index":0,"message":{"role":"assistant","content":"hi there"}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	defer upstream.Close()

	h := newChatHandler(t, upstream)

	body := `{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleCompletion(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp chatapi.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "hi there", resp.Choices[0].Message.Content)
	assert.Equal(t, "p1", resp.Provider)
}

func TestChatHandler_HandleCompletion_RejectsEmptyMessages(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	h := newChatHandler(t, upstream)

	body := `{"model":"gpt-4","messages":[]}`
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleCompletion(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_HandleCompletion_RequiresJSONContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	h := newChatHandler(t, upstream)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()

	h.HandleCompletion(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_HandleCompletion_Streams(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"id\":\"1\",\"model\":\"gpt-4\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"hi\"}}]}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	}))
	defer upstream.Close()

	h := newChatHandler(t, upstream)

	body := `{"model":"gpt-4","messages":[{"role":"user","content":"hi"}],"stream":true}`
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleCompletion(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	sawDone := false
	for scanner.Scan() {
		if scanner.Text() == "data: [DONE]" {
			sawDone = true
		}
	}
	assert.True(t, sawDone)
}
