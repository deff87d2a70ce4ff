package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestProviderHandler_PutAndGet(t *testing.T) {
	store := catalog.NewMemoryStore()
	h := NewProviderHandler(store, zap.NewNop())

	body := `{"name":"OpenAI","base_url":"https://api.openai.com","dialect":"openai","credential":"sk-test","models":["gpt-4"]}`
	r := httptest.NewRequest(http.MethodPut, "/admin/v1/providers/p1", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r = withURLParam(r, "id", "p1")
	w := httptest.NewRecorder()

	h.HandlePut(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	r2 := withURLParam(httptest.NewRequest(http.MethodGet, "/admin/v1/providers/p1", nil), "id", "p1")
	w2 := httptest.NewRecorder()
	h.HandleGet(w2, r2)
	require.Equal(t, http.StatusOK, w2.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w2.Body).Decode(&resp))
	assert.True(t, resp.Success)

	p, err := store.GetProvider(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", mustDecrypt(t, store, p.Credential))
}

func mustDecrypt(t *testing.T, store *catalog.MemoryStore, ciphertext string) string {
	t.Helper()
	plain, err := store.Decrypt(context.Background(), ciphertext)
	require.NoError(t, err)
	return plain
}

func TestProviderHandler_PutRejectsBadDialect(t *testing.T) {
	store := catalog.NewMemoryStore()
	h := NewProviderHandler(store, zap.NewNop())

	body := `{"name":"x","base_url":"https://x.example","dialect":"bogus","credential":"k","models":["m"]}`
	r := withURLParam(httptest.NewRequest(http.MethodPut, "/admin/v1/providers/p1", strings.NewReader(body)), "id", "p1")
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandlePut(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProviderHandler_UpdatePreservesCredentialWhenOmitted(t *testing.T) {
	store := catalog.NewMemoryStore()
	store.PutProvider(catalog.Provider{ID: "p1", BaseURL: "https://x", Dialect: catalog.DialectOpenAI, Models: []string{"m"}, Credential: catalog.Encrypt("original")})
	h := NewProviderHandler(store, zap.NewNop())

	body := `{"name":"x","base_url":"https://x","dialect":"openai","models":["m"]}`
	r := withURLParam(httptest.NewRequest(http.MethodPut, "/admin/v1/providers/p1", strings.NewReader(body)), "id", "p1")
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandlePut(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	p, err := store.GetProvider(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "original", mustDecrypt(t, store, p.Credential))
}

func TestProviderHandler_DeleteMissingReturns404(t *testing.T) {
	store := catalog.NewMemoryStore()
	h := NewProviderHandler(store, zap.NewNop())

	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/admin/v1/providers/missing", nil), "id", "missing")
	w := httptest.NewRecorder()
	h.HandleDelete(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProviderHandler_List(t *testing.T) {
	store := catalog.NewMemoryStore()
	store.PutProvider(catalog.Provider{ID: "p1", Dialect: catalog.DialectOpenAI})
	h := NewProviderHandler(store, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/admin/v1/providers", nil)
	w := httptest.NewRecorder()
	h.HandleList(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}
