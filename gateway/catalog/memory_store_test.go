package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ProviderCRUDAndLiveFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := Provider{ID: "p1", Name: "openai-primary", Active: true, Healthy: true, Models: []string{"gpt-4o"}}
	s.PutProvider(p)

	got, err := s.GetProvider(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)

	err = s.UpdateLiveFields(ctx, "p1", LiveFields{Healthy: false, ConsecutiveFailures: 3, LastStatus: StatusTimeout})
	require.NoError(t, err)

	got, err = s.GetProvider(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, got.Healthy)
	assert.Equal(t, 3, got.ConsecutiveFailures)
	assert.Equal(t, StatusTimeout, got.LastStatus)

	require.NoError(t, s.SetHealth(ctx, "p1", true))
	got, err = s.GetProvider(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.Healthy)
	assert.Equal(t, 0, got.ConsecutiveFailures)

	s.DeleteProvider("p1")
	_, err = s.GetProvider(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RouteByName(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutRoute(Route{ID: "r1", Name: "default", Active: true, Mode: ModeAuto})

	r, err := s.GetRouteByName(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "r1", r.ID)

	_, err = s.GetRouteByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewMemoryStore()
	ch := s.Subscribe(ctx)

	s.PutProvider(Provider{ID: "p1"})
	select {
	case <-ch:
	default:
		t.Fatal("expected a change notification after PutProvider")
	}
}

func TestMemoryStore_DecryptRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	cipher := Encrypt("sk-secret")
	plain, err := s.Decrypt(ctx, cipher)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", plain)
}

func TestProvider_EligibleAndHasModel(t *testing.T) {
	p := Provider{Active: true, Healthy: true, Models: []string{"a", "b"}}
	assert.True(t, p.Eligible())
	assert.True(t, p.HasModel("a"))
	assert.False(t, p.HasModel("c"))

	p.Healthy = false
	assert.False(t, p.Eligible())
}

func TestAutoConfig_ModelStrategy(t *testing.T) {
	assert.Equal(t, ModelSingle, AutoConfig{SelectedModels: []string{"a"}}.ModelStrategy())
	assert.Equal(t, ModelCycle, AutoConfig{SelectedModels: []string{"a", "b"}}.ModelStrategy())
}
