package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/llmgateway/gateway/catalog"
)

func TestRegistry_RefreshAndListActive(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore()
	store.PutProvider(catalog.Provider{ID: "p1", Active: true, Healthy: true})
	store.PutProvider(catalog.Provider{ID: "p2", Active: false, Healthy: true})

	reg := New(store)
	require.NoError(t, reg.Refresh(ctx))

	active := reg.ListActive()
	assert.Len(t, active, 1)
	assert.Equal(t, "p1", active[0].ID)
}

func TestRegistry_Eligible(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore()
	store.PutProvider(catalog.Provider{ID: "p1", Active: true, Healthy: false})

	reg := New(store)
	require.NoError(t, reg.Refresh(ctx))

	assert.False(t, reg.Eligible("p1"))
	assert.False(t, reg.Eligible("missing"))
}

func TestRegistry_UpdateLiveFieldsVisibleToReaders(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore()
	store.PutProvider(catalog.Provider{ID: "p1", Active: true, Healthy: true})

	reg := New(store)
	require.NoError(t, reg.Refresh(ctx))

	require.NoError(t, reg.UpdateLiveFields(ctx, "p1", catalog.LiveFields{
		Healthy:             false,
		ConsecutiveFailures: 3,
		LastStatus:          catalog.StatusTimeout,
	}))

	p, err := reg.Get("p1")
	require.NoError(t, err)
	assert.False(t, p.Healthy)
	assert.Equal(t, 3, p.ConsecutiveFailures)

	// the durable store must agree too
	stored, err := store.GetProvider(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, stored.Healthy)
}

func TestRegistry_SetHealthOverride(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore()
	store.PutProvider(catalog.Provider{ID: "p1", Active: true, Healthy: false, ConsecutiveFailures: 5})

	reg := New(store)
	require.NoError(t, reg.Refresh(ctx))

	require.NoError(t, reg.SetHealth(ctx, "p1", true))
	p, err := reg.Get("p1")
	require.NoError(t, err)
	assert.True(t, p.Healthy)
	assert.Equal(t, 0, p.ConsecutiveFailures)
}

func TestRegistry_WatchRefreshesOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := catalog.NewMemoryStore()
	reg := New(store)
	require.NoError(t, reg.Refresh(ctx))
	assert.Empty(t, reg.ListActive())

	go reg.Watch(ctx)

	store.PutProvider(catalog.Provider{ID: "p1", Active: true, Healthy: true})

	require.Eventually(t, func() bool {
		return len(reg.ListActive()) == 1
	}, time.Second, 5*time.Millisecond)
}
