package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	contents := `
providers:
  - id: p1
    name: OpenAI
    base_url: https://api.openai.com
    dialect: openai
    credential: sk-test
    models: [gpt-4]
    active: true
routes:
  - id: r1
    name: gpt-4
    active: true
    mode: auto
    auto:
      provider_mode: all
      selected_models: [gpt-4]
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	store := NewMemoryStore()
	require.NoError(t, LoadFile(path, store))

	p, err := store.GetProvider(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "OpenAI", p.Name)
	plain, err := store.Decrypt(context.Background(), p.Credential)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", plain)

	route, err := store.GetRoute(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, route.Mode)
	require.NotNil(t, route.Config.Auto)
	assert.Equal(t, "all", route.Config.Auto.ProviderMode)
}

func TestLoadFile_MissingFileIsNotError(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), store))

	providers, err := store.ListProviders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, providers)
}

func TestLoadFile_SpecificModeDerivesConfigFromSoleNode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	contents := `
routes:
  - id: r1
    name: pinned
    active: true
    mode: specific
    nodes:
      - provider_id: p1
        models: [gpt-4]
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	store := NewMemoryStore()
	require.NoError(t, LoadFile(path, store))

	route, err := store.GetRoute(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, route.Config.Specific)
	assert.Equal(t, []string{"gpt-4"}, route.Config.Specific.SelectedModels)
}
