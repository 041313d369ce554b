package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testsabirweb/chatsim/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Ollama: config.OllamaConfig{URL: "http://127.0.0.1:1", Model: "test-model"},
		Simulation: config.SimulationConfig{
			DeliveredDelay: 10 * time.Millisecond,
			ReadDelay:      20 * time.Millisecond,
		},
		Bot:     config.BotConfig{MaxSessions: 2},
		Storage: config.StorageConfig{PrefsPath: filepath.Join(t.TempDir(), "prefs")},
	}
}

func TestNewPersistsThemeAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "default", a.Session.Theme().ID)

	_, err = a.Session.SetTheme("sunset")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "sunset", b.Session.Theme().ID)
}

func TestNewRejectsMissingCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
}
