// Package app wires configuration into a running chat session
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/testsabirweb/chatsim/internal/config"
	"github.com/testsabirweb/chatsim/pkg/catalog"
	"github.com/testsabirweb/chatsim/pkg/chat"
	"github.com/testsabirweb/chatsim/pkg/llm"
	"github.com/testsabirweb/chatsim/pkg/metrics"
	"github.com/testsabirweb/chatsim/pkg/ollama"
	"github.com/testsabirweb/chatsim/pkg/prefs"
)

// App holds the long-lived components shared by the entrypoints
type App struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Ollama  *ollama.Client
	Prefs   prefs.Store
	Metrics *metrics.Metrics
	Session *chat.Session
	Logger  *zap.Logger
}

// New builds the session and its dependencies from cfg
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	cat, err := loadCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, err
	}

	store, err := prefs.Open(cfg.Storage.PrefsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}

	client := ollama.NewClient(cfg.Ollama.URL)
	m := metrics.New()

	session, err := chat.NewSession(chat.Options{
		Catalog:        cat,
		Provider:       llm.NewOllamaProvider(client),
		Model:          cfg.Ollama.Model,
		Prefs:          store,
		DeliveredAfter: cfg.Simulation.DeliveredDelay,
		ReadAfter:      cfg.Simulation.ReadDelay,
		MaxBotSessions: cfg.Bot.MaxSessions,
		Logger:         logger,
		Metrics:        m,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Info("session_ready",
		zap.Int("channels", len(cat.Channels)),
		zap.String("model", cfg.Ollama.Model),
		zap.String("ollama_url", cfg.Ollama.URL))

	return &App{
		Config:  cfg,
		Catalog: cat,
		Ollama:  client,
		Prefs:   store,
		Metrics: m,
		Session: session,
		Logger:  logger,
	}, nil
}

// Close stops the session and releases local storage
func (a *App) Close() error {
	a.Session.Close()
	return a.Prefs.Close()
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Load()
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return cat, nil
}
