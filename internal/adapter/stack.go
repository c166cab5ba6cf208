package adapter

import (
	"fmt"
	"log/slog"

	"github.com/mmcdole/anidex/internal/adapter/source/jikan"
	"github.com/mmcdole/anidex/internal/catalog"
	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/favorites"
	"github.com/mmcdole/anidex/internal/fetch"
	"github.com/mmcdole/anidex/internal/query"
	"github.com/mmcdole/anidex/internal/ratelimit"
	"github.com/mmcdole/anidex/internal/store"
)

// Stack is the wired request path and the services built on it:
// catalog -> query cache -> jikan client -> fetch retry -> scheduler.
type Stack struct {
	Scheduler *ratelimit.Scheduler
	Fetcher   *fetch.Client
	Client    *jikan.Client
	Cache     *query.Cache
	Catalog   *catalog.Service
	Favorites *favorites.Service
	Launcher  *Launcher

	store  domain.FavoritesStore
	logger *slog.Logger
}

// NewStack builds every component from cfg. The caller must Close it.
func NewStack(cfg *Config, logger *slog.Logger) (*Stack, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	favStore, err := store.Open(cfg.Favorites.Backend, cfg.Favorites.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open favorites: %w", err)
	}

	scheduler := ratelimit.New(cfg.API.RequestsPerSecond, ratelimit.WithLogger(logger))

	fetcher := fetch.NewClient(scheduler, logger)
	fetcher.MaxAttempts = cfg.API.MaxAttempts
	fetcher.Base = cfg.API.BackoffBase
	fetcher.AttemptTimeout = cfg.API.AttemptTimeout

	client := jikan.NewClient(cfg.API.BaseURL, fetcher, logger,
		jikan.WithUserAgent(cfg.API.UserAgent),
		jikan.WithBulkDelay(cfg.API.BulkDelay),
	)

	logger.Debug("request scheduler started", "interval", scheduler.Interval())

	cache := query.New(
		query.WithGCInterval(cfg.Cache.GCInterval),
		query.WithLogger(logger),
	)

	return &Stack{
		Scheduler: scheduler,
		Fetcher:   fetcher,
		Client:    client,
		Cache:     cache,
		Catalog:   catalog.NewService(client, cache, logger),
		Favorites: favorites.NewService(favStore, logger),
		Launcher:  NewLauncher(cfg.UI.Browser, cfg.UI.BrowserArgs, logger),
		store:     favStore,
		logger:    logger,
	}, nil
}

// Close stops background work and releases the favorites store
func (s *Stack) Close() error {
	s.Cache.Close()
	stats := s.Scheduler.Stats()
	s.Scheduler.Close()
	s.logger.Info("request scheduler stopped",
		"submitted", stats.Submitted,
		"admitted", stats.Admitted,
		"dropped", stats.Queued,
	)
	return s.store.Close()
}
