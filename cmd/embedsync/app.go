package main

import (
	"context"
	"fmt"

	"github.com/embedsync/embedsync/internal/config"
	"github.com/embedsync/embedsync/internal/embed"
	"github.com/embedsync/embedsync/internal/indexer"
	"github.com/embedsync/embedsync/internal/vecstore"
)

// app wires the collaborators behind the daemon and the one-shot commands.
type app struct {
	cfg      *config.Config
	store    *vecstore.Store
	embedder *embed.Client
	journal  *indexer.Journal
	engine   *indexer.Engine
}

func newApp(ctx context.Context, cfg *config.Config, withWatcher bool) (*app, error) {
	store, err := vecstore.New(ctx, &vecstore.Config{
		DSN:        cfg.DatabaseURL,
		Table:      cfg.Table,
		Dimensions: cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("connect vector store: %w", err)
	}

	journal := indexer.NewJournal(cfg.StateDB)
	if err := journal.Open(); err != nil {
		store.Close()
		return nil, err
	}

	embedder := embed.New(&embed.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
	})

	ignore := indexer.NewIgnoreList(cfg.WatchDir)
	ignore.Load()

	var watcher *indexer.Watcher
	if withWatcher && cfg.WatchEvents {
		watcher = indexer.NewWatcher(cfg.WatchDir)
	}

	engine := indexer.NewEngine(&indexer.EngineConfig{
		Root:       cfg.WatchDir,
		Interval:   cfg.PollInterval,
		Workers:    cfg.Workers,
		BatchSize:  cfg.BatchSize,
		MaxRetries: uint64(cfg.MaxRetries),
		Scanner:    indexer.NewScanner(cfg.WatchDir, cfg.Extensions, ignore),
		Journal:    journal,
		Embedder:   embedder,
		Store:      store,
		Watcher:    watcher,
	})

	return &app{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		journal:  journal,
		engine:   engine,
	}, nil
}

func (a *app) Close() {
	_ = a.journal.Close()
	a.store.Close()
}
