package cmd

import (
	"context"
	"fmt"

	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/agent"
	"github.com/etnz/tradebook/eodhd"
	"github.com/etnz/tradebook/pgstore"
	"github.com/etnz/tradebook/resolver"
	"go.uber.org/zap"
)

// app holds the services shared by the commands.
type app struct {
	cfg      Config
	log      *zap.Logger
	book     *tradebook.Book
	provider *eodhd.Provider
	resolver *resolver.Resolver
	closers  []func()
}

// newLogger returns the CLI logger, verbose with -v.
func newLogger() (*zap.Logger, error) {
	if *Verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openApp loads the configuration and the trade book, and builds the
// resolver from what is configured: PostgreSQL or in-memory stores, EODHD
// search and Gemini inference if their keys are set.
func openApp(ctx context.Context, events int) (*app, error) {
	cfg, err := LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("cannot create logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	a.book, err = tradebook.OpenBook(*bookFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		cache resolver.Cache
		queue resolver.QueueStore
	)
	if cfg.DatabaseURL != "" {
		db, err := pgstore.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := pgstore.Migrate(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
		cache, queue = pgstore.NewCache(db, cfg.TTL()), pgstore.NewQueue(db, cfg.Policy())
	} else {
		log.Debug("no database configured, the resolution queue is in memory")
		cache, queue = resolver.NewMemoryCache(cfg.TTL()), resolver.NewMemoryQueue(cfg.Policy())
	}

	opts := []resolver.Option{
		resolver.WithPatcher(a.book),
		resolver.WithLogger(log.Named("resolver")),
		resolver.WithPolicy(cfg.Policy()),
		resolver.WithPriority(cfg.Resolver.Priority),
		resolver.WithBatchSize(cfg.Resolver.BatchSize),
	}
	if events > 0 {
		opts = append(opts, resolver.WithEvents(events))
	}
	if cfg.EODHDKey != "" {
		client := eodhd.New(cfg.EODHDKey, eodhd.WithDailyCache(cfg.EODHD.CacheDir), eodhd.WithLogger(log.Named("eodhd")))
		a.provider = &eodhd.Provider{Client: client}
		opts = append(opts, resolver.WithProvider(a.provider))
	}
	if cfg.GeminiKey != "" {
		client, err := agent.NewClient(ctx, cfg.GeminiKey)
		if err != nil {
			a.Close()
			return nil, err
		}
		inferOpts := []agent.Option{agent.WithModel(cfg.Gemini.Model), agent.WithLogger(log.Named("agent"))}
		if cfg.Gemini.Search && a.provider != nil {
			inferOpts = append(inferOpts, agent.WithSearch(a.provider))
		}
		opts = append(opts, resolver.WithInference(agent.New(client.Models, inferOpts...)))
	}
	a.resolver = resolver.New(cache, queue, opts...)
	return a, nil
}

// Close releases the services.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
