package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/kolektra/callqa/internal/analyzer"
	"github.com/kolektra/callqa/internal/store"
	anthropicpkg "github.com/kolektra/callqa/pkg/anthropic"
)

// env holds the initialized store and analyzer needed by the analysis
// commands.
type env struct {
	Store    store.Store
	Analyzer *analyzer.Analyzer
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.Path
		if dsn == "" {
			dsn = "callqa.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config for the given mode, opens and migrates the
// store, and builds the analyzer. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	e := &env{Store: st}
	if mode != "store" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		e.Analyzer = analyzer.New(client, cfg.Anthropic, cfg.Scoring)
	}
	return e, nil
}
