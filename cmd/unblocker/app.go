package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeGROOVE-dev/unblocker/pkg/config"
	"github.com/codeGROOVE-dev/unblocker/pkg/engine"
	"github.com/codeGROOVE-dev/unblocker/pkg/github"
	"github.com/codeGROOVE-dev/unblocker/pkg/llm"
	"github.com/codeGROOVE-dev/unblocker/pkg/plan"
	"github.com/codeGROOVE-dev/unblocker/pkg/rationale"
	"github.com/codeGROOVE-dev/unblocker/pkg/stats"
	"github.com/codeGROOVE-dev/unblocker/pkg/wizard"
)

// app bundles the wired collaborators a CLI command needs.
type app struct {
	engine *engine.Engine
	wizard *wizard.Wizard
	rules  *config.Store
	pool   *pgxpool.Pool
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// buildApp wires the engine from flags and environment.
func buildApp(ctx context.Context, f *rootFlags) (*app, error) {
	rules, err := config.Load(f.rulesPath)
	if err != nil {
		return nil, err
	}
	store := config.NewStore(rules)

	client, err := github.New(ctx, github.Config{Token: f.token})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	var pool *pgxpool.Pool
	var statsSource stats.Source
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err = pgxpool.New(ctx, dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		statsSource = stats.NewPostgresStore(pool)
		slog.Debug("Using Postgres reviewer stats")
	} else {
		statsSource = stats.NewFileStore(f.statsPath)
		slog.Debug("Using file reviewer stats", "path", f.statsPath)
	}

	provider, err := llm.Resolve()
	if err != nil {
		if !errors.Is(err, llm.ErrNoProvider) {
			return nil, err
		}
		slog.Debug("No AI provider configured, using deterministic fallbacks")
		provider = nil
	}
	augmenter := rationale.New(provider)

	eng := engine.New(engine.Options{
		Host:      client,
		Rules:     store,
		Stats:     statsSource,
		Augmenter: augmenter,
		Plans:     plan.NewManager(plan.NewStore(0, nil)),
	})

	return &app{
		engine: eng,
		wizard: wizard.New(provider, store, client),
		rules:  store,
		pool:   pool,
	}, nil
}
