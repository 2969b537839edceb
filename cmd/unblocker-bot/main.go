// Package main implements the unblocker bot: a GitHub App service that
// watches pull request events, analyzes stalled PRs, and requests
// reviewers automatically when confidence allows.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/config"
	"github.com/codeGROOVE-dev/unblocker/pkg/engine"
	"github.com/codeGROOVE-dev/unblocker/pkg/github"
	"github.com/codeGROOVE-dev/unblocker/pkg/llm"
	"github.com/codeGROOVE-dev/unblocker/pkg/plan"
	"github.com/codeGROOVE-dev/unblocker/pkg/rationale"
	"github.com/codeGROOVE-dev/unblocker/pkg/server"
	"github.com/codeGROOVE-dev/unblocker/pkg/stats"
	"github.com/codeGROOVE-dev/unblocker/pkg/wizard"
)

var (
	appID      = flag.String("app-id", "", "GitHub App ID for authentication")
	appKeyPath = flag.String("app-key-path", "", "Path to GitHub App private key file")
	token      = flag.String("token", "", "Personal access token (instead of App auth)")
	org        = flag.String("org", "", "GitHub organization to monitor for PR events")
	rulesPath  = flag.String("rules", "rules.yaml", "Path to YAML rules overlay")
	statsPath  = flag.String("stats", "data/reviewer_stats.json", "Path to reviewer stats JSON")
	loopDelay  = flag.Duration("loop-delay", 5*time.Minute, "Delay between polling scans")
	dryRun     = flag.Bool("dry-run", false, "Analyze only; never execute plans")
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 120 * time.Second
	serverIdleTimeout  = 60 * time.Second
	shutdownTimeout    = 10 * time.Second
	eventTimeout       = 90 * time.Second
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "GitHub App bot that requests reviewers on stalled pull requests.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_APP_ID        - GitHub App ID\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_APP_KEY       - GitHub App private key content\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_APP_KEY_PATH  - Path to GitHub App private key file\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_ORG           - Organization to monitor\n")
		fmt.Fprintf(os.Stderr, "  DATABASE_URL         - Postgres URL for reviewer stats\n")
		fmt.Fprintf(os.Stderr, "  DEFAULT_REPO         - owner/repo scanned by the poll loop\n")
		fmt.Fprintf(os.Stderr, "  PORT                 - HTTP server port (default: 8080)\n")
	}
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runBot(ctx); err != nil {
		slog.Error("Bot failed", "error", err)
		os.Exit(1)
	}
}

func runBot(ctx context.Context) error {
	useAppAuth := *token == "" && (*appID != "" || os.Getenv("GITHUB_APP_ID") != "")
	client, err := github.New(ctx, github.Config{
		UseAppAuth: useAppAuth,
		AppID:      *appID,
		AppKeyPath: *appKeyPath,
		Token:      *token,
	})
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	monitorOrg := *org
	if monitorOrg == "" {
		monitorOrg = os.Getenv("GITHUB_ORG")
	}
	if useAppAuth && monitorOrg != "" {
		client.SetCurrentOrg(monitorOrg)
	}

	rules, err := config.Load(*rulesPath)
	if err != nil {
		return err
	}
	store := config.NewStore(rules)

	var pool *pgxpool.Pool
	var statsSource stats.Source
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		runMigrations(dbURL)
		pool, err = pgxpool.New(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		statsSource = stats.NewPostgresStore(pool)
		slog.Info("Using Postgres reviewer stats")
	} else {
		statsSource = stats.NewFileStore(*statsPath)
		slog.Info("Using file reviewer stats", "path", *statsPath)
	}

	provider, err := llm.Resolve()
	if err != nil {
		if !errors.Is(err, llm.ErrNoProvider) {
			return err
		}
		slog.Warn("No AI provider configured, using deterministic fallbacks")
		provider = nil
	}

	eng := engine.New(engine.Options{
		Host:      client,
		Rules:     store,
		Stats:     statsSource,
		Augmenter: rationale.New(provider),
		Plans:     plan.NewManager(plan.NewStore(0, nil)),
	})

	bot := &Bot{
		engine: eng,
		client: client,
		dryRun: *dryRun,
	}

	if monitorOrg != "" {
		monitor := newEventMonitor(bot, monitorOrg)
		if err := monitor.start(ctx); err != nil {
			return err
		}
		defer monitor.stop()
	} else {
		slog.Warn("No organization configured, event monitoring disabled")
	}

	if store.Rules().DefaultRepo != "" {
		go bot.pollLoop(ctx, *loopDelay)
	}

	srv := server.New(eng, wizard.New(provider, store, client))
	router := chi.NewRouter()
	router.Mount("/", srv.Router())
	router.Get("/poll", bot.handlePoll)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// runMigrations applies pending database migrations. Failures are logged
// but do not stop startup; the stats query degrades gracefully.
func runMigrations(dbURL string) {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		slog.Warn("Migration init failed", "error", err)
		return
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No new migrations to apply")
			return
		}
		slog.Warn("Migration up failed", "error", err)
		return
	}
	slog.Info("Migrations applied")
}

// Bot reacts to PR events and periodic scans.
type Bot struct {
	engine        *engine.Engine
	client        *github.Client
	mu            sync.Mutex
	lastScan      time.Time
	eventsSeen    atomic.Int64
	plansExecuted atomic.Int64
	dryRun        bool
}

// newRunID mints a run identifier in the orchestrator namespace.
func newRunID(kind string) string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "orch_" + kind + "_fallback"
	}
	return "orch_" + kind + "_" + hex.EncodeToString(buf[:])
}

// processPR analyzes one PR and executes the plan when analysis says the
// action is safe to auto-execute.
func (b *Bot) processPR(ctx context.Context, prURL string) {
	b.eventsSeen.Add(1)
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	runID := newRunID("evt")
	res, err := b.engine.Analyze(ctx, prURL, runID)
	if err != nil {
		slog.Error("Event analysis failed", "pr", prURL, "error", err)
		return
	}

	if !res.AutoExecute || res.Plan == nil {
		slog.Info("No auto-executable plan", "pr", prURL, "matched", res.Matched,
			"reason", res.Reason, "confidence", res.Confidence)
		return
	}
	if b.dryRun {
		slog.Info("Dry-run: skipping plan execution", "pr", prURL, "reviewers", res.Plan.Reviewers)
		return
	}

	act, err := b.engine.Act(ctx, runID, true, nil)
	if err != nil {
		slog.Error("Plan execution failed", "pr", prURL, "run_id", runID, "error", err)
		return
	}
	b.plansExecuted.Add(1)
	slog.Info("Auto-executed plan", "pr", prURL, "reviewers", act.Reviewers, "verified", act.Verified)
}

// pollLoop periodically scans the default repository and processes every
// stalled PR it finds.
func (b *Bot) pollLoop(ctx context.Context, delay time.Duration) {
	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.scanOnce(ctx)
		}
	}
}

func (b *Bot) scanOnce(ctx context.Context) {
	res, err := b.engine.Scan(ctx, newRunID("poll"))
	if err != nil {
		slog.Error("Poll scan failed", "error", err)
		return
	}
	b.mu.Lock()
	b.lastScan = time.Now()
	b.mu.Unlock()

	for _, stalled := range res.Results {
		b.processPR(ctx, stalled.PRURL)
	}
}

// pollResponse is the on-demand scan summary returned by /poll.
type pollResponse struct {
	ScanText      string `json:"scan_text"`
	EventsSeen    int64  `json:"events_seen"`
	PlansExecuted int64  `json:"plans_executed"`
}

// handlePoll triggers a scan on demand and returns its result.
func (b *Bot) handlePoll(w http.ResponseWriter, r *http.Request) {
	res, err := b.engine.Scan(r.Context(), newRunID("poll"))
	if err != nil {
		apierr.Write(w, err)
		return
	}
	b.mu.Lock()
	b.lastScan = time.Now()
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pollResponse{
		ScanText:      res.ScanText,
		EventsSeen:    b.eventsSeen.Load(),
		PlansExecuted: b.plansExecuted.Load(),
	}); err != nil {
		slog.Error("Failed to encode poll response", "error", err)
	}
}
