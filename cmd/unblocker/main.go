// Package main implements the unblocker CLI: analyze a stalled pull
// request, scan a repository for stalled PRs, execute an approved plan,
// or drive the pattern wizard.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

type rootFlags struct {
	token     string
	rulesPath string
	statsPath string
	verbose   bool
}

func main() {
	f := &rootFlags{}

	root := &cobra.Command{
		Use:           "unblocker",
		Short:         "Decide whether a stalled PR needs reviewers, and request them",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelInfo
			if f.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.token, "token", "", "GitHub token (default: gh auth token)")
	pf.StringVar(&f.rulesPath, "rules", "rules.yaml", "Path to YAML rules overlay")
	pf.StringVar(&f.statsPath, "stats", "data/reviewer_stats.json", "Path to reviewer stats JSON")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(newAnalyzeCmd(f))
	root.AddCommand(newScanCmd(f))
	root.AddCommand(newActCmd(f))
	root.AddCommand(newWizardCmd(f))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRunID mints a CLI-local run identifier in the orchestrator
// namespace so locally created plans can be consumed locally.
func newRunID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "orch_cli_fallback"
	}
	return "orch_cli_" + hex.EncodeToString(buf[:])
}

func run(f *rootFlags, fn func(ctx context.Context, app *app) error) error {
	ctx := context.Background()
	app, err := buildApp(ctx, f)
	if err != nil {
		return err
	}
	defer app.close()
	return fn(ctx, app)
}
