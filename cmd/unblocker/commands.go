package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
	"github.com/codeGROOVE-dev/unblocker/pkg/wizard"
)

func newAnalyzeCmd(f *rootFlags) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "analyze <pr-url>",
		Short: "Explain whether a PR is stalled and who should review it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if runID == "" {
				runID = newRunID()
			}
			return run(f, func(ctx context.Context, app *app) error {
				res, err := app.engine.Analyze(ctx, args[0], runID)
				if err != nil {
					return err
				}
				fmt.Println(res.PreviewText)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (default: generated)")
	return cmd
}

func newScanCmd(f *rootFlags) *cobra.Command {
	var runID, repo string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List the oldest stalled PRs in the default repository",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if runID == "" {
				runID = newRunID()
			}
			return run(f, func(ctx context.Context, app *app) error {
				if repo != "" {
					rules := app.rules.Rules()
					rules.DefaultRepo = repo
					app.rules.Update(rules)
				}
				res, err := app.engine.Scan(ctx, runID)
				if err != nil {
					return err
				}
				fmt.Println(res.ScanText)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (default: generated)")
	cmd.Flags().StringVar(&repo, "repo", "", "owner/repo to scan (default: DEFAULT_REPO)")
	return cmd
}

func newActCmd(f *rootFlags) *cobra.Command {
	var (
		runID     string
		prURL     string
		reviewers []string
		comment   string
	)

	cmd := &cobra.Command{
		Use:   "act",
		Short: "Execute an explicit reviewer-request plan",
		Long: "Execute a reviewer-request plan immediately. The CLI has no plan cache\n" +
			"across invocations, so the plan is given explicitly via flags.",
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if runID == "" {
				runID = newRunID()
			}
			if prURL == "" || len(reviewers) == 0 {
				return fmt.Errorf("--pr and --reviewer are required")
			}
			return run(f, func(ctx context.Context, app *app) error {
				plan := &types.ActionPlan{
					Action:    types.PlanActionRequestReviewers,
					PRURL:     prURL,
					Reviewers: reviewers,
					Comment:   comment,
				}
				res, err := app.engine.Act(ctx, runID, true, plan)
				if err != nil {
					return err
				}
				fmt.Println(res.OutcomeText)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (default: generated)")
	cmd.Flags().StringVar(&prURL, "pr", "", "Pull request URL")
	cmd.Flags().StringSliceVar(&reviewers, "reviewer", nil, "Reviewer login (may be repeated)")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment to post after requesting reviewers")
	return cmd
}

func newWizardCmd(f *rootFlags) *cobra.Command {
	var (
		runID    string
		dryRunPR string
		activate bool
	)

	cmd := &cobra.Command{
		Use:   "wizard <rule-text>",
		Short: "Turn a natural-language rule into a stall-rule configuration",
		Example: `  unblocker wizard "If PR has no reviewers after 2 hours, request reviewers from CODEOWNERS"
  unblocker wizard "When PR has no reviewers after 24h, request reviewers from recent" --activate`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if runID == "" {
				runID = newRunID()
			}
			return run(f, func(ctx context.Context, app *app) error {
				res, err := app.wizard.Run(ctx, wizard.Input{
					Text:     strings.Join(args, " "),
					RunID:    runID,
					DryRunPR: dryRunPR,
					Activate: activate,
				})
				if err != nil {
					return err
				}
				fmt.Println(res.PreviewText)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (default: generated)")
	cmd.Flags().StringVar(&dryRunPR, "dry-run-pr", "", "PR URL to dry-run the parsed rule against")
	cmd.Flags().BoolVar(&activate, "activate", false, "Activate the parsed rule for this process")
	return cmd
}
