package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tonic/internal/app"
	"tonic/internal/domain"
	"tonic/internal/engine"
)

var (
	cleanAction string
	cleanYes    bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean path...",
	Short: "Plan and optionally execute a cleanup of the given paths",
	Long: "clean rescans the given paths, prints the cleanup plan and executes it only with --yes.\n" +
		"Protected paths are reported as blocked and never touched.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, application *app.App) error {
			action := domain.ActionType(application.Config.Cleanup.DefaultAction)
			if cmd.Flags().Changed("action") {
				action = domain.ActionType(cleanAction)
			}
			if err := application.Engine.Rescan(ctx, args); err != nil {
				return err
			}
			plan, err := application.Engine.PreparePlanFor(args, action)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printPlan(out, plan)
			if !cleanYes {
				fmt.Fprintln(out, "dry run: pass --yes to execute")
				return nil
			}
			if len(plan.Executable()) == 0 {
				return errors.New("nothing to clean")
			}

			result, err := application.Engine.ExecuteCleanup(ctx, plan.ID)
			if err != nil {
				return err
			}
			printResult(out, result)
			if result.FailedItems > 0 {
				return fmt.Errorf("%d items failed", result.FailedItems)
			}
			return nil
		})
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Restore the items moved to trash by the last cleanup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, application *app.App) error {
			result, err := application.Engine.Undo(ctx)
			if errors.Is(err, engine.ErrNothingToUndo) {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to undo")
				return nil
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range result.Restored {
				fmt.Fprintf(out, "restored %s\n", path)
			}
			for _, failure := range result.Failed {
				fmt.Fprintf(out, "failed   %s: %s\n", failure.Path, failure.Message)
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d items could not be restored", len(result.Failed))
			}
			return nil
		})
	},
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanAction, "action", "a", "", "moveToTrash, excludeForever or secureDelete (default from config)")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "execute the plan instead of only printing it")
}

func printPlan(out io.Writer, plan domain.CleanupPlan) {
	dryRun := plan.DryRun
	fmt.Fprintf(out, "plan %s: %s %d items, %s reclaimable, %d blocked\n",
		plan.ID, plan.ActionType, dryRun.CleanableItems, humanize.Bytes(uint64(max(dryRun.CleanableBytes, 0))), dryRun.BlockedItems)
	for _, candidate := range plan.Candidates() {
		if candidate.Blocked() {
			fmt.Fprintf(out, "  blocked  %s: %s\n", candidate.Path, candidate.BlockedReason)
			continue
		}
		fmt.Fprintf(out, "  %-8s %s (%s, %s)\n", candidate.RiskLevel, candidate.Path,
			humanize.Bytes(uint64(max(candidate.EstimatedReclaimBytes, 0))), candidate.SafeReason)
	}
}

func printResult(out io.Writer, result domain.CleanupExecutionResult) {
	switch result.ActionType {
	case domain.ActionExcludeForever:
		fmt.Fprintf(out, "excluded %d items\n", result.ExcludedItems)
	default:
		fmt.Fprintf(out, "cleaned %d items, %s\n", result.CleanedItems, humanize.Bytes(uint64(max(result.CleanedBytes, 0))))
	}
	if result.BeforeUsedBytes != nil && result.AfterUsedBytes != nil && *result.BeforeUsedBytes >= *result.AfterUsedBytes {
		fmt.Fprintf(out, "volume usage dropped by %s\n", humanize.Bytes(*result.BeforeUsedBytes-*result.AfterUsedBytes))
	}
	for _, failure := range result.Failed {
		fmt.Fprintf(out, "failed %s: %s\n", failure.Path, failure.Message)
	}
	if result.UndoToken != nil {
		fmt.Fprintln(out, "run `tonic undo` to restore")
	}
}
