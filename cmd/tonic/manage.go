package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tonic/internal/app"
	"tonic/internal/domain"
)

var exclusionsCmd = &cobra.Command{
	Use:   "exclusions",
	Short: "List or edit paths that scans skip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, application *app.App) error {
			paths, err := application.Engine.Exclusions(ctx)
			if err != nil {
				return err
			}
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		})
	},
}

var exclusionsAddCmd = &cobra.Command{
	Use:   "add path...",
	Short: "Exclude paths from future scans",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, application *app.App) error {
			for _, path := range args {
				if err := application.Engine.AddExclusion(ctx, path); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var exclusionsRemoveCmd = &cobra.Command{
	Use:   "remove path...",
	Short: "Stop excluding paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, application *app.App) error {
			for _, path := range args {
				if err := application.Engine.RemoveExclusion(ctx, path); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		})
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "List recorded scans, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, application *app.App) error {
			root := ""
			if len(args) > 0 {
				root = domain.CanonicalPath(args[0])
			}
			records, err := application.Engine.History(ctx, root, historyLimit)
			if err != nil {
				return err
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "WHEN\tMODE\tSTATUS\tFILES\tSIZE\tROOT")
			for _, record := range records {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
					humanize.Time(record.FinishedAt), record.Mode, record.Status,
					humanize.Comma(record.Files), humanize.Bytes(uint64(max(record.Bytes, 0))), record.RootPath)
			}
			return writer.Flush()
		})
	},
}

func init() {
	exclusionsCmd.AddCommand(exclusionsAddCmd, exclusionsRemoveCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of scans to list")
}
