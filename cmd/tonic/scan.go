package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tonic/internal/app"
	"tonic/internal/domain"
	"tonic/internal/services"
)

var (
	scanTop   int
	scanQuick bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a directory tree and print where the space goes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(ctx context.Context, application *app.App) error {
			mode := domain.ScanMode(application.Config.Scan.Mode)
			if scanQuick {
				mode = domain.ScanQuick
			}
			summary, err := scanWithProgress(ctx, application, mode)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), application, summary, scanTop)
		})
	},
}

func init() {
	scanCmd.Flags().IntVarP(&scanTop, "top", "n", 15, "number of largest children to list")
	scanCmd.Flags().BoolVarP(&scanQuick, "quick", "q", false, "estimate below the quick depth instead of walking")
}

// scanWithProgress runs a scan and, when stderr is a terminal, keeps a
// single progress line updated.
func scanWithProgress(ctx context.Context, application *app.App, mode domain.ScanMode) (services.ScanSummary, error) {
	session := application.Engine.StartScan(ctx, application.ScanRequest("", mode))
	fd := int(os.Stderr.Fd())
	interactive := term.IsTerminal(fd)
	width := 80
	if interactive {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}

	var warnings []string
	for scanEvent := range session.Events() {
		switch scanEvent.Kind {
		case domain.EventProgress:
			if !interactive {
				continue
			}
			line := fmt.Sprintf("scanning: %s files, %s  %s",
				humanize.Comma(scanEvent.Progress.FilesScanned),
				humanize.Bytes(uint64(scanEvent.Progress.BytesScanned)),
				scanEvent.Progress.CurrentPath)
			fmt.Fprintf(os.Stderr, "\r%-*s", width-1, truncate(line, width-1))
		case domain.EventWarning:
			warnings = append(warnings, scanEvent.Message)
		}
	}
	if interactive {
		fmt.Fprintf(os.Stderr, "\r%-*s\r", width-1, "")
	}
	for _, warning := range warnings {
		application.Logger.Warn("scan warning", "message", warning)
	}

	summary := session.Summary()
	if summary.Err != nil {
		return summary, summary.Err
	}
	if summary.Phase == domain.PhaseCancelled {
		return summary, context.Canceled
	}
	return summary, nil
}

func printSummary(out io.Writer, application *app.App, summary services.ScanSummary, top int) error {
	root := summary.Request.RootPath
	node, ok := application.Engine.Node(root)
	if !ok {
		return fmt.Errorf("%s was not indexed", root)
	}
	fmt.Fprintf(out, "%s  %s in %s files, %s dirs (%s)\n",
		root, sizeText(node), humanize.Comma(node.FileCount), humanize.Comma(node.DirCount), summary.Duration().Round(time.Millisecond))
	if summary.Warnings > 0 {
		fmt.Fprintf(out, "%d entries could not be read\n", summary.Warnings)
	}

	children := application.Engine.Children(root, domain.SortBySize)
	if top > 0 && len(children) > top {
		children = children[:top]
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(writer, "SIZE\tSHARE\tDOMAIN\tRISK\t NAME")
	for _, child := range children {
		share := 0.0
		if node.LogicalBytes > 0 {
			share = 100 * float64(child.LogicalBytes) / float64(node.LogicalBytes)
		}
		name := child.Name
		if child.IsDirectory {
			name += "/"
		}
		fmt.Fprintf(writer, "%s\t%.1f%%\t%s\t%s\t %s\n", sizeText(child), share, child.Domain, child.RiskLevel, name)
	}
	return writer.Flush()
}

func sizeText(node domain.StorageNode) string {
	text := humanize.Bytes(uint64(max(node.LogicalBytes, 0)))
	if node.SizeIsEstimated {
		return "~" + text
	}
	return text
}

func truncate(value string, width int) string {
	if width <= 0 || len(value) <= width {
		return value
	}
	if width <= 3 {
		return value[:width]
	}
	return value[:width-3] + "..."
}
