package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tonic/internal/app"
	"tonic/internal/domain"
	"tonic/internal/render"
	"tonic/internal/treemap"
)

var (
	treemapWidth  int
	treemapHeight int
	treemapPNG    string
	treemapAlgo   string
)

var treemapCmd = &cobra.Command{
	Use:   "treemap [path]",
	Short: "Lay out the children of a directory as a treemap",
	Long:  "Scan path and lay out its direct children in a width x height rectangle.\nWith --png the layout is rendered to an image, otherwise the tiles are listed.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(ctx context.Context, application *app.App) error {
			algorithmName := application.Config.UI.TreemapAlgorithm
			if cmd.Flags().Changed("algorithm") {
				algorithmName = treemapAlgo
			}
			algorithm, err := treemap.ParseAlgorithm(algorithmName)
			if err != nil {
				return err
			}
			summary, err := scanWithProgress(ctx, application, domain.ScanMode(application.Config.Scan.Mode))
			if err != nil {
				return err
			}

			root := summary.Request.RootPath
			bounds := treemap.Rect{W: float64(treemapWidth), H: float64(treemapHeight)}
			tiles := application.Engine.Layout(root, algorithm, bounds)
			if treemapPNG != "" {
				return writeTreemapPNG(application, tiles)
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "X\tY\tW\tH\tSIZE\tNAME")
			for _, tile := range tiles {
				fmt.Fprintf(writer, "%.1f\t%.1f\t%.1f\t%.1f\t%s\t%s\n",
					tile.Rect.X, tile.Rect.Y, tile.Rect.W, tile.Rect.H, humanize.Bytes(uint64(tile.Weight)), tile.Label)
			}
			return writer.Flush()
		})
	},
}

func init() {
	treemapCmd.Flags().IntVar(&treemapWidth, "width", 1200, "layout width")
	treemapCmd.Flags().IntVar(&treemapHeight, "height", 800, "layout height")
	treemapCmd.Flags().StringVarP(&treemapPNG, "png", "o", "", "write the treemap to this PNG file")
	treemapCmd.Flags().StringVar(&treemapAlgo, "algorithm", "", "squarified or sliceAndDice (default from config)")
}

func writeTreemapPNG(application *app.App, tiles []treemap.Tile) error {
	painted := make([]render.Tile, 0, len(tiles))
	for _, tile := range tiles {
		nodeDomain := domain.DomainOther
		if node, ok := application.Engine.Node(tile.Key); ok {
			nodeDomain = node.Domain
		}
		painted = append(painted, render.Tile{
			Rect:  tile.Rect,
			Label: tile.Label,
			Fill:  render.DomainColor(nodeDomain),
		})
	}

	file, err := os.Create(treemapPNG)
	if err != nil {
		return err
	}
	options := render.Options{Width: treemapWidth, Height: treemapHeight, Padding: 1}
	if err := render.WritePNG(file, painted, options); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	application.Logger.Info("treemap written", "path", treemapPNG, "tiles", len(painted))
	return nil
}
