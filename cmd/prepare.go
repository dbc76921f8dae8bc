package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/drape/internal/overlay"
	"github.com/kiesman99/drape/internal/server"
	"github.com/kiesman99/drape/pkg/tile"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Pre-render every tile of an overlay",
	Long: `Render every tile covering an overlay's footprint for a range of zoom
levels and write them as <out>/<z>/<x>/<y>.png.

Examples:
  # Render zoom 12 to 17 of a registered overlay with 8 workers
  drape prepare --overlay honolulu --min-zoom 12 --max-zoom 17 --out tiles/ -c 8`,
	RunE: runPrepare,
}

func init() {
	rootCmd.AddCommand(prepareCmd)

	prepareCmd.Flags().String("overlay", "", "ID of a registered overlay (required)")
	prepareCmd.Flags().Int("min-zoom", 10, "first zoom level")
	prepareCmd.Flags().Int("max-zoom", 18, "last zoom level")
	prepareCmd.Flags().String("out", "tiles", "output directory")
	prepareCmd.Flags().IntP("concurrency", "c", runtime.NumCPU(), "tiles rendered in parallel")
	prepareCmd.Flags().Bool("skip-placeholders", false, "do not write tiles outside the overlay")
	prepareCmd.MarkFlagRequired("overlay")
}

// prepareOptions controls one prepare run.
type prepareOptions struct {
	MinZoom          int
	MaxZoom          int
	Out              string
	Concurrency      int
	SkipPlaceholders bool
	// Dimension is the output tile edge; zero means tile.DefaultDimension.
	Dimension        int
}

type prepareStats struct {
	Rendered     int64
	Placeholders int64
	Skipped      int64
}

func runPrepare(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	flags := cmd.Flags()
	id, _ := flags.GetString("overlay")
	var opts prepareOptions
	opts.MinZoom, _ = flags.GetInt("min-zoom")
	opts.MaxZoom, _ = flags.GetInt("max-zoom")
	opts.Out, _ = flags.GetString("out")
	opts.Concurrency, _ = flags.GetInt("concurrency")
	opts.SkipPlaceholders, _ = flags.GetBool("skip-placeholders")
	opts.Dimension = a.cfg.Render.Dimension

	o, err := a.overlays.Get(ctx, id)
	if err != nil {
		return err
	}

	start := time.Now()
	stats, err := prepareTiles(ctx, a.compositor, *o, opts, a.log)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Prepared %s: %d rendered, %d placeholders, %d skipped in %s\n",
		o.ID, stats.Rendered, stats.Placeholders, stats.Skipped, time.Since(start).Round(time.Millisecond))
	return nil
}

// prepareTiles renders every tile covering o's footprint between the zoom
// bounds, writing them under opts.Out. The first failure cancels the run.
func prepareTiles(ctx context.Context, tiles server.TileResolver, o overlay.Overlay, opts prepareOptions, log *slog.Logger) (prepareStats, error) {
	var stats prepareStats

	if opts.MinZoom < 0 || opts.MaxZoom > tile.MaxZoom || opts.MinZoom > opts.MaxZoom {
		return stats, fmt.Errorf("zoom range %d-%d must lie within 0-%d", opts.MinZoom, opts.MaxZoom, tile.MaxZoom)
	}
	if err := o.Validate(); err != nil {
		return stats, err
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	footprint := tile.BuildFootprint(o.Descriptor)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

zooms:
	for z := opts.MinZoom; z <= opts.MaxZoom; z++ {
		covering := footprint.TileBounds(z).Covering(maptile.Zoom(z))
		log.Info("preparing zoom level", "overlay", o.ID, "zoom", z, "tiles", len(covering))

		for _, t := range covering {
			if ctx.Err() != nil {
				break zooms
			}
			g.Go(func() error {
				req := tile.Request{Overlay: o.Descriptor, Tile: t, OutputDimension: opts.Dimension}
				res, err := tiles.ResolveTile(ctx, req, o.Source)
				if err != nil {
					return fmt.Errorf("tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
				}
				if res.Placeholder {
					atomic.AddInt64(&stats.Placeholders, 1)
					if opts.SkipPlaceholders {
						atomic.AddInt64(&stats.Skipped, 1)
						return nil
					}
				} else {
					atomic.AddInt64(&stats.Rendered, 1)
				}
				return writeTile(opts.Out, t, res.Data)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func writeTile(root string, t maptile.Tile, data []byte) error {
	dir := filepath.Join(root, fmt.Sprint(t.Z), fmt.Sprint(t.X))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.png", t.Y))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
