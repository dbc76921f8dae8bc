package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"

	"github.com/kiesman99/drape/internal/overlay"
	"github.com/kiesman99/drape/pkg/tile"
)

var overlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Inspect and register overlays",
}

var overlayShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an overlay and its tile bounds at a zoom level",
	Args:  cobra.ExactArgs(1),
	RunE:  runOverlayShow,
}

var overlayPutCmd = &cobra.Command{
	Use:   "put <id>",
	Short: "Register or replace an overlay in the database",
	Long: `Register or replace an overlay in the Postgres overlay registry.
Requires database.dsn to be configured.

Examples:
  drape overlay put honolulu --lat 21.334011 --lon -157.866301 \
    --width-meters 2800 --aspect-width 9449 --aspect-height 9449 \
    --rotation 136 --bucket maps --key honolulu.png`,
	Args: cobra.ExactArgs(1),
	RunE: runOverlayPut,
}

func init() {
	rootCmd.AddCommand(overlayCmd)
	overlayCmd.AddCommand(overlayShowCmd, overlayPutCmd)

	overlayShowCmd.Flags().Int("zoom", 16, "zoom level for the reported tile bounds")

	overlayPutCmd.Flags().Float64("lat", 0, "latitude of the image's top-left corner")
	overlayPutCmd.Flags().Float64("lon", 0, "longitude of the image's top-left corner")
	overlayPutCmd.Flags().Float64("width-meters", 0, "ground width of the image in meters")
	overlayPutCmd.Flags().Float64("rotation", 0, "clockwise rotation in degrees")
	overlayPutCmd.Flags().Float64("aspect-width", 0, "source image width in pixels")
	overlayPutCmd.Flags().Float64("aspect-height", 0, "source image height in pixels")
	overlayPutCmd.Flags().String("bucket", "", "bucket of the source image")
	overlayPutCmd.Flags().String("key", "", "key of the source image")
}

type overlayReport struct {
	overlay.Overlay
	Zoom   int             `json:"zoom"`
	Bounds tile.TileBounds `json:"tile_bounds"`
	Tiles  int             `json:"covering_tiles"`
}

func runOverlayShow(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	zoom, _ := cmd.Flags().GetInt("zoom")
	if zoom < 0 || zoom > tile.MaxZoom {
		return fmt.Errorf("zoom %d not in [0, %d]", zoom, tile.MaxZoom)
	}

	o, err := a.overlays.Get(ctx, args[0])
	if err != nil {
		return err
	}

	bounds := tile.BuildFootprint(o.Descriptor).TileBounds(zoom)
	report := overlayReport{
		Overlay: *o,
		Zoom:    zoom,
		Bounds:  bounds,
		Tiles:   len(bounds.Covering(maptile.Zoom(zoom))),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runOverlayPut(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	if a.postgres == nil {
		return fmt.Errorf("no overlay database configured (set database.dsn)")
	}

	flags := cmd.Flags()
	o := overlay.Overlay{ID: args[0]}
	o.Descriptor.Anchor.Lat, _ = flags.GetFloat64("lat")
	o.Descriptor.Anchor.Lng, _ = flags.GetFloat64("lon")
	o.Descriptor.WidthMeters, _ = flags.GetFloat64("width-meters")
	o.Descriptor.RotationDegrees, _ = flags.GetFloat64("rotation")
	o.Descriptor.AspectWidth, _ = flags.GetFloat64("aspect-width")
	o.Descriptor.AspectHeight, _ = flags.GetFloat64("aspect-height")
	o.Source.Bucket, _ = flags.GetString("bucket")
	o.Source.Key, _ = flags.GetString("key")

	if err := a.postgres.Put(ctx, o); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Registered overlay %s (%s)\n", o.ID, o.Source)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
