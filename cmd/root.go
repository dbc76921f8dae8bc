package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/drape/internal/store"
	"github.com/kiesman99/drape/pkg/tile"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "drape",
	Short: "Serve a georeferenced, rotated image as slippy-map tiles",
	Long: `drape cuts Web-Mercator map tiles out of a single georeferenced source
image, such as a scanned map or a site plan. The image is placed by its
top-left corner, its width on the ground in meters and a clockwise rotation.

Without a subcommand, drape renders one tile and writes it as PNG.

Examples:
  # Render tile 14/1007/7198 of an image in the file store
  drape --lat 21.334011 --lon -157.866301 --width-meters 2800 \
    --aspect-width 4000 --aspect-height 3000 --rotation 12 \
    --zoom 14 -x 1007 -y 7198 --key plans/honolulu.png -o tile.png

  # Render a tile of an overlay registered in the config file or database
  drape --overlay honolulu --zoom 14 -x 1007 -y 7198 -o tile.png

  # Pre-render every tile of an overlay for zoom 12 to 17
  drape prepare --overlay honolulu --min-zoom 12 --max-zoom 17 --out tiles/

  # Start HTTP server
  drape serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overlayID, _ := cmd.Flags().GetString("overlay")
		key, _ := cmd.Flags().GetString("key")
		if overlayID == "" && key == "" {
			return cmd.Help()
		}
		return runRender(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.drape.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("store-root", ".", "directory of the file image store")

	// Output options
	rootCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	rootCmd.Flags().Int("dimension", tile.DefaultDimension, "output tile edge in pixels")

	// Overlay geometry
	rootCmd.Flags().String("overlay", "", "ID of a registered overlay (replaces the geometry and source flags)")
	rootCmd.Flags().Float64("lat", 0, "latitude of the image's top-left corner")
	rootCmd.Flags().Float64("lon", 0, "longitude of the image's top-left corner")
	rootCmd.Flags().Float64("width-meters", 0, "ground width of the image in meters")
	rootCmd.Flags().Float64("rotation", 0, "clockwise rotation in degrees")
	rootCmd.Flags().Float64("aspect-width", 0, "source image width in pixels")
	rootCmd.Flags().Float64("aspect-height", 0, "source image height in pixels")

	// Source image
	rootCmd.Flags().String("bucket", "", "bucket (or sub-directory) of the source image")
	rootCmd.Flags().String("key", "", "key of the source image")

	// Tile address
	rootCmd.Flags().Int("zoom", 0, "zoom level")
	rootCmd.Flags().IntP("x", "x", 0, "tile column")
	rootCmd.Flags().IntP("y", "y", 0, "tile row")

	// Bind flags to viper
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("store.root", rootCmd.PersistentFlags().Lookup("store-root"))
	viper.BindPFlag("render.dimension", rootCmd.Flags().Lookup("dimension"))
}

// initConfig reads in config file if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".drape" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".drape")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	flags := cmd.Flags()
	zoom, _ := flags.GetInt("zoom")
	x, _ := flags.GetInt("x")
	y, _ := flags.GetInt("y")

	t, err := tile.NewTile(x, y, zoom)
	if err != nil {
		return err
	}

	req := tile.Request{Tile: t, OutputDimension: a.cfg.Render.Dimension}
	var loc store.Locator

	if id, _ := flags.GetString("overlay"); id != "" {
		o, err := a.overlays.Get(ctx, id)
		if err != nil {
			return err
		}
		req.Overlay = o.Descriptor
		loc = o.Source
	} else {
		req.Overlay.Anchor.Lat, _ = flags.GetFloat64("lat")
		req.Overlay.Anchor.Lng, _ = flags.GetFloat64("lon")
		req.Overlay.WidthMeters, _ = flags.GetFloat64("width-meters")
		req.Overlay.RotationDegrees, _ = flags.GetFloat64("rotation")
		req.Overlay.AspectWidth, _ = flags.GetFloat64("aspect-width")
		req.Overlay.AspectHeight, _ = flags.GetFloat64("aspect-height")
		loc.Bucket, _ = flags.GetString("bucket")
		loc.Key, _ = flags.GetString("key")
		if err := loc.Validate(); err != nil {
			return err
		}
	}

	result, err := a.compositor.ResolveTile(ctx, req, loc)
	if err != nil {
		return err
	}

	output, _ := flags.GetString("output")
	if output == "" {
		_, err = cmd.OutOrStdout().Write(result.Data)
		return err
	}
	if err := os.WriteFile(output, result.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	kind := "tile"
	if result.Placeholder {
		kind = "placeholder tile"
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %dx%d %s %d/%d/%d to %s\n",
		result.Width, result.Height, kind, zoom, x, y, output)
	return nil
}
