package cmd

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kiesman99/drape/internal/logging"
	"github.com/kiesman99/drape/internal/overlay"
	"github.com/kiesman99/drape/internal/raster"
	"github.com/kiesman99/drape/internal/store"
	"github.com/kiesman99/drape/internal/tiler"
	"github.com/kiesman99/drape/pkg/tile"
)

type memStore map[string][]byte

func (m memStore) Fetch(_ context.Context, loc store.Locator) ([]byte, error) {
	data, ok := m[loc.String()]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func honoluluOverlay() overlay.Overlay {
	return overlay.Overlay{
		ID: "honolulu",
		Descriptor: tile.OverlayDescriptor{
			Anchor:       tile.GeoPoint{Lat: 21.334011, Lng: -157.866301},
			WidthMeters:  2800,
			AspectWidth:  64,
			AspectHeight: 64,
		},
		Source: store.Locator{Bucket: "maps", Key: "honolulu.png"},
	}
}

func sourcePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 64))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPrepareTiles(t *testing.T) {
	o := honoluluOverlay()
	st := memStore{o.Source.String(): sourcePNG(t)}
	compositor := tiler.New(st, raster.New(), tiler.WithLogger(logging.Discard()))
	out := t.TempDir()

	stats, err := prepareTiles(context.Background(), compositor, o, prepareOptions{
		MinZoom:     14,
		MaxZoom:     14,
		Out:         out,
		Concurrency: 4,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("prepareTiles error: %v", err)
	}

	// Covering spans x 1007-1009 and y 7197-7200; the footprint itself only
	// touches x 1007-1008 and y 7197-7199.
	if stats.Rendered != 6 || stats.Placeholders != 6 {
		t.Errorf("stats = %+v, want 6 rendered and 6 placeholders", stats)
	}

	for _, p := range []string{"14/1007/7197.png", "14/1008/7199.png", "14/1009/7200.png"} {
		if _, err := os.Stat(filepath.Join(out, p)); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}
}

func TestPrepareTilesSkipPlaceholders(t *testing.T) {
	o := honoluluOverlay()
	st := memStore{o.Source.String(): sourcePNG(t)}
	compositor := tiler.New(st, raster.New(), tiler.WithLogger(logging.Discard()))
	out := t.TempDir()

	stats, err := prepareTiles(context.Background(), compositor, o, prepareOptions{
		MinZoom:          14,
		MaxZoom:          14,
		Out:              out,
		Concurrency:      2,
		SkipPlaceholders: true,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("prepareTiles error: %v", err)
	}
	if stats.Skipped != stats.Placeholders {
		t.Errorf("stats = %+v, want every placeholder skipped", stats)
	}
	if _, err := os.Stat(filepath.Join(out, "14", "1009", "7200.png")); !os.IsNotExist(err) {
		t.Errorf("placeholder tile was written (stat error %v)", err)
	}
}

func TestPrepareTilesStopsOnError(t *testing.T) {
	o := honoluluOverlay()
	compositor := tiler.New(memStore{}, raster.New(), tiler.WithLogger(logging.Discard()))

	_, err := prepareTiles(context.Background(), compositor, o, prepareOptions{
		MinZoom:     14,
		MaxZoom:     14,
		Out:         t.TempDir(),
		Concurrency: 2,
	}, logging.Discard())
	if !errors.Is(err, tiler.ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}
}

func TestPrepareTilesRejectsZoomRange(t *testing.T) {
	for _, opts := range []prepareOptions{
		{MinZoom: 5, MaxZoom: 4},
		{MinZoom: -1, MaxZoom: 4},
		{MinZoom: 0, MaxZoom: tile.MaxZoom + 1},
	} {
		if _, err := prepareTiles(context.Background(), nil, honoluluOverlay(), opts, logging.Discard()); err == nil {
			t.Errorf("prepareTiles accepted zoom range %d-%d", opts.MinZoom, opts.MaxZoom)
		}
	}
}

func TestPrepareTilesUsesDimension(t *testing.T) {
	o := honoluluOverlay()
	st := memStore{o.Source.String(): sourcePNG(t)}
	compositor := tiler.New(st, raster.New(), tiler.WithLogger(logging.Discard()))
	out := t.TempDir()

	if _, err := prepareTiles(context.Background(), compositor, o, prepareOptions{
		MinZoom:     14,
		MaxZoom:     14,
		Out:         out,
		Concurrency: 2,
		Dimension:   512,
	}, logging.Discard()); err != nil {
		t.Fatalf("prepareTiles error: %v", err)
	}

	for _, p := range []string{"14/1007/7197.png", "14/1009/7200.png"} {
		f, err := os.Open(filepath.Join(out, p))
		if err != nil {
			t.Fatalf("open %s: %v", p, err)
		}
		cfg, err := png.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", p, err)
		}
		if cfg.Width != 512 || cfg.Height != 512 {
			t.Errorf("%s is %dx%d, want 512x512", p, cfg.Width, cfg.Height)
		}
	}
}
