package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/kiesman99/drape/internal/config"
	"github.com/kiesman99/drape/internal/logging"
	"github.com/kiesman99/drape/internal/observability"
	"github.com/kiesman99/drape/internal/overlay"
	"github.com/kiesman99/drape/internal/raster"
	"github.com/kiesman99/drape/internal/store"
	"github.com/kiesman99/drape/internal/tiler"
)

// app is the wired set of components shared by every subcommand.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	metrics    *observability.Metrics
	compositor *tiler.Compositor
	overlays   overlay.Repository
	postgres   *overlay.Postgres

	closers []func()
}

// newApp loads configuration and wires logging, tracing, the image store,
// the overlay registry and the compositor. Call close when done.
func newApp(ctx context.Context, reg prometheus.Registerer) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: logging.Setup(cfg.Log)}

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, a.log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, func() {
		observability.ShutdownWithTimeout(context.Background(), shutdown, a.log)
	})

	if reg != nil {
		if a.metrics, err = observability.NewMetrics(reg); err != nil {
			a.close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	fetcher, err := a.newStore()
	if err != nil {
		a.close()
		return nil, err
	}

	if err := a.newOverlays(ctx); err != nil {
		a.close()
		return nil, err
	}

	placeholder, _ := tiler.ParsePlaceholderMode(cfg.Render.Placeholder)
	compression, _ := raster.CompressionLevel(cfg.Render.Compression)
	engine := raster.New(
		raster.WithInterpolation(cfg.Render.Interpolation),
		raster.WithCompression(compression),
	)
	a.compositor = tiler.New(fetcher, engine,
		tiler.WithPlaceholder(placeholder),
		tiler.WithLogger(a.log),
		tiler.WithMetrics(a.metrics),
	)
	return a, nil
}

func (a *app) newStore() (store.Fetcher, error) {
	var (
		fetcher store.Fetcher
		err     error
	)
	switch strings.ToLower(a.cfg.Store.Kind) {
	case config.StoreHTTP:
		fetcher, err = store.NewHTTPStore(store.HTTPOptions{
			BaseURL:   a.cfg.Store.BaseURL,
			UserAgent: a.cfg.Store.UserAgent,
			Timeout:   a.cfg.Store.Timeout,
			Headers:   a.cfg.Store.Headers,
		})
	default:
		fetcher, err = store.NewFileStore(a.cfg.Store.Root)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Store.Kind, err)
	}

	if !a.cfg.Cache.Enabled {
		return fetcher, nil
	}
	cache, err := store.NewValkeyCache(a.cfg.Cache.Addr)
	if err != nil {
		return nil, fmt.Errorf("connect source cache: %w", err)
	}
	a.closers = append(a.closers, cache.Close)
	a.log.Info("source cache enabled", "addr", a.cfg.Cache.Addr, "ttl", a.cfg.Cache.TTL)

	var recorder store.CacheRecorder
	if a.metrics != nil {
		recorder = a.metrics
	}
	return store.NewCached(fetcher, cache, a.cfg.Cache.TTL, a.log, recorder), nil
}

func (a *app) newOverlays(ctx context.Context) error {
	static, err := overlay.NewStatic(a.cfg.Overlays...)
	if err != nil {
		return err
	}
	chain := overlay.Chain{static}

	if a.cfg.Database.DSN != "" {
		pool, err := overlay.Connect(ctx, a.cfg.Database.DSN, a.cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("overlay database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		a.postgres = overlay.NewPostgres(pool)
		if a.cfg.Database.Migrate {
			if err := a.postgres.Migrate(ctx); err != nil {
				return err
			}
		}
		chain = append(chain, a.postgres)
	}

	a.overlays = chain
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
