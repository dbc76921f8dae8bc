package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/drape/internal/server"
)

// version is reported by the health endpoint.
const version = "1.0.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the tile API",
	Long: `Start an HTTP server that renders overlay tiles on demand.

Endpoints:
  GET /api/v1/health                           service health
  GET /api/v1/tiles/{request}                  tile from a base64-encoded JSON request
  GET /api/v1/overlays/{id}/{z}/{x}/{y}        tile of a registered overlay
  GET /metrics                                 Prometheus metrics

Examples:
  # Start server on default port 8080
  drape serve

  # Start server on custom port
  drape serve --port 3000

  # Start server with custom bind address
  drape serve --bind 0.0.0.0 --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg.Server
	apiServer := server.NewServer(server.Options{
		Version:          version,
		Tiles:            a.compositor,
		Overlays:         a.overlays,
		DefaultDimension: a.cfg.Render.Dimension,
		Logger:           a.log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      apiServer.Routes(cfg.Timeout, a.metrics),
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout + 5*time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()

		a.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server shutdown error", "error", err)
		}
	}()

	a.log.Info("starting drape server",
		"addr", cfg.Addr(),
		"store", a.cfg.Store.Kind,
		"cache", a.cfg.Cache.Enabled,
		"overlays", len(a.cfg.Overlays),
		"database", a.postgres != nil,
	)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s/api/v1/health\n", cfg.Addr())
	fmt.Fprintf(cmd.ErrOrStderr(), "Tile endpoint: http://%s/api/v1/overlays/{id}/{z}/{x}/{y}\n", cfg.Addr())

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
