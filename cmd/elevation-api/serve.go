package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/twpayne/go-elevation-api"
	"github.com/twpayne/go-elevation-api/internal/config"
	"github.com/twpayne/go-elevation-api/internal/logger"
	"github.com/twpayne/go-elevation-api/internal/server"
	"github.com/twpayne/go-elevation-api/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the elevation server",
	Long: `Run the elevation server.

If the data directory is local and has no manifest then one is built from the
NetCDF tiles in it first.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default $HTTP_ADDR)")
	serveCmd.Flags().Int("cache-size", 0, "maximum number of cached tiles, 0 for unbounded (default $CACHE_SIZE)")
	serveCmd.Flags().Int("concurrency", 0, "maximum number of tiles loaded concurrently per request (default $RESOLVER_CONCURRENCY)")
	serveCmd.Flags().Int("max-points", 0, "maximum number of points per request (default $MAX_POINTS)")
	serveCmd.Flags().Bool("spatial-index", false, "index tiles with an R-tree (default $SPATIAL_INDEX)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logger.Level)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		}, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownTelemetry(context.WithoutCancel(ctx)); err != nil {
				log.Error("failed to shutdown telemetry", zap.Error(err))
			}
		}()
	}

	fsys, local, err := openDataDir(ctx, cfg)
	if err != nil {
		return err
	}
	if local {
		if err := ensureManifest(ctx, cfg, fsys, log); err != nil {
			return err
		}
	}

	resolver, index, err := newResolver(cfg, fsys, log)
	if err != nil {
		return err
	}
	log.Info("loaded manifest",
		zap.String("data_dir", cfg.DataDir),
		zap.Int("tiles", index.Len()),
	)

	handler := server.New(resolver,
		server.WithMaxPoints(cfg.MaxPoints),
		server.WithLogger(log),
		server.WithTelemetry(cfg.Telemetry.Enabled),
	)
	return server.Run(ctx, cfg.HTTP.Addr, handler, server.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	}, shutdownTimeout, log)
}

// ensureManifest builds the manifest of a local data directory if it does not
// exist.
func ensureManifest(ctx context.Context, cfg *config.Config, fsys fs.FS, log *zap.Logger) error {
	switch _, err := fs.Stat(fsys, cfg.ManifestName); {
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	manifestPath := filepath.Join(cfg.DataDir, cfg.ManifestName)
	log.Info("manifest not found, building it", zap.String("path", manifestPath))
	tiles, err := elevation.BuildManifest(ctx, fsys, elevation.NewFSDecoder(fsys), defaultPattern)
	if err != nil {
		return err
	}
	return writeManifestFile(manifestPath, tiles)
}

// writeManifestFile writes tiles to the manifest file at path.
func writeManifestFile(path string, tiles []elevation.TileMetadata) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	return elevation.WriteManifest(file, tiles)
}
