package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/twpayne/go-elevation-api"
	"github.com/twpayne/go-elevation-api/internal/config"
	"github.com/twpayne/go-elevation-api/internal/s3fs"
)

var rootCmd = &cobra.Command{
	Use:           "elevation-api",
	Short:         "Web service and utility for giving elevations for locations on earth",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "", "directory or s3://bucket/prefix URL containing tiles (default $DATA_DIR)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (default $LOGGER_LEVEL)")
}

// loadConfig loads the configuration from the environment, overrides it with
// any flags set on cmd, and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("log-level") {
		cfg.Logger.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("addr") {
		cfg.HTTP.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("cache-size") {
		cfg.Cache.Size, _ = flags.GetInt("cache-size")
	}
	if flags.Changed("concurrency") {
		cfg.Resolver.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("max-points") {
		cfg.MaxPoints, _ = flags.GetInt("max-points")
	}
	if flags.Changed("spatial-index") {
		cfg.SpatialIndex, _ = flags.GetBool("spatial-index")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openDataDir returns the file system containing the tiles and whether it is
// a local directory.
func openDataDir(ctx context.Context, cfg *config.Config) (fs.FS, bool, error) {
	if s3fs.IsURL(cfg.DataDir) {
		bucket, prefix, err := s3fs.ParseURL(cfg.DataDir)
		if err != nil {
			return nil, false, err
		}
		client, err := s3fs.NewClient(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.UseSSL)
		if err != nil {
			return nil, false, err
		}
		return s3fs.New(client, bucket, prefix, s3fs.WithContext(ctx)), false, nil
	}

	switch fileInfo, err := os.Stat(cfg.DataDir); {
	case errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("data directory %s does not exist", cfg.DataDir)
	case err != nil:
		return nil, false, err
	case !fileInfo.IsDir():
		return nil, false, fmt.Errorf("%s: not a directory", cfg.DataDir)
	}
	return os.DirFS(cfg.DataDir), true, nil
}

// newResolver loads the manifest from fsys and returns a resolver over it.
func newResolver(cfg *config.Config, fsys fs.FS, log *zap.Logger) (*elevation.Resolver, *elevation.TileIndex, error) {
	var indexOptions []elevation.TileIndexOption
	if cfg.SpatialIndex {
		indexOptions = append(indexOptions, elevation.WithSpatialIndex())
	}
	index, err := elevation.LoadManifest(fsys, cfg.ManifestName, indexOptions...)
	if err != nil {
		return nil, nil, err
	}

	store, err := elevation.NewTileStore(
		elevation.NewFSDecoder(fsys),
		elevation.WithCacheSize(cfg.Cache.Size),
		elevation.WithDecodeTimeout(cfg.Cache.DecodeTimeout),
		elevation.WithStoreLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}

	resolver := elevation.NewResolver(index, store,
		elevation.WithConcurrency(cfg.Resolver.Concurrency),
		elevation.WithResolverLogger(log),
	)
	return resolver, index, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
