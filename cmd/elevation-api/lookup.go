package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/twpayne/go-elevation-api"
	"github.com/twpayne/go-elevation-api/internal/logger"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup POINTS",
	Short: "Print the elevations of points",
	Long: `Print the elevations of points as JSON.

Examples:
  elevation-api lookup --data-dir /srv/srtm '(48.35,5.3),(48.43,5.23)'`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	points, err := elevation.ParsePoints(args[0])
	if err != nil {
		return err
	}

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

	fsys, _, err := openDataDir(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	resolver, _, err := newResolver(cfg, fsys, log)
	if err != nil {
		return err
	}

	elevations, err := resolver.Resolve(cmd.Context(), points)
	if err != nil {
		log.Warn("failed to resolve some points", zap.Error(err))
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"elevations": elevations,
	})
}
