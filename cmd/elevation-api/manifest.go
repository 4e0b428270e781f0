package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-elevation-api"
)

const defaultPattern = "*.nc"

var manifestCmd = &cobra.Command{
	Use:   "manifest DATA-DIR",
	Short: "Build the manifest of a directory of tiles",
	Long: `Build the manifest of a directory of tiles.

Every tile matching the pattern is decoded and its latitude and longitude
extrema are written to the manifest.

Examples:
  elevation-api manifest /srv/srtm
  elevation-api manifest /srv/srtm --pattern '*.tif' --output -`,
	Args: cobra.ExactArgs(1),
	RunE: runManifest,
}

func init() {
	rootCmd.AddCommand(manifestCmd)

	manifestCmd.Flags().String("pattern", defaultPattern, "glob pattern of tile files")
	manifestCmd.Flags().StringP("output", "o", "", "output file, - for stdout (default DATA-DIR/summary.json)")
}

func runManifest(cmd *cobra.Command, args []string) error {
	dataDir := args[0]
	pattern, _ := cmd.Flags().GetString("pattern")
	output, _ := cmd.Flags().GetString("output")

	fsys := os.DirFS(dataDir)
	tiles, err := elevation.BuildManifest(cmd.Context(), fsys, elevation.NewFSDecoder(fsys), pattern)
	if err != nil {
		return err
	}
	if len(tiles) == 0 {
		return fmt.Errorf("%s: no tiles match %s", dataDir, pattern)
	}

	switch output {
	case "-":
		return elevation.WriteManifest(cmd.OutOrStdout(), tiles)
	case "":
		output = filepath.Join(dataDir, elevation.DefaultManifestName)
	}
	if err := writeManifestFile(output, tiles); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d tiles to %s\n", len(tiles), output)
	return nil
}
