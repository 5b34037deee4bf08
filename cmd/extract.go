package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/extract"
	"github.com/sells-group/geoprofiles/internal/roster"
	"github.com/sells-group/geoprofiles/pkg/anthropic"
)

var (
	extractRoster string
	extractOut    string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a location from every roster title with Claude and write JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if extractRoster != "" {
			cfg.Input.Roster = extractRoster
		}
		if extractOut != "" {
			cfg.Input.Locations = extractOut
		}
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		entries, err := roster.ReadEntries(ctx, cfg.Input.Roster)
		if err != nil {
			return eris.Wrap(err, "load roster")
		}
		titles := make([]string, len(entries))
		for i, e := range entries {
			titles[i] = e.Title
		}

		ex := extract.New(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.HaikuModel,
			extract.WithSmallBatchThreshold(cfg.Anthropic.SmallBatchThreshold),
			extract.WithMaxBatchSize(cfg.Anthropic.MaxBatchSize),
			extract.WithNoBatch(cfg.Anthropic.NoBatch),
		)
		records, err := ex.Extract(ctx, titles)
		if err != nil {
			return eris.Wrap(err, "extract locations")
		}

		if err := writeLocationsFile(cfg.Input.Locations, records); err != nil {
			return err
		}
		zap.L().Info("extract complete",
			zap.String("file", cfg.Input.Locations),
			zap.Int("rows", len(records)),
		)
		return nil
	},
}

func writeLocationsFile(path string, records []roster.LocationRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "create locations dir")
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create locations file")
	}
	if err := roster.WriteLocations(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "close locations file")
}

func init() {
	extractCmd.Flags().StringVar(&extractRoster, "roster", "", "roster CSV/XLSX (overrides input.roster)")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "JSONL destination (overrides input.locations)")
	rootCmd.AddCommand(extractCmd)
}
