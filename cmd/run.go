package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/output"
	"github.com/sells-group/geoprofiles/internal/pipeline"
	"github.com/sells-group/geoprofiles/internal/roster"
	"github.com/sells-group/geoprofiles/pkg/anthropic"
)

var (
	runRoster       string
	runLocations    string
	runOutputDir    string
	runURLs         string
	runNoConfidence bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Geocode extracted locations and write researcher/location profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runRoster != "" {
			cfg.Input.Roster = runRoster
		}
		if runLocations != "" {
			cfg.Input.Locations = runLocations
		}
		if runOutputDir != "" {
			cfg.Output.Dir = runOutputDir
		}
		if runURLs != "" {
			cfg.Input.URLs = runURLs
		}
		if runNoConfidence {
			cfg.Confidence.Enabled = false
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		rows, err := roster.Load(ctx, cfg.Input.Roster, cfg.Input.Locations)
		if err != nil {
			return eris.Wrap(err, "load input")
		}

		aliases, err := loadAliases(cfg)
		if err != nil {
			return err
		}

		var writerOpts []output.WriterOption
		if cfg.Input.URLs != "" {
			urls, err := roster.ReadURLs(ctx, cfg.Input.URLs)
			if err != nil {
				return eris.Wrap(err, "load expert urls")
			}
			writerOpts = append(writerOpts, output.WithURLs(urls))
		}

		opts := []pipeline.Option{pipeline.WithBatchSize(cfg.Pipeline.BatchSize)}
		if cfg.Geocode.CircuitFailureThreshold > 0 {
			opts = append(opts, pipeline.WithGeocodeBreaker(newGeocodeBreakerConfig(cfg.Geocode)))
		}
		if cfg.Confidence.Enabled {
			if cfg.Anthropic.Key == "" {
				zap.L().Warn("anthropic.key is not set, skipping confidence pass")
				opts = append(opts, pipeline.WithClassifierUnavailable("confidence pass skipped: anthropic.key is not set"))
			} else {
				opts = append(opts, pipeline.WithClassifier(newClassifier(cfg, anthropic.NewClient(cfg.Anthropic.Key))))
			}
		}
		driver := pipeline.NewDriver(aliases, newGeocoder(cfg.Geocode), opts...)

		res, err := driver.Run(ctx, rows)
		if err != nil {
			return eris.Wrap(err, "run pipeline")
		}

		paths, err := output.NewWriter(cfg.Output.Dir, writerOpts...).WriteAll(res)
		if err != nil {
			return eris.Wrap(err, "write output")
		}

		zap.L().Info("run complete",
			zap.String("run_id", res.Summary.RunID),
			zap.Strings("files", paths),
			zap.Int("researchers", res.Summary.Researchers),
			zap.Int("locations", res.Summary.Locations),
			zap.Int("rows_unresolved", res.Summary.RowsUnresolved),
			zap.Int("low_confidence", res.Summary.LowConfidenceFlags),
			zap.String("classification_error", res.Summary.ClassificationError),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runRoster, "roster", "", "roster CSV/XLSX (overrides input.roster)")
	runCmd.Flags().StringVar(&runLocations, "locations", "", "extracted locations JSONL (overrides input.locations)")
	runCmd.Flags().StringVar(&runOutputDir, "out", "", "output directory (overrides output.dir)")
	runCmd.Flags().StringVar(&runURLs, "urls", "", "expert URL list CSV/XLSX (overrides input.urls)")
	runCmd.Flags().BoolVar(&runNoConfidence, "no-confidence", false, "skip the LLM confidence pass")
	rootCmd.AddCommand(runCmd)
}
