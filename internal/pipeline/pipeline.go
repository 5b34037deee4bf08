// Package pipeline drives a full canonicalization run: ingest rows in
// batches, classify resolved locations, and summarize the result.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/aggregate"
	"github.com/sells-group/geoprofiles/internal/alias"
	"github.com/sells-group/geoprofiles/internal/resilience"
	"github.com/sells-group/geoprofiles/internal/resolve"
	"github.com/sells-group/geoprofiles/internal/roster"
	"github.com/sells-group/geoprofiles/pkg/geocode"
)

const defaultBatchSize = 100

// Classifier flags resolved location strings that are not real places.
type Classifier interface {
	Classify(ctx context.Context, locations []string) (map[string]bool, error)
}

// Driver owns the per-run resolution state and composes the run.
type Driver struct {
	aliases    *alias.Table
	geocoder   geocode.Client
	classifier Classifier
	skipReason string
	breaker    *resilience.CircuitBreakerConfig
	batchSize  int
}

// Option configures a Driver.
type Option func(*Driver)

// WithBatchSize sets how many rows are ingested between progress reports.
func WithBatchSize(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithClassifier enables the confidence pass. Without one every mapping is
// labeled High.
func WithClassifier(c Classifier) Option {
	return func(d *Driver) { d.classifier = c }
}

// WithGeocodeBreaker guards geocoder calls with a circuit breaker built
// fresh for each run.
func WithGeocodeBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(d *Driver) { d.breaker = &cfg }
}

// WithClassifierUnavailable records why the confidence pass cannot run.
// The run proceeds with every mapping labeled High and the reason is
// reported as the classification error.
func WithClassifierUnavailable(reason string) Option {
	return func(d *Driver) { d.skipReason = reason }
}

// NewDriver creates a Driver.
func NewDriver(aliases *alias.Table, geocoder geocode.Client, opts ...Option) *Driver {
	d := &Driver{
		aliases:   aliases,
		geocoder:  geocoder,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result is the outcome of one run.
type Result struct {
	Aggregator *aggregate.Aggregator
	Flagged    map[string]bool
	Summary    Summary
}

// Run processes rows in order. Geocoding and classification failures
// degrade the result; only a cancelled context fails it. An empty rows
// slice yields empty documents.
func (d *Driver) Run(ctx context.Context, rows []roster.Row) (*Result, error) {
	summary := Summary{
		RunID:        uuid.NewString(),
		AliasVersion: d.aliases.Version(),
		StartedAt:    time.Now().UTC(),
	}
	log := zap.L().With(zap.String("run_id", summary.RunID))
	log.Info("pipeline: starting run",
		zap.Int("rows", len(rows)),
		zap.Int("batch_size", d.batchSize),
		zap.String("alias_version", summary.AliasVersion),
	)

	var cacheOpts []resolve.CacheOption
	if d.breaker != nil {
		cacheOpts = append(cacheOpts, resolve.WithBreaker(resilience.NewCircuitBreaker(*d.breaker)))
	}
	cache := resolve.NewCache(d.geocoder, cacheOpts...)
	registry := resolve.NewRegistry(cache)
	agg := aggregate.New(d.aliases, registry)

	err := summary.track(log, "ingest", func() error {
		return d.ingest(ctx, log, agg, rows)
	})
	if err != nil {
		return nil, err
	}

	var flagged map[string]bool
	_ = summary.track(log, "confidence", func() error {
		if d.skipReason != "" {
			summary.ClassificationError = d.skipReason
			return eris.New("pipeline: " + d.skipReason)
		}
		if d.classifier == nil {
			return nil
		}
		var cerr error
		flagged, cerr = d.classifier.Classify(ctx, registry.Resolved())
		if cerr != nil {
			flagged = nil
			summary.ClassificationError = cerr.Error()
		}
		return cerr
	})
	agg.Finalize(flagged)

	summary.fill(agg.Stats(), cache, len(flagged))
	summary.Elapsed = time.Since(summary.StartedAt)
	summary.ElapsedSecs = summary.Elapsed.Seconds()

	log.Info("pipeline: run complete",
		zap.Int("researchers", summary.Researchers),
		zap.Int("titles", summary.Titles),
		zap.Int("locations", summary.Locations),
		zap.Int("rows_unresolved", summary.RowsUnresolved),
		zap.Int("low_confidence", summary.LowConfidenceFlags),
		zap.Duration("elapsed", summary.Elapsed),
	)

	return &Result{Aggregator: agg, Flagged: flagged, Summary: summary}, nil
}

func (d *Driver) ingest(ctx context.Context, log *zap.Logger, agg *aggregate.Aggregator, rows []roster.Row) error {
	batches := (len(rows) + d.batchSize - 1) / d.batchSize
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: run cancelled")
		}

		start := time.Now()
		lo, hi := b*d.batchSize, min((b+1)*d.batchSize, len(rows))
		before := agg.Stats().RowsUnresolved
		for _, row := range rows[lo:hi] {
			agg.Ingest(ctx, row)
		}
		found := (hi - lo) - (agg.Stats().RowsUnresolved - before)

		log.Info("pipeline: batch complete",
			zap.Int("batch", b+1),
			zap.Int("of", batches),
			zap.Int("rows", hi-lo),
			zap.Int("locations_found", found),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
	return nil
}
