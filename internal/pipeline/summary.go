package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/aggregate"
	"github.com/sells-group/geoprofiles/internal/resolve"
)

// PhaseStatus is the outcome of a run phase.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult records one phase of a run.
type PhaseResult struct {
	Name       string      `json:"name"`
	Status     PhaseStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// Summary is the run report written next to the output documents.
type Summary struct {
	RunID        string `json:"run_id"`
	AliasVersion string `json:"alias_version"`

	Rows           int `json:"rows"`
	Researchers    int `json:"distinct_researchers"`
	Titles         int `json:"distinct_titles"`
	Locations      int `json:"distinct_locations"`
	RowsUnresolved int `json:"rows_unresolved"`

	GeocodeLookups  int      `json:"geocode_lookups"`
	GeocodeCalls    int      `json:"geocode_external_calls"`
	GeocodeHits     int      `json:"geocode_cache_hits"`
	GeocodeFailures int      `json:"geocode_failures"`
	GeocodeRejected int      `json:"geocode_circuit_rejected"`
	FailedLocations []string `json:"failed_locations"`

	LowConfidenceFlags    int    `json:"low_confidence_flags"`
	LowConfidenceMappings int    `json:"low_confidence_mappings"`
	ClassificationError   string `json:"classification_error,omitempty"`

	Phases      []PhaseResult `json:"phases"`
	StartedAt   time.Time     `json:"started_at"`
	Elapsed     time.Duration `json:"-"`
	ElapsedSecs float64       `json:"elapsed_secs"`
}

func (s *Summary) track(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p := PhaseResult{
		Name:       name,
		Status:     PhaseStatusComplete,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		p.Status = PhaseStatusFailed
		p.Error = err.Error()
		log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", p.DurationMs),
			zap.Error(err),
		)
	} else {
		log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", p.DurationMs),
		)
	}
	s.Phases = append(s.Phases, p)
	return err
}

func (s *Summary) fill(stats aggregate.Stats, cache *resolve.Cache, flagged int) {
	cs := cache.Stats()
	failed := cache.Failed()
	if failed == nil {
		failed = []string{}
	}

	s.Rows = stats.Rows
	s.Researchers = stats.Researchers
	s.Titles = stats.Titles
	s.Locations = stats.Locations
	s.RowsUnresolved = stats.RowsUnresolved
	s.GeocodeLookups = cs.Lookups
	s.GeocodeCalls = cs.ExternalCalls
	s.GeocodeHits = cs.Hits
	s.GeocodeFailures = cs.NotFound + cs.Errors + cs.Rejected
	s.GeocodeRejected = cs.Rejected
	s.FailedLocations = failed
	s.LowConfidenceFlags = flagged
	s.LowConfidenceMappings = stats.LowConfidenceMaps
}
