package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoprofiles/internal/aggregate"
	"github.com/sells-group/geoprofiles/internal/alias"
	"github.com/sells-group/geoprofiles/internal/resilience"
	"github.com/sells-group/geoprofiles/internal/roster"
	"github.com/sells-group/geoprofiles/pkg/geocode/geocodetest"
)

type stubClassifier struct {
	flagged map[string]bool
	err     error
	inputs  []string
}

func (s *stubClassifier) Classify(_ context.Context, locations []string) (map[string]bool, error) {
	s.inputs = locations
	if s.err != nil {
		return nil, s.err
	}
	return s.flagged, nil
}

func scenarioRows() []roster.Row {
	return []roster.Row{
		{Researcher: "Alice", Title: "Climate in CA", RawLocation: "CA"},
		{Researcher: "Bob", Title: "Crops in California, U.S.A.", RawLocation: "California, U.S.A."},
		{Researcher: "Carol", Title: "Deep sea", RawLocation: alias.NoLocation},
	}
}

func TestRun_Scenario(t *testing.T) {
	g := geocodetest.NewFake().Add(geocodetest.Place(165475, 36.7, -118.7), "California")
	cls := &stubClassifier{flagged: map[string]bool{}}
	d := NewDriver(alias.Default(), g, WithClassifier(cls), WithBatchSize(2))

	res, err := d.Run(context.Background(), scenarioRows())
	require.NoError(t, err)

	assert.Equal(t, []string{"California"}, cls.inputs)
	locs := res.Aggregator.Locations()
	require.Len(t, locs, 1)
	assert.Len(t, locs["California"], 2)

	s := res.Summary
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, alias.BuiltinVersion, s.AliasVersion)
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, 3, s.Researchers)
	assert.Equal(t, 3, s.Titles)
	assert.Equal(t, 1, s.Locations)
	assert.Equal(t, 1, s.RowsUnresolved)
	assert.Equal(t, 1, s.GeocodeCalls)
	assert.Equal(t, 1, s.GeocodeHits)
	assert.Zero(t, s.GeocodeFailures)
	assert.Empty(t, s.FailedLocations)
	assert.Empty(t, s.ClassificationError)
	require.Len(t, s.Phases, 2)
	assert.Equal(t, PhaseStatusComplete, s.Phases[1].Status)
}

func TestRun_ClassificationFailureDegrades(t *testing.T) {
	g := geocodetest.NewFake().Add(geocodetest.Place(165475, 36.7, -118.7), "California")
	cls := &stubClassifier{err: errors.New("anthropic: 401")}
	d := NewDriver(alias.Default(), g, WithClassifier(cls))

	res, err := d.Run(context.Background(), scenarioRows())
	require.NoError(t, err)

	assert.Equal(t, "anthropic: 401", res.Summary.ClassificationError)
	assert.Equal(t, PhaseStatusFailed, res.Summary.Phases[1].Status)
	assert.Nil(t, res.Flagged)
	for _, m := range res.Aggregator.Locations()["California"] {
		assert.Equal(t, aggregate.High, m.Confidence)
	}
}

func TestRun_LowConfidence(t *testing.T) {
	g := geocodetest.NewFake().Add(geocodetest.Place(165475, 36.7, -118.7), "California")
	cls := &stubClassifier{flagged: map[string]bool{"California": true}}
	d := NewDriver(alias.Default(), g, WithClassifier(cls))

	res, err := d.Run(context.Background(), scenarioRows())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.LowConfidenceFlags)
	assert.Equal(t, 2, res.Summary.LowConfidenceMappings)
}

func TestRun_NoClassifier(t *testing.T) {
	g := geocodetest.NewFake()
	d := NewDriver(alias.Default(), g)

	res, err := d.Run(context.Background(), []roster.Row{{Researcher: "A", Title: "T", RawLocation: "Nowhere"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.GeocodeFailures)
	assert.Equal(t, []string{"Nowhere"}, res.Summary.FailedLocations)
	assert.Len(t, res.Aggregator.Ungeocoded(), 1)
}

func TestRun_CacheBound(t *testing.T) {
	g := geocodetest.NewFake().
		Add(geocodetest.Place(1, 1, 1), "Paris").
		Add(geocodetest.Place(2, 2, 2), "Oslo")
	var rows []roster.Row
	for i := range 250 {
		loc := []string{"Paris", "Oslo", "Atlantis"}[i%3]
		rows = append(rows, roster.Row{Researcher: fmt.Sprintf("R%d", i%7), Title: fmt.Sprintf("T%d", i), RawLocation: loc})
	}

	res, err := NewDriver(alias.Default(), g, WithBatchSize(100)).Run(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Total())
	assert.Equal(t, 3, res.Summary.GeocodeCalls)

	for _, p := range res.Aggregator.Researchers() {
		assert.Equal(t, len(p.Titles), len(p.Locations))
	}
}

func TestRun_EmptyInput(t *testing.T) {
	g := geocodetest.NewFake()
	cls := &stubClassifier{}
	res, err := NewDriver(alias.Default(), g, WithClassifier(cls)).Run(context.Background(), []roster.Row{})
	require.NoError(t, err)

	assert.Empty(t, res.Aggregator.Researchers())
	assert.Empty(t, res.Aggregator.Locations())
	assert.Zero(t, res.Summary.Rows)
	assert.NotEmpty(t, res.Summary.RunID)
	assert.Empty(t, res.Summary.ClassificationError)
	assert.Zero(t, g.Total())
}

func TestRun_ClassifierUnavailable(t *testing.T) {
	g := geocodetest.NewFake().Add(geocodetest.Place(165475, 36.7, -118.7), "California")
	d := NewDriver(alias.Default(), g, WithClassifierUnavailable("anthropic.key is not set"))

	res, err := d.Run(context.Background(), scenarioRows())
	require.NoError(t, err)
	assert.Nil(t, res.Flagged)
	assert.Equal(t, "anthropic.key is not set", res.Summary.ClassificationError)
	for _, m := range res.Aggregator.Locations()["California"] {
		assert.Equal(t, aggregate.High, m.Confidence)
	}
}

func TestRun_GeocodeBreakerStopsCalls(t *testing.T) {
	outage := errors.New("connection refused")
	g := geocodetest.NewFake()
	var rows []roster.Row
	for i := 0; i < 10; i++ {
		loc := fmt.Sprintf("Place %d", i)
		g.Fail(loc, outage)
		rows = append(rows, roster.Row{Researcher: "Alice", Title: loc, RawLocation: loc})
	}
	d := NewDriver(alias.Default(), g, WithGeocodeBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Hour,
	}))

	res, err := d.Run(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Total())
	assert.Equal(t, 3, res.Summary.GeocodeCalls)
	assert.Equal(t, 7, res.Summary.GeocodeRejected)
	assert.Equal(t, 10, res.Summary.GeocodeFailures)
	assert.Equal(t, 10, res.Summary.RowsUnresolved)
	assert.Len(t, res.Summary.FailedLocations, 10)
}

func TestRun_Cancelled(t *testing.T) {
	d := NewDriver(alias.Default(), geocodetest.NewFake())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Run(ctx, scenarioRows())
	assert.ErrorContains(t, err, "cancelled")
}
