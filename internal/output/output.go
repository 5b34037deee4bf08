// Package output writes and reads the documents produced by a run.
package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/aggregate"
	"github.com/sells-group/geoprofiles/internal/pipeline"
	"github.com/sells-group/geoprofiles/internal/roster"
)

// Output file names inside the output directory.
const (
	ResearchersFile = "expert_profiles.json"
	LocationsFile   = "location_based_profiles.json"
	CoordinatesFile = "location_coordinates.json"
	UngeocodedFile  = "non_geo_profiles.json"
	SummaryFile     = "run_summary.json"
	GeoJSONFile     = "research_profiles.geojson"
)

// Writer writes run documents into a directory.
type Writer struct {
	dir  string
	urls roster.URLIndex
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithURLs attaches researcher profile URLs to the GeoJSON features.
func WithURLs(urls roster.URLIndex) WriterOption {
	return func(w *Writer) { w.urls = urls }
}

// NewWriter creates a Writer for dir. The directory is created on write.
func NewWriter(dir string, opts ...WriterOption) *Writer {
	w := &Writer{dir: dir}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteAll writes every document for res and returns the paths written.
func (w *Writer) WriteAll(res *pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "output: create dir %s", w.dir)
	}

	agg := res.Aggregator
	fc := BuildGeoJSON(agg.LocationIndex(), agg.CoordinateIndex(), w.urls)

	docs := []struct {
		name string
		v    any
	}{
		{ResearchersFile, aggregate.ResearcherIndex(agg.Researchers())},
		{LocationsFile, agg.LocationIndex()},
		{CoordinatesFile, agg.CoordinateIndex()},
		{UngeocodedFile, aggregate.ResearcherIndex(agg.Ungeocoded())},
		{GeoJSONFile, fc},
		{SummaryFile, res.Summary},
	}

	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		path, err := w.writeJSON(d.name, d.v)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	zap.L().Info("output: documents written",
		zap.String("dir", w.dir),
		zap.Int("files", len(paths)),
	)
	return paths, nil
}

// writeJSON writes v to a temp file and renames it into place so readers
// never see a partial document.
func (w *Writer) writeJSON(name string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", eris.Wrapf(err, "output: encode %s", name)
	}

	path := filepath.Join(w.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", eris.Wrapf(err, "output: write %s", name)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", eris.Wrapf(err, "output: rename %s", name)
	}
	return path, nil
}
