package output

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geoprofiles/internal/aggregate"
	"github.com/sells-group/geoprofiles/internal/pipeline"
)

// Documents is a previous run's output loaded back into memory.
type Documents struct {
	Researchers map[string]aggregate.ResearcherDoc
	Locations   map[string]map[string]aggregate.MappingDoc
	Coordinates map[string]aggregate.CoordinateDoc
	Ungeocoded  map[string]aggregate.ResearcherDoc
	Summary     *pipeline.Summary
	GeoJSON     []byte
}

// Load reads the documents in dir. The researcher, location and GeoJSON
// documents are required; the rest are optional.
func Load(dir string) (*Documents, error) {
	docs := &Documents{}
	if err := readJSON(dir, ResearchersFile, &docs.Researchers, true); err != nil {
		return nil, err
	}
	if err := readJSON(dir, LocationsFile, &docs.Locations, true); err != nil {
		return nil, err
	}
	if err := readJSON(dir, CoordinatesFile, &docs.Coordinates, false); err != nil {
		return nil, err
	}
	if err := readJSON(dir, UngeocodedFile, &docs.Ungeocoded, false); err != nil {
		return nil, err
	}
	var summary pipeline.Summary
	if err := readJSON(dir, SummaryFile, &summary, false); err != nil {
		return nil, err
	}
	if summary.RunID != "" {
		docs.Summary = &summary
	}

	raw, err := os.ReadFile(filepath.Join(dir, GeoJSONFile))
	if err != nil {
		return nil, eris.Wrapf(err, "output: read %s", GeoJSONFile)
	}
	docs.GeoJSON = raw
	return docs, nil
}

func readJSON(dir, name string, v any, required bool) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if os.IsNotExist(err) && !required {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "output: read %s", name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "output: decode %s", name)
	}
	return nil
}
