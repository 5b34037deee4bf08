package output

import (
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/geoprofiles/internal/aggregate"
	"github.com/sells-group/geoprofiles/internal/roster"
)

// FeatureResearcher is one entry of a feature's researchers property.
type FeatureResearcher struct {
	Name    string   `json:"name"`
	URL     string   `json:"url,omitempty"`
	Matches int      `json:"matches"`
	Works   []string `json:"works"`
}

// BuildGeoJSON renders one Point feature per location that has a
// coordinate, sorted by location name. Researchers found in urls carry
// their profile URL.
func BuildGeoJSON(locations map[string]map[string]aggregate.MappingDoc, coords map[string]aggregate.CoordinateDoc, urls roster.URLIndex) *geojson.FeatureCollection {
	names := make([]string, 0, len(locations))
	for name := range locations {
		names = append(names, name)
	}
	sort.Strings(names)

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(names))}
	for _, name := range names {
		c, ok := coords[name]
		if !ok {
			continue
		}
		// GeoJSON positions are [lon, lat].
		pt := geom.NewPointFlat(geom.XY, []float64{c[1], c[0]}).SetSRID(4326)

		byResearcher := locations[name]
		researchers := make([]FeatureResearcher, 0, len(byResearcher))
		confident := string(aggregate.High)
		for r, m := range byResearcher {
			researchers = append(researchers, FeatureResearcher{
				Name:    r,
				URL:     urls.Lookup(r),
				Matches: m.Matches,
				Works:   m.Works,
			})
			if m.Confident == string(aggregate.Low) {
				confident = string(aggregate.Low)
			}
		}
		sort.Slice(researchers, func(i, j int) bool { return researchers[i].Name < researchers[j].Name })

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       name,
			Geometry: pt,
			Properties: map[string]any{
				"name":        name,
				"confident":   confident,
				"researchers": researchers,
			},
		})
	}
	return fc
}
