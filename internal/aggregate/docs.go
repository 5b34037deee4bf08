package aggregate

// ResearcherDoc is the serialized form of a ResearcherProfile.
type ResearcherDoc struct {
	Titles    []string `json:"titles"`
	Locations []string `json:"locations"`
}

// MappingDoc is the serialized form of a LocationMapping.
type MappingDoc struct {
	Matches   int      `json:"matches"`
	Confident string   `json:"confident"`
	Works     []string `json:"works"`
}

// CoordinateDoc is a serialized [lat, lon] pair.
type CoordinateDoc [2]float64

// ResearcherIndex converts profiles into the name-keyed document.
func ResearcherIndex(profiles []ResearcherProfile) map[string]ResearcherDoc {
	out := make(map[string]ResearcherDoc, len(profiles))
	for _, p := range profiles {
		out[p.Name] = ResearcherDoc{
			Titles:    nonNil(p.Titles),
			Locations: nonNil(p.Locations),
		}
	}
	return out
}

// LocationIndex returns the location-keyed document.
func (a *Aggregator) LocationIndex() map[string]map[string]MappingDoc {
	out := make(map[string]map[string]MappingDoc, len(a.locations))
	for name, byResearcher := range a.locations {
		inner := make(map[string]MappingDoc, len(byResearcher))
		for r, m := range byResearcher {
			inner[r] = MappingDoc{
				Matches:   m.Matches,
				Confident: string(m.Confidence),
				Works:     nonNil(m.Works),
			}
		}
		out[name] = inner
	}
	return out
}

// CoordinateIndex returns the coordinate table document.
func (a *Aggregator) CoordinateIndex() map[string]CoordinateDoc {
	coords := a.registry.Coordinates()
	out := make(map[string]CoordinateDoc, len(coords))
	for name, c := range coords {
		out[name] = CoordinateDoc(c)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
