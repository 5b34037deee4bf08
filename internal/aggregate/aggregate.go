// Package aggregate builds the researcher and location indices from
// canonicalized rows.
package aggregate

import (
	"context"
	"sort"

	"github.com/sells-group/geoprofiles/internal/alias"
	"github.com/sells-group/geoprofiles/internal/resolve"
	"github.com/sells-group/geoprofiles/internal/roster"
)

// Unresolved marks a researcher location slot whose row could not be
// geocoded.
const Unresolved = "None"

// Confidence labels a location mapping.
type Confidence string

const (
	High Confidence = "High"
	Low  Confidence = "Low"
)

// ResearcherProfile holds one entry per ingested row for a researcher.
// Titles and Locations are index-aligned.
type ResearcherProfile struct {
	Name      string
	Titles    []string
	Locations []string
}

// Unresolved reports whether any of the researcher's rows failed to geocode.
func (p ResearcherProfile) Unresolved() bool {
	for _, l := range p.Locations {
		if l == Unresolved {
			return true
		}
	}
	return false
}

// LocationMapping links one researcher to one canonical location.
type LocationMapping struct {
	Researcher string
	Location   string
	Works      []string
	Matches    int
	Confidence Confidence

	// geocoded strings of the rows behind this mapping, in first-seen order
	sources []string
}

// Sources returns the geocoded strings of the rows behind m.
func (m LocationMapping) Sources() []string {
	return append([]string(nil), m.sources...)
}

func (m *LocationMapping) addSource(raw string) {
	for _, s := range m.sources {
		if s == raw {
			return
		}
	}
	m.sources = append(m.sources, raw)
}

// Aggregator ingests rows in order and maintains both indices. It owns no
// resolution state itself; the alias table and registry are shared handles.
type Aggregator struct {
	aliases  *alias.Table
	registry *resolve.Registry

	researchers map[string]*ResearcherProfile
	locations   map[string]map[string]*LocationMapping
	titles      map[string]bool

	rows       int
	unresolved int
	lowCount   int
}

// New creates an empty Aggregator.
func New(aliases *alias.Table, registry *resolve.Registry) *Aggregator {
	return &Aggregator{
		aliases:     aliases,
		registry:    registry,
		researchers: make(map[string]*ResearcherProfile),
		locations:   make(map[string]map[string]*LocationMapping),
		titles:      make(map[string]bool),
	}
}

// Ingest adds one row. Rows must be ingested in input order for
// first-seen canonical names to be stable.
func (a *Aggregator) Ingest(ctx context.Context, row roster.Row) {
	a.rows++
	a.titles[row.Title] = true

	p, ok := a.researchers[row.Researcher]
	if !ok {
		p = &ResearcherProfile{Name: row.Researcher}
		a.researchers[row.Researcher] = p
	}
	p.Titles = append(p.Titles, row.Title)

	raw := a.aliases.Resolve(row.RawLocation)
	name, found := a.registry.Canonicalize(ctx, raw)
	if !found {
		a.unresolved++
		p.Locations = append(p.Locations, Unresolved)
		return
	}
	p.Locations = append(p.Locations, name)

	byResearcher, ok := a.locations[name]
	if !ok {
		byResearcher = make(map[string]*LocationMapping)
		a.locations[name] = byResearcher
	}
	m, ok := byResearcher[row.Researcher]
	if !ok {
		m = &LocationMapping{Researcher: row.Researcher, Location: name, Confidence: High}
		byResearcher[row.Researcher] = m
	}
	m.Works = append(m.Works, row.Title)
	m.Matches++
	m.addSource(raw)
}

// Finalize labels every mapping. A mapping is Low when any geocoded string
// behind its own rows is in flagged. A nil set labels everything High.
// Calling Finalize again relabels from scratch.
func (a *Aggregator) Finalize(flagged map[string]bool) {
	a.lowCount = 0
	for _, byResearcher := range a.locations {
		for _, m := range byResearcher {
			m.Confidence = High
			for _, raw := range m.sources {
				if flagged[raw] {
					m.Confidence = Low
					a.lowCount++
					break
				}
			}
		}
	}
}

// Researchers returns copies of all profiles sorted by name.
func (a *Aggregator) Researchers() []ResearcherProfile {
	out := make([]ResearcherProfile, 0, len(a.researchers))
	for _, p := range a.researchers {
		out = append(out, copyProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Ungeocoded returns the profiles that contain at least one unresolved row.
func (a *Aggregator) Ungeocoded() []ResearcherProfile {
	var out []ResearcherProfile
	for _, p := range a.Researchers() {
		if p.Unresolved() {
			out = append(out, p)
		}
	}
	return out
}

// Locations returns a copy of the location index.
func (a *Aggregator) Locations() map[string]map[string]LocationMapping {
	out := make(map[string]map[string]LocationMapping, len(a.locations))
	for name, byResearcher := range a.locations {
		inner := make(map[string]LocationMapping, len(byResearcher))
		for r, m := range byResearcher {
			cp := *m
			cp.Works = append([]string(nil), m.Works...)
			cp.sources = m.Sources()
			inner[r] = cp
		}
		out[name] = inner
	}
	return out
}

// Coordinates returns the canonical name -> [lat, lon] table.
func (a *Aggregator) Coordinates() map[string]resolve.Coordinate {
	return a.registry.Coordinates()
}

// Stats summarizes what has been ingested.
type Stats struct {
	Rows              int
	Researchers       int
	Titles            int
	Locations         int
	RowsUnresolved    int
	LowConfidenceMaps int
}

// Stats returns counts over everything ingested so far.
func (a *Aggregator) Stats() Stats {
	return Stats{
		Rows:              a.rows,
		Researchers:       len(a.researchers),
		Titles:            len(a.titles),
		Locations:         len(a.locations),
		RowsUnresolved:    a.unresolved,
		LowConfidenceMaps: a.lowCount,
	}
}

func copyProfile(p *ResearcherProfile) ResearcherProfile {
	return ResearcherProfile{
		Name:      p.Name,
		Titles:    append([]string(nil), p.Titles...),
		Locations: append([]string(nil), p.Locations...),
	}
}
