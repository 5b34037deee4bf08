// Package geocodetest provides an in-memory geocode.Client for tests.
package geocodetest

import (
	"context"
	"sync"

	"github.com/sells-group/geoprofiles/pkg/geocode"
)

// Fake answers queries from fixed tables and counts calls per query.
type Fake struct {
	mu     sync.Mutex
	places map[string]*geocode.Place
	errs   map[string]error
	calls  map[string]int
}

// NewFake returns an empty Fake; every query is a miss until added.
func NewFake() *Fake {
	return &Fake{
		places: make(map[string]*geocode.Place),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// Add makes every query in queries resolve to p.
func (f *Fake) Add(p *geocode.Place, queries ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range queries {
		f.places[q] = p
	}
	return f
}

// Fail makes query return err.
func (f *Fake) Fail(query string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[query] = err
	return f
}

// Search implements geocode.Client.
func (f *Fake) Search(_ context.Context, query string) (*geocode.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[query]++
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.places[query], nil
}

// Calls returns how many times query was searched.
func (f *Fake) Calls(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[query]
}

// Total returns the number of searches across all queries.
func (f *Fake) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Place builds a relation Place.
func Place(id int64, lat, lon float64) *geocode.Place {
	return &geocode.Place{OSMType: "relation", OSMID: id, Latitude: lat, Longitude: lon, PlaceRank: 8}
}

var _ geocode.Client = (*Fake)(nil)
