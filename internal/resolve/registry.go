package resolve

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/geoprofiles/internal/normalize"
)

// Coordinate is a [lat, lon] pair.
type Coordinate [2]float64

// Registry assigns each geocoder identity a single canonical display name.
// The first raw string to resolve to an identity names it for the whole run.
type Registry struct {
	cache *Cache

	mu          sync.Mutex
	names       map[string]string     // stable id -> canonical name
	coordinates map[string]Coordinate // canonical name -> coordinate
	resolved    map[string]string     // raw string -> canonical name
}

// NewRegistry creates a Registry resolving through cache.
func NewRegistry(cache *Cache) *Registry {
	return &Registry{
		cache:       cache,
		names:       make(map[string]string),
		coordinates: make(map[string]Coordinate),
		resolved:    make(map[string]string),
	}
}

// Canonicalize returns the canonical location name for raw, or false when
// raw cannot be geocoded.
func (r *Registry) Canonicalize(ctx context.Context, raw string) (string, bool) {
	id, ok := r.cache.Resolve(ctx, raw)
	if !ok {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name, seen := r.names[id.StableID]
	if !seen {
		name = normalize.Location(raw)
		r.names[id.StableID] = name
		if _, ok := r.coordinates[name]; !ok {
			r.coordinates[name] = Coordinate{id.Lat, id.Lon}
		}
	}
	r.resolved[raw] = name
	return name, true
}

// Coordinates returns a copy of the canonical name -> coordinate table.
func (r *Registry) Coordinates() map[string]Coordinate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Coordinate, len(r.coordinates))
	for k, v := range r.coordinates {
		out[k] = v
	}
	return out
}

// Resolved returns every raw string that geocoded successfully, sorted.
func (r *Registry) Resolved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.resolved))
	for k := range r.resolved {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Sources returns the raw strings that resolved to each canonical name.
func (r *Registry) Sources() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]string)
	for raw, name := range r.resolved {
		out[name] = append(out[name], raw)
	}
	for _, v := range out {
		sort.Strings(v)
	}
	return out
}

// Len returns the number of distinct identities registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}
