// Package alias rewrites known-problematic raw location strings before they
// reach the geocoder.
package alias

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// NoLocation is the sentinel raw location meaning "nothing to geocode".
const NoLocation = "N/A"

// BuiltinVersion identifies the compiled-in alias set.
const BuiltinVersion = "v1"

var builtin = map[string]string{
	"CA":                 "California",
	"California, U.S.A.": "California",
	"the United States":  "USA",
	"U.S.":               "USA",
	"Greenland":          "Greenland, Denmark",
	"East Greenland":     "Greenland, Denmark",
	"Tropical Forest":    NoLocation,
}

// Table maps raw location strings to their replacements. Lookups are exact.
type Table struct {
	version string
	entries map[string]string
}

// File is the on-disk YAML shape of an operator-maintained alias table.
type File struct {
	Version string            `yaml:"version"`
	Aliases map[string]string `yaml:"aliases"`
}

// Default returns the built-in alias table.
func Default() *Table {
	entries := make(map[string]string, len(builtin))
	for k, v := range builtin {
		entries[k] = v
	}
	return &Table{version: BuiltinVersion, entries: entries}
}

// New builds a table from explicit entries.
func New(version string, entries map[string]string) *Table {
	t := &Table{version: version, entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		t.entries[k] = v
	}
	return t
}

// Load reads a YAML alias file and merges it over the built-in table.
// An empty path returns the built-in table.
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "alias: read %s", path)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "alias: parse %s", path)
	}
	if f.Version == "" {
		return nil, eris.Errorf("alias: %s has no version", path)
	}

	for k, v := range f.Aliases {
		t.entries[k] = v
	}
	t.version = BuiltinVersion + "+" + f.Version
	return t, nil
}

// Resolve returns the replacement for raw, or raw itself when no alias exists.
func (t *Table) Resolve(raw string) string {
	if t == nil {
		return raw
	}
	if v, ok := t.entries[raw]; ok {
		return v
	}
	return raw
}

// Version returns the table's version label.
func (t *Table) Version() string { return t.version }

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Entry is a single alias mapping.
type Entry struct {
	Raw         string
	Replacement string
}

// Entries returns all mappings sorted by raw string.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for k, v := range t.entries {
		out = append(out, Entry{Raw: k, Replacement: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Raw < out[j].Raw })
	return out
}
