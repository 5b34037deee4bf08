package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/aggregate"
	"github.com/sells-group/geoprofiles/internal/normalize"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// ResearcherView is a researcher with their per-location mappings.
type ResearcherView struct {
	Name      string        `json:"name"`
	URL       string        `json:"url,omitempty"`
	Titles    []string      `json:"titles"`
	Locations []string      `json:"locations"`
	Mappings  []MappingView `json:"mappings,omitempty"`
}

// MappingView is one location a researcher is linked to.
type MappingView struct {
	Location    string                   `json:"location"`
	Matches     int                      `json:"matches"`
	Confident   string                   `json:"confident"`
	Works       []string                 `json:"works"`
	Coordinates *aggregate.CoordinateDoc `json:"coordinates,omitempty"`
}

// ResearcherList is a page of researchers.
type ResearcherList struct {
	Researchers []ResearcherView `json:"researchers"`
	Total       int              `json:"total"`
	Limit       int              `json:"limit"`
	Offset      int              `json:"offset"`
}

// LocationView is a canonical location with its researchers.
type LocationView struct {
	Name        string                          `json:"name"`
	Coordinates *aggregate.CoordinateDoc        `json:"coordinates,omitempty"`
	Researchers map[string]aggregate.MappingDoc `json:"researchers"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) researchLocations(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(s.docs.GeoJSON); err != nil {
		zap.L().Debug("server: write geojson", zap.Error(err))
	}
}

func (s *Server) listResearchers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	nameFilter := strings.ToLower(strings.TrimSpace(q.Get("name")))
	locFilter := strings.ToLower(strings.TrimSpace(q.Get("location")))
	limit := parseIntParam(q.Get("limit"), defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := max(parseIntParam(q.Get("offset"), 0), 0)

	names := make([]string, 0, len(s.docs.Researchers))
	for name, doc := range s.docs.Researchers {
		if nameFilter != "" && !strings.Contains(strings.ToLower(name), nameFilter) {
			continue
		}
		if locFilter != "" && !anyContains(doc.Locations, locFilter) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	page := ResearcherList{Researchers: []ResearcherView{}, Total: len(names), Limit: limit, Offset: offset}
	start := min(offset, len(names))
	end := start + min(limit, len(names)-start)
	for _, name := range names[start:end] {
		page.Researchers = append(page.Researchers, s.researcherView(name, false))
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getResearcher(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid researcher name")
		return
	}
	key, ok := s.byName[normalize.Researcher(raw)]
	if !ok {
		writeError(w, http.StatusNotFound, "researcher not found")
		return
	}
	writeJSON(w, http.StatusOK, s.researcherView(key, true))
}

func (s *Server) getLocation(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid location name")
		return
	}
	name := normalize.Location(raw)
	byResearcher, ok := s.docs.Locations[name]
	if !ok {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}
	view := LocationView{Name: name, Researchers: byResearcher}
	if c, ok := s.docs.Coordinates[name]; ok {
		view.Coordinates = &c
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) summary(w http.ResponseWriter, _ *http.Request) {
	if s.docs.Summary == nil {
		writeError(w, http.StatusNotFound, "no run summary")
		return
	}
	writeJSON(w, http.StatusOK, s.docs.Summary)
}

func (s *Server) researcherView(name string, withMappings bool) ResearcherView {
	doc := s.docs.Researchers[name]
	v := ResearcherView{Name: name, URL: s.urls.Lookup(name), Titles: doc.Titles, Locations: doc.Locations}
	if !withMappings {
		return v
	}

	seen := make(map[string]bool)
	for _, loc := range doc.Locations {
		if loc == aggregate.Unresolved || seen[loc] {
			continue
		}
		seen[loc] = true
		m, ok := s.docs.Locations[loc][name]
		if !ok {
			continue
		}
		mv := MappingView{Location: loc, Matches: m.Matches, Confident: m.Confident, Works: m.Works}
		if c, ok := s.docs.Coordinates[loc]; ok {
			mv.Coordinates = &c
		}
		v.Mappings = append(v.Mappings, mv)
	}
	return v
}

func anyContains(values []string, needle string) bool {
	for _, v := range values {
		if v != aggregate.Unresolved && strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func parseIntParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
