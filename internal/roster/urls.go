package roster

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/normalize"
)

const (
	urlColumn     = "expid"
	urlNameColumn = "name"
)

// URLIndex maps a researcher's last-name key to their profile URL.
type URLIndex map[string]string

// LastNameKey returns the join key for a researcher name: the lower-cased
// part before the first comma of the normalized name.
func LastNameKey(name string) string {
	last, _, _ := strings.Cut(normalize.Researcher(name), ",")
	return strings.ToLower(strings.TrimSpace(last))
}

// Lookup returns the profile URL for researcher, or "" when none is known.
func (u URLIndex) Lookup(researcher string) string {
	if u == nil {
		return ""
	}
	return u[LastNameKey(researcher)]
}

// ReadURLs loads a CSV or XLSX expert URL list with expid and name
// columns. Rows missing either value are skipped; a later row sharing a
// last name replaces an earlier one.
func ReadURLs(ctx context.Context, path string) (URLIndex, error) {
	records, err := readRecords(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return URLIndex{}, nil
	}

	urlIdx, nameIdx := -1, -1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case urlColumn:
			urlIdx = i
		case urlNameColumn:
			nameIdx = i
		}
	}
	if urlIdx < 0 || nameIdx < 0 {
		return nil, eris.Errorf("roster: url list header must contain %q and %q columns, got %v", urlColumn, urlNameColumn, records[0])
	}

	idx := make(URLIndex, len(records)-1)
	skipped := 0
	for _, rec := range records[1:] {
		u := strings.TrimSpace(cell(rec, urlIdx))
		name := strings.TrimSpace(cell(rec, nameIdx))
		if u == "" || name == "" {
			skipped++
			continue
		}
		idx[LastNameKey(name)] = u
	}

	zap.L().Info("roster: expert urls loaded",
		zap.String("path", path),
		zap.Int("urls", len(idx)),
		zap.Int("skipped", skipped),
	)
	return idx, nil
}
