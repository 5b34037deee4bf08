// Package roster reads researcher rosters and the per-row location text
// extracted from their work titles.
package roster

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/alias"
)

// Row is one (researcher, work) pair with the location text extracted from
// the work title. RawLocation is alias.NoLocation when nothing was found.
type Row struct {
	Researcher  string
	Title       string
	RawLocation string
}

// Entry is one roster record before location text is attached.
type Entry struct {
	Researcher string
	Title      string
}

const (
	nameColumn  = "name"
	titleColumn = "title"
)

// ReadEntries loads a CSV or XLSX roster. The header row must contain a
// name column and a title column, matched case-insensitively.
func ReadEntries(ctx context.Context, path string) ([]Entry, error) {
	records, err := readRecords(ctx, path)
	if err != nil {
		return nil, err
	}
	return entriesFromRecords(records)
}

// readRecords loads every row of a CSV file or the first XLSX sheet.
func readRecords(ctx context.Context, path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "roster: open %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVFile(ctx, path)
	case ".xlsx":
		return readXLSX(ctx, path, 0)
	default:
		return nil, eris.Errorf("roster: unsupported roster format %q", filepath.Ext(path))
	}
}

func entriesFromRecords(records [][]string) ([]Entry, error) {
	if len(records) == 0 {
		return nil, eris.New("roster: empty roster")
	}

	nameIdx, titleIdx := -1, -1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case nameColumn:
			nameIdx = i
		case titleColumn:
			titleIdx = i
		}
	}
	if nameIdx < 0 || titleIdx < 0 {
		return nil, eris.Errorf("roster: header must contain %q and %q columns, got %v", nameColumn, titleColumn, records[0])
	}

	entries := make([]Entry, 0, len(records)-1)
	for _, rec := range records[1:] {
		entries = append(entries, Entry{
			Researcher: strings.TrimSpace(cell(rec, nameIdx)),
			Title:      strings.TrimSpace(cell(rec, titleIdx)),
		})
	}
	return entries, nil
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

// Join attaches extracted location text to roster entries by row index.
// Entries without extracted text get alias.NoLocation.
func Join(entries []Entry, locations map[int]string) []Row {
	rows := make([]Row, len(entries))
	missing := 0
	for i, e := range entries {
		loc, ok := locations[i]
		loc = strings.TrimSpace(loc)
		if !ok || loc == "" {
			loc = alias.NoLocation
			missing++
		}
		rows[i] = Row{Researcher: e.Researcher, Title: e.Title, RawLocation: loc}
	}
	if missing > 0 {
		zap.L().Info("roster: rows without extracted location", zap.Int("rows", missing))
	}
	return rows
}

// Load reads the roster and the extracted-location file and joins them.
func Load(ctx context.Context, rosterPath, locationsPath string) ([]Row, error) {
	entries, err := ReadEntries(ctx, rosterPath)
	if err != nil {
		return nil, err
	}
	locations, err := ReadLocations(ctx, locationsPath)
	if err != nil {
		return nil, err
	}
	return Join(entries, locations), nil
}
