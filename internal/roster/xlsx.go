package roster

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

func readXLSX(ctx context.Context, path string, sheetIndex int) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "roster: open xlsx")
	}
	if sheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("roster: sheet index %d out of range (file has %d sheets)", sheetIndex, len(f.Sheets))
	}

	sheet := f.Sheets[sheetIndex]
	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "roster: xlsx context cancelled")
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.String()
		}
		records = append(records, cells)
	}
	return records, nil
}
