package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet of a test workbook. Rows[0] is usually the header.
type Sheet struct {
	Name string
	Rows [][]interface{}
}

// WorkbookBytes builds an in-memory xlsx workbook holding sheets in order.
func WorkbookBytes(t *testing.T, sheets ...Sheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), sh.Name))
		} else {
			_, err := f.NewSheet(sh.Name)
			require.NoError(t, err)
		}
		for r, row := range sh.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(sh.Name, cell, &row))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

// WriteWorkbook saves a test workbook under dir and returns its path.
func WriteWorkbook(t *testing.T, dir, name string, sheets ...Sheet) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, WorkbookBytes(t, sheets...), 0o644))
	return path
}

// KPISheet returns a small BBH sheet: BSC1 breaches Blocking on 21-Jan while
// its RNA is at 95, BSC2 is down.
func KPISheet(name string) Sheet {
	return Sheet{
		Name: name,
		Rows: [][]interface{}{
			{"BSC", "Segment", "Time", "RNA", "Blocking", "TotalTrafficErlangs"},
			{"BSC1", "SEG1", "2026-01-20 00:00:00", 99.8, 0.5, 120},
			{"BSC1", "SEG1", "2026-01-21 00:00:00", 95, 2.0, 130},
			{"BSC2", "SEG9", "2026-01-21 00:00:00", 0, nil, 0},
		},
	}
}
