package ingestion

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kpianalyzer/pkg/contracts/domain"
)

var testRoles = domain.ColumnRoles{
	Entity:    "BSC Name",
	Segment:   "Segment Name",
	Timestamp: "Start Time",
	KPIs:      []string{"Availability", "Blocking"},
}

// writeWorkbook builds an in-memory workbook with one sheet per entry.
func writeWorkbook(t *testing.T, sheets map[string][][]interface{}, order ...string) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	buf := new(bytes.Buffer)
	require.NoError(t, f.Write(buf))
	return buf
}

func TestReadWorkbook_AllSheets(t *testing.T) {
	buf := writeWorkbook(t, map[string][][]interface{}{
		"2G BBH": {
			{"BSC Name", "Segment Name", "Start Time", "Availability"},
			{"BSC1", "SEG1", "2026-01-21 00:00:00", 99.9},
		},
		"2G DAY": {
			{},
			{"BSC Name", "Segment Name", "Start Time", "Blocking"},
			{"BSC1", "SEG1", "2026-01-21", 0.5},
			{},
		},
	}, "2G BBH", "2G DAY")

	src, err := ReadWorkbook("oss.xlsx", buf)
	require.NoError(t, err)

	assert.Equal(t, "oss.xlsx", src.Name)
	assert.Equal(t, []string{"2G BBH", "2G DAY"}, src.SheetNames())
	assert.Equal(t, []string{"BSC Name", "Segment Name", "Start Time", "Blocking"}, src.Sheets[1].Header)
	assert.Len(t, src.Sheets[1].Rows, 1, "leading and trailing blank rows are ignored")
}

func TestReadWorkbookFile(t *testing.T) {
	buf := writeWorkbook(t, map[string][][]interface{}{
		"Sheet1": {
			{"BSC Name", "Segment Name", "Start Time", "Availability"},
			{"BSC1", "SEG1", "2026-01-21", 100},
		},
	}, "Sheet1")

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "day_export.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	src, err := ReadWorkbookFile(path)
	require.NoError(t, err)
	assert.Equal(t, "day_export.xlsx", src.Name)
	require.Len(t, src.Sheets, 1)
	assert.Equal(t, "100", src.Sheets[0].Rows[0][3])
}

func TestReadWorkbook_InvalidContent(t *testing.T) {
	_, err := ReadWorkbook("broken.xlsx", bytes.NewBufferString("not a zip"))
	assert.Error(t, err)
}

func TestUniqueHeader(t *testing.T) {
	got := uniqueHeader([]string{" KPI ", "KPI", "", "KPI"})
	assert.Equal(t, []string{"KPI", "KPI.1", "Unnamed: 2", "KPI.2"}, got)
}

func TestSheetTypeFor(t *testing.T) {
	assert.Equal(t, domain.SheetTypeBBH, SheetTypeFor("export.xlsx", "2G_BBH"))
	assert.Equal(t, domain.SheetTypeDay, SheetTypeFor("export.xlsx", "Daily"))
	assert.Equal(t, domain.SheetTypeDay, SheetTypeFor("DAY_export.xlsx", "Sheet1"))
	assert.Equal(t, domain.SheetTypeUnknown, SheetTypeFor("export.xlsx", "Sheet1"))
}

func TestNormalize_UnionsColumnsAndTagsProvenance(t *testing.T) {
	sources := []Source{
		{Name: "a_bbh.xlsx", Sheets: []Sheet{{
			Name:   "Sheet1",
			Header: []string{"BSC Name", "Segment Name", "Start Time", "Availability"},
			Rows:   [][]string{{"BSC1", "SEG1", "2026-01-21", "99"}},
		}}},
		{Name: "b.xlsx", Sheets: []Sheet{{
			Name:   "DAY",
			Header: []string{"BSC Name", "Segment Name", "Start Time", "Blocking"},
			Rows:   [][]string{{"BSC1", "SEG1", "2026-01-21"}},
		}}},
	}

	table, err := Normalize(sources)
	require.NoError(t, err)

	assert.Equal(t, []string{"BSC Name", "Segment Name", "Start Time", "Availability", "Blocking"}, table.Columns)
	require.Len(t, table.Records, 2)

	first := table.Records[0]
	assert.Equal(t, domain.SheetTypeBBH, first.Provenance.Type)
	_, has := first.Cell("Blocking")
	assert.False(t, has, "column absent from the sheet must not be filled")

	second := table.Records[1]
	assert.Equal(t, domain.SheetTypeDay, second.Provenance.Type)
	v, has := second.Cell("Blocking")
	assert.True(t, has)
	assert.Equal(t, "", v, "short row reads as blank cell")

	require.Len(t, table.Sources, 2)
	assert.Equal(t, 1, table.Sources[1].RowCount)
}

func TestNormalize_EmptyInput(t *testing.T) {
	_, err := Normalize(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Normalize([]Source{{Name: "empty.xlsx", Sheets: []Sheet{{Name: "S", Header: []string{"a", "b"}}}}})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestExtract_SchemaMismatch(t *testing.T) {
	table, err := Normalize([]Source{{Name: "bad.xlsx", Sheets: []Sheet{{
		Name:   "BBH",
		Header: []string{"BSC Name", "Start Time", "Availability"},
		Rows:   [][]string{{"BSC1", "2026-01-21", "99"}},
	}}}})
	require.NoError(t, err)

	_, _, err = Extract(table, testRoles)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))

	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "bad.xlsx", mismatch.Source.SourceFile)
	assert.Equal(t, "BBH", mismatch.Source.Sheet)
	assert.Equal(t, []string{"Segment Name"}, mismatch.Missing)
	assert.Contains(t, err.Error(), "bad.xlsx/BBH")
}

func TestExtract_ToleratesMissingKPIColumns(t *testing.T) {
	table, err := Normalize([]Source{{Name: "a.xlsx", Sheets: []Sheet{{
		Name:   "S",
		Header: []string{"BSC Name", "Segment Name", "Start Time", "Availability"},
		Rows:   [][]string{{"BSC1", "SEG1", "2026-01-21", "99.5"}},
	}}}})
	require.NoError(t, err)

	rows, stats, err := Extract(table, testRoles)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, domain.NumberValue(99.5), rows[0].Values["Availability"])
	_, has := rows[0].Values["Blocking"]
	assert.False(t, has)
	assert.Equal(t, []string{"Blocking"}, stats.KPIsNotFound)
}

func TestExtract_SkipsHeaderContinuationRows(t *testing.T) {
	table, err := Normalize([]Source{{Name: "a.xlsx", Sheets: []Sheet{{
		Name:   "S",
		Header: []string{"BSC Name", "Segment Name", "Start Time", "Availability", "Blocking"},
		Rows: [][]string{
			{"", "", "", "%", "%"},
			{"BSC1", "SEG1", "2026-01-21", "99.5", "0.2"},
			{"BSC1", "SEG1", "garbled", "98", ""},
		},
	}}}})
	require.NoError(t, err)

	rows, stats, err := Extract(table, testRoles)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.HeaderRowsSkipped)
	assert.Equal(t, 2, stats.Rows)
	assert.Equal(t, "garbled", rows[1].Timestamp, "data rows with bad timestamps are kept")
	assert.True(t, rows[1].Values["Blocking"].IsMissing())
}

func TestExtract_KeepsUndatedRowsWithoutValues(t *testing.T) {
	table, err := Normalize([]Source{{Name: "a.xlsx", Sheets: []Sheet{{
		Name:   "S",
		Header: []string{"BSC Name", "Segment Name", "Start Time", "Availability", "Blocking"},
		Rows: [][]string{
			{"BSC1", "SEG1", "2026-01-21", "99.5", "0.2"},
			{"BSC2", "SEG2", "garbled", "N/A", "#DIV/0!"},
		},
	}}}})
	require.NoError(t, err)

	rows, stats, err := Extract(table, testRoles)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.HeaderRowsSkipped)
	require.Len(t, rows, 2)
	assert.Equal(t, "BSC2", rows[1].Entity)
	assert.True(t, rows[1].Values["Availability"].IsMissing())
	assert.True(t, rows[1].Values["Blocking"].IsMissing())
}

func TestSkipHeaderContinuation(t *testing.T) {
	tests := []struct {
		name  string
		cells map[string]string
		want  bool
	}{
		{
			name:  "units row",
			cells: map[string]string{"Start Time": "", "Availability": "(%)", "Blocking": "(%)"},
			want:  true,
		},
		{
			name:  "valid timestamp",
			cells: map[string]string{"Start Time": "2026-01-21", "Availability": "(%)"},
			want:  false,
		},
		{
			name:  "numeric kpi with bad timestamp",
			cells: map[string]string{"Start Time": "??", "Availability": "99"},
			want:  false,
		},
		{
			name:  "no-value markers are not unit text",
			cells: map[string]string{"Start Time": "garbled", "Availability": "N/A", "Blocking": "-"},
			want:  false,
		},
		{
			name:  "all kpis blank",
			cells: map[string]string{"Start Time": "", "Availability": "", "Blocking": ""},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SkipHeaderContinuation(domain.RawRecord{Cells: tt.cells}, testRoles)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		cell string
		want domain.Value
	}{
		{"99.5", domain.NumberValue(99.5)},
		{" 1,250.75 ", domain.NumberValue(1250.75)},
		{"97.2%", domain.NumberValue(97.2)},
		{"0", domain.NumberValue(0)},
		{"-3", domain.NumberValue(-3)},
		{"", domain.MissingValue},
		{"-", domain.MissingValue},
		{"#N/A", domain.MissingValue},
		{"NaN", domain.MissingValue},
		{"Inf", domain.MissingValue},
		{"n.a.", domain.MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumber(tt.cell))
		})
	}
}

func TestSheetInfo(t *testing.T) {
	info := SheetInfo([]Source{
		{Name: "a.xlsx", Sheets: []Sheet{{Name: "BBH"}, {Name: "DAY"}}},
	})
	assert.Equal(t, map[string][]string{"a.xlsx": {"BBH", "DAY"}}, info)
}
