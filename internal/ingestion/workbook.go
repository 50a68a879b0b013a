package ingestion

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"kpianalyzer/pkg/contracts/domain"
)

// Source is one uploaded workbook.
type Source struct {
	Name   string  `json:"name"`
	Sheets []Sheet `json:"sheets"`
}

// SheetNames lists the sheets of the workbook in workbook order.
func (s Source) SheetNames() []string {
	names := make([]string, 0, len(s.Sheets))
	for _, sh := range s.Sheets {
		names = append(names, sh.Name)
	}
	return names
}

// Sheet is the tabular content of one worksheet: a header and its data rows.
type Sheet struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ReadWorkbookFile opens an .xlsx file from disk and reads every sheet.
func ReadWorkbookFile(path string) (Source, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	return readSheets(filepath.Base(path), f)
}

// ReadWorkbook reads every sheet of an .xlsx workbook supplied as a stream.
func ReadWorkbook(name string, r io.Reader) (Source, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Source{}, fmt.Errorf("failed to open workbook %s: %w", name, err)
	}
	defer f.Close()

	return readSheets(name, f)
}

func readSheets(name string, f *excelize.File) (Source, error) {
	src := Source{Name: name}
	for _, sheetName := range f.GetSheetList() {
		// Raw values keep full numeric precision and give dates as Excel serials.
		rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
		if err != nil {
			return Source{}, fmt.Errorf("failed to read sheet %s/%s: %w", name, sheetName, err)
		}
		sheet := buildSheet(sheetName, rows)
		if len(sheet.Header) == 0 {
			slog.Debug("Sheet has no header row, skipping",
				slog.String("source_file", name),
				slog.String("sheet", sheetName))
			continue
		}
		src.Sheets = append(src.Sheets, sheet)
	}
	return src, nil
}

// buildSheet locates the header row (the first row with at least two non-blank
// cells) and keeps every row below it.
func buildSheet(name string, rows [][]string) Sheet {
	sheet := Sheet{Name: name}
	headerRow := -1
	for i, row := range rows {
		if countNonBlank(row) >= 2 {
			headerRow = i
			break
		}
	}
	if headerRow == -1 {
		return sheet
	}

	sheet.Header = uniqueHeader(rows[headerRow])
	for _, row := range rows[headerRow+1:] {
		if countNonBlank(row) == 0 {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

// uniqueHeader trims header names, names blank headers by position and
// disambiguates repeats with ".1", ".2" suffixes.
func uniqueHeader(row []string) []string {
	header := make([]string, len(row))
	seen := make(map[string]int, len(row))
	for i, cell := range row {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		header[i] = name
	}
	return header
}

func countNonBlank(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

// SheetTypeFor classifies a sheet as BBH or DAY from its name, falling back to the
// workbook name.
func SheetTypeFor(sourceFile, sheet string) domain.SheetType {
	for _, s := range []string{sheet, sourceFile} {
		upper := strings.ToUpper(s)
		switch {
		case strings.Contains(upper, "BBH"):
			return domain.SheetTypeBBH
		case strings.Contains(upper, "DAY"), strings.Contains(upper, "DAILY"):
			return domain.SheetTypeDay
		}
	}
	return domain.SheetTypeUnknown
}
