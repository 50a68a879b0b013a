package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"kpianalyzer/pkg/contracts/domain"
)

// SheetName is the name of the single sheet of the exported workbook.
const SheetName = "KPI_FINAL_OUTPUT"

// numFmtTwoDecimals is the built-in "0.00" number format.
const numFmtTwoDecimals = 2

// XLSXWriter renders the final table as an .xlsx workbook.
type XLSXWriter struct{}

// NewXLSXWriter creates a new workbook writer.
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

// ContentType implements Writer.
func (w *XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Writer.
func (w *XLSXWriter) Extension() string { return ".xlsx" }

// Write builds the workbook and streams it to out. The header is bold and
// frozen, KPI values are numeric cells and missing values are left empty.
func (w *XLSXWriter) Write(out io.Writer, t *domain.Table) error {
	f, err := w.Build(t)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Build returns the workbook without serialising it.
func (w *XLSXWriter) Build(t *domain.Table) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeTable(f, t); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeTable(f *excelize.File, t *domain.Table) error {
	header := make([]interface{}, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range t.Rows {
		cells := make([]interface{}, 0, len(row.Values)+4)
		cells = append(cells, row.Entity, row.Segment, row.KPI)
		for _, v := range row.Values {
			if v.IsMissing() {
				cells = append(cells, nil)
				continue
			}
			cells = append(cells, v.Number)
		}
		cells = append(cells, row.Remark)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	return styleTable(f, t)
}

func styleTable(f *excelize.File, t *domain.Table) error {
	cols := len(t.Header)
	if cols == 0 {
		return nil
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	if len(t.DateLabels) > 0 && len(t.Rows) > 0 {
		numStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals})
		if err != nil {
			return fmt.Errorf("failed to create number style: %w", err)
		}
		first, _ := excelize.CoordinatesToCellName(4, 2)
		last, _ := excelize.CoordinatesToCellName(3+len(t.DateLabels), len(t.Rows)+1)
		if err := f.SetCellStyle(SheetName, first, last, numStyle); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", "C", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, lastCol, lastCol, 40); err != nil {
		return err
	}

	return f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
