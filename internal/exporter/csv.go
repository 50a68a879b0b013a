package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"kpianalyzer/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter renders the final table as CSV.
type CSVWriter struct {
	// BOMPrefix adds a UTF-8 BOM so Excel recognises the encoding.
	BOMPrefix bool
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{BOMPrefix: true}
}

// ContentType implements Writer.
func (w *CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }

// Extension implements Writer.
func (w *CSVWriter) Extension() string { return ".csv" }

// Write writes the header and every row. Values carry two decimals; missing
// values are empty cells.
func (w *CSVWriter) Write(out io.Writer, t *domain.Table) error {
	if w.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range Records(t) {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
