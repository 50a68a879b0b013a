package exporter

import (
	"fmt"
	"strings"

	"kpianalyzer/pkg/contracts/domain"
)

// Format names an output rendering of the final table.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts a format name or file extension, case-insensitively.
// An empty name selects xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "xlsx":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatValue renders a cell; missing values are blank, never zero.
func formatValue(v domain.Value) string {
	if v.IsMissing() {
		return ""
	}
	return formatFloat(v.Number)
}
