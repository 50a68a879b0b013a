package ingestion

import (
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"kpianalyzer/internal/datelabel"
	"kpianalyzer/pkg/contracts/domain"
)

// ExtractStats counts what Extract did with the raw records.
type ExtractStats struct {
	Rows              int      `json:"rows"`
	HeaderRowsSkipped int      `json:"header_rows_skipped"`
	KPIsNotFound      []string `json:"kpis_not_found,omitempty"`
}

// missingTokens are cell texts that OSS exports use for "no value".
var missingTokens = map[string]struct{}{
	"":        {},
	"-":       {},
	"--":      {},
	"na":      {},
	"n/a":     {},
	"#n/a":    {},
	"null":    {},
	"nan":     {},
	"none":    {},
	"#div/0!": {},
	"#value!": {},
}

// Extract projects the raw table onto the resolved column roles.
//
// Every source sheet with data must declare the entity, segment and timestamp columns;
// a sheet missing one fails the run with a *SchemaMismatchError naming it. KPI
// columns a sheet does not declare are simply absent from its rows.
func Extract(table *domain.RawTable, roles domain.ColumnRoles) ([]domain.RawRow, ExtractStats, error) {
	var stats ExtractStats
	if table == nil || len(table.Records) == 0 {
		return nil, stats, ErrEmptyInput
	}

	for _, src := range table.Sources {
		if src.RowCount == 0 {
			continue
		}
		missing := lo.Filter(roles.Identifiers(), func(col string, _ int) bool {
			return !src.HasColumn(col)
		})
		if len(missing) > 0 {
			return nil, stats, &SchemaMismatchError{Source: src.Provenance, Missing: missing}
		}
	}

	stats.KPIsNotFound = lo.Filter(roles.KPIs, func(kpi string, _ int) bool {
		return !lo.Contains(table.Columns, kpi)
	})

	rows := make([]domain.RawRow, 0, len(table.Records))
	for _, rec := range table.Records {
		if SkipHeaderContinuation(rec, roles) {
			stats.HeaderRowsSkipped++
			continue
		}

		row := domain.RawRow{
			Entity:     rec.Cells[roles.Entity],
			Segment:    rec.Cells[roles.Segment],
			Timestamp:  rec.Cells[roles.Timestamp],
			Values:     make(map[string]domain.Value, len(roles.KPIs)),
			Provenance: rec.Provenance,
		}
		for _, kpi := range roles.KPIs {
			cell, ok := rec.Cell(kpi)
			if !ok {
				continue
			}
			row.Values[kpi] = ParseNumber(cell)
		}
		rows = append(rows, row)
	}

	stats.Rows = len(rows)
	if len(rows) == 0 {
		return nil, stats, ErrEmptyInput
	}
	return rows, stats, nil
}

// SkipHeaderContinuation reports whether a record is a units/sub-header line
// sitting under the real header: its timestamp does not parse, none of its KPI
// cells is numeric, and at least one KPI cell carries text.
func SkipHeaderContinuation(rec domain.RawRecord, roles domain.ColumnRoles) bool {
	if _, ok := datelabel.ParseTimestamp(rec.Cells[roles.Timestamp]); ok {
		return false
	}
	hasText := false
	for _, kpi := range roles.KPIs {
		cell, ok := rec.Cell(kpi)
		if !ok {
			continue
		}
		if ParseNumber(cell).Valid {
			return false
		}
		if _, none := missingTokens[strings.ToLower(strings.TrimSpace(cell))]; !none {
			hasText = true
		}
	}
	return hasText
}

// ParseNumber reads a KPI cell. Thousands separators and a trailing percent sign
// are tolerated; anything else that is not a finite number is missing.
func ParseNumber(cell string) domain.Value {
	s := strings.TrimSpace(cell)
	if _, ok := missingTokens[strings.ToLower(s)]; ok {
		return domain.MissingValue
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.MissingValue
	}
	return domain.NumberValue(f)
}
