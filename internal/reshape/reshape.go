// Package reshape melts typed KPI rows into long records and pivots them back
// into one row per (entity, segment, KPI) with a column per date label.
package reshape

import (
	"kpianalyzer/internal/datelabel"
	"kpianalyzer/pkg/contracts/domain"
)

// LongStats counts data-quality anomalies met while melting.
type LongStats struct {
	Records              int `json:"records"`
	UnparsableTimestamps int `json:"unparsable_timestamps"`
}

// PivotStats counts what the pivot collapsed or set aside.
type PivotStats struct {
	Groups     int `json:"groups"`
	Duplicates int `json:"duplicates"`
	Undated    int `json:"undated"`
}

// ToLong emits one record per (row, KPI present on the row). A timestamp that does
// not parse yields a blank date label; the row is kept and counted.
func ToLong(rows []domain.RawRow, kpis []string) ([]domain.LongRecord, LongStats) {
	var stats LongStats
	long := make([]domain.LongRecord, 0, len(rows)*len(kpis))

	for _, row := range rows {
		label, ok := datelabel.FromRaw(row.Timestamp)
		if !ok {
			stats.UnparsableTimestamps++
		}
		for _, kpi := range kpis {
			v, present := row.Values[kpi]
			if !present {
				continue
			}
			long = append(long, domain.LongRecord{
				Entity:    row.Entity,
				Segment:   row.Segment,
				DateLabel: label,
				KPI:       kpi,
				Value:     v,
			})
		}
	}

	stats.Records = len(long)
	return long, stats
}

// ToPivot groups long records by (entity, segment, KPI). For each date label the
// first non-missing value observed wins. Groups without any value still produce a
// row. Records with a blank label keep their group alive but add no column.
func ToPivot(long []domain.LongRecord) (*domain.PivotTable, PivotStats) {
	var stats PivotStats
	table := &domain.PivotTable{}
	groups := make(map[domain.PivotKey]*domain.PivotRow)
	labels := make(map[string]struct{})

	for _, rec := range long {
		key := rec.Key()
		row, ok := groups[key]
		if !ok {
			row = &domain.PivotRow{Key: key, Values: make(map[string]domain.Value)}
			groups[key] = row
			table.Rows = append(table.Rows, row)
		}

		if rec.DateLabel == "" {
			stats.Undated++
			continue
		}
		labels[rec.DateLabel] = struct{}{}

		if existing, seen := row.Values[rec.DateLabel]; seen && existing.Valid {
			stats.Duplicates++
			continue
		}
		row.Values[rec.DateLabel] = rec.Value
	}

	table.DateLabels = make([]string, 0, len(labels))
	for l := range labels {
		table.DateLabels = append(table.DateLabels, l)
	}
	table.DateLabels = datelabel.Sort(table.DateLabels)
	table.SortRows()

	stats.Groups = len(table.Rows)
	return table, stats
}
