package domain

import (
	"sort"
)

// Value is a KPI cell that is either a number or missing.
// A missing value is never treated as zero.
type Value struct {
	Number float64 `json:"number"`
	Valid  bool    `json:"valid"`
}

// NumberValue returns a present value.
func NumberValue(f float64) Value {
	return Value{Number: f, Valid: true}
}

// MissingValue is the missing-value marker.
var MissingValue = Value{}

// IsMissing reports whether the cell carries no number.
func (v Value) IsMissing() bool {
	return !v.Valid
}

// SheetType tags where a row came from: a busy-hour snapshot or a daily aggregate.
type SheetType string

const (
	SheetTypeBBH     SheetType = "BBH"
	SheetTypeDay     SheetType = "DAY"
	SheetTypeUnknown SheetType = "UNKNOWN"
)

// Provenance identifies the source file and sheet a row was read from.
type Provenance struct {
	SourceFile string    `json:"source_file"`
	Sheet      string    `json:"sheet"`
	Type       SheetType `json:"type"`
}

// Origin renders the provenance as "file/sheet" for error messages and logs.
func (p Provenance) Origin() string {
	if p.Sheet == "" {
		return p.SourceFile
	}
	return p.SourceFile + "/" + p.Sheet
}

// SourceInfo describes one sheet that contributed to a RawTable.
type SourceInfo struct {
	Provenance
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
}

// HasColumn reports whether the sheet declared the column in its header.
func (s SourceInfo) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// RawRecord is one untyped row of the unioned raw table.
// Columns the originating sheet does not declare have no entry in Cells.
type RawRecord struct {
	Cells      map[string]string `json:"cells"`
	Provenance Provenance        `json:"provenance"`
}

// Cell returns the text of a column and whether the sheet carried the column at all.
func (r RawRecord) Cell(column string) (string, bool) {
	v, ok := r.Cells[column]
	return v, ok
}

// RawTable is the union of every ingested sheet.
type RawTable struct {
	Columns []string     `json:"columns"`
	Records []RawRecord  `json:"records"`
	Sources []SourceInfo `json:"sources"`
}

// RawRow is a record projected onto the resolved column roles.
// KPI columns absent from the originating sheet have no key in Values.
type RawRow struct {
	Entity     string           `json:"entity"`
	Segment    string           `json:"segment"`
	Timestamp  string           `json:"timestamp"`
	Values     map[string]Value `json:"values"`
	Provenance Provenance       `json:"provenance"`
}

// LongRecord is one (entity, segment, date, KPI, value) observation.
// DateLabel is blank when the source timestamp could not be parsed.
type LongRecord struct {
	Entity    string `json:"entity"`
	Segment   string `json:"segment"`
	DateLabel string `json:"date_label"`
	KPI       string `json:"kpi"`
	Value     Value  `json:"value"`
}

// Key returns the pivot key this record belongs to.
func (l LongRecord) Key() PivotKey {
	return PivotKey{Entity: l.Entity, Segment: l.Segment, KPI: l.KPI}
}

// PivotKey identifies one row of the final table.
type PivotKey struct {
	Entity  string `json:"entity"`
	Segment string `json:"segment"`
	KPI     string `json:"kpi"`
}

// Less orders keys by entity, then segment, then KPI.
func (k PivotKey) Less(o PivotKey) bool {
	if k.Entity != o.Entity {
		return k.Entity < o.Entity
	}
	if k.Segment != o.Segment {
		return k.Segment < o.Segment
	}
	return k.KPI < o.KPI
}

// PivotRow holds one value per date label for a single (entity, segment, KPI).
type PivotRow struct {
	Key    PivotKey         `json:"key"`
	Values map[string]Value `json:"values"`
	Remark string           `json:"remark"`
}

// Value returns the value for a date label, missing when absent.
func (r *PivotRow) Value(label string) Value {
	if r == nil || label == "" {
		return MissingValue
	}
	return r.Values[label]
}

// PivotTable is the re-pivoted result of a run. DateLabels are kept in calendar order.
type PivotTable struct {
	Rows       []*PivotRow `json:"rows"`
	DateLabels []string    `json:"date_labels"`
}

// Latest returns the chronologically latest date label, or "" when the table has none.
func (t *PivotTable) Latest() string {
	if t == nil || len(t.DateLabels) == 0 {
		return ""
	}
	return t.DateLabels[len(t.DateLabels)-1]
}

// SortRows orders rows by their key.
func (t *PivotTable) SortRows() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Key.Less(t.Rows[j].Key)
	})
}

// Remark labels produced by the remark engine.
const (
	RemarkNoData            = "NO DATA"
	RemarkSiteDown          = "SITE/CELL DOWN"
	RemarkStable            = "KPI Stable/Meeting Threshold"
	RemarkNotOK             = "KPI not ok"
	RemarkNoThreshold       = "NO THRESHOLD CONFIGURED"
	RemarkRNAUnstablePrefix = ", RNA UNSTABLE "
)
