package domain

// KPIColumn and RemarksColumn are the fixed headers of the exported table.
const (
	KPIColumn     = "KPI"
	RemarksColumn = "Remarks"
)

// TableRow is one flattened output row. Values follow Table.DateLabels.
type TableRow struct {
	Entity  string  `json:"entity"`
	Segment string  `json:"segment"`
	KPI     string  `json:"kpi"`
	Values  []Value `json:"values"`
	Remark  string  `json:"remark"`
}

// Table is the final flat table handed to exporters:
// [entity, segment, KPI, <date labels>..., Remarks].
type Table struct {
	Header        []string   `json:"header"`
	EntityColumn  string     `json:"entity_column"`
	SegmentColumn string     `json:"segment_column"`
	DateLabels    []string   `json:"date_labels"`
	Rows          []TableRow `json:"rows"`
}
