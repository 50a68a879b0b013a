package exporter

import (
	"github.com/shopspring/decimal"

	"kpianalyzer/pkg/contracts/domain"
)

// Flatten turns an annotated pivot table into the final flat table:
// [entity, segment, KPI, <date labels in calendar order>..., Remarks].
// Values are rounded to two decimals; missing values stay missing.
func Flatten(pivot *domain.PivotTable, roles domain.ColumnRoles) *domain.Table {
	labels := append([]string(nil), pivot.DateLabels...)

	header := make([]string, 0, len(labels)+4)
	header = append(header, roles.Entity, roles.Segment, domain.KPIColumn)
	header = append(header, labels...)
	header = append(header, domain.RemarksColumn)

	t := &domain.Table{
		Header:        header,
		EntityColumn:  roles.Entity,
		SegmentColumn: roles.Segment,
		DateLabels:    labels,
		Rows:          make([]domain.TableRow, 0, len(pivot.Rows)),
	}
	for _, row := range pivot.Rows {
		values := make([]domain.Value, len(labels))
		for i, label := range labels {
			values[i] = round2(row.Value(label))
		}
		t.Rows = append(t.Rows, domain.TableRow{
			Entity:  row.Key.Entity,
			Segment: row.Key.Segment,
			KPI:     row.Key.KPI,
			Values:  values,
			Remark:  row.Remark,
		})
	}
	return t
}

func round2(v domain.Value) domain.Value {
	if v.IsMissing() {
		return v
	}
	return domain.NumberValue(decimal.NewFromFloat(v.Number).Round(2).InexactFloat64())
}

// Records renders the table body as strings, header excluded.
func Records(t *domain.Table) [][]string {
	records := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make([]string, 0, len(row.Values)+4)
		rec = append(rec, row.Entity, row.Segment, row.KPI)
		for _, v := range row.Values {
			rec = append(rec, formatValue(v))
		}
		rec = append(rec, row.Remark)
		records = append(records, rec)
	}
	return records
}
