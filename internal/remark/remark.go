// Package remark annotates pivoted KPI rows with a status remark.
//
// Rules are evaluated on the latest date label, first match wins:
//
//  1. latest value missing                        → NO DATA
//  2. availability KPI at exactly 0               → SITE/CELL DOWN
//  3. threshold rule: pass / fail / no rule       → KPI Stable/Meeting Threshold | KPI not ok | NO THRESHOLD CONFIGURED
//  4. failing, non traffic-exempt KPI whose RNA KPI (same entity and segment)
//     also fails its rule                         → ", RNA UNSTABLE <v>%" appended
package remark

import (
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"kpianalyzer/pkg/contracts/domain"
)

// Index gives keyed access to every row of a pivot table.
type Index map[domain.PivotKey]*domain.PivotRow

// NewIndex indexes the rows of a table. Keys are unique after pivoting; should a
// key repeat, the first row keeps the slot.
func NewIndex(table *domain.PivotTable) Index {
	idx := make(Index, len(table.Rows))
	for _, row := range table.Rows {
		if _, ok := idx[row.Key]; !ok {
			idx[row.Key] = row
		}
	}
	return idx
}

// Engine evaluates remarks for one run configuration. It holds no per-run state
// and is safe for concurrent use.
type Engine struct {
	thresholds      map[string]domain.ThresholdRule
	rnaKPI          string
	availability    map[string]struct{}
	trafficKPIs     map[string]struct{}
	trafficKeywords []string
}

// NewEngine builds an engine from a run configuration.
func NewEngine(cfg domain.RunConfig) *Engine {
	e := &Engine{
		thresholds:   make(map[string]domain.ThresholdRule, len(cfg.Thresholds)),
		rnaKPI:       cfg.RNAKPI,
		availability: make(map[string]struct{}),
		trafficKPIs:  make(map[string]struct{}),
	}
	for k, r := range cfg.Thresholds {
		e.thresholds[k] = r
	}
	if cfg.RNAKPI != "" {
		e.availability[cfg.RNAKPI] = struct{}{}
	}
	for _, k := range cfg.AvailabilitySynonyms {
		e.availability[k] = struct{}{}
	}
	for _, k := range cfg.TrafficKPIs {
		e.trafficKPIs[k] = struct{}{}
	}
	e.trafficKeywords = lo.FilterMap(cfg.TrafficKeywords, func(kw string, _ int) (string, bool) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		return kw, kw != ""
	})
	return e
}

// IsTrafficExempt reports whether RNA correlation is suppressed for a KPI.
func (e *Engine) IsTrafficExempt(kpi string) bool {
	if _, ok := e.trafficKPIs[kpi]; ok {
		return true
	}
	lower := strings.ToLower(kpi)
	for _, kw := range e.trafficKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Remark derives the remark of one row, evaluated on the latest date label.
func (e *Engine) Remark(row *domain.PivotRow, latest string, idx Index) string {
	v := row.Value(latest)
	if v.IsMissing() {
		return domain.RemarkNoData
	}

	kpi := row.Key.KPI
	if _, ok := e.availability[kpi]; ok && v.Number == 0 {
		return domain.RemarkSiteDown
	}

	rule, ok := e.thresholds[kpi]
	if !ok {
		return domain.RemarkNoThreshold
	}
	if rule.Passes(v.Number) {
		return domain.RemarkStable
	}

	remark := domain.RemarkNotOK
	if !e.IsTrafficExempt(kpi) {
		if suffix, unstable := e.rnaSuffix(row.Key, latest, idx); unstable {
			remark += suffix
		}
	}
	return remark
}

// rnaSuffix looks up the RNA KPI of the same entity and segment and reports the
// correlation suffix when that value, rounded to two decimals, also fails its rule. A missing RNA row,
// value or rule means there is nothing to correlate.
func (e *Engine) rnaSuffix(key domain.PivotKey, latest string, idx Index) (string, bool) {
	rnaRow, ok := idx[domain.PivotKey{Entity: key.Entity, Segment: key.Segment, KPI: e.rnaKPI}]
	if !ok {
		return "", false
	}
	v := rnaRow.Value(latest)
	if v.IsMissing() {
		return "", false
	}
	rule, ok := e.thresholds[e.rnaKPI]
	if !ok {
		return "", false
	}

	rounded := decimal.NewFromFloat(v.Number).Round(2)
	if rule.Passes(rounded.InexactFloat64()) {
		return "", false
	}
	return domain.RemarkRNAUnstablePrefix + FormatPercent(rounded) + "%", true
}

// FormatPercent renders a rounded value in its shortest form while keeping at
// least one decimal: 95 → "95.0", 97.25 → "97.25".
func FormatPercent(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Annotate fills the remark of every row. The index is built once per call.
func (e *Engine) Annotate(table *domain.PivotTable) {
	idx := NewIndex(table)
	latest := table.Latest()
	for _, row := range table.Rows {
		row.Remark = e.Remark(row, latest, idx)
	}
}

// Summary counts rows per remark class. Rows carrying an RNA suffix are counted
// under both "KPI not ok" and "RNA UNSTABLE".
func Summary(table *domain.PivotTable) map[string]int {
	counts := make(map[string]int)
	for _, row := range table.Rows {
		base, _, correlated := strings.Cut(row.Remark, domain.RemarkRNAUnstablePrefix)
		counts[base]++
		if correlated {
			counts["RNA UNSTABLE"]++
		}
	}
	return counts
}
