package services

import (
	"strings"

	"kpianalyzer/internal/config"
)

// AnalyzeRequest carries per-run overrides of the configured analysis settings.
// Blank fields keep the configured value.
type AnalyzeRequest struct {
	Format     string             `json:"format,omitempty" form:"format" validate:"omitempty,oneof=xlsx csv json"`
	OutputName string             `json:"output_name,omitempty" form:"output_name" validate:"omitempty,filename,max=128"`
	Roles      *RolesRequest      `json:"roles,omitempty"`
	RNAKPI     string             `json:"rna_kpi,omitempty" validate:"omitempty,max=256"`
	StaticKPIs []string           `json:"static_kpis,omitempty" validate:"omitempty,dive,required"`
	Thresholds []ThresholdRequest `json:"thresholds,omitempty" validate:"omitempty,dive"`
}

// RolesRequest pins column roles by exact name.
type RolesRequest struct {
	Entity    string   `json:"entity,omitempty"`
	Segment   string   `json:"segment,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	KPIs      []string `json:"kpis,omitempty" validate:"omitempty,dive,required"`
}

// ThresholdRequest is one threshold rule. A request carrying thresholds replaces
// the configured set.
type ThresholdRequest struct {
	KPI      string  `json:"kpi" validate:"required"`
	Operator string  `json:"operator" validate:"required,operator"`
	Limit    float64 `json:"limit"`
}

// Apply returns base with the request's overrides applied.
func (r AnalyzeRequest) Apply(base config.AnalysisConfig) config.AnalysisConfig {
	out := base
	if r.Roles != nil {
		if v := strings.TrimSpace(r.Roles.Entity); v != "" {
			out.Roles.Entity = v
		}
		if v := strings.TrimSpace(r.Roles.Segment); v != "" {
			out.Roles.Segment = v
		}
		if v := strings.TrimSpace(r.Roles.Timestamp); v != "" {
			out.Roles.Timestamp = v
		}
		if len(r.Roles.KPIs) > 0 {
			out.Roles.KPIs = append([]string(nil), r.Roles.KPIs...)
		}
	}
	if v := strings.TrimSpace(r.RNAKPI); v != "" {
		out.RNAKPI = v
	}
	if len(r.StaticKPIs) > 0 {
		out.StaticKPIs = append([]string(nil), r.StaticKPIs...)
	}
	if len(r.Thresholds) > 0 {
		out.Thresholds = make([]config.ThresholdConfig, len(r.Thresholds))
		for i, t := range r.Thresholds {
			out.Thresholds[i] = config.ThresholdConfig{KPI: t.KPI, Operator: t.Operator, Limit: t.Limit}
		}
	}
	if v := strings.TrimSpace(r.OutputName); v != "" {
		out.OutputName = v
	}
	return out
}
