package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Operator is the comparison a threshold rule applies to a KPI value.
type Operator int

const (
	// AtLeast passes when the value is at or above the limit.
	AtLeast Operator = iota + 1
	// AtMost passes when the value is at or below the limit.
	AtMost
)

// String renders the operator in spreadsheet notation.
func (o Operator) String() string {
	switch o {
	case AtLeast:
		return ">="
	case AtMost:
		return "<="
	default:
		return "?"
	}
}

// ParseOperator accepts ">=", "<=", their unicode forms and the names at_least / at_most.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ">=", "≥", "at_least", "atleast", "gte":
		return AtLeast, nil
	case "<=", "≤", "at_most", "atmost", "lte":
		return AtMost, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}

// MarshalText implements encoding.TextMarshaler.
func (o Operator) MarshalText() ([]byte, error) {
	if o != AtLeast && o != AtMost {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperator, int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operator) UnmarshalText(b []byte) error {
	op, err := ParseOperator(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// ThresholdRule is the pass/fail rule configured for one KPI.
type ThresholdRule struct {
	KPI      string   `json:"kpi" validate:"required"`
	Operator Operator `json:"operator"`
	Limit    float64  `json:"limit"`
}

// Passes reports whether v satisfies the rule. Both operators are inclusive.
func (r ThresholdRule) Passes(v float64) bool {
	switch r.Operator {
	case AtLeast:
		return v >= r.Limit
	case AtMost:
		return v <= r.Limit
	default:
		return false
	}
}

// ColumnRoles names the source columns that play each role in a run.
type ColumnRoles struct {
	Entity    string   `json:"entity" yaml:"entity"`
	Segment   string   `json:"segment" yaml:"segment"`
	Timestamp string   `json:"timestamp" yaml:"timestamp"`
	KPIs      []string `json:"kpis" yaml:"kpis"`
}

// Identifiers returns the entity, segment and timestamp columns.
func (c ColumnRoles) Identifiers() []string {
	return []string{c.Entity, c.Segment, c.Timestamp}
}

// Complete reports whether every identifier role and at least one KPI is set.
func (c ColumnRoles) Complete() bool {
	return c.Entity != "" && c.Segment != "" && c.Timestamp != "" && len(c.KPIs) > 0
}

// Configuration errors
var (
	ErrUnknownOperator   = errors.New("unknown threshold operator")
	ErrIncompleteRoles   = errors.New("column roles are incomplete")
	ErrNoRNAKPI          = errors.New("no RNA KPI designated")
	ErrRNARuleMissing    = errors.New("RNA KPI has no threshold rule")
	ErrRNANotSelected    = errors.New("RNA KPI is not among the selected KPIs")
	ErrDuplicateRoleName = errors.New("a column is assigned to more than one role")
)

// RunConfig is the immutable configuration of one analysis run.
type RunConfig struct {
	Roles                ColumnRoles              `json:"roles"`
	Thresholds           map[string]ThresholdRule `json:"thresholds"`
	RNAKPI               string                   `json:"rna_kpi"`
	AvailabilitySynonyms []string                 `json:"availability_synonyms,omitempty"`
	TrafficKPIs          []string                 `json:"traffic_kpis,omitempty"`
	TrafficKeywords      []string                 `json:"traffic_keywords,omitempty"`
}

// Validate checks the structural consistency of the run configuration.
func (c RunConfig) Validate() error {
	if !c.Roles.Complete() {
		return ErrIncompleteRoles
	}
	ids := c.Roles.Identifiers()
	if ids[0] == ids[1] || ids[0] == ids[2] || ids[1] == ids[2] {
		return ErrDuplicateRoleName
	}
	for _, k := range c.Roles.KPIs {
		for _, id := range ids {
			if k == id {
				return fmt.Errorf("%w: %q", ErrDuplicateRoleName, k)
			}
		}
	}
	for name, rule := range c.Thresholds {
		if rule.Operator != AtLeast && rule.Operator != AtMost {
			return fmt.Errorf("kpi %q: %w", name, ErrUnknownOperator)
		}
	}
	if c.RNAKPI == "" {
		return ErrNoRNAKPI
	}
	selected := false
	for _, k := range c.Roles.KPIs {
		if k == c.RNAKPI {
			selected = true
			break
		}
	}
	if !selected {
		return fmt.Errorf("%w: %q", ErrRNANotSelected, c.RNAKPI)
	}
	if _, ok := c.Thresholds[c.RNAKPI]; !ok {
		return fmt.Errorf("%w: %q", ErrRNARuleMissing, c.RNAKPI)
	}
	return nil
}
