// Package resolver decides which columns of an OSS export play the entity,
// segment, timestamp and KPI roles.
//
// Resolution happens once, before any row is processed; the result is a
// domain.ColumnRoles value handed to the rest of the pipeline.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"kpianalyzer/pkg/contracts/domain"
)

// ErrRoleNotFound is returned when no column matches a required role.
var ErrRoleNotFound = errors.New("no column matches role")

// Default role keywords, matched case-insensitively as substrings.
const (
	DefaultEntityKeyword    = "bsc"
	DefaultSegmentKeyword   = "segment"
	DefaultTimestampKeyword = "time"
)

// Options steer resolution. Explicit role names win over keywords; KPIs come from
// KPIs, then StaticKPIs, then every remaining column.
type Options struct {
	Entity    string
	Segment   string
	Timestamp string
	KPIs      []string

	EntityKeyword    string
	SegmentKeyword   string
	TimestampKeyword string

	// StaticKPIs is the fixed KPI list used when KPIs are auto-discovered.
	StaticKPIs []string
}

func (o Options) withDefaults() Options {
	if o.EntityKeyword == "" {
		o.EntityKeyword = DefaultEntityKeyword
	}
	if o.SegmentKeyword == "" {
		o.SegmentKeyword = DefaultSegmentKeyword
	}
	if o.TimestampKeyword == "" {
		o.TimestampKeyword = DefaultTimestampKeyword
	}
	return o
}

// Candidates returns the columns whose name contains keyword, ignoring case.
func Candidates(columns []string, keyword string) []string {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil
	}
	return lo.Filter(columns, func(c string, _ int) bool {
		return strings.Contains(strings.ToLower(c), kw)
	})
}

// Suggestion lists the candidate columns for each role, for a host to present.
type Suggestion struct {
	Entity    []string `json:"entity"`
	Segment   []string `json:"segment"`
	Timestamp []string `json:"timestamp"`
	KPIs      []string `json:"kpis"`
}

// Suggest returns role candidates without committing to any of them.
func Suggest(columns []string, opts Options) Suggestion {
	opts = opts.withDefaults()
	s := Suggestion{
		Entity:    Candidates(columns, opts.EntityKeyword),
		Segment:   Candidates(columns, opts.SegmentKeyword),
		Timestamp: Candidates(columns, opts.TimestampKeyword),
	}
	ids := []string{first(s.Entity), first(s.Segment), first(s.Timestamp)}
	s.KPIs = lo.Without(columns, ids...)
	return s
}

// Resolve picks one column per identifier role and the KPI set.
func Resolve(columns []string, opts Options) (domain.ColumnRoles, error) {
	opts = opts.withDefaults()

	entity, err := pick(columns, "entity", opts.Entity, opts.EntityKeyword)
	if err != nil {
		return domain.ColumnRoles{}, err
	}
	segment, err := pick(columns, "segment", opts.Segment, opts.SegmentKeyword)
	if err != nil {
		return domain.ColumnRoles{}, err
	}
	timestamp, err := pick(columns, "timestamp", opts.Timestamp, opts.TimestampKeyword)
	if err != nil {
		return domain.ColumnRoles{}, err
	}

	roles := domain.ColumnRoles{Entity: entity, Segment: segment, Timestamp: timestamp}
	ids := roles.Identifiers()

	switch {
	case len(opts.KPIs) > 0:
		roles.KPIs = lo.Without(lo.Uniq(opts.KPIs), ids...)
	case len(opts.StaticKPIs) > 0:
		roles.KPIs = lo.Filter(lo.Uniq(opts.StaticKPIs), func(k string, _ int) bool {
			return lo.Contains(columns, k) && !lo.Contains(ids, k)
		})
	default:
		roles.KPIs = lo.Without(columns, ids...)
	}
	if len(roles.KPIs) == 0 {
		return domain.ColumnRoles{}, fmt.Errorf("%w: kpi", ErrRoleNotFound)
	}
	return roles, nil
}

func pick(columns []string, role, explicit, keyword string) (string, error) {
	if explicit != "" {
		if !lo.Contains(columns, explicit) {
			return "", fmt.Errorf("%w: %s column %q is not in the input", ErrRoleNotFound, role, explicit)
		}
		return explicit, nil
	}
	c := first(Candidates(columns, keyword))
	if c == "" {
		return "", fmt.Errorf("%w: %s (keyword %q)", ErrRoleNotFound, role, keyword)
	}
	return c, nil
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
