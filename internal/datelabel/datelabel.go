// Package datelabel turns OSS export timestamps into day-month column labels
// ("21-Jan") and orders those labels by calendar date rather than by string.
//
// Labels deliberately drop the year: a run covers a single reporting cycle, so the
// (month, day) pair is the sort key.
package datelabel

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Layout is the label format: unpadded day, abbreviated month.
const Layout = "2-Jan"

// Excel serial day numbers accepted as timestamps. Smaller integers are far more
// likely to be counters than dates.
const (
	minExcelSerial = 367
	maxExcelSerial = 2958465
)

// layouts are tried in order; month-first wins for ambiguous numeric dates, matching
// how the OSS tools export them.
var layouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"01-02-06 15:04",
	"01-02-06",
	"1/2/06 15:04",
	"1/2/06",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"02-Jan-2006 15:04:05",
	"02-Jan-2006 15:04",
	"02-Jan-2006",
	"2-Jan-06",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"2 Jan 2006",
	"20060102",
}

// ParseTimestamp parses a timestamp cell. It never fails loudly: anything it cannot
// read is reported with ok=false so the caller can record the value as missing.
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "/-") {
		if f >= minExcelSerial && f <= maxExcelSerial {
			t, err := excelize.ExcelDateToTime(f, false)
			if err == nil {
				return t, true
			}
		}
		if len(s) != 8 {
			return time.Time{}, false
		}
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromTime formats a timestamp as a date label.
func FromTime(t time.Time) string {
	return t.Format(Layout)
}

// FromRaw parses a raw timestamp cell and returns its label, or "" when unparsable.
func FromRaw(raw string) (string, bool) {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return "", false
	}
	return FromTime(t), true
}

// Key is the calendar position of a label.
type Key struct {
	Month time.Month
	Day   int
}

// Before reports whether k falls earlier in the year than o.
func (k Key) Before(o Key) bool {
	if k.Month != o.Month {
		return k.Month < o.Month
	}
	return k.Day < o.Day
}

// Parse reads a "21-Jan" (or "05-Feb") label back into its calendar key.
func Parse(label string) (Key, bool) {
	day, mon, found := strings.Cut(strings.TrimSpace(label), "-")
	if !found {
		return Key{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return Key{}, false
	}
	m, err := time.Parse("Jan", mon)
	if err != nil {
		return Key{}, false
	}
	return Key{Month: m.Month(), Day: d}, true
}

// Less orders two labels chronologically. Unparsable labels sort after every
// parsable one, then lexically, so the order stays total and deterministic.
func Less(a, b string) bool {
	ka, okA := Parse(a)
	kb, okB := Parse(b)
	switch {
	case okA && okB:
		if ka == kb {
			return a < b
		}
		return ka.Before(kb)
	case okA:
		return true
	case okB:
		return false
	default:
		return a < b
	}
}

// Sort returns the labels in calendar order. The input slice is not modified.
func Sort(labels []string) []string {
	out := append([]string(nil), labels...)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}
