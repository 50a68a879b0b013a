package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"kpianalyzer/pkg/contracts/domain"
)

var (
	// ErrEmptyInput is returned when no sheet of any source carries a data row.
	ErrEmptyInput = errors.New("no data rows in input")

	// ErrSchemaMismatch is matched by every *SchemaMismatchError.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// SchemaMismatchError reports required columns missing from one source sheet.
type SchemaMismatchError struct {
	Source  domain.Provenance
	Missing []string
}

// Error implements the error interface
func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: missing required column(s) %s",
		e.Source.Origin(), strings.Join(e.Missing, ", "))
}

// Is lets errors.Is(err, ErrSchemaMismatch) match.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}
