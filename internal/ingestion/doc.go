// Package ingestion loads OSS KPI export workbooks and normalizes them into one
// raw table.
//
// # Flow
//
//	ReadWorkbook / ReadWorkbookFile → Source (all sheets)
//	Normalize(sources)              → domain.RawTable (columns unioned, provenance tagged)
//	Extract(table, roles)           → []domain.RawRow (typed, header-continuation rows dropped)
//
// Column roles are resolved between Normalize and Extract by the resolver package;
// ingestion itself never guesses which column is which.
//
// # Errors
//
// Extract returns a *SchemaMismatchError when a sheet lacks the entity, segment or
// timestamp column, and ErrEmptyInput when nothing is left to process. Blank or
// non-numeric KPI cells are not errors: they become missing values.
package ingestion
