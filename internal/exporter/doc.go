// Package exporter renders the annotated KPI table.
//
// Flatten turns a pivot table into the final domain.Table:
//
//	[entity, segment, KPI, <date labels in calendar order>..., Remarks]
//
// with values rounded to two decimals. Writers then render that table:
//
// XLSXWriter: a single KPI_FINAL_OUTPUT sheet with a bold, frozen header and
// numeric cells. Missing values are empty cells.
//
// CSVWriter: the same layout with two-decimal values and an optional UTF-8 BOM
// for Excel compatibility.
//
// JSONWriter: header, labels and rows with missing values as null.
//
// FileExporter saves any of them under the configured output directory.
//
// Example usage:
//
//	table := exporter.Flatten(pivot, roles)
//	path, err := exporter.NewFileExporter(paths, logger).
//		Save("KPI_FINAL_OUTPUT", exporter.NewXLSXWriter(), table)
package exporter
