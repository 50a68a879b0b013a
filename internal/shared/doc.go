// Package shared holds helpers used across the analyzer's packages.
//
// The testutil subpackage provides a buffered slog handler for asserting on
// log output and builders for in-memory KPI workbooks:
//
//	logger, logs := testutil.NewTestLogger(t)
//	data := testutil.WorkbookBytes(t, testutil.KPISheet("BBH"))
//	path := testutil.WriteWorkbook(t, t.TempDir(), "north_BBH.xlsx", testutil.KPISheet("BBH"))
package shared
