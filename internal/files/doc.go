// Package files discovers KPI workbooks on disk for the command-line host.
//
// Directories are scanned one level deep for .xlsx and .xlsm files; Office
// lock files are skipped. Explicit file arguments are always kept.
package files
