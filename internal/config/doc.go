// Package config loads the analyzer configuration.
//
// Values come from three layers, later layers winning:
//
//	Default()                 built-in defaults
//	config/analyzer.yaml      or the file named by KPI_CONFIG_FILE
//	KPI_* environment         e.g. KPI_SERVER_PORT, KPI_ANALYSIS_RNA_KPI
//
// A .env file in the working directory is loaded into the environment first.
// Threshold rules are only read from the file:
//
//	analysis:
//	  rna_kpi: "TCH Availability"
//	  thresholds:
//	    - kpi: "TCH Availability"
//	      operator: ">="
//	      limit: 99.5
//	    - kpi: "TCH Blocking"
//	      operator: "<="
//	      limit: 1.25
//
// Paths resolves the data, output and log directories against the executable
// directory (web host) or the working directory (CLI).
package config
