package config

// Application constants
const (
	AppName   = "kpianalyzer"
	AppTitle  = "Multi-Tech KPI Analyzer"
	AppVendor = "RNA Performance Team"

	// DefaultOutputName is the base name of the exported result.
	DefaultOutputName = "KPI_FINAL_OUTPUT"

	// API Endpoints
	APIBasePath     = "/api/v1"
	InspectEndpoint = "/api/v1/workbooks/inspect"
	AnalyzeEndpoint = "/api/v1/analyze"
	HealthEndpoint  = "/api/health"
	VersionEndpoint = "/api/version"
	MetricsEndpoint = "/metrics"
)
