// Package services implements the host-side layer between the transports
// (HTTP handlers, CLI commands) and the analysis pipeline.
//
// # Available Services
//
//	- AnalysisService: decodes uploaded workbooks, reports detected sheets and
//	  column-role candidates, runs the pipeline and renders the final table
//	- HealthService: health and version information
//
// # Requests
//
// An AnalyzeRequest overrides the configured analysis settings for one run:
//
//	req := services.AnalyzeRequest{
//	    Format: "csv",
//	    RNAKPI: "RNA",
//	    Thresholds: []services.ThresholdRequest{
//	        {KPI: "RNA", Operator: ">=", Limit: 99.5},
//	    },
//	}
//	out, err := svc.Analyze(ctx, uploads, req)
//
// # Error Handling
//
// Services return *errors.AppError values (input, parsing, schema, config) that
// the HTTP error handler maps onto RFC 7807 problem details.
package services
