// Package http implements the HTTP handlers of the analyzer web host.
// Handlers parse multipart uploads, delegate to the services layer and
// write either the rendered table or RFC 7807 problem details.
//
// # Endpoints
//
//	POST /api/v1/workbooks/inspect  multipart "files"; detected sheets, columns, role suggestions
//	POST /api/v1/analyze            multipart "files", optional "config" (JSON), "format", "output_name"
//	GET  /api/health                health status, 503 when degraded
//	GET  /api/version               build and version information
//
// An analyze response carries the run ID in X-Run-ID and one X-Analysis-Warning
// header per run warning. The body is the table as an attachment.
package http
