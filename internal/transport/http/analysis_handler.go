package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "kpianalyzer/internal/errors"
	"kpianalyzer/internal/middleware"
	"kpianalyzer/internal/services"
)

const (
	// FilesField is the multipart field holding the workbooks.
	FilesField = "files"
	// ConfigField is the optional multipart field holding a JSON AnalyzeRequest.
	ConfigField = "config"

	// RunIDHeader carries the run ID of an analyze response.
	RunIDHeader = "X-Run-ID"
	// WarningHeader is repeated once per run warning.
	WarningHeader = "X-Analysis-Warning"

	defaultMaxMemory = 32 << 20
)

// AnalysisHandler serves workbook inspection and analysis runs.
type AnalysisHandler struct {
	service      *services.AnalysisService
	validator    *middleware.Validator
	errorHandler *apierrors.ErrorHandler
	maxMemory    int64
	logger       *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *services.AnalysisService, validator *middleware.Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		maxMemory:    defaultMaxMemory,
		logger:       logger.With(slog.String("handler", "analysis")),
	}
}

// Routes mounts inspect and analyze under the API base path.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ContentTypeValidator("multipart/form-data"))
	r.Post("/workbooks/inspect", h.Inspect)
	r.Post("/analyze", h.Analyze)
	return r
}

// InspectResponse wraps the inspect report.
type InspectResponse struct {
	*services.InspectReport
	RequestID string `json:"request_id,omitempty"`
}

// Render implements render.Renderer
func (resp *InspectResponse) Render(w http.ResponseWriter, r *http.Request) error {
	resp.RequestID = middleware.GetRequestID(r.Context())
	return nil
}

// Inspect handles POST /api/v1/workbooks/inspect
func (h *AnalysisHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.parseUploads(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	report, err := h.service.Inspect(r.Context(), uploads)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "workbooks inspected",
		slog.Int("files", len(report.Workbooks)),
		slog.Int("columns", len(report.Columns)))
	render.Status(r, http.StatusOK)
	render.Render(w, r, &InspectResponse{InspectReport: report})
}

// Analyze handles POST /api/v1/analyze. The rendered table is the response body.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.parseUploads(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	req, err := h.parseRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	out, err := h.service.Analyze(r.Context(), uploads, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", out.ContentType)
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	header.Set("Content-Length", strconv.Itoa(len(out.Body)))
	header.Set(RunIDHeader, out.Result.RunID)
	for _, warning := range out.Result.Warnings {
		header.Add(WarningHeader, warning)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Body); err != nil {
		h.logger.WarnContext(r.Context(), "response write failed", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(r.Context(), "analysis served",
		slog.String("run_id", out.Result.RunID),
		slog.String("format", string(out.Format)),
		slog.Int("rows", len(out.Result.Table.Rows)),
		slog.Int("warnings", len(out.Result.Warnings)))
}

// parseUploads reads the multipart form and returns one upload per file part.
func (h *AnalysisHandler) parseUploads(r *http.Request) ([]services.Upload, error) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, apierrors.InvalidRequestWithError(fmt.Errorf("invalid multipart form: %w", err))
	}

	files := r.MultipartForm.File[FilesField]
	if len(files) == 0 {
		return nil, apierrors.ErrNoFiles
	}
	uploads := make([]services.Upload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, fileHeaderUpload(fh))
	}
	return uploads, nil
}

func fileHeaderUpload(fh *multipart.FileHeader) services.Upload {
	return services.Upload{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// parseRequest decodes the config field and applies the format and output_name
// form values on top of it.
func (h *AnalysisHandler) parseRequest(r *http.Request) (services.AnalyzeRequest, error) {
	var req services.AnalyzeRequest
	if raw := r.FormValue(ConfigField); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return req, apierrors.InvalidRequestWithError(fmt.Errorf("config: %w", err))
		}
	}
	if v := r.FormValue("format"); v != "" {
		req.Format = v
	}
	if v := r.FormValue("output_name"); v != "" {
		req.OutputName = v
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return req, err
	}
	return req, nil
}
