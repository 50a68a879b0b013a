package http

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpianalyzer/internal/config"
	apierrors "kpianalyzer/internal/errors"
	"kpianalyzer/internal/middleware"
	"kpianalyzer/internal/pipeline"
	"kpianalyzer/internal/services"
	"kpianalyzer/internal/shared/testutil"
)

type filePart struct {
	name string
	data []byte
}

func multipartBody(t *testing.T, files []filePart, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, f := range files {
		part, err := mw.CreateFormFile(FilesField, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	analysis := config.Default().Analysis
	analysis.RNAKPI = "RNA"
	analysis.Thresholds = []config.ThresholdConfig{
		{KPI: "RNA", Operator: ">=", Limit: 99.5},
		{KPI: "Blocking", Operator: "<=", Limit: 1},
	}
	svc := services.NewAnalysisService(analysis, pipeline.NewRunner(logger, nil), logger)
	errorHandler := apierrors.NewErrorHandler(logger, false)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount(config.APIBasePath, NewAnalysisHandler(svc, middleware.NewValidator(logger), errorHandler, logger).Routes())
	return r
}

func post(t *testing.T, h http.Handler, path string, files []filePart, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func kpiFile(t *testing.T) filePart {
	return filePart{name: "north_BBH.xlsx", data: testutil.WorkbookBytes(t, testutil.KPISheet("BBH"))}
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

func TestAnalysisHandler_Inspect(t *testing.T) {
	rec := post(t, newTestRouter(t), config.InspectEndpoint, []filePart{kpiFile(t)}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Workbooks []struct {
			Name   string `json:"name"`
			Sheets []struct {
				Name string `json:"name"`
				Type string `json:"type"`
			} `json:"sheets"`
		} `json:"workbooks"`
		Columns   []string `json:"columns"`
		RequestID string   `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Workbooks, 1)
	assert.Equal(t, "north_BBH.xlsx", resp.Workbooks[0].Name)
	assert.Equal(t, "BBH", resp.Workbooks[0].Sheets[0].Type)
	assert.Contains(t, resp.Columns, "RNA")
	assert.NotEmpty(t, resp.RequestID)
}

func TestAnalysisHandler_AnalyzeCSV(t *testing.T) {
	cfg := `{"thresholds":[{"kpi":"RNA","operator":">=","limit":99.5},{"kpi":"Blocking","operator":"<=","limit":1}]}`
	rec := post(t, newTestRouter(t), config.AnalyzeEndpoint, []filePart{kpiFile(t)},
		map[string]string{"config": cfg, "format": "csv", "output_name": "north"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "north.csv", params["filename"])
	assert.Len(t, rec.Header().Get(RunIDHeader), 36)

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"BSC", "Segment", "KPI", "20-Jan", "21-Jan", "Remarks"}, records[0])
}

func TestAnalysisHandler_AnalyzeWarnings(t *testing.T) {
	data := testutil.WorkbookBytes(t, testutil.Sheet{
		Name: "BBH",
		Rows: [][]interface{}{
			{"BSC", "Segment", "Time", "RNA"},
			{"BSC1", "SEG1", "garbage", 99.9},
			{"BSC1", "SEG1", "2026-01-21", 99.9},
		},
	})
	rec := post(t, newTestRouter(t), config.AnalyzeEndpoint, []filePart{{name: "w_BBH.xlsx", data: data}},
		map[string]string{"format": "json", "config": `{"thresholds":[{"kpi":"RNA","operator":">=","limit":99.5}]}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	warnings := rec.Header().Values(WarningHeader)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "unparsable timestamp")
}

func TestAnalysisHandler_Errors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name      string
		files     []filePart
		fields    map[string]string
		status    int
		errorCode string
	}{
		{
			name:      "no files",
			status:    http.StatusBadRequest,
			errorCode: "NO_FILES",
		},
		{
			name:      "bad config json",
			files:     []filePart{kpiFile(t)},
			fields:    map[string]string{"config": "{"},
			status:    http.StatusBadRequest,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unsupported format",
			files:     []filePart{kpiFile(t)},
			fields:    map[string]string{"format": "pdf"},
			status:    http.StatusBadRequest,
			errorCode: "VALIDATION_FAILED",
		},
		{
			name:      "unknown operator",
			files:     []filePart{kpiFile(t)},
			fields:    map[string]string{"config": `{"thresholds":[{"kpi":"RNA","operator":"==","limit":1}]}`},
			status:    http.StatusBadRequest,
			errorCode: "VALIDATION_FAILED",
		},
		{
			name:      "not a workbook",
			files:     []filePart{{name: "notes.xlsx", data: []byte("hello")}},
			status:    http.StatusBadRequest,
			errorCode: string(apierrors.ErrTypeParsing),
		},
		{
			name:      "rna rule missing",
			files:     []filePart{kpiFile(t)},
			fields:    map[string]string{"config": `{"thresholds":[{"kpi":"Blocking","operator":"<=","limit":1}]}`},
			status:    http.StatusUnprocessableEntity,
			errorCode: string(apierrors.ErrTypeConfig),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, router, config.AnalyzeEndpoint, tt.files, tt.fields)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			problem := decodeProblem(t, rec)
			assert.Equal(t, float64(tt.status), problem["status"])
			assert.Equal(t, tt.errorCode, problem["error_code"])
		})
	}
}

func TestAnalysisHandler_SchemaMismatch(t *testing.T) {
	day := testutil.WorkbookBytes(t, testutil.Sheet{
		Name: "DAY",
		Rows: [][]interface{}{{"BSC", "Time", "RNA"}, {"BSC1", "2026-01-21", 99}},
	})
	cfg := `{"thresholds":[{"kpi":"RNA","operator":">=","limit":99.5}]}`
	rec := post(t, newTestRouter(t), config.AnalyzeEndpoint,
		[]filePart{kpiFile(t), {name: "north_DAY.xlsx", data: day}},
		map[string]string{"config": cfg})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	problem := decodeProblem(t, rec)
	assert.Equal(t, apierrors.TypeSchemaMismatch, problem["type"])
	assert.Equal(t, "north_DAY.xlsx/DAY", problem["source"])
}

func TestAnalysisHandler_RejectsJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, config.AnalyzeEndpoint, bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
