package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kpianalyzer/internal/config"
	apierrors "kpianalyzer/internal/errors"
	"kpianalyzer/internal/exporter"
	"kpianalyzer/internal/pipeline"
	"kpianalyzer/internal/shared/testutil"
	"kpianalyzer/pkg/contracts/domain"
)

func bytesUpload(name string, data []byte) Upload {
	return Upload{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func newService(t *testing.T) *AnalysisService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	analysis := config.Default().Analysis
	analysis.RNAKPI = "RNA"
	analysis.Thresholds = []config.ThresholdConfig{
		{KPI: "RNA", Operator: ">=", Limit: 99.5},
		{KPI: "Blocking", Operator: "<=", Limit: 1},
		{KPI: "TotalTrafficErlangs", Operator: ">=", Limit: 200},
	}
	return NewAnalysisService(analysis, pipeline.NewRunner(logger, nil), logger)
}

func kpiUpload(t *testing.T, name string) Upload {
	return bytesUpload(name, testutil.WorkbookBytes(t, testutil.KPISheet("BBH")))
}

func TestDecodeWorkbooks_KeepsUploadOrder(t *testing.T) {
	svc := newService(t)
	svc.workers = 2

	var loaded atomic.Int32
	uploads := []Upload{kpiUpload(t, "a_BBH.xlsx"), kpiUpload(t, "b_BBH.xlsx"), kpiUpload(t, "c_BBH.xlsx")}
	sources, err := svc.DecodeWorkbooks(context.Background(), uploads, func(string) { loaded.Add(1) })
	require.NoError(t, err)

	require.Len(t, sources, 3)
	assert.Equal(t, "a_BBH.xlsx", sources[0].Name)
	assert.Equal(t, "b_BBH.xlsx", sources[1].Name)
	assert.Equal(t, "c_BBH.xlsx", sources[2].Name)
	assert.Equal(t, int32(3), loaded.Load())
}

func TestDecodeWorkbooks_Errors(t *testing.T) {
	svc := newService(t)

	t.Run("no uploads", func(t *testing.T) {
		_, err := svc.DecodeWorkbooks(context.Background(), nil, nil)
		assert.ErrorIs(t, err, ErrNoWorkbooks)

		var appErr *apierrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apierrors.ErrTypeInput, appErr.Type)
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := svc.DecodeWorkbooks(context.Background(), []Upload{bytesUpload("notes.xlsx", []byte("plain text"))}, nil)
		require.Error(t, err)

		var appErr *apierrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apierrors.ErrTypeParsing, appErr.Type)
		assert.Equal(t, "notes.xlsx", appErr.Context["file"])
	})

	t.Run("open fails", func(t *testing.T) {
		boom := errors.New("disk gone")
		up := Upload{Name: "x.xlsx", Open: func() (io.ReadCloser, error) { return nil, boom }}
		_, err := svc.DecodeWorkbooks(context.Background(), []Upload{up}, nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.DecodeWorkbooks(ctx, []Upload{kpiUpload(t, "a.xlsx")}, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestInspect(t *testing.T) {
	svc := newService(t)
	data := testutil.WorkbookBytes(t,
		testutil.KPISheet("BBH"),
		testutil.Sheet{Name: "Notes", Rows: [][]interface{}{{"BSC", "Comment"}, {"BSC1", "ok"}}},
	)

	report, err := svc.Inspect(context.Background(), []Upload{bytesUpload("north.xlsx", data)})
	require.NoError(t, err)

	require.Len(t, report.Workbooks, 1)
	sheets := report.Workbooks[0].Sheets
	require.Len(t, sheets, 2)
	assert.Equal(t, domain.SheetTypeBBH, sheets[0].Type)
	assert.Equal(t, 3, sheets[0].Rows)
	assert.Equal(t, domain.SheetTypeUnknown, sheets[1].Type)

	assert.Equal(t, []string{"BSC", "Segment", "Time", "RNA", "Blocking", "TotalTrafficErlangs", "Comment"}, report.Columns)
	assert.Contains(t, report.Suggestions.Entity, "BSC")
	assert.Contains(t, report.Suggestions.Timestamp, "Time")
}

func TestAnalyze_Formats(t *testing.T) {
	svc := newService(t)

	t.Run("csv", func(t *testing.T) {
		out, err := svc.Analyze(context.Background(), []Upload{kpiUpload(t, "north_BBH.xlsx")}, AnalyzeRequest{Format: "csv", OutputName: "north"})
		require.NoError(t, err)

		assert.Equal(t, "north.csv", out.Filename)
		assert.Equal(t, exporter.FormatCSV, out.Format)
		assert.Contains(t, out.ContentType, "text/csv")

		records, err := csv.NewReader(bytes.NewReader(out.Body)).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, []string{"BSC", "Segment", "KPI", "20-Jan", "21-Jan", "Remarks"}, records[0])
		assert.Len(t, records, 7)
	})

	t.Run("json", func(t *testing.T) {
		out, err := svc.Analyze(context.Background(), []Upload{kpiUpload(t, "north_BBH.xlsx")}, AnalyzeRequest{Format: "json"})
		require.NoError(t, err)
		assert.Equal(t, config.DefaultOutputName+".json", out.Filename)

		var doc struct {
			DateLabels []string `json:"date_labels"`
			Rows       []struct {
				Entity string `json:"entity"`
				KPI    string `json:"kpi"`
				Remark string `json:"remark"`
			} `json:"rows"`
		}
		require.NoError(t, json.Unmarshal(out.Body, &doc))
		assert.Equal(t, []string{"20-Jan", "21-Jan"}, doc.DateLabels)
		require.Len(t, doc.Rows, 6)
	})

	t.Run("xlsx default", func(t *testing.T) {
		out, err := svc.Analyze(context.Background(), []Upload{kpiUpload(t, "north_BBH.xlsx")}, AnalyzeRequest{})
		require.NoError(t, err)
		assert.Equal(t, exporter.FormatXLSX, out.Format)

		f, err := excelize.OpenReader(bytes.NewReader(out.Body))
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows(f.GetSheetName(0))
		require.NoError(t, err)
		assert.Equal(t, "Remarks", rows[0][len(rows[0])-1])
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := svc.Analyze(context.Background(), []Upload{kpiUpload(t, "north_BBH.xlsx")}, AnalyzeRequest{Format: "pdf"})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)

		var appErr *apierrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, 400, appErr.HTTPStatus())
	})
}

func TestRun_RequestOverridesThresholds(t *testing.T) {
	svc := newService(t)
	req := AnalyzeRequest{Thresholds: []ThresholdRequest{
		{KPI: "RNA", Operator: ">=", Limit: 90},
		{KPI: "Blocking", Operator: "<=", Limit: 5},
	}}

	res, err := svc.Run(context.Background(), []Upload{kpiUpload(t, "north_BBH.xlsx")}, req)
	require.NoError(t, err)

	for _, row := range res.Table.Rows {
		if row.Entity == "BSC1" && row.KPI == "Blocking" {
			assert.Equal(t, domain.RemarkStable, row.Remark)
		}
		if row.Entity == "BSC1" && row.KPI == "TotalTrafficErlangs" {
			assert.Equal(t, domain.RemarkNoThreshold, row.Remark)
		}
	}
}

func TestAnalyzeRequest_Apply(t *testing.T) {
	base := config.Default().Analysis
	base.RNAKPI = "RNA"
	base.Thresholds = []config.ThresholdConfig{{KPI: "RNA", Operator: ">=", Limit: 99}}

	t.Run("blank keeps base", func(t *testing.T) {
		assert.Equal(t, base, AnalyzeRequest{RNAKPI: "  "}.Apply(base))
	})

	t.Run("overrides", func(t *testing.T) {
		got := AnalyzeRequest{
			Roles:      &RolesRequest{Entity: " Cell ", KPIs: []string{"Drop"}},
			RNAKPI:     "Availability",
			StaticKPIs: []string{"Drop"},
			Thresholds: []ThresholdRequest{{KPI: "Availability", Operator: ">=", Limit: 98}},
			OutputName: "south",
		}.Apply(base)

		assert.Equal(t, "Cell", got.Roles.Entity)
		assert.Equal(t, []string{"Drop"}, got.Roles.KPIs)
		assert.Equal(t, "Availability", got.RNAKPI)
		assert.Equal(t, []string{"Drop"}, got.StaticKPIs)
		assert.Equal(t, []config.ThresholdConfig{{KPI: "Availability", Operator: ">=", Limit: 98}}, got.Thresholds)
		assert.Equal(t, "south", got.OutputName)
		assert.Equal(t, "RNA", base.RNAKPI)
	})
}
