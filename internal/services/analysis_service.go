package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"kpianalyzer/internal/config"
	apierrors "kpianalyzer/internal/errors"
	"kpianalyzer/internal/exporter"
	"kpianalyzer/internal/ingestion"
	"kpianalyzer/internal/pipeline"
	"kpianalyzer/internal/resolver"
	"kpianalyzer/pkg/contracts/domain"
)

// Upload is one workbook handed to the service. Open may be called once.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileUpload wraps a workbook on disk.
func FileUpload(path string) Upload {
	return Upload{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// SheetReport describes one sheet of an inspected workbook.
type SheetReport struct {
	Name    string           `json:"name"`
	Type    domain.SheetType `json:"type"`
	Columns []string         `json:"columns"`
	Rows    int              `json:"rows"`
}

// WorkbookReport lists the sheets detected in one workbook.
type WorkbookReport struct {
	Name   string        `json:"name"`
	Sheets []SheetReport `json:"sheets"`
}

// InspectReport is what a host shows before a run: detected sheets, the union of
// columns, and the role candidates for each column.
type InspectReport struct {
	Workbooks   []WorkbookReport   `json:"workbooks"`
	Columns     []string           `json:"columns"`
	Suggestions resolver.Suggestion `json:"suggestions"`
}

// AnalysisOutput is a finished run rendered in the requested format.
type AnalysisOutput struct {
	Result      *pipeline.Result `json:"result"`
	Format      exporter.Format  `json:"format"`
	Filename    string           `json:"filename"`
	ContentType string           `json:"content_type"`
	Body        []byte           `json:"-"`
}

// AnalysisService is the host-side glue between uploads and the pipeline.
type AnalysisService struct {
	analysis config.AnalysisConfig
	runner   *pipeline.Runner
	workers  int
	logger   *slog.Logger
}

// NewAnalysisService creates the service around the configured analysis settings.
func NewAnalysisService(analysis config.AnalysisConfig, runner *pipeline.Runner, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		analysis: analysis,
		runner:   runner,
		workers:  runtime.NumCPU(),
		logger:   logger.With(slog.String("service", "analysis")),
	}
}

// DecodeWorkbooks reads every upload concurrently. Sources keep upload order.
// onLoaded, when set, is called once per decoded workbook from the decoding goroutine.
func (s *AnalysisService) DecodeWorkbooks(ctx context.Context, uploads []Upload, onLoaded func(name string)) ([]ingestion.Source, error) {
	if len(uploads) == 0 {
		return nil, apierrors.NewInputError("no workbooks supplied", ErrNoWorkbooks)
	}

	start := time.Now()
	sources := make([]ingestion.Source, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, up := range uploads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := decode(up)
			if err != nil {
				return apierrors.NewParsingError(fmt.Sprintf("workbook %q could not be read", up.Name), err).
					WithContext("file", up.Name)
			}
			sources[i] = src
			if onLoaded != nil {
				onLoaded(up.Name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "workbooks decoded",
		slog.Int("count", len(sources)),
		slog.Duration("duration", time.Since(start)))
	return sources, nil
}

func decode(up Upload) (ingestion.Source, error) {
	rc, err := up.Open()
	if err != nil {
		return ingestion.Source{}, err
	}
	defer rc.Close()
	return ingestion.ReadWorkbook(up.Name, rc)
}

// Inspect reports the sheets and columns of the uploads and the role candidates.
func (s *AnalysisService) Inspect(ctx context.Context, uploads []Upload) (*InspectReport, error) {
	sources, err := s.DecodeWorkbooks(ctx, uploads, nil)
	if err != nil {
		return nil, err
	}
	return s.InspectSources(sources), nil
}

// InspectSources builds the inspect report of already decoded workbooks.
func (s *AnalysisService) InspectSources(sources []ingestion.Source) *InspectReport {
	report := &InspectReport{Workbooks: make([]WorkbookReport, 0, len(sources))}
	for _, src := range sources {
		wb := WorkbookReport{Name: src.Name, Sheets: make([]SheetReport, 0, len(src.Sheets))}
		for _, sh := range src.Sheets {
			wb.Sheets = append(wb.Sheets, SheetReport{
				Name:    sh.Name,
				Type:    ingestion.SheetTypeFor(src.Name, sh.Name),
				Columns: sh.Header,
				Rows:    len(sh.Rows),
			})
			report.Columns = append(report.Columns, sh.Header...)
		}
		report.Workbooks = append(report.Workbooks, wb)
	}
	report.Columns = lo.Uniq(report.Columns)
	report.Suggestions = resolver.Suggest(report.Columns, s.analysis.ResolverOptions())
	return report
}

// Run decodes the uploads and runs the pipeline with the request applied to the
// configured settings.
func (s *AnalysisService) Run(ctx context.Context, uploads []Upload, req AnalyzeRequest) (*pipeline.Result, error) {
	sources, err := s.DecodeWorkbooks(ctx, uploads, nil)
	if err != nil {
		return nil, err
	}
	return s.RunSources(ctx, sources, req)
}

// RunSources runs the pipeline over decoded workbooks.
func (s *AnalysisService) RunSources(ctx context.Context, sources []ingestion.Source, req AnalyzeRequest) (*pipeline.Result, error) {
	return s.runner.Run(ctx, sources, req.Apply(s.analysis))
}

// Analyze runs the pipeline and renders the table in the requested format.
func (s *AnalysisService) Analyze(ctx context.Context, uploads []Upload, req AnalyzeRequest) (*AnalysisOutput, error) {
	format, err := exporter.ParseFormat(req.Format)
	if err != nil {
		return nil, apierrors.NewAppValidationError("unsupported output format", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err))
	}

	res, err := s.Run(ctx, uploads, req)
	if err != nil {
		return nil, err
	}
	return s.Render(res, format, req.Apply(s.analysis).OutputName)
}

// Render writes the result table in format. name is the base file name.
func (s *AnalysisService) Render(res *pipeline.Result, format exporter.Format, name string) (*AnalysisOutput, error) {
	w, err := exporter.ForFormat(format)
	if err != nil {
		return nil, apierrors.NewAppValidationError("unsupported output format", err)
	}
	if name == "" {
		name = config.DefaultOutputName
	}

	var buf bytes.Buffer
	if err := w.Write(&buf, res.Table); err != nil {
		return nil, apierrors.NewStorageError("result could not be rendered", err)
	}
	return &AnalysisOutput{
		Result:      res,
		Format:      format,
		Filename:    name + w.Extension(),
		ContentType: w.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}
