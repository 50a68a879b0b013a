package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kpianalyzer/internal/config"
	apierrors "kpianalyzer/internal/errors"
	"kpianalyzer/internal/exporter"
	"kpianalyzer/internal/infrastructure"
	"kpianalyzer/internal/ingestion"
	"kpianalyzer/internal/remark"
	"kpianalyzer/internal/reshape"
	"kpianalyzer/internal/resolver"
	"kpianalyzer/pkg/contracts/domain"
)

// Stats gathers the counters of every stage of a run.
type Stats struct {
	Sources int                    `json:"sources"`
	Sheets  int                    `json:"sheets"`
	Records int                    `json:"raw_records"`
	Extract ingestion.ExtractStats `json:"extract"`
	Long    reshape.LongStats      `json:"long"`
	Pivot   reshape.PivotStats     `json:"pivot"`
	Remarks map[string]int         `json:"remarks"`
}

// Result is the outcome of one run. Pivot and Table are owned by the caller.
type Result struct {
	RunID    string             `json:"run_id"`
	Roles    domain.ColumnRoles `json:"roles"`
	Pivot    *domain.PivotTable `json:"-"`
	Table    *domain.Table      `json:"-"`
	Stats    Stats              `json:"stats"`
	Warnings []string           `json:"warnings,omitempty"`
	Stages   []*StageState      `json:"stages"`
	Duration time.Duration      `json:"duration"`
}

// configure builds the run configuration once the unioned columns are known.
type configure func(columns []string) (domain.RunConfig, error)

// Runner executes the ingest → reshape → remark → flatten chain. It holds no
// per-run state and may serve concurrent runs.
type Runner struct {
	logger  *slog.Logger
	metrics *infrastructure.AnalysisMetrics
	tracer  trace.Tracer
}

// NewRunner creates a runner. A nil metrics records nothing.
func NewRunner(logger *slog.Logger, metrics *infrastructure.AnalysisMetrics) *Runner {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Runner{
		logger:  infrastructure.WithComponent(logger, "pipeline"),
		metrics: metrics,
		tracer:  otel.Tracer(infrastructure.InstrumentationName),
	}
}

// Run resolves the column roles from the analysis settings against the unioned
// columns of sources, then runs with the resulting configuration.
func (r *Runner) Run(ctx context.Context, sources []ingestion.Source, analysis config.AnalysisConfig) (*Result, error) {
	return r.run(ctx, sources, func(columns []string) (domain.RunConfig, error) {
		roles, err := resolver.Resolve(columns, analysis.ResolverOptions())
		if err != nil {
			return domain.RunConfig{}, apierrors.NewSchemaError("column roles could not be resolved", err)
		}
		cfg, err := analysis.RunConfig(roles)
		if err != nil {
			return domain.RunConfig{}, apierrors.NewConfigError("invalid run configuration", err)
		}
		return cfg, nil
	})
}

// RunWithConfig runs with fully resolved roles.
func (r *Runner) RunWithConfig(ctx context.Context, sources []ingestion.Source, cfg domain.RunConfig) (*Result, error) {
	return r.run(ctx, sources, func([]string) (domain.RunConfig, error) {
		if err := cfg.Validate(); err != nil {
			return domain.RunConfig{}, apierrors.NewConfigError("invalid run configuration", err)
		}
		return cfg, nil
	})
}

func (r *Runner) run(ctx context.Context, sources []ingestion.Source, configureRun configure) (res *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res = &Result{RunID: uuid.New().String()}
	ctx = infrastructure.EnsureTraceID(ctx)
	logger := r.logger.With(slog.String("run_id", res.RunID))
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", res.RunID),
			attribute.Int("run.sources", len(sources)),
		),
	)
	defer func() {
		res.Duration = time.Since(start)
		r.metrics.RecordRun(ctx, res.Duration, res.Stats.Extract.Rows, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "run failed",
				slog.String("error", err.Error()),
				slog.Duration("duration", res.Duration))
		} else {
			logger.InfoContext(ctx, "run completed",
				slog.Int("rows", len(res.Table.Rows)),
				slog.Int("date_labels", len(res.Table.DateLabels)),
				slog.Int("warnings", len(res.Warnings)),
				slog.Duration("duration", res.Duration))
		}
		span.End()
	}()

	logger.InfoContext(ctx, "run started",
		slog.Int("sources", len(sources)),
		slog.Any("sheets", ingestion.SheetInfo(sources)))

	var raw *domain.RawTable
	if err = r.stage(ctx, res, StageNormalize, func(context.Context) error {
		var nerr error
		raw, nerr = ingestion.Normalize(sources)
		if nerr != nil {
			return classify(nerr)
		}
		res.Stats.Sources = len(sources)
		res.Stats.Sheets = len(raw.Sources)
		res.Stats.Records = len(raw.Records)
		return nil
	}); err != nil {
		return res, err
	}

	var cfg domain.RunConfig
	if err = r.stage(ctx, res, StageResolve, func(context.Context) error {
		var cerr error
		cfg, cerr = configureRun(raw.Columns)
		if cerr != nil {
			return cerr
		}
		res.Roles = cfg.Roles
		return nil
	}); err != nil {
		return res, err
	}

	var rows []domain.RawRow
	if err = r.stage(ctx, res, StageExtract, func(context.Context) error {
		var xerr error
		rows, res.Stats.Extract, xerr = ingestion.Extract(raw, cfg.Roles)
		return classify(xerr)
	}); err != nil {
		return res, err
	}

	var long []domain.LongRecord
	if err = r.stage(ctx, res, StageLong, func(context.Context) error {
		long, res.Stats.Long = reshape.ToLong(rows, cfg.Roles.KPIs)
		return nil
	}); err != nil {
		return res, err
	}

	if err = r.stage(ctx, res, StagePivot, func(context.Context) error {
		res.Pivot, res.Stats.Pivot = reshape.ToPivot(long)
		return nil
	}); err != nil {
		return res, err
	}

	if err = r.stage(ctx, res, StageRemark, func(context.Context) error {
		remark.NewEngine(cfg).Annotate(res.Pivot)
		res.Stats.Remarks = remark.Summary(res.Pivot)
		return nil
	}); err != nil {
		return res, err
	}

	if err = r.stage(ctx, res, StageFlatten, func(context.Context) error {
		res.Table = exporter.Flatten(res.Pivot, cfg.Roles)
		return nil
	}); err != nil {
		return res, err
	}

	res.Warnings = warnings(res.Stats, res.Pivot)
	for _, w := range res.Warnings {
		logger.WarnContext(ctx, "data quality", slog.String("warning", w))
	}
	r.recordQuality(ctx, res.Stats)
	r.metrics.RecordRemarks(ctx, res.Stats.Remarks)
	return res, nil
}

// stage runs fn under its own span, records its state and duration.
func (r *Runner) stage(ctx context.Context, res *Result, id string, fn func(context.Context) error) error {
	state := NewStageState(id)
	res.Stages = append(res.Stages, state)

	ctx, span := r.tracer.Start(ctx, "pipeline.stage."+id,
		trace.WithAttributes(attribute.String("stage.id", id)))
	defer span.End()

	state.Start()
	err := fn(ctx)
	if err != nil {
		state.Fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		state.Complete()
	}

	r.metrics.RecordStage(ctx, id, state.Duration(), err == nil)
	r.logger.DebugContext(ctx, "stage finished",
		slog.String("run_id", res.RunID),
		slog.String("stage", id),
		slog.String("status", string(state.Status)),
		slog.Duration("duration", state.Duration()))
	return err
}

func (r *Runner) recordQuality(ctx context.Context, s Stats) {
	r.metrics.RecordDataQuality(ctx, "unparsable_timestamp", s.Long.UnparsableTimestamps)
	r.metrics.RecordDataQuality(ctx, "duplicate_observation", s.Pivot.Duplicates)
	r.metrics.RecordDataQuality(ctx, "header_row_skipped", s.Extract.HeaderRowsSkipped)
	r.metrics.RecordDataQuality(ctx, "kpi_not_found", len(s.Extract.KPIsNotFound))
}

// warnings lists the non-fatal anomalies met during a run.
func warnings(s Stats, pivot *domain.PivotTable) []string {
	var out []string
	if n := s.Long.UnparsableTimestamps; n > 0 {
		out = append(out, fmt.Sprintf("%d row(s) had an unparsable timestamp and were left undated", n))
	}
	if len(s.Extract.KPIsNotFound) > 0 {
		out = append(out, fmt.Sprintf("KPI column(s) not found in any source: %s",
			strings.Join(s.Extract.KPIsNotFound, ", ")))
	}
	if n := s.Pivot.Duplicates; n > 0 {
		out = append(out, fmt.Sprintf("%d duplicate observation(s) ignored, first value kept", n))
	}
	if pivot != nil && len(pivot.DateLabels) == 0 {
		out = append(out, "no parsable date labels, every row is marked "+domain.RemarkNoData)
	}
	return out
}

// classify maps ingestion failures onto the application error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var schema *ingestion.SchemaMismatchError
	switch {
	case errors.As(err, &schema):
		return apierrors.NewSchemaError("input does not carry the selected columns", err).
			WithContext("source", schema.Source.Origin()).
			WithContext("missing", schema.Missing)
	case errors.Is(err, ingestion.ErrEmptyInput):
		return apierrors.NewInputError("input has no data rows", err)
	default:
		return err
	}
}
