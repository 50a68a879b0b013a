package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"kpianalyzer/internal/config"
	"kpianalyzer/internal/exporter"
	"kpianalyzer/internal/files"
	"kpianalyzer/internal/pipeline"
	"kpianalyzer/internal/services"
)

type analyzeOptions struct {
	out        string
	format     string
	rnaKPI     string
	noProgress bool
}

func analyzeCmd(env *cliEnv) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <files or dirs>...",
		Short: "Run the analysis over KPI workbooks",
		Long: `Read every sheet of the given workbooks (directories are scanned for
.xlsx and .xlsm files), reshape the KPIs and write the remarked table.

The output defaults to KPI_FINAL_OUTPUT.xlsx in the configured output directory.
The format follows --format, else the extension of --out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, env, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default: <output_dir>/"+config.DefaultOutputName+".xlsx)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format (xlsx, csv, json)")
	cmd.Flags().StringVar(&opts.rnaKPI, "rna-kpi", "", "RNA KPI name, overrides the config file")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "do not draw the loading progress bar")
	return cmd
}

func runAnalyze(cmd *cobra.Command, env *cliEnv, opts *analyzeOptions, args []string) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()

	workbooks, err := files.NewDiscovery("").Expand(args)
	if err != nil {
		return err
	}

	format, err := exporter.ParseFormat(lo.Ternary(opts.format != "", opts.format, filepath.Ext(opts.out)))
	if err != nil {
		return err
	}
	writer, err := exporter.ForFormat(format)
	if err != nil {
		return err
	}

	svc := services.NewAnalysisService(env.cfg.Analysis, pipeline.NewRunner(env.logger, nil), env.logger)

	bar := newLoadBar(cmd.ErrOrStderr(), len(workbooks), opts.noProgress)
	uploads := lo.Map(workbooks, func(path string, _ int) services.Upload { return services.FileUpload(path) })
	sources, err := svc.DecodeWorkbooks(ctx, uploads, func(string) { _ = bar.Add(1) })
	if err != nil {
		return err
	}
	_ = bar.Finish()

	res, err := svc.RunSources(ctx, sources, services.AnalyzeRequest{RNAKPI: opts.rnaKPI})
	if err != nil {
		return err
	}

	out, err := outputPaths(env.cfg, opts.out)
	if err != nil {
		return err
	}
	name := lo.Ternary(opts.out != "", out.name, env.cfg.Analysis.OutputName)
	path, err := exporter.NewFileExporter(out.paths, env.logger).Save(name, writer, res.Table)
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(stdout, "warning: %s\n", w)
	}
	fmt.Fprintf(stdout, "%d rows, %d dates, run %s\n", len(res.Table.Rows), len(res.Table.DateLabels), res.RunID)
	printRemarkSummary(stdout, res.Stats.Remarks)
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

type outputTarget struct {
	paths *config.Paths
	name  string
}

// outputPaths resolves where the table goes: an explicit --out is taken
// relative to the working directory, otherwise the configured output directory.
func outputPaths(cfg *config.Config, out string) (outputTarget, error) {
	wd, err := os.Getwd()
	if err != nil {
		return outputTarget{}, err
	}
	if out == "" {
		return outputTarget{paths: config.NewPaths(wd, cfg.Paths)}, nil
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return outputTarget{}, err
	}
	return outputTarget{
		paths: config.NewPaths(wd, config.PathsConfig{OutputDir: filepath.Dir(abs)}),
		name:  filepath.Base(abs),
	}, nil
}

func newLoadBar(w io.Writer, total int, hidden bool) *progressbar.ProgressBar {
	if hidden {
		w = io.Discard
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Loading workbooks"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
