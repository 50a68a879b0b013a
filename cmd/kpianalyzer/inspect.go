package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"kpianalyzer/internal/files"
	"kpianalyzer/internal/pipeline"
	"kpianalyzer/internal/services"
)

func inspectCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <files or dirs>...",
		Short: "List the sheets and columns of KPI workbooks",
		Long: `Print every sheet of the given workbooks with its detected type (BBH, DAY
or UNKNOWN), the union of columns, and the candidate columns for each role.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := files.NewDiscovery("").Expand(args)
			if err != nil {
				return err
			}
			svc := services.NewAnalysisService(env.cfg.Analysis, pipeline.NewRunner(env.logger, nil), env.logger)

			uploads := lo.Map(paths, func(path string, _ int) services.Upload { return services.FileUpload(path) })
			report, err := svc.Inspect(cmd.Context(), uploads)
			if err != nil {
				return err
			}
			return printInspectReport(cmd.OutOrStdout(), report)
		},
	}
}

func printInspectReport(w io.Writer, report *services.InspectReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSHEET\tTYPE\tROWS\tCOLUMNS")
	for _, wb := range report.Workbooks {
		for _, sh := range wb.Sheets {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", wb.Name, sh.Name, sh.Type, sh.Rows, len(sh.Columns))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := report.Suggestions
	fmt.Fprintf(w, "\ncolumns: %s\n", strings.Join(report.Columns, ", "))
	fmt.Fprintf(w, "entity:    %s\n", orNone(s.Entity))
	fmt.Fprintf(w, "segment:   %s\n", orNone(s.Segment))
	fmt.Fprintf(w, "timestamp: %s\n", orNone(s.Timestamp))
	fmt.Fprintf(w, "kpis:      %s\n", orNone(s.KPIs))
	return nil
}

func orNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}

// printRemarkSummary prints remark counts, most frequent first.
func printRemarkSummary(w io.Writer, counts map[string]int) {
	remarks := lo.Keys(counts)
	sort.Slice(remarks, func(i, j int) bool {
		if counts[remarks[i]] != counts[remarks[j]] {
			return counts[remarks[i]] > counts[remarks[j]]
		}
		return remarks[i] < remarks[j]
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, r := range remarks {
		fmt.Fprintf(tw, "%d\t  %s\n", counts[r], r)
	}
	tw.Flush()
}
