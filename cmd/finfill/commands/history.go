package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"finfill/internal/store"
)

// historyRow CSV 导出的一行
type historyRow struct {
	ID         string `csv:"run_id"`
	StartedAt  string `csv:"started_at"`
	Template   string `csv:"template"`
	Output     string `csv:"output"`
	Sheet      string `csv:"sheet"`
	ZeroPolicy string `csv:"zero_policy"`
	Records    int    `csv:"records"`
	Written    int    `csv:"written"`
	Skipped    int    `csv:"skipped"`
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent fill runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "csv" {
				return fmt.Errorf("unknown format %q (want table or csv)", format)
			}

			st, err := openHistory(a.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListFillRuns(limit)
			if err != nil {
				return err
			}

			if format == "csv" {
				return writeHistoryCSV(cmd.OutOrStdout(), runs)
			}
			return writeHistoryTable(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&format, "format", "table", "table or csv")
	return cmd
}

func writeHistoryTable(out io.Writer, runs []store.FillRun) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no fill runs yet")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tRECORDS\tWRITTEN\tSKIPPED\tOUTPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.RecordCount, r.WrittenCount, r.SkippedCount, r.OutputPath)
	}
	return tw.Flush()
}

func writeHistoryCSV(out io.Writer, runs []store.FillRun) error {
	rows := make([]historyRow, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, historyRow{
			ID:         r.ID,
			StartedAt:  r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Template:   r.TemplatePath,
			Output:     r.OutputPath,
			Sheet:      r.Sheet,
			ZeroPolicy: r.ZeroPolicy,
			Records:    r.RecordCount,
			Written:    r.WrittenCount,
			Skipped:    r.SkippedCount,
		})
	}
	return gocsv.Marshal(rows, out)
}
