package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"finfill/internal/alias"
	"finfill/internal/model"
	"finfill/internal/parser"
	"finfill/internal/service/excel"
	"finfill/internal/service/fill"
	"finfill/internal/store"
	"finfill/internal/util"
)

type fillFlags struct {
	template       string
	records        string
	output         string
	sheet          string
	yearRow        int
	categoryColumn string
	zeroPolicy     string
	aliases        string
	open           bool
}

func newFillCmd(a *app) *cobra.Command {
	var f fillFlags

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill yearly records into an Excel template",
		Long: `Fill writes each record's values into the template cell at the intersection
of the record's year column and the category's row. Without --output the
template is modified in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFill(cmd, a, f)
		},
	}

	cmd.Flags().StringVarP(&f.template, "template", "t", "", "template workbook (default: [template] path)")
	cmd.Flags().StringVarP(&f.records, "records", "r", "", "records payload: JSON or bulleted text, - for stdin (required)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the filled workbook here instead of in place")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "sheet name (default: active sheet)")
	cmd.Flags().IntVar(&f.yearRow, "year-row", 0, "1-based row holding the year headers (default 3)")
	cmd.Flags().StringVar(&f.categoryColumn, "category-column", "", "column letter holding the category labels (default B)")
	cmd.Flags().StringVar(&f.zeroPolicy, "zero-policy", "", "keep|overwrite: whether a 0 may replace an existing value")
	cmd.Flags().StringVar(&f.aliases, "aliases", "", "alias table TOML (default: built-in table)")
	cmd.Flags().BoolVar(&f.open, "open", false, "open the filled workbook when done")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}

func runFill(cmd *cobra.Command, a *app, f fillFlags) error {
	payload, err := readInput(cmd.InOrStdin(), f.records)
	if err != nil {
		return err
	}
	records, err := parser.ParseRecords(payload)
	if err != nil {
		return err
	}

	var aliases *alias.Table
	if f.aliases != "" {
		aliases, err = alias.Load(f.aliases)
	} else {
		aliases, err = fill.AliasesFromConfig(a.cfg)
	}
	if err != nil {
		return err
	}

	defaults, err := fill.OptionsFromConfig(a.cfg)
	if err != nil {
		return err
	}

	opts := fill.Options{
		TemplatePath: f.template,
		OutputPath:   f.output,
		Layout: excel.Layout{
			Sheet:          f.sheet,
			YearRow:        f.yearRow,
			CategoryColumn: f.categoryColumn,
		},
	}
	if f.zeroPolicy != "" {
		if opts.ZeroPolicy, err = excel.ParseZeroPolicy(f.zeroPolicy); err != nil {
			return err
		}
	}

	var history *store.Store
	if st, err := openHistory(a.cfg); err != nil {
		a.log.Warn().Err(err).Msg("fill history unavailable")
	} else {
		history = st
		defer st.Close()
	}

	svc := fill.NewService(aliases, defaults, history, a.log)
	report, err := svc.Fill(opts, records)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report)

	if f.open {
		if err := util.OpenFileWithFallback(report.OutputPath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "无法自动打开文件，请手动打开: %s\n", report.OutputPath)
		}
	}
	return nil
}

func printReport(out io.Writer, report *model.FillReport) {
	color.New(color.FgGreen, color.Bold).Fprintf(out, "Filled %d cell(s) in sheet %q -> %s (run %s)\n",
		len(report.Writes), report.Sheet, report.OutputPath, report.RunID)

	if len(report.Writes) > 0 {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  CELL\tYEAR\tLABEL\tOLD\tNEW")
		for _, w := range report.Writes {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%v\n", w.Cell, w.Year, w.Label, w.OldValue, w.NewValue)
		}
		_ = tw.Flush()
	}

	if len(report.Notices) > 0 {
		warn := color.New(color.FgYellow)
		fmt.Fprintf(out, "Notices (%d):\n", len(report.Notices))
		for _, n := range report.Notices {
			line := fmt.Sprintf("  [%s] %s", n.Kind, n.Message)
			if n.Suggestion != "" {
				line += fmt.Sprintf(" (did you mean %q?)", n.Suggestion)
			}
			warn.Fprintln(out, line)
		}
	}
}
