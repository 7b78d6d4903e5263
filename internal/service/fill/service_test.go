package fill

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"finfill/internal/alias"
	"finfill/internal/config"
	"finfill/internal/parser"
	"finfill/internal/service/excel"
	"finfill/internal/store"
)

func writeTemplate(t *testing.T, path string) {
	t.Helper()

	wb := excelize.NewFile()
	require.NoError(t, wb.SetCellValue("Sheet1", "C3", 2023))
	require.NoError(t, wb.SetCellValue("Sheet1", "D3", 2024))
	require.NoError(t, wb.SetCellValue("Sheet1", "B5", "Revenue"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B6", "Taxes"))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())
}

func TestService_FillPayloadRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "template.xlsx")
	writeTemplate(t, tpl)

	st, err := store.New(filepath.Join(dir, "finfill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := NewService(alias.Default(), Options{TemplatePath: tpl}, st, zerolog.Nop())
	out := filepath.Join(dir, "out.xlsx")

	report, err := svc.FillPayload(Options{OutputPath: out}, []byte(`[
		{"year": 2024, "Revenue": 100000, "Taxes": 0},
		{"year": "2022", "Revenue": 1}
	]`))
	require.NoError(t, err)
	require.Len(t, report.Writes, 2)
	require.Equal(t, 1, report.SkippedCount())

	wb, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer wb.Close()
	v, err := wb.GetCellValue("Sheet1", "D5")
	require.NoError(t, err)
	require.Equal(t, "100000", v)

	run, err := st.GetFillRun(report.RunID)
	require.NoError(t, err)
	require.Equal(t, 2, run.WrittenCount)
	require.Equal(t, "keep", run.ZeroPolicy)
	require.Equal(t, 1, run.AliasVersion)
	require.Len(t, run.Notices, 1)
}

func TestService_MalformedPayload(t *testing.T) {
	svc := NewService(nil, Options{TemplatePath: "unused.xlsx"}, nil, zerolog.Nop())

	_, err := svc.FillPayload(Options{}, []byte(`{"Revenue": 1}`))
	require.ErrorIs(t, err, parser.ErrMalformedInput)
}

func TestService_RequiresTemplate(t *testing.T) {
	svc := NewService(nil, Options{}, nil, zerolog.Nop())

	_, err := svc.Fill(Options{}, nil)
	require.ErrorIs(t, err, excel.ErrTemplateOpen)
}

func TestService_MergeKeepsExplicitOptions(t *testing.T) {
	svc := NewService(nil, Options{
		TemplatePath: "default.xlsx",
		Layout:       excel.Layout{Sheet: "P&L", YearRow: 2, CategoryColumn: "A"},
		ZeroPolicy:   excel.ZeroOverwrite,
	}, nil, zerolog.Nop())

	got := svc.merge(Options{Layout: excel.Layout{YearRow: 4}})
	require.Equal(t, "default.xlsx", got.TemplatePath)
	require.Equal(t, excel.Layout{Sheet: "P&L", YearRow: 4, CategoryColumn: "A"}, got.Layout)
	require.Equal(t, excel.ZeroOverwrite, got.ZeroPolicy)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Template.Path = "tpl.xlsx"
	cfg.Template.ZeroPolicy = "Overwrite"

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, "tpl.xlsx", opts.TemplatePath)
	require.Equal(t, excel.ZeroOverwrite, opts.ZeroPolicy)
	require.Equal(t, excel.DefaultLayout(), opts.Layout)

	cfg.Template.ZeroPolicy = "sometimes"
	_, err = OptionsFromConfig(cfg)
	require.Error(t, err)

	cfg.Template.ZeroPolicy = "keep"
	cfg.Template.CategoryColumn = "7"
	_, err = OptionsFromConfig(cfg)
	require.ErrorIs(t, err, excel.ErrInvalidLayout)
}

func TestAliasesFromConfig_Default(t *testing.T) {
	table, err := AliasesFromConfig(config.DefaultConfig())
	require.NoError(t, err)
	label, mapped := table.Resolve("Sales")
	require.True(t, mapped)
	require.Equal(t, "Revenue", label)
}
