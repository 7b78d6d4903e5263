package excel

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"finfill/internal/alias"
	"finfill/internal/model"
)

// Writer 按表头索引把记录写入模板单元格
type Writer struct {
	wb      *excelize.File
	index   *HeaderIndex
	aliases *alias.Table
	zero    ZeroPolicy
	log     zerolog.Logger
}

// NewWriter 创建写入器
func NewWriter(wb *excelize.File, index *HeaderIndex, aliases *alias.Table, zero ZeroPolicy, log zerolog.Logger) *Writer {
	if zero == "" {
		zero = ZeroKeepExisting
	}
	return &Writer{
		wb:      wb,
		index:   index,
		aliases: aliases,
		zero:    zero,
		log:     log,
	}
}

// Apply 写入一条记录；无法定位或被冲突策略拦下的字段记为提示，不中断
// 仅单元格写入失败时返回错误
func (w *Writer) Apply(rec model.Record) ([]model.CellWrite, []model.Notice, error) {
	var writes []model.CellWrite
	var notices []model.Notice

	skip := func(n model.Notice) {
		w.log.Info().
			Str("kind", string(n.Kind)).
			Str("year", n.Year).
			Str("category", n.Category).
			Str("cell", n.Cell).
			Msg(n.Message)
		notices = append(notices, n)
	}

	col, yearFound := w.index.Column(rec.Year)

	for _, field := range rec.Fields {
		if field.Category == model.YearKey {
			continue
		}
		label, _ := w.aliases.Resolve(field.Category)

		if !yearFound {
			skip(model.Notice{
				Kind:     model.NoticeYearNotFound,
				Year:     rec.Year,
				Category: field.Category,
				Label:    label,
				Message:  fmt.Sprintf("year %s not found", rec.Year),
			})
			continue
		}

		row, ok := w.index.Row(label)
		if !ok {
			// 模板中本来就有同名行时不跟随别名
			literal := strings.TrimSpace(field.Category)
			if literal != label {
				if row, ok = w.index.Row(literal); ok {
					label = literal
				}
			}
		}
		if !ok {
			skip(model.Notice{
				Kind:       model.NoticeCategoryNotFound,
				Year:       rec.Year,
				Category:   field.Category,
				Label:      label,
				Message:    fmt.Sprintf("category %q (template: %q) not found", field.Category, label),
				Suggestion: w.index.Suggest(label),
			})
			continue
		}

		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return writes, notices, fmt.Errorf("cell for %s/%s: %w", rec.Year, label, err)
		}

		base := model.Notice{
			Year:     rec.Year,
			Category: field.Category,
			Label:    label,
			Cell:     cell,
		}

		switch field.Value.Kind {
		case model.ValueNull:
			base.Kind = model.NoticeNullValue
			base.Message = fmt.Sprintf("%s %s is null, keeping %s", rec.Year, field.Category, cell)
			skip(base)
			continue
		case model.ValueInvalid:
			base.Kind = model.NoticeInvalidValue
			base.Message = fmt.Sprintf("%s %s has non-numeric value %q", rec.Year, field.Category, field.Value.Raw)
			skip(base)
			continue
		}

		old, occupied, err := w.currentValue(cell)
		if err != nil {
			return writes, notices, err
		}

		if field.Value.IsZero() && occupied && w.zero == ZeroKeepExisting {
			base.Kind = model.NoticeZeroKept
			base.Message = fmt.Sprintf("%s %s is 0, keeping existing value %q in %s", rec.Year, field.Category, old, cell)
			skip(base)
			continue
		}

		v := field.Value.Float64()
		if err := w.wb.SetCellValue(w.index.Sheet, cell, v); err != nil {
			return writes, notices, fmt.Errorf("write %s!%s: %w", w.index.Sheet, cell, err)
		}
		w.log.Debug().Str("cell", cell).Str("label", label).Float64("value", v).Msg("cell written")

		writes = append(writes, model.CellWrite{
			Cell:     cell,
			Year:     rec.Year,
			Category: field.Category,
			Label:    label,
			OldValue: old,
			NewValue: v,
		})
	}

	return writes, notices, nil
}

// currentValue 返回单元格现值；有公式的单元格即使缓存值为空也视为非空
func (w *Writer) currentValue(cell string) (string, bool, error) {
	val, err := w.wb.GetCellValue(w.index.Sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", false, fmt.Errorf("read %s!%s: %w", w.index.Sheet, cell, err)
	}
	formula, err := w.wb.GetCellFormula(w.index.Sheet, cell)
	if err != nil {
		return "", false, fmt.Errorf("read formula %s!%s: %w", w.index.Sheet, cell, err)
	}
	if formula != "" && strings.TrimSpace(val) == "" {
		return "=" + formula, true, nil
	}
	return val, strings.TrimSpace(val) != "" || formula != "", nil
}
