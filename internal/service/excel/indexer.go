package excel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/xuri/excelize/v2"

	"finfill/internal/model"
)

// HeaderIndex 表头索引：年份 → 列号，类别 → 行号（均为 1 起始）
type HeaderIndex struct {
	Sheet      string
	Years      map[string]int
	Categories map[string]int
	Duplicates []model.Notice

	labels []string
}

// BuildHeaderIndex 扫描年份行与类别列各一次，登记所有非空单元格（去除首尾空格）
// 年份同时登记原文与规范化整数形式，兼容数值/文本两种单元格类型
func BuildHeaderIndex(f *excelize.File, layout Layout) (*HeaderIndex, error) {
	catCol, err := layout.Validate()
	if err != nil {
		return nil, err
	}
	sheet, err := resolveSheet(f, layout)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	idx := &HeaderIndex{
		Sheet:      sheet,
		Years:      make(map[string]int),
		Categories: make(map[string]int),
	}

	if layout.YearRow <= len(rows) {
		for i, raw := range rows[layout.YearRow-1] {
			v := strings.TrimSpace(raw)
			if v == "" {
				continue
			}
			col := i + 1
			idx.registerYear(v, col)
			if canon, ok := model.CanonicalYear(v); ok && canon != v {
				idx.registerYear(canon, col)
			}
		}
	}

	for i, row := range rows {
		if catCol > len(row) {
			continue
		}
		v := strings.TrimSpace(row[catCol-1])
		if v == "" {
			continue
		}
		r := i + 1
		if prev, ok := idx.Categories[v]; ok {
			idx.addDuplicate(v, catCol, prev, r, false)
			continue
		}
		idx.Categories[v] = r
		idx.labels = append(idx.labels, v)
	}

	return idx, nil
}

// registerYear 同一标签首次出现者生效
func (idx *HeaderIndex) registerYear(key string, col int) {
	if prev, ok := idx.Years[key]; ok {
		if prev != col {
			idx.addDuplicate(key, col, prev, col, true)
		}
		return
	}
	idx.Years[key] = col
}

func (idx *HeaderIndex) addDuplicate(label string, col, first, again int, isYear bool) {
	var n model.Notice
	if isYear {
		firstCol, _ := excelize.ColumnNumberToName(first)
		againCol, _ := excelize.ColumnNumberToName(again)
		n = model.Notice{
			Kind:    model.NoticeDuplicateHeader,
			Year:    label,
			Message: fmt.Sprintf("year %s appears in columns %s and %s, using the first", label, firstCol, againCol),
		}
	} else {
		cell, _ := excelize.CoordinatesToCellName(col, again)
		n = model.Notice{
			Kind:    model.NoticeDuplicateHeader,
			Label:   label,
			Cell:    cell,
			Message: fmt.Sprintf("category %q appears in rows %d and %d, using the first", label, first, again),
		}
	}
	idx.Duplicates = append(idx.Duplicates, n)
}

// Column 按年份查找列号（兼容 "2024" / "2024.0"）
func (idx *HeaderIndex) Column(year string) (int, bool) {
	y := strings.TrimSpace(year)
	if col, ok := idx.Years[y]; ok {
		return col, true
	}
	if canon, ok := model.CanonicalYear(y); ok {
		col, found := idx.Years[canon]
		return col, found
	}
	return 0, false
}

// Row 按模板类别标签查找行号
func (idx *HeaderIndex) Row(label string) (int, bool) {
	row, ok := idx.Categories[strings.TrimSpace(label)]
	return row, ok
}

// Labels 模板中的类别标签（按行顺序）
func (idx *HeaderIndex) Labels() []string {
	return append([]string(nil), idx.labels...)
}

// YearLabels 已登记的年份标签（排序后）
func (idx *HeaderIndex) YearLabels() []string {
	out := make([]string, 0, len(idx.Years))
	for k := range idx.Years {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Suggest 为找不到的类别给出最接近的模板标签；没有合适候选时返回空串
func (idx *HeaderIndex) Suggest(label string) string {
	if len(idx.labels) == 0 {
		return ""
	}

	ranks := fuzzy.RankFindNormalizedFold(label, idx.labels)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", -1
	source := strings.ToLower(label)
	for _, candidate := range idx.labels {
		d := fuzzy.LevenshteinDistance(source, strings.ToLower(candidate))
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	limit := len(source) / 4
	if limit < 2 {
		limit = 2
	}
	if bestDist > limit {
		return ""
	}
	return best
}
