package excel

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrTemplateOpen 模板无法打开
	ErrTemplateOpen = errors.New("open template")
	// ErrInvalidLayout 表头位置配置无效
	ErrInvalidLayout = errors.New("invalid template layout")
	// ErrSave 工作簿保存失败
	ErrSave = errors.New("save workbook")
)

// Layout 模板表头位置：年份所在行 + 类别所在列
type Layout struct {
	Sheet          string `json:"sheet" toml:"sheet"`                    // 为空时使用活动工作表
	YearRow        int    `json:"yearRow" toml:"year_row"`               // 1 起始
	CategoryColumn string `json:"categoryColumn" toml:"category_column"` // 列字母，如 "B"
}

// DefaultLayout 默认布局：第 3 行为年份，B 列为类别
func DefaultLayout() Layout {
	return Layout{
		YearRow:        3,
		CategoryColumn: "B",
	}
}

// Validate 校验布局并返回类别列序号（1 起始）
func (l Layout) Validate() (int, error) {
	if l.YearRow < 1 {
		return 0, fmt.Errorf("%w: year row must be >= 1, got %d", ErrInvalidLayout, l.YearRow)
	}
	col := strings.ToUpper(strings.TrimSpace(l.CategoryColumn))
	if col == "" {
		return 0, fmt.Errorf("%w: category column is empty", ErrInvalidLayout)
	}
	n, err := excelize.ColumnNameToNumber(col)
	if err != nil {
		return 0, fmt.Errorf("%w: category column %q: %v", ErrInvalidLayout, l.CategoryColumn, err)
	}
	return n, nil
}

// ZeroPolicy 记录值为 0 且目标单元格已有内容时的处理策略
type ZeroPolicy string

const (
	// ZeroKeepExisting 0 视为“未知”，不覆盖已有内容
	ZeroKeepExisting ZeroPolicy = "keep"
	// ZeroOverwrite 0 与其他数值一样直接写入
	ZeroOverwrite ZeroPolicy = "overwrite"
)

// ParseZeroPolicy 解析策略名，空值为 keep
func ParseZeroPolicy(s string) (ZeroPolicy, error) {
	switch ZeroPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ZeroKeepExisting:
		return ZeroKeepExisting, nil
	case ZeroOverwrite:
		return ZeroOverwrite, nil
	default:
		return "", fmt.Errorf("unknown zero policy %q (want keep or overwrite)", s)
	}
}

// OpenTemplate 从路径打开模板
func OpenTemplate(path string) (*excelize.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: template path is empty", ErrTemplateOpen)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: template not found: %w", ErrTemplateOpen, err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplateOpen, err)
	}
	return f, nil
}

// resolveSheet 返回布局指定的工作表；未指定时为活动工作表
func resolveSheet(f *excelize.File, layout Layout) (string, error) {
	name := strings.TrimSpace(layout.Sheet)
	if name == "" {
		name = f.GetSheetName(f.GetActiveSheetIndex())
		if name == "" {
			return "", fmt.Errorf("%w: workbook has no active sheet", ErrInvalidLayout)
		}
		return name, nil
	}
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return "", fmt.Errorf("%w: sheet %q: %v", ErrInvalidLayout, name, err)
	}
	if idx < 0 {
		return "", fmt.Errorf("%w: sheet %q not found", ErrInvalidLayout, name)
	}
	return name, nil
}
