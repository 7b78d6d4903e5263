package model

import "time"

// NoticeKind 跳过/诊断提示类型
type NoticeKind string

const (
	NoticeYearNotFound     NoticeKind = "year_not_found"
	NoticeCategoryNotFound NoticeKind = "category_not_found"
	NoticeNullValue        NoticeKind = "null_value"
	NoticeInvalidValue     NoticeKind = "invalid_value"
	NoticeZeroKept         NoticeKind = "zero_kept"
	NoticeDuplicateHeader  NoticeKind = "duplicate_header"
)

// Notice 非致命提示：字段被跳过或模板存在可疑结构
type Notice struct {
	Kind       NoticeKind `json:"kind"`
	Year       string     `json:"year,omitempty"`
	Category   string     `json:"category,omitempty"`
	Label      string     `json:"label,omitempty"`
	Cell       string     `json:"cell,omitempty"`
	Message    string     `json:"message"`
	Suggestion string     `json:"suggestion,omitempty"`
}

// CellWrite 一次实际写入
type CellWrite struct {
	Cell     string  `json:"cell"`
	Year     string  `json:"year"`
	Category string  `json:"category"`
	Label    string  `json:"label"`
	OldValue string  `json:"oldValue"`
	NewValue float64 `json:"newValue"`
}

// FillReport 一次填充的结果
type FillReport struct {
	RunID       string      `json:"runId"`
	Template    string      `json:"template"`
	OutputPath  string      `json:"outputPath"`
	Sheet       string      `json:"sheet"`
	RecordCount int         `json:"recordCount"`
	Writes      []CellWrite `json:"writes"`
	Notices     []Notice    `json:"notices"`
	StartedAt   time.Time   `json:"startedAt"`
	FinishedAt  time.Time   `json:"finishedAt"`
}

// SkippedCount 被跳过的字段数（不含模板结构提示）
func (r *FillReport) SkippedCount() int {
	n := 0
	for _, it := range r.Notices {
		if it.Kind != NoticeDuplicateHeader {
			n++
		}
	}
	return n
}
