package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finfill/internal/model"
)

// ErrRunNotFound 填充记录不存在
var ErrRunNotFound = errors.New("fill run not found")

// FillRunMeta 报告之外需要记录的请求参数
type FillRunMeta struct {
	ZeroPolicy   string
	AliasVersion int
}

// FillRun 一次填充的持久化摘要
type FillRun struct {
	ID           string         `json:"id"`
	TemplatePath string         `json:"templatePath"`
	OutputPath   string         `json:"outputPath"`
	Sheet        string         `json:"sheet"`
	ZeroPolicy   string         `json:"zeroPolicy"`
	AliasVersion int            `json:"aliasVersion"`
	RecordCount  int            `json:"recordCount"`
	WrittenCount int            `json:"writtenCount"`
	SkippedCount int            `json:"skippedCount"`
	StartedAt    time.Time      `json:"startedAt"`
	FinishedAt   time.Time      `json:"finishedAt"`
	Notices      []model.Notice `json:"notices,omitempty"`
}

// CreateFillRun 写入一次填充的摘要与全部提示
func (s *Store) CreateFillRun(report *model.FillReport, meta FillRunMeta) error {
	if report == nil {
		return errors.New("report is nil")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin fill run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO fill_runs (
			id, template_path, output_path, sheet, zero_policy, alias_version,
			record_count, written_count, skipped_count, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, report.Template, report.OutputPath, report.Sheet, meta.ZeroPolicy, meta.AliasVersion,
		report.RecordCount, len(report.Writes), report.SkippedCount(), report.StartedAt.UTC(), report.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create fill run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO fill_notices (run_id, seq, kind, year, category, label, cell, message, suggestion)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare notice insert: %w", err)
	}
	defer stmt.Close()

	for i, n := range report.Notices {
		if _, err := stmt.Exec(report.RunID, i, string(n.Kind), n.Year, n.Category, n.Label, n.Cell, n.Message, n.Suggestion); err != nil {
			return fmt.Errorf("failed to insert notice %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fill run: %w", err)
	}
	return nil
}

// ListFillRuns 最近的填充记录（按开始时间倒序，不含提示明细）
func (s *Store) ListFillRuns(limit int) ([]FillRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, template_path, output_path, sheet, zero_policy, alias_version,
			record_count, written_count, skipped_count, started_at, finished_at
		FROM fill_runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query fill runs failed: %w", err)
	}
	defer rows.Close()

	out := []FillRun{}
	for rows.Next() {
		run, err := scanFillRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill runs failed: %w", err)
	}
	return out, nil
}

// GetFillRun 单次填充记录及其提示
func (s *Store) GetFillRun(id string) (*FillRun, error) {
	row := s.db.QueryRow(`
		SELECT id, template_path, output_path, sheet, zero_policy, alias_version,
			record_count, written_count, skipped_count, started_at, finished_at
		FROM fill_runs WHERE id = ?
	`, id)
	run, err := scanFillRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT kind, year, category, label, cell, message, suggestion
		FROM fill_notices WHERE run_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query notices failed: %w", err)
	}
	defer rows.Close()

	run.Notices = []model.Notice{}
	for rows.Next() {
		var n model.Notice
		var kind string
		if err := rows.Scan(&kind, &n.Year, &n.Category, &n.Label, &n.Cell, &n.Message, &n.Suggestion); err != nil {
			return nil, fmt.Errorf("scan notice failed: %w", err)
		}
		n.Kind = model.NoticeKind(kind)
		run.Notices = append(run.Notices, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notices failed: %w", err)
	}
	return &run, nil
}

// CountFillRuns 填充记录总数
func (s *Store) CountFillRuns() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM fill_runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count fill runs failed: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFillRun(r rowScanner) (FillRun, error) {
	var run FillRun
	err := r.Scan(&run.ID, &run.TemplatePath, &run.OutputPath, &run.Sheet, &run.ZeroPolicy, &run.AliasVersion,
		&run.RecordCount, &run.WrittenCount, &run.SkippedCount, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan fill run failed: %w", err)
	}
	return run, nil
}
