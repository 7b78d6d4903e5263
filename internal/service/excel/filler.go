package excel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"finfill/internal/alias"
	"finfill/internal/model"
)

// Stage 填充流程所处阶段
type Stage int

const (
	StageNew Stage = iota
	StageLoaded
	StageIndexed
	StageFilled
	StageSaved
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageLoaded:
		return "loaded"
	case StageIndexed:
		return "indexed"
	case StageFilled:
		return "filled"
	case StageSaved:
		return "saved"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ErrStage 阶段调用顺序错误
var ErrStage = errors.New("fill stage out of order")

// FillRequest 一次填充所需的全部输入
type FillRequest struct {
	TemplatePath string
	OutputPath   string // 为空时原地覆盖模板
	Layout       Layout
	ZeroPolicy   ZeroPolicy
	Aliases      *alias.Table
	Records      []model.Record
}

// Filler 模板填充器：Loaded → Indexed → Filled → Saved，严格顺序执行
type Filler struct {
	req    FillRequest
	log    zerolog.Logger
	wb     *excelize.File
	index  *HeaderIndex
	stage  Stage
	report *model.FillReport

	borrowed bool
}

// NewFiller 创建填充器
func NewFiller(req FillRequest, log zerolog.Logger) *Filler {
	if req.Layout == (Layout{}) {
		req.Layout = DefaultLayout()
	}
	if req.Aliases == nil {
		req.Aliases = alias.Default()
	}
	return &Filler{
		req: req,
		log: log,
		report: &model.FillReport{
			RunID:       uuid.NewString(),
			Template:    req.TemplatePath,
			RecordCount: len(req.Records),
			Writes:      []model.CellWrite{},
			Notices:     []model.Notice{},
			StartedAt:   time.Now(),
		},
	}
}

// Fill 打开模板、写入记录并保存，返回填充报告
func Fill(req FillRequest, log zerolog.Logger) (*model.FillReport, error) {
	fl := NewFiller(req, log)
	defer func() { _ = fl.Close() }()

	if err := fl.Load(); err != nil {
		return nil, err
	}
	if err := fl.Index(); err != nil {
		return nil, err
	}
	if err := fl.Fill(); err != nil {
		return nil, err
	}
	if err := fl.Save(); err != nil {
		return nil, err
	}
	return fl.Report(), nil
}

// Load 从 TemplatePath 打开模板
func (fl *Filler) Load() error {
	if err := fl.expect(StageNew); err != nil {
		return err
	}
	wb, err := OpenTemplate(fl.req.TemplatePath)
	if err != nil {
		return err
	}
	fl.wb = wb
	fl.stage = StageLoaded
	return nil
}

// LoadWorkbook 使用调用方已打开的工作簿，Close 不会关闭它
func (fl *Filler) LoadWorkbook(wb *excelize.File) error {
	if err := fl.expect(StageNew); err != nil {
		return err
	}
	if wb == nil {
		return fmt.Errorf("%w: workbook is nil", ErrTemplateOpen)
	}
	fl.wb = wb
	fl.borrowed = true
	fl.stage = StageLoaded
	return nil
}

// Index 建立表头索引
func (fl *Filler) Index() error {
	if err := fl.expect(StageLoaded); err != nil {
		return err
	}
	idx, err := BuildHeaderIndex(fl.wb, fl.req.Layout)
	if err != nil {
		return err
	}
	for _, n := range idx.Duplicates {
		fl.log.Warn().Str("kind", string(n.Kind)).Msg(n.Message)
	}
	fl.log.Debug().
		Str("sheet", idx.Sheet).
		Strs("years", idx.YearLabels()).
		Strs("categories", idx.Labels()).
		Msg("template headers indexed")

	fl.index = idx
	fl.report.Sheet = idx.Sheet
	fl.report.Notices = append(fl.report.Notices, idx.Duplicates...)
	fl.stage = StageIndexed
	return nil
}

// Fill 依次写入所有记录
func (fl *Filler) Fill() error {
	if err := fl.expect(StageIndexed); err != nil {
		return err
	}
	w := NewWriter(fl.wb, fl.index, fl.req.Aliases, fl.req.ZeroPolicy, fl.log)
	for _, rec := range fl.req.Records {
		writes, notices, err := w.Apply(rec)
		fl.report.Writes = append(fl.report.Writes, writes...)
		fl.report.Notices = append(fl.report.Notices, notices...)
		if err != nil {
			return err
		}
	}
	fl.stage = StageFilled
	return nil
}

// Save 保存到 OutputPath；未指定时覆盖模板原文件
func (fl *Filler) Save() error {
	if err := fl.expect(StageFilled); err != nil {
		return err
	}

	out := strings.TrimSpace(fl.req.OutputPath)
	if out == "" {
		out = strings.TrimSpace(fl.req.TemplatePath)
	}
	if out == "" {
		out = fl.wb.Path
	}
	if out == "" {
		return fmt.Errorf("%w: no output path", ErrSave)
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %w", ErrSave, err)
		}
	}
	if err := fl.wb.SaveAs(out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSave, out, err)
	}

	fl.report.OutputPath = out
	fl.report.FinishedAt = time.Now()
	fl.stage = StageSaved
	fl.log.Info().
		Str("output", out).
		Int("written", len(fl.report.Writes)).
		Int("skipped", fl.report.SkippedCount()).
		Msg("workbook saved")
	return nil
}

// Stage 当前阶段
func (fl *Filler) Stage() Stage {
	return fl.stage
}

// Report 填充报告
func (fl *Filler) Report() *model.FillReport {
	return fl.report
}

// Close 释放工作簿
func (fl *Filler) Close() error {
	if fl.wb == nil || fl.borrowed {
		return nil
	}
	err := fl.wb.Close()
	fl.wb = nil
	return err
}

func (fl *Filler) expect(stage Stage) error {
	if fl.stage != stage {
		return fmt.Errorf("%w: at %s, want %s", ErrStage, fl.stage, stage)
	}
	return nil
}
