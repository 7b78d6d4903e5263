package fill

import (
	"fmt"

	"github.com/rs/zerolog"

	"finfill/internal/alias"
	"finfill/internal/model"
	"finfill/internal/parser"
	"finfill/internal/service/excel"
	"finfill/internal/store"
)

// Options 单次填充的参数；零值字段使用服务默认值
type Options struct {
	TemplatePath string
	OutputPath   string
	Layout       excel.Layout
	ZeroPolicy   excel.ZeroPolicy
}

// Service 填充服务：解析记录 → 填充模板 → 记录历史
type Service struct {
	aliases  *alias.Table
	defaults Options
	history  *store.Store
	log      zerolog.Logger
}

// NewService 创建填充服务；history 为 nil 时不记录历史
func NewService(aliases *alias.Table, defaults Options, history *store.Store, log zerolog.Logger) *Service {
	if aliases == nil {
		aliases = alias.Default()
	}
	if defaults.Layout == (excel.Layout{}) {
		defaults.Layout = excel.DefaultLayout()
	}
	if defaults.ZeroPolicy == "" {
		defaults.ZeroPolicy = excel.ZeroKeepExisting
	}
	return &Service{
		aliases:  aliases,
		defaults: defaults,
		history:  history,
		log:      log,
	}
}

// Aliases 当前别名表
func (s *Service) Aliases() *alias.Table {
	return s.aliases
}

// Defaults 默认参数
func (s *Service) Defaults() Options {
	return s.defaults
}

// FillPayload 解析记录负载后填充
func (s *Service) FillPayload(opts Options, payload []byte) (*model.FillReport, error) {
	records, err := parser.ParseRecords(payload)
	if err != nil {
		return nil, err
	}
	return s.Fill(opts, records)
}

// Fill 填充模板并记录历史（历史写入失败只记日志）
func (s *Service) Fill(opts Options, records []model.Record) (*model.FillReport, error) {
	opts = s.merge(opts)
	if opts.TemplatePath == "" {
		return nil, fmt.Errorf("%w: template path is empty", excel.ErrTemplateOpen)
	}

	log := s.log.With().Str("template", opts.TemplatePath).Logger()
	report, err := excel.Fill(excel.FillRequest{
		TemplatePath: opts.TemplatePath,
		OutputPath:   opts.OutputPath,
		Layout:       opts.Layout,
		ZeroPolicy:   opts.ZeroPolicy,
		Aliases:      s.aliases,
		Records:      records,
	}, log)
	if err != nil {
		log.Error().Err(err).Msg("fill failed")
		return nil, err
	}

	if s.history != nil {
		meta := store.FillRunMeta{ZeroPolicy: string(opts.ZeroPolicy), AliasVersion: s.aliases.Version()}
		if err := s.history.CreateFillRun(report, meta); err != nil {
			log.Warn().Err(err).Str("run", report.RunID).Msg("record fill history failed")
		}
	}
	return report, nil
}

func (s *Service) merge(opts Options) Options {
	if opts.TemplatePath == "" {
		opts.TemplatePath = s.defaults.TemplatePath
	}
	if opts.Layout.Sheet == "" {
		opts.Layout.Sheet = s.defaults.Layout.Sheet
	}
	if opts.Layout.YearRow == 0 {
		opts.Layout.YearRow = s.defaults.Layout.YearRow
	}
	if opts.Layout.CategoryColumn == "" {
		opts.Layout.CategoryColumn = s.defaults.Layout.CategoryColumn
	}
	if opts.ZeroPolicy == "" {
		opts.ZeroPolicy = s.defaults.ZeroPolicy
	}
	return opts
}
