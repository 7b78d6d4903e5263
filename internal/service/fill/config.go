package fill

import (
	"fmt"

	"finfill/internal/alias"
	"finfill/internal/config"
	"finfill/internal/service/excel"
)

// OptionsFromConfig 由 [template] 配置得到默认填充参数
func OptionsFromConfig(cfg *config.AppConfig) (Options, error) {
	policy, err := excel.ParseZeroPolicy(cfg.Template.ZeroPolicy)
	if err != nil {
		return Options{}, fmt.Errorf("template.zero_policy: %w", err)
	}
	opts := Options{
		TemplatePath: cfg.Template.Path,
		Layout: excel.Layout{
			Sheet:          cfg.Template.Sheet,
			YearRow:        cfg.Template.YearRow,
			CategoryColumn: cfg.Template.CategoryColumn,
		},
		ZeroPolicy: policy,
	}
	if _, err := opts.Layout.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// AliasesFromConfig 加载 [aliases] path 指定的别名表，未配置时使用内置表
func AliasesFromConfig(cfg *config.AppConfig) (*alias.Table, error) {
	table, err := alias.Load(cfg.Aliases.Path)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	return table, nil
}
