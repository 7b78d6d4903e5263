package commands

import (
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"finfill/internal/config"
	"finfill/internal/logging"
)

// app 命令间共享的运行状态
type app struct {
	cfgFile string
	verbose bool
	noColor bool

	cfg *config.AppConfig
	log zerolog.Logger
}

// NewRootCmd 构建完整的命令树
func NewRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "finfill",
		Short: "finfill - fill yearly financial figures into an Excel template",
		Long: `finfill writes yearly financial records (revenue, expenses, taxes, ...) into
the matching cells of an Excel template, keyed by the template's year header row
and category column. Records come from JSON or bulleted LLM output.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path (default: config.toml next to the executable)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newFillCmd(a),
		newParseCmd(a),
		newExtractCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setup 加载配置并初始化日志
func (a *app) setup(cmd *cobra.Command) error {
	if a.noColor {
		color.NoColor = true
	}

	cfg, info, err := config.LoadConfigWithInfo(a.cfgFile)
	if err != nil {
		if a.cfgFile != "" {
			return err
		}
		cfg = config.DefaultConfig()
	}

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	a.cfg = cfg
	a.log = logging.New(logging.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	if err != nil {
		a.log.Warn().Err(err).Msg("load config failed, using defaults")
	} else {
		a.log.Debug().Str("path", info.Path).Bool("found", info.FileFound).Msg("config loaded")
	}
	return nil
}
