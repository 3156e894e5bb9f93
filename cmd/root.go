package cmd

import (
	"github.com/HildaM/GoMux/config"
	"github.com/HildaM/GoMux/lib/logger"
	"github.com/HildaM/GoMux/server"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	mode       string
	backlog    int
	maxEvents  int
	forkUnit   string
	logPath    string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "gomux [port]",
		Short: "Answer every TCP connection with a canned HTTP response",
		Long: `gomux accepts TCP connections, reads once, writes a fixed HTTP/1.1 response
and closes. The --mode flag picks how connections are multiplexed:
fork (one isolated unit per connection), select (linear readiness scan)
or epoll (readiness notification).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, args)
			if err != nil {
				return err
			}
			if err := logger.Setup(&logger.Settings{
				Path:       cfg.LogPath,
				Name:       "gomux",
				Ext:        ".log",
				TimeFormat: "2006-01-02",
				Level:      cfg.LogLevel,
			}); err != nil {
				return err
			}
			return server.ListenAndServeWithSignal(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (.conf or .yaml)")
	flags.StringVarP(&opts.mode, "mode", "m", config.ModeEpoll, "multiplexing strategy: fork, select or epoll")
	flags.IntVar(&opts.backlog, "backlog", 16, "listen backlog")
	flags.IntVar(&opts.maxEvents, "max-events", 1024, "max readiness events per wait")
	flags.StringVar(&opts.forkUnit, "fork-unit", config.UnitProcess, "execution unit in fork mode: process or goroutine")
	flags.StringVar(&opts.logPath, "log-path", "", "directory for log files, empty logs to stdout only")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")

	cmd.AddCommand(newWorkerCommand(), newDocsCommand())
	return cmd
}

// load 默认值 < 配置文件 < 显式给出的参数 < 端口位置参数
func (o *rootOptions) load(cmd *cobra.Command, args []string) (*config.ServerProperties, error) {
	if o.configFile != "" {
		if err := config.SetupConfig(o.configFile); err != nil {
			return nil, err
		}
	}
	cfg := config.Properties

	flags := cmd.Flags()
	if o.configFile == "" || flags.Changed("mode") {
		cfg.Mode = o.mode
	}
	if o.configFile == "" || flags.Changed("backlog") {
		cfg.Backlog = o.backlog
	}
	if o.configFile == "" || flags.Changed("max-events") {
		cfg.MaxEvents = o.maxEvents
	}
	if o.configFile == "" || flags.Changed("fork-unit") {
		cfg.ForkUnit = o.forkUnit
	}
	if o.configFile == "" || flags.Changed("log-path") {
		cfg.LogPath = o.logPath
	}
	if o.configFile == "" || flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if len(args) == 1 {
		port, err := config.ParsePort(args[0])
		if err != nil {
			return nil, err
		}
		cfg.Port = port
	}
	return cfg, cfg.Validate()
}

// Execute 出错时记录日志，由 main 以非零状态退出
func Execute() error {
	if err := newRootCommand().Execute(); err != nil {
		logger.Error(err)
		return err
	}
	return nil
}
