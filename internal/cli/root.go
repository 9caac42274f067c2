// Package cli 命令行入口：serve 启动 HTTP 服务，evaluate/detect 离线处理本地文件
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ashwinyue/next-eval/internal/logger"
)

// version 构建时通过 -ldflags 注入
var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "next-eval",
		Short:         "Score extraction results against labeled datasets",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logger.Init(opts.logLevel, opts.logFormat, cmd.ErrOrStderr())
		},
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "./configs/config.yaml"
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", defaultConfig, "Config file path (serve only)")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&opts.logFormat, "log-format", "text", "Log format: text, json")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newEvaluateCommand())
	cmd.AddCommand(newDetectCommand())
	return cmd
}

// Execute 运行根命令
func Execute() error {
	return NewRootCommand().Execute()
}
