package main

import (
	"os"

	"github.com/spf13/cobra"

	"producttree/config"
	"producttree/utils"
)

// 全サブコマンド共通のオプション
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		utils.LogError("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "producttree",
		Short:         "JIRAのイシューからプロダクトツリーXMLを生成します",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "設定ファイル (TOML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "ログ形式 (text, json)")

	cmd.AddCommand(
		newGenerateCmd(opts),
		newServeCmd(opts),
		newAuthCheckCmd(opts),
		newMappingCmd(opts),
	)
	return cmd
}

// loadConfig は設定を読み込み、ロガーを構成します
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	utils.ConfigureLogger(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
