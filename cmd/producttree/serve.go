package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"producttree/api"
	"producttree/services"
	"producttree/utils"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var m mappingOptions
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "検索プロキシとドキュメント生成のHTTPサーバーを起動します",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			profile, err := m.resolve(cfg)
			if err != nil {
				return err
			}

			if !cfg.Jira.Configured() {
				utils.LogWarn("JIRAの接続情報が未設定です。/api/jira-search は 500 を返します")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := api.NewServer(cfg, profile, services.NewGeneratorService(nil), utils.Logger())
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("サーバーエラー: %w", err)
			}
			utils.LogInfo("サーバーを停止しました")
			return nil
		},
	}

	m.register(cmd)
	cmd.Flags().StringVar(&bind, "bind", "", "待ち受けアドレス (例: :3002)")
	return cmd
}
