package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"producttree/api"
	"producttree/utils"
)

func newAuthCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth-check",
		Short: "JIRA APIの認証情報を確認します",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			utils.LogInfo("JIRA APIの認証を確認しています...")
			user, err := api.NewJiraClient(cfg).CheckAuth(cmd.Context())
			if err != nil {
				return fmt.Errorf("JIRA認証エラー (認証情報を確認してください): %w", err)
			}

			utils.LogInfo("JIRA認証成功！ 接続先: %s (%s)", cfg.Jira.URL, user.DisplayName)
			return nil
		},
	}
}
