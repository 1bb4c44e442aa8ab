package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"producttree/config"
)

// マッピング関連のフラグ (generate / mapping 共通)
type mappingOptions struct {
	profile       string
	statusMapFile string
	typeMapFile   string
	defaults      string
}

func (m *mappingOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.profile, "profile", "", "マッピングプロファイル (YAML)")
	cmd.Flags().StringVar(&m.statusMapFile, "status-map-file", "", "ステータス対応表 (key = value 形式)")
	cmd.Flags().StringVar(&m.typeMapFile, "type-map-file", "", "タイプ → ロール対応表 (key = value 形式)")
	cmd.Flags().StringVar(&m.defaults, "defaults", "", `プロダクト要素の既定属性 (例: "status=active; priority=P0")`)
}

// resolve は設定・プロファイル・フラグの順に重ねたプロファイルを返します
func (m *mappingOptions) resolve(cfg *config.Config) (*config.Profile, error) {
	if m.profile != "" {
		cfg.MappingProfile = m.profile
	}
	profile, err := cfg.ResolveProfile()
	if err != nil {
		return nil, err
	}

	if m.statusMapFile != "" {
		table, err := readKeyValueFile(m.statusMapFile)
		if err != nil {
			return nil, err
		}
		profile.StatusMap = table
	}
	if m.typeMapFile != "" {
		table, err := readKeyValueFile(m.typeMapFile)
		if err != nil {
			return nil, err
		}
		profile.TypeMap = table
	}
	if m.defaults != "" {
		profile.Defaults = m.defaults
	}
	return profile, nil
}

func readKeyValueFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("対応表の読み込みエラー %s: %w", path, err)
	}
	return config.ParseKeyValueText(string(data)), nil
}

func newMappingCmd(root *rootOptions) *cobra.Command {
	var m mappingOptions
	var asText bool

	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "有効なマッピングプロファイルを表示します",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			profile, err := m.resolve(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asText {
				fmt.Fprintf(out, "# status_map\n%s\n\n# type_map\n%s\n",
					config.FormatKeyValueText(profile.StatusMap),
					config.FormatKeyValueText(profile.TypeMap))
				return nil
			}

			data, err := profile.Marshal()
			if err != nil {
				return fmt.Errorf("プロファイル変換エラー: %w", err)
			}
			_, err = out.Write(data)
			return err
		},
	}

	m.register(cmd)
	cmd.Flags().BoolVar(&asText, "text", false, "対応表を key = value 形式で表示する")
	return cmd
}
