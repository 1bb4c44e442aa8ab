package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"producttree/api"
	"producttree/config"
	"producttree/services"
	"producttree/sftpclient"
	"producttree/utils"
)

type generateOptions struct {
	mapping  mappingOptions
	csvPath  string
	jql      string
	proxyURL string
	proxyKey string
	title    string
	output   string
	upload   bool
	dumpTree bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "CSVまたはJQL検索の結果からプロダクトツリーXMLを生成します",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	opts.mapping.register(cmd)
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "入力CSVファイル")
	cmd.Flags().StringVar(&opts.jql, "jql", "", "JIRA検索クエリ (JQL)")
	cmd.Flags().StringVar(&opts.proxyURL, "proxy-url", "", "検索プロキシのURL (指定時はプロキシ経由で検索)")
	cmd.Flags().StringVar(&opts.proxyKey, "proxy-key", "", "検索プロキシのAPIキー")
	cmd.Flags().StringVar(&opts.title, "title", "", "プロダクト名 (必須)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `出力先 ("-" で標準出力、省略時は product_tree_<名前>.xml)`)
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "生成したドキュメントをSFTPでアップロードする")
	cmd.Flags().BoolVar(&opts.dumpTree, "dump-tree", false, "組み立てたツリーを標準エラーにダンプする")

	_ = cmd.MarkFlagRequired("title")
	cmd.MarkFlagsOneRequired("csv", "jql")
	cmd.MarkFlagsMutuallyExclusive("csv", "jql")

	return cmd
}

func runGenerate(ctx context.Context, cfg *config.Config, opts generateOptions, stdout, stderr io.Writer) error {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "generate")

	profile, err := opts.mapping.resolve(cfg)
	if err != nil {
		return err
	}

	generator := services.NewGeneratorService(services.NewCSVProcessor())
	session := services.NewSession(profile, cfg.Jira.StoryPointField)
	session.ProductTitle = opts.title

	if opts.csvPath != "" {
		if err := generator.LoadCSVFile(session, opts.csvPath); err != nil {
			return fmt.Errorf("CSVの読み込みに失敗しました: %w", err)
		}
	} else {
		if err := generator.Fetch(ctx, session, searcherFor(cfg, opts), opts.jql); err != nil {
			return err
		}
	}

	res, err := generator.Generate(session)
	if err != nil {
		return err
	}

	if opts.dumpTree {
		spew.Fdump(stderr, res.Tree)
	}

	switch opts.output {
	case "-":
		if _, err := io.WriteString(stdout, res.Document); err != nil {
			return fmt.Errorf("標準出力への書き込みエラー: %w", err)
		}
	case "":
		if err := generator.WriteDocument(res.FileName, res); err != nil {
			return err
		}
	default:
		if err := generator.WriteDocument(opts.output, res); err != nil {
			return err
		}
	}

	if opts.upload {
		if err := sftpclient.UploadDocument(ctx, cfg.SFTP, res.FileName, []byte(res.Document)); err != nil {
			return err
		}
	}
	return nil
}

// searcherFor はプロキシ指定があればプロキシ、なければJIRAを直接検索するクライアントを返します
func searcherFor(cfg *config.Config, opts generateOptions) services.IssueSearcher {
	proxy := cfg.Proxy
	if opts.proxyURL != "" {
		proxy.URL = strings.TrimRight(opts.proxyURL, "/")
	}
	if opts.proxyKey != "" {
		proxy.APIKey = opts.proxyKey
	}
	if proxy.URL != "" {
		return api.NewProxyClient(proxy)
	}
	return api.NewJiraClient(cfg)
}
