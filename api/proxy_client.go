package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"producttree/config"
	"producttree/models"
	"producttree/utils"
)

// ProxyClient は検索プロキシ (serve コマンド) 経由でイシューを検索します
type ProxyClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewProxyClient は新しいプロキシクライアントを作成します
func NewProxyClient(cfg config.Proxy) *ProxyClient {
	return &ProxyClient{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{},
	}
}

// Search はプロキシの /api/jira-search を呼び出します
func (p *ProxyClient) Search(ctx context.Context, jql string) (*models.SearchResponse, error) {
	if p.baseURL == "" {
		return nil, fmt.Errorf("プロキシURLが設定されていません")
	}
	utils.LogInfo("プロキシ経由で検索します: %s", jql)

	endpoint := p.baseURL + "/api/jira-search?jql=" + url.QueryEscape(jql)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("x-api-key", p.apiKey)
	}

	_, body, err := do(p.client, req)
	if err != nil {
		return nil, err
	}
	return decodeSearch(body)
}
