package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"producttree/config"
	"producttree/models"
	"producttree/utils"
)

// ErrNotConfigured はJIRAの接続情報が不足している場合のエラーです
var ErrNotConfigured = errors.New("JIRAの接続情報が設定されていません")

// JiraClient はJIRA APIとのやり取りを処理します
type JiraClient struct {
	config *config.Jira
	client *http.Client
}

// NewJiraClient は新しいJIRAクライアントを作成します
func NewJiraClient(cfg *config.Config) *JiraClient {
	return &JiraClient{
		config: &cfg.Jira,
		client: &http.Client{},
	}
}

func (j *JiraClient) newRequest(ctx context.Context, path string) (*http.Request, error) {
	if !j.config.Configured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.config.URL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.Email, j.config.APIToken)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// CheckAuth はJIRA認証をチェックします
func (j *JiraClient) CheckAuth(ctx context.Context) (*models.User, error) {
	req, err := j.newRequest(ctx, "/rest/api/2/myself")
	if err != nil {
		return nil, err
	}

	_, body, err := do(j.client, req)
	if err != nil {
		var herr *HTTPError
		if errors.As(err, &herr) {
			return nil, fmt.Errorf("認証失敗: %w", err)
		}
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return &user, nil
}

// SearchRaw はJQLで検索し、上流のステータスと本文 (展開済み) をそのまま返します
// 2xx以外のステータスはエラーにしません
func (j *JiraClient) SearchRaw(ctx context.Context, jql string) (int, []byte, error) {
	req, err := j.newRequest(ctx, "/rest/api/3/search?jql="+url.QueryEscape(jql))
	if err != nil {
		return 0, nil, err
	}

	status, body, err := do(j.client, req)
	var herr *HTTPError
	if err != nil && !errors.As(err, &herr) {
		return 0, nil, err
	}
	return status, body, nil
}

// Search はJQLでイシューを検索します
func (j *JiraClient) Search(ctx context.Context, jql string) (*models.SearchResponse, error) {
	utils.LogInfo("JIRAを検索します: %s", jql)

	req, err := j.newRequest(ctx, "/rest/api/3/search?jql="+url.QueryEscape(jql))
	if err != nil {
		return nil, err
	}

	_, body, err := do(j.client, req)
	if err != nil {
		return nil, err
	}
	return decodeSearch(body)
}

func decodeSearch(body []byte) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("検索結果の解析エラー: %w body=%s", err, snippet(body, 300))
	}
	utils.LogDebug("検索結果: %d 件 (total=%d)", len(resp.Issues), resp.Total)
	return &resp, nil
}
