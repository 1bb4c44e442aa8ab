package models

import "encoding/json"

// SearchResponse はJIRA検索APIのレスポンスを表します
type SearchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue はJIRAのイシューを表します
type Issue struct {
	ID     json.RawMessage `json:"id"`
	Key    string          `json:"key"`
	Fields IssueFields     `json:"fields"`
}

// IssueFields はイシューのフィールドです
// カスタムフィールドは Custom に生のまま保持します
type IssueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"`
	IssueType   *NamedField     `json:"issuetype"`
	Status      *NamedField     `json:"status"`
	Priority    *NamedField     `json:"priority"`
	Assignee    *User           `json:"assignee"`
	Reporter    *User           `json:"reporter"`
	Labels      []string        `json:"labels"`
	Components  []NamedField    `json:"components"`
	FixVersions []NamedField    `json:"fixVersions"`
	Parent      *IssueRef       `json:"parent"`

	Custom map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON は既知のフィールドに加えて全フィールドを Custom に保持します
func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type plain IssueFields
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*f = IssueFields(p)
	f.Custom = all
	return nil
}

// NamedField は name を持つネストしたフィールドです
type NamedField struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// User はJIRAユーザーです
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress"`
}

// IssueRef は親イシューへの参照です
type IssueRef struct {
	ID  string `json:"id,omitempty"`
	Key string `json:"key"`
}
