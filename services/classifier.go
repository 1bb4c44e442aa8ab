package services

import (
	"producttree/models"
)

// Classifier はイシュータイプとステータスを分類テーブルで変換します
// 照合は完全一致のみです
type Classifier struct {
	statusMap map[string]string
	typeMap   map[string]string
}

// NewClassifier は新しい分類器を作成します
func NewClassifier(statusMap, typeMap map[string]string) *Classifier {
	return &Classifier{
		statusMap: copyMap(statusMap),
		typeMap:   copyMap(typeMap),
	}
}

// RoleOf はイシュータイプのロールを返します
// 未登録のタイプ、または不正なロールへの対応は work_item になります
func (c *Classifier) RoleOf(rawType string) models.Role {
	role := models.Role(c.typeMap[rawType])
	if !role.Valid() {
		return models.RoleWorkItem
	}
	return role
}

// NormalizedStatus は正規化ステータスを返します
// 未登録 (または空文字列に対応づけられた) ステータスはそのまま返します
func (c *Classifier) NormalizedStatus(rawStatus string) string {
	if s, ok := c.statusMap[rawStatus]; ok && s != "" {
		return s
	}
	return rawStatus
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
