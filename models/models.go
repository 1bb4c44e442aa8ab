package models

// RawRecord はCSVの1行を表します (ヘッダー名→値のマップ)
type RawRecord map[string]string

// Role はプロダクトツリー上の位置を表します
type Role string

const (
	RoleProduct  Role = "product"
	RoleGoal     Role = "goal"
	RoleJob      Role = "job"
	RoleWorkItem Role = "work_item"
	RoleWork     Role = "work"
)

// IDPrefix は要素IDに使う短い接頭辞を返します
func (r Role) IDPrefix() string {
	switch r {
	case RoleProduct:
		return "prod"
	case RoleGoal:
		return "goal"
	case RoleJob:
		return "job"
	default:
		return "work"
	}
}

// Valid はレコードに割り当て可能なロールかどうかを返します
func (r Role) Valid() bool {
	switch r {
	case RoleGoal, RoleJob, RoleWorkItem, RoleWork:
		return true
	}
	return false
}

// NormalizedRecord は正規化済みのイシューを表します
// 値がない項目は空文字列になります
type NormalizedRecord struct {
	Key         string
	ID          string
	Type        string // 元のイシュータイプ
	Summary     string
	Description string
	Status      string // 元のステータス
	Priority    string
	Assignee    string
	Reporter    string
	Labels      []string
	Components  []string
	FixVersions []string
	Sprint      string
	StoryPoints string
	EpicLink    string
	Parent      string
	Team        string
	Quarter     string
	Year        string
	Start       string
	End         string
}

// LinkKey は親を探すためのキーを返します (epic_link → parent の順)
func (r NormalizedRecord) LinkKey() string {
	if r.EpicLink != "" {
		return r.EpicLink
	}
	return r.Parent
}

// Attr は要素の属性です
type Attr struct {
	Name  string
	Value string
}

// TreeNode はプロダクトツリーの1ノードです
type TreeNode struct {
	Role        Role
	ID          string
	Title       string
	Summary     string
	Description string
	Attrs       []Attr
	Children    []*TreeNode
}

// Attr は指定した名前の属性値を返します
func (n *TreeNode) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// TreeCounts は生成時の集計値です
type TreeCounts struct {
	Goals   int // goal レコード数
	Items   int // goal 以外の全レコード数 (除外前)
	Linked  int // ツリーに配置されたレコード数
	Dropped int // 親が解決できず除外されたレコード数
}
