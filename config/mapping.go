package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field は正規化レコードの意味フィールド名です
type Field string

const (
	FieldKey         Field = "key"
	FieldID          Field = "id"
	FieldType        Field = "type"
	FieldSummary     Field = "summary"
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldAssignee    Field = "assignee"
	FieldReporter    Field = "reporter"
	FieldLabels      Field = "labels"
	FieldComponents  Field = "components"
	FieldFixVersions Field = "fix_versions"
	FieldSprint      Field = "sprint"
	FieldStoryPoints Field = "story_points"
	FieldEpicLink    Field = "epic_link"
	FieldParent      Field = "parent"
	FieldTeam        Field = "team"
	FieldQuarter     Field = "quarter"
	FieldYear        Field = "year"
	FieldStart       Field = "start"
	FieldEnd         Field = "end"
)

// Fields は全フィールドを表示順に並べたものです
var Fields = []Field{
	FieldKey, FieldID, FieldType, FieldSummary, FieldDescription,
	FieldStatus, FieldPriority, FieldAssignee, FieldReporter,
	FieldLabels, FieldComponents, FieldFixVersions, FieldSprint,
	FieldStoryPoints, FieldEpicLink, FieldParent, FieldTeam,
	FieldQuarter, FieldYear, FieldStart, FieldEnd,
}

// FieldMapping は意味フィールド → CSVカラム名のマッピングです
type FieldMapping map[Field]string

// Column はフィールドに対応するカラム名を返します
func (m FieldMapping) Column(f Field) string {
	if col, ok := m[f]; ok {
		return col
	}
	return DefaultFieldMapping()[f]
}

// DefaultProductDefaults はプロダクト要素の既定属性です
const DefaultProductDefaults = "status=active; priority=P0; team="

// DefaultFieldMapping はJIRAの標準CSVエクスポートに合わせたマッピングです
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		FieldKey:         "Issue key",
		FieldID:          "Issue id",
		FieldType:        "Issue Type",
		FieldSummary:     "Summary",
		FieldDescription: "Description",
		FieldStatus:      "Status",
		FieldPriority:    "Priority",
		FieldAssignee:    "Assignee",
		FieldReporter:    "Reporter",
		FieldLabels:      "Labels",
		FieldComponents:  "Components",
		FieldFixVersions: "Fix versions",
		FieldSprint:      "Sprint",
		FieldStoryPoints: "Story Points",
		FieldEpicLink:    "Epic Link",
		FieldParent:      "Parent",
		FieldTeam:        "Team",
		FieldQuarter:     "Quarter",
		FieldYear:        "Year",
		FieldStart:       "Start Date",
		FieldEnd:         "End Date",
	}
}

// DefaultStatusMap はJIRAステータス → 正規化ステータスのマッピングです
func DefaultStatusMap() map[string]string {
	return map[string]string{
		"To Do":                    "not_started",
		"In Progress":              "in_progress",
		"Selected for Development": "ready",
		"In Review":                "review",
		"Blocked":                  "blocked",
		"Done":                     "done",
	}
}

// DefaultTypeMap はJIRAイシュータイプ → ロールのマッピングです
func DefaultTypeMap() map[string]string {
	return map[string]string{
		"Epic":       "goal",
		"Initiative": "job",
		"Story":      "work_item",
		"Task":       "work_item",
		"Bug":        "work_item",
		"Sub-task":   "work_item",
	}
}

// Profile はカラムマッピングと分類テーブルをまとめたものです
type Profile struct {
	Columns   FieldMapping      `yaml:"columns"`
	StatusMap map[string]string `yaml:"status_map"`
	TypeMap   map[string]string `yaml:"type_map"`
	Defaults  string            `yaml:"defaults"`
}

// DefaultProfile は組み込みのプロファイルを返します
func DefaultProfile() *Profile {
	return &Profile{
		Columns:   DefaultFieldMapping(),
		StatusMap: DefaultStatusMap(),
		TypeMap:   DefaultTypeMap(),
		Defaults:  DefaultProductDefaults,
	}
}

// LoadProfile はYAMLのプロファイルを読み込み、既定値に重ねます
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("プロファイル読み込みエラー %s: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile はYAMLデータからプロファイルを作成します
// columns はフィールド単位で既定値に上書きし、status_map / type_map は指定されていれば置き換えます
func ParseProfile(data []byte) (*Profile, error) {
	var in Profile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("プロファイル解析エラー: %w", err)
	}

	p := DefaultProfile()
	for f, col := range in.Columns {
		if !knownField(f) {
			return nil, fmt.Errorf("不明なフィールド: %q", f)
		}
		p.Columns[f] = strings.TrimSpace(col)
	}
	if in.StatusMap != nil {
		p.StatusMap = in.StatusMap
	}
	if in.TypeMap != nil {
		p.TypeMap = in.TypeMap
	}
	if in.Defaults != "" {
		p.Defaults = in.Defaults
	}
	return p, nil
}

// Marshal はプロファイルをYAMLに変換します
func (p *Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

func knownField(f Field) bool {
	for _, k := range Fields {
		if k == f {
			return true
		}
	}
	return false
}

// ParseKeyValueText は "key = value" 形式の行を読み取ります
// 空行・#で始まる行・"="を含まない行は無視し、最初の"="だけで分割します
func ParseKeyValueText(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		key, value, ok := strings.Cut(t, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

// FormatKeyValueText はマップを "key = value" 形式の行に変換します (キー順)
func FormatKeyValueText(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s = %s", k, m[k]))
	}
	return strings.Join(lines, "\n")
}

// ParseDefaults は "status=active; priority=P0" 形式の既定属性を読み取ります
func ParseDefaults(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}
