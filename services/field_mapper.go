package services

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"producttree/config"
	"producttree/models"
)

var listSeparator = regexp.MustCompile(`[;,]+`)

// FieldMapper は生レコードを正規化レコードに変換します
// データが欠けていてもエラーにはせず、空文字列として扱います
type FieldMapper struct {
	columns         config.FieldMapping
	classifier      *Classifier
	storyPointField string
}

// NewFieldMapper は新しいフィールドマッパーを作成します
func NewFieldMapper(columns config.FieldMapping, classifier *Classifier, storyPointField string) *FieldMapper {
	if columns == nil {
		columns = config.DefaultFieldMapping()
	}
	if storyPointField == "" {
		storyPointField = "customfield_10016"
	}
	return &FieldMapper{
		columns:         columns,
		classifier:      classifier,
		storyPointField: storyPointField,
	}
}

// Normalize はCSVの1行を正規化します
func (m *FieldMapper) Normalize(raw models.RawRecord) models.NormalizedRecord {
	get := func(f config.Field) string {
		return strings.TrimSpace(raw[m.columns.Column(f)])
	}
	list := func(f config.Field) []string {
		return splitList(raw[m.columns.Column(f)])
	}

	return models.NormalizedRecord{
		Key:         get(config.FieldKey),
		ID:          get(config.FieldID),
		Type:        get(config.FieldType),
		Summary:     get(config.FieldSummary),
		Description: get(config.FieldDescription),
		Status:      get(config.FieldStatus),
		Priority:    get(config.FieldPriority),
		Assignee:    get(config.FieldAssignee),
		Reporter:    get(config.FieldReporter),
		Labels:      uniqueStrings(list(config.FieldLabels)),
		Components:  list(config.FieldComponents),
		FixVersions: list(config.FieldFixVersions),
		Sprint:      get(config.FieldSprint),
		StoryPoints: get(config.FieldStoryPoints),
		EpicLink:    get(config.FieldEpicLink),
		Parent:      get(config.FieldParent),
		Team:        get(config.FieldTeam),
		Quarter:     get(config.FieldQuarter),
		Year:        get(config.FieldYear),
		Start:       get(config.FieldStart),
		End:         get(config.FieldEnd),
	}
}

// NormalizeAll は全行を正規化します
func (m *FieldMapper) NormalizeAll(rows []models.RawRecord) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, m.Normalize(r))
	}
	return out
}

// FromIssue はJIRA検索結果のイシューを正規化します
// 親キーは、イシュー自身が goal に分類されない場合に限り epic_link にも設定します
func (m *FieldMapper) FromIssue(issue models.Issue) models.NormalizedRecord {
	f := issue.Fields

	rec := models.NormalizedRecord{
		Key:         strings.TrimSpace(issue.Key),
		ID:          scalarString(issue.ID),
		Summary:     strings.TrimSpace(f.Summary),
		Description: plainString(f.Description),
		Labels:      uniqueStrings(trimAll(f.Labels)),
		Components:  names(f.Components),
		FixVersions: names(f.FixVersions),
		StoryPoints: scalarString(f.Custom[m.storyPointField]),
		Team:        scalarString(f.Custom["customfield_team"]),
		Quarter:     scalarString(f.Custom["customfield_quarter"]),
		Year:        scalarString(f.Custom["customfield_year"]),
		Start:       scalarString(f.Custom["customfield_startdate"]),
		End:         scalarString(f.Custom["customfield_enddate"]),
	}
	if f.IssueType != nil {
		rec.Type = strings.TrimSpace(f.IssueType.Name)
	}
	if f.Status != nil {
		rec.Status = strings.TrimSpace(f.Status.Name)
	}
	if f.Priority != nil {
		rec.Priority = strings.TrimSpace(f.Priority.Name)
	}
	if f.Assignee != nil {
		rec.Assignee = strings.TrimSpace(f.Assignee.EmailAddress)
	}
	if f.Reporter != nil {
		rec.Reporter = strings.TrimSpace(f.Reporter.EmailAddress)
	}
	if f.Parent != nil {
		rec.Parent = strings.TrimSpace(f.Parent.Key)
		if rec.Parent != "" && m.classifier.RoleOf(rec.Type) != models.RoleGoal {
			rec.EpicLink = rec.Parent
		}
	}
	return rec
}

// FromSearch は検索結果の全イシューを正規化します
func (m *FieldMapper) FromSearch(resp *models.SearchResponse) []models.NormalizedRecord {
	if resp == nil {
		return nil
	}
	out := make([]models.NormalizedRecord, 0, len(resp.Issues))
	for _, issue := range resp.Issues {
		out = append(out, m.FromIssue(issue))
	}
	return out
}

// splitList は ";" または "," で区切られた値を分割します (空要素は除外)
func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return []string{}
	}
	return trimAll(listSeparator.Split(v, -1))
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func names(in []models.NamedField) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if t := strings.TrimSpace(n.Name); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// plainString は値が文字列の場合のみ返します (リッチテキストのドキュメントは空)
func plainString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// scalarString はJSONの値を文字列に変換します
// 数値は最短の10進表記、0・false・null は空文字列になります
// オブジェクトは value または name を使います
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return ""
	}

	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil || f == 0 {
			return ""
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return ""
	case map[string]interface{}:
		for _, k := range []string{"value", "name"} {
			if s, ok := t[k].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
