package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"producttree/config"
	"producttree/models"
	"producttree/utils"
)

// ErrMissingProductTitle はプロダクト名が未指定の場合のエラーです
var ErrMissingProductTitle = errors.New("プロダクト名が指定されていません")

// IssueSearcher はJQLでイシューを検索します
type IssueSearcher interface {
	Search(ctx context.Context, jql string) (*models.SearchResponse, error)
}

// Session は1回の生成に必要な入力をまとめたものです
// 読み込み済みレコードは読み込みが成功したときだけ置き換わります
type Session struct {
	ProductTitle    string
	Defaults        string
	Profile         *config.Profile
	StoryPointField string
	Records         []models.NormalizedRecord
}

// NewSession は新しいセッションを作成します
func NewSession(profile *config.Profile, storyPointField string) *Session {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	return &Session{
		Defaults:        profile.Defaults,
		Profile:         profile,
		StoryPointField: storyPointField,
	}
}

// Classifier はセッションの分類テーブルから分類器を作成します
func (s *Session) Classifier() *Classifier {
	return NewClassifier(s.Profile.StatusMap, s.Profile.TypeMap)
}

func (s *Session) fieldMapper() *FieldMapper {
	return NewFieldMapper(s.Profile.Columns, s.Classifier(), s.StoryPointField)
}

// SourceSummary は読み込んだレコードの件数とタイプ別内訳を返します (出現順)
func (s *Session) SourceSummary() string {
	var order []string
	byType := make(map[string]int)
	for _, r := range s.Records {
		if _, ok := byType[r.Type]; !ok {
			order = append(order, r.Type)
		}
		byType[r.Type]++
	}
	parts := make([]string, 0, len(order))
	for _, t := range order {
		parts = append(parts, fmt.Sprintf("%s:%d", t, byType[t]))
	}
	return fmt.Sprintf("Loaded %d issues. Types: %s", len(s.Records), strings.Join(parts, ", "))
}

// Result は生成結果です
type Result struct {
	Document string
	FileName string
	Counts   models.TreeCounts
	Tree     *models.TreeNode
}

// CountsLine は集計値の表示用文字列です
func (r *Result) CountsLine() string {
	return fmt.Sprintf("Goals: %d · Items: %d", r.Counts.Goals, r.Counts.Items)
}

// GeneratorService はレコードの読み込みからドキュメント生成までを処理します
type GeneratorService struct {
	csvProc    *CSVProcessor
	serializer *MarkupSerializer
}

// NewGeneratorService は新しい生成サービスを作成します
func NewGeneratorService(csvProc *CSVProcessor) *GeneratorService {
	if csvProc == nil {
		csvProc = NewCSVProcessor()
	}
	return &GeneratorService{
		csvProc:    csvProc,
		serializer: NewMarkupSerializer(),
	}
}

// LoadCSV はCSVを読み込み、セッションのレコードを置き換えます
func (g *GeneratorService) LoadCSV(s *Session, r io.Reader) error {
	rows, err := g.csvProc.ReadCSV(r)
	if err != nil {
		return err
	}
	g.setRows(s, rows)
	return nil
}

// LoadCSVFile はCSVファイルを読み込み、セッションのレコードを置き換えます
func (g *GeneratorService) LoadCSVFile(s *Session, path string) error {
	rows, err := g.csvProc.ReadCSVFile(path)
	if err != nil {
		return err
	}
	g.setRows(s, rows)
	return nil
}

func (g *GeneratorService) setRows(s *Session, rows []models.RawRecord) {
	s.Records = s.fieldMapper().NormalizeAll(rows)
	utils.LogInfo("%s", s.SourceSummary())
}

// Fetch はJQLで検索し、セッションのレコードを置き換えます
// 失敗した場合は既存のレコードをそのまま残します
func (g *GeneratorService) Fetch(ctx context.Context, s *Session, searcher IssueSearcher, jql string) error {
	jql = strings.TrimSpace(jql)
	if jql == "" {
		return errors.New("JQLが指定されていません")
	}

	resp, err := searcher.Search(ctx, jql)
	if err != nil {
		return fmt.Errorf("イシュー検索エラー: %w", err)
	}

	s.Records = s.fieldMapper().FromSearch(resp)
	utils.LogInfo("%s", s.SourceSummary())
	return nil
}

// Generate はセッションの内容からプロダクトツリーを生成します
func (g *GeneratorService) Generate(s *Session) (*Result, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "プロダクトツリー生成")

	title := strings.TrimSpace(s.ProductTitle)
	if title == "" {
		return nil, ErrMissingProductTitle
	}
	if len(s.Records) == 0 {
		return nil, ErrNoRecords
	}

	assembler := NewTreeAssembler(s.Classifier())
	tree, counts := assembler.Assemble(title, config.ParseDefaults(s.Defaults), s.Records)

	res := &Result{
		Document: g.serializer.Serialize(tree),
		FileName: DocumentFileName(title),
		Counts:   counts,
		Tree:     tree,
	}

	utils.LogInfo("%s", res.CountsLine())
	if counts.Dropped > 0 {
		utils.LogDebug("親が見つからないため %d 件をツリーから除外しました", counts.Dropped)
	}
	return res, nil
}

// WriteDocument は生成結果をファイルに書き込みます
func (g *GeneratorService) WriteDocument(path string, res *Result) error {
	if err := os.WriteFile(path, []byte(res.Document), 0o644); err != nil {
		return fmt.Errorf("ドキュメント書き込みエラー: %w", err)
	}
	utils.LogInfo("ドキュメントを書き込みました: %s", path)
	return nil
}
