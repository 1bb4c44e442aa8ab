package services

import (
	"regexp"
	"strings"

	"producttree/models"
)

// XMLHeader はドキュメント先頭の処理命令です
const XMLHeader = `<?xml version="1.0" encoding="UTF-8"?>`

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	whitespace   = regexp.MustCompile(`\s+`)
	pathUnsafe   = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)
	dotRun       = regexp.MustCompile(`\.{2,}`)

	// "&" を含む5文字を1パスで置換するため、生成済みの実体参照を再度エスケープしない
	markupEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
)

// Slugify は小文字化し、英数字以外の連続を "-" 1文字にまとめ、前後の "-" を除きます
func Slugify(s string) string {
	s = nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// NodeID は "pt-<接頭辞>-<スラッグ>" 形式の要素IDを返します
func NodeID(role models.Role, slug string) string {
	return "pt-" + role.IDPrefix() + "-" + slug
}

// EscapeMarkup はマークアップで意味を持つ5文字を実体参照に置換します
// 不正なUTF-8は U+FFFD に、XML 1.0 で使えない文字は除去します
func EscapeMarkup(s string) string {
	s = strings.Map(xmlChar, strings.ToValidUTF8(s, "\uFFFD"))
	return markupEscaper.Replace(s)
}

// xmlChar は XML 1.0 の Char 生成規則に含まれない文字に -1 を返します
func xmlChar(r rune) rune {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return r
	case r < 0x20:
		return -1
	case r <= 0xD7FF:
		return r
	case r >= 0xE000 && r <= 0xFFFD:
		return r
	case r >= 0x10000 && r <= 0x10FFFF:
		return r
	}
	return -1
}

// DocumentFileName はダウンロード用のファイル名を返します
// 空白は "_" に、パス区切りなどファイル名に使えない文字は "_" にまとめます
func DocumentFileName(productTitle string) string {
	name := strings.ToLower(strings.TrimSpace(productTitle))
	name = whitespace.ReplaceAllString(name, "_")
	name = pathUnsafe.ReplaceAllString(name, "_")
	name = dotRun.ReplaceAllString(name, ".")
	if strings.Trim(name, "._") == "" {
		name = "product"
	}
	return "product_tree_" + name + ".xml"
}

// MarkupSerializer はツリーをプロダクトツリーXMLに変換します
// 同じツリーからは常にバイト単位で同じ文字列を生成します
type MarkupSerializer struct {
	indent string
}

// NewMarkupSerializer は新しいシリアライザーを作成します
func NewMarkupSerializer() *MarkupSerializer {
	return &MarkupSerializer{indent: "  "}
}

// Serialize はプロダクトノードをルートとするツリーを文字列にします
func (s *MarkupSerializer) Serialize(root *models.TreeNode) string {
	lines := []string{XMLHeader, "<product_tree>"}
	if root != nil {
		lines = s.writeNode(lines, root, 1)
	}
	lines = append(lines, "</product_tree>")
	return strings.Join(lines, "\n")
}

func (s *MarkupSerializer) writeNode(lines []string, n *models.TreeNode, depth int) []string {
	pad := strings.Repeat(s.indent, depth)
	inner := pad + s.indent
	tag := string(n.Role)

	var open strings.Builder
	open.WriteString(pad + "<" + tag)
	writeAttr(&open, "id", n.ID)
	writeAttr(&open, "title", n.Title)
	writeAttr(&open, "type", tag)
	for _, a := range n.Attrs {
		if a.Value == "" {
			continue
		}
		writeAttr(&open, a.Name, a.Value)
	}
	open.WriteString(">")
	lines = append(lines, open.String())

	lines = append(lines, inner+element("title", n.Title))
	if n.Summary != "" {
		lines = append(lines, inner+element("summary", n.Summary))
	}
	if n.Description != "" {
		lines = append(lines, inner+element("description", n.Description))
		if n.Role == models.RoleJob {
			lines = append(lines, inner+element("job_content", n.Description))
		}
	}

	for _, c := range n.Children {
		lines = s.writeNode(lines, c, depth+1)
	}

	return append(lines, pad+"</"+tag+">")
}

func writeAttr(b *strings.Builder, name, value string) {
	b.WriteString(" " + name + `="` + EscapeMarkup(value) + `"`)
}

func element(name, text string) string {
	return "<" + name + ">" + EscapeMarkup(text) + "</" + name + ">"
}
