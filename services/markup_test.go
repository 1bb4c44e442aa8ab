package services

import (
	"encoding/xml"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"producttree/models"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Acme Portal 2.0":    "acme-portal-2-0",
		"  --Hello, World--": "hello-world",
		"PROJ-12":            "proj-12",
		"日本語":                "",
		"":                   "",
		"a___b":              "a-b",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}
}

func TestNodeID(t *testing.T) {
	assert.Equal(t, "pt-prod-acme", NodeID(models.RoleProduct, "acme"))
	assert.Equal(t, "pt-goal-PROJ-1", NodeID(models.RoleGoal, "PROJ-1"))
	assert.Equal(t, "pt-job-J-1", NodeID(models.RoleJob, "J-1"))
	assert.Equal(t, "pt-work-S-1", NodeID(models.RoleWorkItem, "S-1"))
	assert.Equal(t, "pt-work-W-1", NodeID(models.RoleWork, "W-1"))
}

func TestEscapeMarkup(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; &quot;c&quot; &apos;d&apos;", EscapeMarkup(`a <b> & "c" 'd'`))
	assert.Equal(t, "&lt;", EscapeMarkup("<"))
	assert.NotContains(t, EscapeMarkup("<"), "&amp;lt;")
	assert.Equal(t, "bell here", EscapeMarkup("bell\x07 here"))
	assert.Equal(t, "bad\uFFFDutf8", EscapeMarkup("bad\xffutf8"))
	assert.Equal(t, "tab\tnl\ncr\r", EscapeMarkup("tab\tnl\ncr\r"))
	assert.Equal(t, "日本語 😀", EscapeMarkup("日本語\x00 😀\uFFFE"))
	assert.Equal(t, "&amp;amp;", EscapeMarkup("&amp;"))
	assert.Equal(t, "plain text", EscapeMarkup("plain text"))
}

func TestDocumentFileName(t *testing.T) {
	assert.Equal(t, "product_tree_acme_portal_2.0.xml", DocumentFileName("Acme  Portal\t2.0"))
	assert.Equal(t, "product_tree_x.xml", DocumentFileName(" X "))
	assert.Equal(t, "product_tree_product.xml", DocumentFileName(""))
	assert.Equal(t, "product_tree_café_v1.2-rc.xml", DocumentFileName("Café v1.2-rc"))
}

func TestDocumentFileName_StaysInDirectory(t *testing.T) {
	titles := []string{
		"a/../b",
		"a/../../../etc/cron.d/x",
		`..\..\windows\x`,
		"/abs/path",
		"..",
		"....",
	}
	for _, title := range titles {
		name := DocumentFileName(title)
		assert.NotContains(t, name, "/", title)
		assert.NotContains(t, name, `\`, title)
		assert.NotContains(t, name, "..", title)
		assert.Equal(t, "/upload/"+name, path.Join("/upload", name), title)
		assert.Equal(t, name, filepath.Base(name), title)
	}
	assert.Equal(t, "product_tree_a_._b.xml", DocumentFileName("a/../b"))
	assert.Equal(t, "product_tree_product.xml", DocumentFileName(".."))
}

func TestSerialize_ExactDocument(t *testing.T) {
	root := &models.TreeNode{
		Role:  models.RoleProduct,
		ID:    "pt-prod-p",
		Title: "P",
		Attrs: []models.Attr{{Name: "status", Value: "active"}},
		Children: []*models.TreeNode{{
			Role:    models.RoleGoal,
			ID:      "pt-goal-E-1",
			Title:   "Launch",
			Summary: "Launch",
			Children: []*models.TreeNode{{
				Role:        models.RoleJob,
				ID:          "pt-job-J-1",
				Title:       "Job",
				Summary:     "Job",
				Description: "Do it",
				Attrs:       []models.Attr{{Name: "effort", Value: "3"}, {Name: "end", Value: ""}},
			}},
		}},
	}

	want := strings.Join([]string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<product_tree>`,
		`  <product id="pt-prod-p" title="P" type="product" status="active">`,
		`    <title>P</title>`,
		`    <goal id="pt-goal-E-1" title="Launch" type="goal">`,
		`      <title>Launch</title>`,
		`      <summary>Launch</summary>`,
		`      <job id="pt-job-J-1" title="Job" type="job" effort="3">`,
		`        <title>Job</title>`,
		`        <summary>Job</summary>`,
		`        <description>Do it</description>`,
		`        <job_content>Do it</job_content>`,
		`      </job>`,
		`    </goal>`,
		`  </product>`,
		`</product_tree>`,
	}, "\n")

	assert.Equal(t, want, NewMarkupSerializer().Serialize(root))
}

func TestSerialize_NilRoot(t *testing.T) {
	doc := NewMarkupSerializer().Serialize(nil)
	assert.Equal(t, XMLHeader+"\n<product_tree>\n</product_tree>", doc)
}

func TestSerialize_WellFormedWithHostileText(t *testing.T) {
	records := []models.NormalizedRecord{
		{Type: "Epic", Key: "E-1", Summary: `Fish & "Chips" <v2>`, Description: "it's </goal>", Team: "R&D"},
		{Type: "Initiative", Key: "J-1", Summary: "a<b", Description: "x > y", EpicLink: "E-1"},
		{Type: "Story", Key: "S-1", Summary: "]]>", Status: "Done", EpicLink: "E-1", Parent: "J-1"},
	}
	root, _ := newTestAssembler().Assemble(`Acme & "Co"`, nil, records)
	doc := NewMarkupSerializer().Serialize(root)

	assert.True(t, strings.HasPrefix(doc, XMLHeader+"\n<product_tree>\n"))
	assert.True(t, strings.HasSuffix(doc, "</product_tree>"))
	assert.NotContains(t, doc, "&amp;lt;")
	assert.NotContains(t, doc, "&amp;amp;")

	dec := xml.NewDecoder(strings.NewReader(doc))
	var (
		depth, maxDepth int
		texts           []string
		goalTitle       string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			maxDepth = max(maxDepth, depth)
			if el.Name.Local == "goal" {
				for _, a := range el.Attr {
					if a.Name.Local == "title" {
						goalTitle = a.Value
					}
				}
			}
		case xml.EndElement:
			depth--
		case xml.CharData:
			if s := strings.TrimSpace(string(el)); s != "" {
				texts = append(texts, s)
			}
		}
	}

	assert.Equal(t, 0, depth)
	// product_tree > product > goal > job > work_item > title
	assert.Equal(t, 6, maxDepth)
	assert.Equal(t, `Fish & "Chips" <v2>`, goalTitle)
	assert.Contains(t, texts, "it's </goal>")
	assert.Contains(t, texts, "]]>")
	assert.Contains(t, texts, "x > y")
}

func TestSerialize_WellFormedWithControlCharacters(t *testing.T) {
	records := []models.NormalizedRecord{
		{Type: "Epic", Key: "E-1", Summary: "bell\x07 here", Description: "bad\xffutf8"},
		{Type: "Story", Key: "S-1", Summary: "nul\x00\x1b[0m", Description: "line1\r\nline2\tend", EpicLink: "E-1"},
	}
	root, _ := newTestAssembler().Assemble("Prod\x0c", nil, records)
	doc := NewMarkupSerializer().Serialize(root)

	assert.NotContains(t, doc, "\x07")
	assert.NotContains(t, doc, "\x00")
	assert.NotContains(t, doc, "\x1b")
	assert.True(t, utf8.ValidString(doc))

	dec := xml.NewDecoder(strings.NewReader(doc))
	var (
		texts     []string
		goalTitle string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "goal" {
				for _, a := range el.Attr {
					if a.Name.Local == "title" {
						goalTitle = a.Value
					}
				}
			}
		case xml.CharData:
			if s := strings.TrimSpace(string(el)); s != "" {
				texts = append(texts, s)
			}
		}
	}

	assert.Equal(t, "bell here", goalTitle)
	assert.Contains(t, texts, "bad\uFFFDutf8")
	assert.Contains(t, texts, "nul[0m")
}

func TestSerialize_Deterministic(t *testing.T) {
	records := []models.NormalizedRecord{
		{Type: "Epic", Key: "E-1", Summary: "One"},
		{Type: "Story", Key: "S-1", Summary: "Two", EpicLink: "E-1"},
	}
	s := NewMarkupSerializer()
	a := newTestAssembler()

	first, _ := a.Assemble("P", nil, records)
	second, _ := a.Assemble("P", nil, records)
	assert.Equal(t, s.Serialize(first), s.Serialize(second))
}

func TestSerialize_OptionalAttributesOmitted(t *testing.T) {
	records := []models.NormalizedRecord{
		{Type: "Epic", Key: "E-1", Summary: "Goal"},
	}
	root, _ := newTestAssembler().Assemble("P", nil, records)
	doc := NewMarkupSerializer().Serialize(root)

	assert.Contains(t, doc, `<goal id="pt-goal-E-1" title="Goal" type="goal">`)
	assert.NotContains(t, doc, `status=""`)
	assert.NotContains(t, doc, "<description>")
	assert.NotContains(t, doc, "<job_content>")
}
