package services

import (
	"producttree/models"
)

// TreeAssembler はフラットなレコード列からプロダクトツリーを組み立てます
//
// 構造は product → goal → (job → work_item) / work_item / work の固定です。
// 親の参照 (epic_link、なければ parent) が goal に解決できないレコードは
// エラーにせずツリーから除外します。並び順は常に入力順です。
type TreeAssembler struct {
	classifier *Classifier
}

// NewTreeAssembler は新しいツリーアセンブラーを作成します
func NewTreeAssembler(classifier *Classifier) *TreeAssembler {
	return &TreeAssembler{classifier: classifier}
}

// goal 配下の子レコード (入力順)
type childBucket struct {
	jobs      []models.NormalizedRecord
	workItems []models.NormalizedRecord
	work      []models.NormalizedRecord
}

// Assemble はプロダクトをルートとするツリーと集計値を返します
func (a *TreeAssembler) Assemble(productTitle string, defaults map[string]string, records []models.NormalizedRecord) (*models.TreeNode, models.TreeCounts) {
	var counts models.TreeCounts

	// 1. ロールで goal とそれ以外に分ける
	var goals, others []models.NormalizedRecord
	for _, r := range records {
		if a.classifier.RoleOf(r.Type) == models.RoleGoal {
			goals = append(goals, r)
		} else {
			others = append(others, r)
		}
	}
	counts.Goals = len(goals)
	counts.Items = len(others)

	goalKeys := make(map[string]bool, len(goals))
	for _, g := range goals {
		if g.Key != "" {
			goalKeys[g.Key] = true
		}
	}

	// 2. 親キーごとに子レコードを索引化する
	buckets := make(map[string]*childBucket)
	for _, r := range others {
		link := r.LinkKey()
		if link == "" || !goalKeys[link] {
			continue
		}
		b, ok := buckets[link]
		if !ok {
			b = &childBucket{}
			buckets[link] = b
		}
		switch a.classifier.RoleOf(r.Type) {
		case models.RoleJob:
			b.jobs = append(b.jobs, r)
		case models.RoleWork:
			b.work = append(b.work, r)
		default:
			b.workItems = append(b.workItems, r)
		}
		counts.Linked++
	}
	counts.Dropped = counts.Items - counts.Linked

	// 3. 索引を元にツリーを組み立てる
	root := productNode(productTitle, defaults)
	for _, g := range goals {
		node := a.goalNode(g)
		if g.Key != "" {
			if b, ok := buckets[g.Key]; ok {
				node.Children = a.goalChildren(b)
			}
		}
		root.Children = append(root.Children, node)
	}

	return root, counts
}

// goalChildren は job (配下の work_item を含む)、残りの work_item、work の順に並べます
func (a *TreeAssembler) goalChildren(b *childBucket) []*models.TreeNode {
	jobKeys := make(map[string]bool, len(b.jobs))
	for _, j := range b.jobs {
		if j.Key != "" {
			jobKeys[j.Key] = true
		}
	}

	byJob := make(map[string][]models.NormalizedRecord)
	var direct []models.NormalizedRecord
	for _, wi := range b.workItems {
		if wi.Parent != "" && jobKeys[wi.Parent] {
			byJob[wi.Parent] = append(byJob[wi.Parent], wi)
			continue
		}
		direct = append(direct, wi)
	}

	children := make([]*models.TreeNode, 0, len(b.jobs)+len(direct)+len(b.work))
	for _, j := range b.jobs {
		jn := a.jobNode(j)
		if j.Key != "" {
			for _, wi := range byJob[j.Key] {
				jn.Children = append(jn.Children, a.baseNode(models.RoleWorkItem, wi))
			}
		}
		children = append(children, jn)
	}
	for _, wi := range direct {
		children = append(children, a.baseNode(models.RoleWorkItem, wi))
	}
	for _, w := range b.work {
		children = append(children, a.baseNode(models.RoleWork, w))
	}
	return children
}

func productNode(title string, defaults map[string]string) *models.TreeNode {
	return &models.TreeNode{
		Role:  models.RoleProduct,
		ID:    NodeID(models.RoleProduct, Slugify(title)),
		Title: title,
		Attrs: compactAttrs(
			models.Attr{Name: "status", Value: defaults["status"]},
			models.Attr{Name: "priority", Value: defaults["priority"]},
			models.Attr{Name: "team", Value: defaults["team"]},
		),
	}
}

func (a *TreeAssembler) goalNode(r models.NormalizedRecord) *models.TreeNode {
	n := a.baseNode(models.RoleGoal, r)
	n.Attrs = append(n.Attrs, compactAttrs(
		models.Attr{Name: "quarter", Value: r.Quarter},
		models.Attr{Name: "year", Value: r.Year},
	)...)
	return n
}

func (a *TreeAssembler) jobNode(r models.NormalizedRecord) *models.TreeNode {
	n := a.baseNode(models.RoleJob, r)
	n.Attrs = append(n.Attrs, compactAttrs(
		models.Attr{Name: "effort", Value: r.StoryPoints},
		models.Attr{Name: "start", Value: r.Start},
		models.Attr{Name: "end", Value: r.End},
	)...)
	return n
}

func (a *TreeAssembler) baseNode(role models.Role, r models.NormalizedRecord) *models.TreeNode {
	title := r.Summary
	if title == "" {
		title = r.Key
	}
	return &models.TreeNode{
		Role:        role,
		ID:          NodeID(role, recordSlug(r)),
		Title:       title,
		Summary:     r.Summary,
		Description: r.Description,
		Attrs: compactAttrs(
			models.Attr{Name: "status", Value: a.classifier.NormalizedStatus(r.Status)},
			models.Attr{Name: "priority", Value: r.Priority},
			models.Attr{Name: "team", Value: r.Team},
		),
	}
}

// recordSlug は key → id → summary のスラッグの順で識別子を選びます
func recordSlug(r models.NormalizedRecord) string {
	if r.Key != "" {
		return r.Key
	}
	if r.ID != "" {
		return r.ID
	}
	return Slugify(r.Summary)
}

// compactAttrs は値が空の属性を除外します
func compactAttrs(attrs ...models.Attr) []models.Attr {
	out := make([]models.Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Value != "" {
			out = append(out, a)
		}
	}
	return out
}
