package codetree

import (
	"sort"
	"strings"
)

// Node 树中的一个编码，Parent 为父节点下标，根节点为 -1
type Node struct {
	Code        string
	Description string
	Parent      int
	Children    []int
	Depth       int
}

// Tree 由扁平编码列表构建的层级树，节点保存在数组中，父子关系用下标表示
// 构建完成后只读，可并发访问
type Tree struct {
	nodes     []Node
	index     map[string]int
	roots     []int
	tierWidth int
}

// Entry 带描述的编码
type Entry struct {
	Code        string `yaml:"code" json:"code"`
	Description string `yaml:"description" json:"description"`
}

// Build 从编码列表构建树，重复编码只保留一个
func Build(codes []string, tierWidth int) *Tree {
	entries := make([]Entry, len(codes))
	for i, code := range codes {
		entries[i] = Entry{Code: code}
	}
	return BuildEntries(entries, tierWidth)
}

// BuildEntries 从带描述的编码列表构建树
// 节点的父节点是列表中最近的真前缀祖先，中间层缺失时跨层挂接
func BuildEntries(entries []Entry, tierWidth int) *Tree {
	descriptions := make(map[string]string, len(entries))
	codes := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Code == "" {
			continue
		}
		if _, ok := descriptions[entry.Code]; !ok {
			codes = append(codes, entry.Code)
		}
		if entry.Description != "" || descriptions[entry.Code] == "" {
			descriptions[entry.Code] = entry.Description
		}
	}

	// 短编码在前，保证祖先先于后代入树
	sort.Slice(codes, func(i, j int) bool {
		if len(codes[i]) != len(codes[j]) {
			return len(codes[i]) < len(codes[j])
		}
		return codes[i] < codes[j]
	})

	t := &Tree{
		nodes:     make([]Node, 0, len(codes)),
		index:     make(map[string]int, len(codes)),
		tierWidth: tierWidth,
	}
	for _, code := range codes {
		idx := len(t.nodes)
		parent := t.nearestProperAncestor(code)
		node := Node{Code: code, Description: descriptions[code], Parent: parent}
		if parent >= 0 {
			node.Depth = t.nodes[parent].Depth + 1
			t.nodes[parent].Children = append(t.nodes[parent].Children, idx)
		} else {
			t.roots = append(t.roots, idx)
		}
		t.nodes = append(t.nodes, node)
		t.index[code] = idx
	}
	return t
}

func (t *Tree) nearestProperAncestor(code string) int {
	for l := len(code) - 1; l > 0; l-- {
		if idx, ok := t.index[code[:l]]; ok {
			return idx
		}
	}
	return -1
}

// Len 节点数量
func (t *Tree) Len() int {
	return len(t.nodes)
}

// TierWidth 每一层编码的字符宽度
func (t *Tree) TierWidth() int {
	return t.tierWidth
}

// Node 按下标取节点
func (t *Tree) Node(idx int) *Node {
	return &t.nodes[idx]
}

// Roots 没有祖先在树中的节点
func (t *Tree) Roots() []int {
	return t.roots
}

// Lookup 按编码查找节点下标
func (t *Tree) Lookup(code string) (int, bool) {
	idx, ok := t.index[code]
	return idx, ok
}

// Contains 编码是否在树中
func (t *Tree) Contains(code string) bool {
	_, ok := t.index[code]
	return ok
}

// Description 编码描述，不存在时为空
func (t *Tree) Description(code string) string {
	if idx, ok := t.index[code]; ok {
		return t.nodes[idx].Description
	}
	return ""
}

// Nearest 树中覆盖 code 的最深节点（code 自身或其祖先）
func (t *Tree) Nearest(code string) (int, bool) {
	for l := len(code); l > 0; l-- {
		if idx, ok := t.index[code[:l]]; ok {
			return idx, true
		}
	}
	return -1, false
}

// Root 节点所在子树的根
func (t *Tree) Root(idx int) int {
	for t.nodes[idx].Parent >= 0 {
		idx = t.nodes[idx].Parent
	}
	return idx
}

// Ancestors 树中 code 的祖先编码，由近及远，不含 code 自身
func (t *Tree) Ancestors(code string) []string {
	idx, ok := t.Nearest(code)
	if !ok {
		return nil
	}
	if t.nodes[idx].Code == code {
		idx = t.nodes[idx].Parent
	}
	var ancestors []string
	for ; idx >= 0; idx = t.nodes[idx].Parent {
		ancestors = append(ancestors, t.nodes[idx].Code)
	}
	return ancestors
}

// Walk 先序遍历，fn 返回 false 时不再进入该节点的子树
func (t *Tree) Walk(fn func(idx int, node *Node) bool) {
	var visit func(idx int)
	visit = func(idx int) {
		if !fn(idx, &t.nodes[idx]) {
			return
		}
		for _, child := range t.nodes[idx].Children {
			visit(child)
		}
	}
	for _, root := range t.roots {
		visit(root)
	}
}

// IsAncestor ancestor 是否为 code 的真前缀
func IsAncestor(ancestor, code string) bool {
	return len(ancestor) < len(code) && strings.HasPrefix(code, ancestor)
}

// IsDirectChild child 是否恰好比 parent 低一层
func IsDirectChild(parent, child string, tierWidth int) bool {
	return len(child) == len(parent)+tierWidth && strings.HasPrefix(child, parent)
}

// ParentCode 按层宽截取上一层编码，已是顶层时返回空
func ParentCode(code string, tierWidth int) string {
	if tierWidth <= 0 || len(code) <= tierWidth {
		return ""
	}
	return code[:len(code)-tierWidth]
}
