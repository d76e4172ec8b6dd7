package hierarchy

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/hatlonely/spendagg/codetree"
)

// ValidationError 客户端输入错误，Field 为出错的字段
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FilterSpec 层级过滤条件
type FilterSpec struct {
	Required []string `json:"require,omitempty" yaml:"require,omitempty"`
	Excluded []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// Compiler 把包含/排除编码编译为布尔表达式
type Compiler struct {
	domain Domain
	known  *codetree.Tree
}

type CompilerOption func(*Compiler)

// WithKnownCodes 只接受已知编码树中存在的编码
func WithKnownCodes(tree *codetree.Tree) CompilerOption {
	return func(c *Compiler) {
		c.known = tree
	}
}

func NewCompiler(domain Domain, opts ...CompilerOption) *Compiler {
	c := &Compiler{domain: domain}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile 编译过滤条件
//
// 语义：文档编码命中的最深一级编码决定其去留；没有任何编码覆盖的文档，
// 只有在不存在顶层包含编码时才保留；位于顶层排除编码之下的包含编码，
// 只有在不存在顶层包含编码时才生效
func (c *Compiler) Compile(spec FilterSpec) (*Expr, error) {
	required := dedupe(spec.Required)
	excluded := dedupe(spec.Excluded)
	if len(required) == 0 && len(excluded) == 0 {
		return nil, errors.WithStack(&ValidationError{Field: "filter", Reason: "at least one of require or exclude must be provided"})
	}

	positive := make(map[string]bool, len(required)+len(excluded))
	for _, code := range required {
		positive[code] = true
	}
	for _, code := range excluded {
		if positive[code] {
			return nil, errors.WithStack(&ValidationError{Field: "exclude", Reason: fmt.Sprintf("code %q is both required and excluded", code)})
		}
	}
	if c.known != nil {
		for _, code := range append(append([]string{}, required...), excluded...) {
			if !c.known.Contains(code) {
				return nil, errors.WithStack(&ValidationError{Field: "filter", Reason: fmt.Sprintf("unknown code %q", code)})
			}
		}
	}

	tree := codetree.Build(append(append([]string{}, required...), excluded...), 0)
	b := &builder{domain: c.domain, tree: tree, positive: positive}

	var positives, negatives []*Expr
	for _, idx := range tree.Roots() {
		if b.isPositive(idx) {
			positives = append(positives, b.node(idx))
		} else {
			negatives = append(negatives, b.node(idx))
		}
	}

	return and(or(positives...), and(negatives...)), nil
}

type builder struct {
	domain   Domain
	tree     *codetree.Tree
	positive map[string]bool
}

func (b *builder) isPositive(idx int) bool {
	return b.positive[b.tree.Node(idx).Code]
}

// children 与 idx 极性相同的子节点是冗余的，其子节点上提
func (b *builder) children(idx int) []int {
	polarity := b.isPositive(idx)
	var out []int
	for _, child := range b.tree.Node(idx).Children {
		if b.isPositive(child) == polarity {
			out = append(out, b.children(child)...)
			continue
		}
		out = append(out, child)
	}
	return out
}

func (b *builder) node(idx int) *Expr {
	self := unit(b.domain, b.tree.Node(idx).Code)

	var positives, negatives []*Expr
	for _, child := range b.children(idx) {
		if b.isPositive(child) {
			positives = append(positives, b.node(child))
		} else {
			negatives = append(negatives, b.node(child))
		}
	}
	children := and(or(positives...), and(negatives...))

	if b.isPositive(idx) {
		return and(self, children)
	}
	return or(not(self), children)
}

func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
