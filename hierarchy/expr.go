package hierarchy

import (
	"strings"

	"github.com/hatlonely/spendagg/query"
)

// Kind 表达式节点类型
type Kind int

const (
	KindUnit Kind = iota
	KindNot
	KindAnd
	KindOr
)

// Expr 编译后的布尔表达式
type Expr struct {
	Kind     Kind
	Code     string
	Operands []*Expr

	domain Domain
}

func unit(domain Domain, code string) *Expr {
	return &Expr{Kind: KindUnit, Code: code, domain: domain}
}

func not(e *Expr) *Expr {
	return &Expr{Kind: KindNot, Operands: []*Expr{e}}
}

// and/or 只有一个操作数时直接返回该操作数，没有操作数时返回 nil
func and(operands ...*Expr) *Expr {
	return combine(KindAnd, operands)
}

func or(operands ...*Expr) *Expr {
	return combine(KindOr, operands)
}

func combine(kind Kind, operands []*Expr) *Expr {
	var kept []*Expr
	for _, operand := range operands {
		if operand != nil {
			kept = append(kept, operand)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return &Expr{Kind: kind, Operands: kept}
	}
}

// String query_string 语法，每个分组都加括号
func (e *Expr) String() string {
	switch e.Kind {
	case KindUnit:
		return "(" + e.domain.Unit(e.Code) + ")"
	case KindNot:
		return "(NOT " + e.Operands[0].String() + ")"
	case KindAnd, KindOr:
		op := " AND "
		if e.Kind == KindOr {
			op = " OR "
		}
		parts := make([]string, len(e.Operands))
		for i, operand := range e.Operands {
			parts[i] = operand.String()
		}
		return "(" + strings.Join(parts, op) + ")"
	}
	return ""
}

// ToQuery 结构化的 bool 查询
func (e *Expr) ToQuery() query.Query {
	switch e.Kind {
	case KindUnit:
		return e.domain.Query(e.Code)
	case KindNot:
		return &query.BoolQuery{MustNot: []query.Query{e.Operands[0].ToQuery()}}
	case KindAnd:
		must := make([]query.Query, len(e.Operands))
		for i, operand := range e.Operands {
			must[i] = operand.ToQuery()
		}
		return &query.BoolQuery{Filter: must}
	case KindOr:
		should := make([]query.Query, len(e.Operands))
		for i, operand := range e.Operands {
			should[i] = operand.ToQuery()
		}
		return query.NewShouldMatchOne(should...)
	}
	return &query.MatchAllQuery{}
}

// QueryString 包装为 query_string 查询
func (e *Expr) QueryString() *query.QueryStringQuery {
	return &query.QueryStringQuery{Query: e.String()}
}

// Match 在内存中对单个文档编码求值
func (e *Expr) Match(docCode string) bool {
	switch e.Kind {
	case KindUnit:
		return e.domain.Covers(e.Code, docCode)
	case KindNot:
		return !e.Operands[0].Match(docCode)
	case KindAnd:
		for _, operand := range e.Operands {
			if !operand.Match(docCode) {
				return false
			}
		}
		return true
	case KindOr:
		for _, operand := range e.Operands {
			if operand.Match(docCode) {
				return true
			}
		}
		return false
	}
	return false
}
