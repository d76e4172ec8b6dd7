package engine

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/hatlonely/spendagg/hierarchy"
)

var validate = validator.New()

// NumericFilter 数值区间过滤，边界为 nil 时不限制
type NumericFilter struct {
	Field string   `json:"field" validate:"required"`
	Gte   *float64 `json:"gte,omitempty"`
	Lte   *float64 `json:"lte,omitempty"`
}

// Filter 聚合请求的过滤条件
type Filter struct {
	Required []string `json:"require,omitempty"`
	Excluded []string `json:"exclude,omitempty"`
	// Query 在 Strategy.QueryFields 上做全文匹配
	Query   string              `json:"query,omitempty"`
	Numeric []NumericFilter     `json:"numeric,omitempty" validate:"dive"`
	Terms   map[string][]string `json:"terms,omitempty"`
}

// HasCodes 是否携带层级编码条件
func (f *Filter) HasCodes() bool {
	return len(f.Required) != 0 || len(f.Excluded) != 0
}

// Spec 层级编码条件
func (f *Filter) Spec() hierarchy.FilterSpec {
	return hierarchy.FilterSpec{Required: f.Required, Excluded: f.Excluded}
}

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Pagination 分页与排序
type Pagination struct {
	Page      int    `json:"page" validate:"gte=1"`
	Limit     int    `json:"limit" validate:"gte=1"`
	SortKey   string `json:"sort"`
	SortOrder string `json:"order" validate:"omitempty,oneof=asc desc"`
}

// Offset 当前页第一条的下标
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// UpperLimit 多取一条用于判断是否有下一页
func (p *Pagination) UpperLimit() int {
	return p.Page*p.Limit + 1
}

// Request 一次聚合请求
type Request struct {
	Filter     Filter     `json:"filter"`
	Pagination Pagination `json:"pagination"`
}

// Validate 校验请求，不修改请求本身
func (r *Request) Validate(strategy *Strategy) error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.WithStack(&ValidationError{Field: fieldName(verrs[0].Namespace()), Reason: verrs[0].Error()})
		}
		return errors.WithStack(&ValidationError{Field: "request", Reason: err.Error()})
	}

	p := r.Resolve(strategy)
	if _, ok := strategy.sortFields()[p.SortKey]; !ok {
		return errors.WithStack(&ValidationError{Field: "sort", Reason: "unsupported sort key " + p.SortKey})
	}
	return nil
}

// Resolve 返回补齐排序默认值后的分页副本
func (r *Request) Resolve(strategy *Strategy) Pagination {
	p := r.Pagination
	if p.SortOrder == "" {
		p.SortOrder = SortDesc
	}
	if p.SortKey == "" {
		p.SortKey = strategy.defaultSort()
	}
	return p
}

// fieldName Request.Pagination.Limit -> limit
func fieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	return strings.ToLower(parts[len(parts)-1])
}
