package engine

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hatlonely/spendagg/aggregation"
	"github.com/hatlonely/spendagg/codetree"
	"github.com/hatlonely/spendagg/hierarchy"
)

// 聚合名
const (
	GroupAggName      = "group_by_agg_key"
	SubGroupAggName   = "sub_group_by_sub_agg_key"
	PaginationAggName = "pagination_aggregation"
	MetadataAggName   = "dim_metadata"
	AwardCountAggName = "count_awards_by_dim"
	AwardCountValue   = "award_count"
	FieldCountAggName = "field_count"
	keyOrder          = "_key"
	countOrder        = "_count"
)

// SumField 需要求和的金额字段，Name 为结果中的名字
type SumField struct {
	Name  string `yaml:"name" json:"name"`
	Field string `yaml:"field" json:"field"`
}

// SumAggName 金额求和聚合的名字
func SumAggName(name string) string {
	return "sum_" + name
}

// FieldMapping top_hits 文档中 id/code/description 所在的字段
type FieldMapping struct {
	ID          string `yaml:"id" json:"id"`
	Code        string `yaml:"code" json:"code"`
	Description string `yaml:"description" json:"description"`
}

// Sources top_hits 需要返回的字段
func (m *FieldMapping) Sources() []string {
	if m == nil {
		return nil
	}
	var fields []string
	for _, field := range []string{m.ID, m.Code, m.Description} {
		if field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

// Dictionary 编码到描述的查询
type Dictionary interface {
	Get(ctx context.Context, code string) (string, bool, error)
}

// Strategy 一种分组维度的聚合方式
type Strategy struct {
	Name          string `validate:"required"`
	Index         string `validate:"required"`
	GroupField    string `validate:"required"`
	SubGroupField string
	// QueryFields 关键字检索的字段
	QueryFields []string
	SumFields   []SumField `validate:"dive"`
	// SortFields 排序键到聚合排序目标（_key、_count 或求和聚合名）
	SortFields  map[string]string
	DefaultSort string

	// Domain 层级编码过滤使用的叶子谓词
	Domain     hierarchy.Domain
	KnownCodes *codetree.Tree

	// MetadataFields 桶内 top_hits 文档中本级的字段
	MetadataFields *FieldMapping
	// ParentFields 桶内 top_hits 文档中上一级的字段，非空时按上一级合并
	ParentFields *FieldMapping
	// AwardCountField 非空时用 reverse_nested 下的去重计数代替 doc_count
	AwardCountField string

	Dictionary Dictionary

	// BuildSubAggregation 每个分组桶内的附加聚合，为空时按 MetadataFields/AwardCountField 生成
	BuildSubAggregation func(plan *Plan) []aggregation.Aggregation
	// ParseResult 聚合结果到结果行，为空时 ParentFields 非空用 ParseWithParent，否则用 ParseNested
	ParseResult func(plan *Plan, result *aggregation.Result) ([]ResultRow, error)
}

// DefaultSortFields 常用的排序键映射
func DefaultSortFields(sums []SumField) map[string]string {
	fields := map[string]string{
		"award_count": countOrder,
		"description": keyOrder,
		"code":        keyOrder,
		"id":          keyOrder,
	}
	for _, sum := range sums {
		fields[sum.Name] = SumAggName(sum.Name)
	}
	return fields
}

// Validate 校验策略，不修改策略本身，可在多个请求间共享
func (s *Strategy) Validate() error {
	if err := validate.Struct(s); err != nil {
		return errors.Wrapf(err, "invalid strategy %q", s.Name)
	}
	if _, ok := s.sortFields()[s.defaultSort()]; !ok {
		return errors.Errorf("invalid strategy %q: default sort %q has no sort field", s.Name, s.defaultSort())
	}
	return nil
}

func (s *Strategy) sortFields() map[string]string {
	if s.SortFields == nil {
		return DefaultSortFields(s.SumFields)
	}
	return s.SortFields
}

// defaultSort 未指定时按第一个金额字段排序
func (s *Strategy) defaultSort() string {
	switch {
	case s.DefaultSort != "":
		return s.DefaultSort
	case len(s.SumFields) > 0:
		return s.SumFields[0].Name
	default:
		return "id"
	}
}

// CountField 精确去重计数使用的字段
func (s *Strategy) CountField(options *Options, field string) string {
	return field + options.CountFieldSuffix
}

// SumFieldNames 所有金额字段
func (s *Strategy) SumFieldNames() []string {
	fields := make([]string, len(s.SumFields))
	for i, sum := range s.SumFields {
		fields[i] = sum.Field
	}
	return fields
}

func (s *Strategy) subAggregations(plan *Plan) []aggregation.Aggregation {
	if s.BuildSubAggregation != nil {
		return s.BuildSubAggregation(plan)
	}

	var aggs []aggregation.Aggregation
	sources := append(s.MetadataFields.Sources(), s.ParentFields.Sources()...)
	if len(sources) > 0 {
		aggs = append(aggs, &aggregation.TopHitsAggregation{AggName: MetadataAggName, Size: 1, Source: sources})
	}
	if s.AwardCountField != "" {
		reverse := &aggregation.ReverseNestedAggregation{
			BucketAggregation: aggregation.BucketAggregation{AggName: AwardCountAggName},
		}
		reverse.Add(&aggregation.CardinalityAggregation{
			MetricAggregation: aggregation.MetricAggregation{AggName: AwardCountValue, Field: s.AwardCountField},
		})
		aggs = append(aggs, reverse)
	}
	return aggs
}

func (s *Strategy) parse(plan *Plan, result *aggregation.Result) ([]ResultRow, error) {
	switch {
	case s.ParseResult != nil:
		return s.ParseResult(plan, result)
	case s.ParentFields != nil:
		return ParseWithParent(plan, result)
	default:
		return ParseNested(plan, result)
	}
}
