package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/spendagg/aggregation"
	"github.com/hatlonely/spendagg/hierarchy"
	"github.com/hatlonely/spendagg/query"
	"github.com/hatlonely/spendagg/search"
)

// Plan 一次聚合请求的执行计划
type Plan struct {
	Strategy *Strategy
	Request  *Request
	// Pagination 补齐默认排序后的分页，Request 保持不变
	Pagination Pagination
	// Codes 层级编码过滤编译结果，没有编码条件时为 nil
	Codes       *hierarchy.Expr
	Query       query.Query
	Decision    BucketCountDecision
	SubDecision *BucketCountDecision
	// Search 为 nil 表示结果为空，不需要发聚合请求
	Search *search.Request

	options *Options
}

// Empty 结果为空
func (p *Plan) Empty() bool {
	return p.Search == nil
}

// TrimLookAhead 去掉为判断下一页多取的桶，返回去掉前的分组桶数
func (p *Plan) TrimLookAhead(result *aggregation.Result) int {
	buckets := result.GetBuckets(GroupAggName)
	n := len(buckets)
	if n > p.Pagination.Limit {
		result.Buckets[GroupAggName] = buckets[:p.Pagination.Limit]
	}
	return n
}

// Unscale 还原放大后的求和值并保留 RoundPlaces 位小数
func (p *Plan) Unscale(v float64) float64 {
	return roundTo(v/float64(p.options.ScaleFactor), p.options.RoundPlaces)
}

// Planner 根据请求和策略生成执行计划
type Planner struct {
	policy  *SizingPolicy
	options *Options
	obs     *observer
}

// BuildQuery 过滤条件转为查询，金额字段全为 0 的文档被排除
func (pl *Planner) BuildQuery(filter *Filter, strategy *Strategy) (query.Query, *hierarchy.Expr, error) {
	bq := &query.BoolQuery{}

	var expr *hierarchy.Expr
	if filter.HasCodes() {
		if strategy.Domain == nil {
			return nil, nil, errors.WithStack(&ValidationError{Field: "filter", Reason: fmt.Sprintf("strategy %s does not support code filters", strategy.Name)})
		}
		var opts []hierarchy.CompilerOption
		if strategy.KnownCodes != nil {
			opts = append(opts, hierarchy.WithKnownCodes(strategy.KnownCodes))
		}
		var err error
		expr, err = hierarchy.NewCompiler(strategy.Domain, opts...).Compile(filter.Spec())
		if err != nil {
			return nil, nil, err
		}
		bq.Filter = append(bq.Filter, expr.QueryString())
	}

	if filter.Query != "" {
		if len(strategy.QueryFields) == 0 {
			return nil, nil, errors.WithStack(&ValidationError{Field: "query", Reason: fmt.Sprintf("strategy %s does not support text search", strategy.Name)})
		}
		bq.Filter = append(bq.Filter, &query.MultiMatchQuery{
			Query:     filter.Query,
			Fields:    strategy.QueryFields,
			MatchType: "phrase_prefix",
		})
	}

	for _, n := range filter.Numeric {
		r := &query.RangeQuery{Field: n.Field}
		if n.Gte != nil {
			r.Gte = *n.Gte
		}
		if n.Lte != nil {
			r.Lte = *n.Lte
		}
		bq.Filter = append(bq.Filter, r)
	}

	fields := make([]string, 0, len(filter.Terms))
	for field := range filter.Terms {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		values := make([]interface{}, len(filter.Terms[field]))
		for i, v := range filter.Terms[field] {
			values[i] = v
		}
		bq.Filter = append(bq.Filter, &query.TermsQuery{Field: field, Values: values})
	}

	if len(strategy.SumFields) > 0 {
		bq.Must = append(bq.Must, query.NonZero(strategy.SumFieldNames()...))
	}
	return bq, expr, nil
}

// Count 过滤后 field 的去重数
func (pl *Planner) Count(ctx context.Context, index string, q query.Query, field string) (int64, error) {
	res, err := pl.obs.search(ctx, callCount, &search.Request{
		Index: index,
		Query: q,
		Aggregations: []aggregation.Aggregation{
			&aggregation.CardinalityAggregation{
				MetricAggregation: aggregation.MetricAggregation{AggName: FieldCountAggName, Field: field},
			},
		},
	})
	if err != nil {
		return 0, errors.WithMessagef(err, "count %s", field)
	}
	return int64(res.Aggregations.Value(FieldCountAggName)), nil
}

func (pl *Planner) compile(ctx context.Context, req *Request, strategy *Strategy) (*Plan, error) {
	start := time.Now()
	q, expr, err := pl.BuildQuery(&req.Filter, strategy)
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Strategy:   strategy,
		Request:    req,
		Pagination: req.Resolve(strategy),
		Codes:      expr,
		Query:      q,
		options:    pl.options,
	}
	pl.obs.stage(ctx, StageFilterCompiled, start, "strategy", strategy.Name)
	return plan, nil
}

// sizeSubGroup 子分组字段精确计数，同样受 Ceiling 限制
func (pl *Planner) sizeSubGroup(ctx context.Context, plan *Plan) error {
	strategy := plan.Strategy
	if strategy.SubGroupField == "" {
		return nil
	}
	count, err := pl.Count(ctx, strategy.Index, plan.Query, strategy.CountField(pl.options, strategy.SubGroupField))
	if err != nil {
		return err
	}
	sub, err := pl.policy.Exact(strategy.SubGroupField, count)
	if err != nil {
		return err
	}
	if !sub.Empty() {
		plan.SubDecision = &sub
	}
	return nil
}

// Plan 编译过滤条件、确定桶数并生成聚合请求
// 所需 shard_size 超过上限时在发出任何聚合请求前返回 TooManyValuesError
func (pl *Planner) Plan(ctx context.Context, req *Request, strategy *Strategy) (*Plan, error) {
	plan, err := pl.compile(ctx, req, strategy)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if pl.policy.NeedsCount(strategy.GroupField) {
		count, err := pl.Count(ctx, strategy.Index, plan.Query, strategy.CountField(pl.options, strategy.GroupField))
		if err != nil {
			return nil, err
		}
		plan.Decision, err = pl.policy.Exact(strategy.GroupField, count)
		if err != nil {
			return nil, err
		}
	} else {
		plan.Decision, err = pl.policy.Capped(strategy.GroupField, &plan.Pagination)
		if err != nil {
			return nil, err
		}
	}
	pl.obs.stage(ctx, StageSized, start, "field", strategy.GroupField, "count", plan.Decision.ExactCount,
		"capped", plan.Decision.Capped, "size", plan.Decision.Size, "shardSize", plan.Decision.ShardSize)
	if plan.Decision.Empty() {
		return plan, nil
	}

	if err := pl.sizeSubGroup(ctx, plan); err != nil {
		return nil, err
	}

	plan.Search = &search.Request{
		Index:        strategy.Index,
		Query:        plan.Query,
		Aggregations: []aggregation.Aggregation{pl.groupAggregation(plan)},
	}
	return plan, nil
}

// order 排序目标加 _key 兜底，方向一致
func (p *Plan) order() []aggregation.Order {
	target := p.Strategy.sortFields()[p.Pagination.SortKey]
	orders := []aggregation.Order{{Key: target, Direction: p.Pagination.SortOrder}}
	if target != keyOrder {
		orders = append(orders, aggregation.Order{Key: keyOrder, Direction: p.Pagination.SortOrder})
	}
	return orders
}

// sumAggregations 金额求和，值先放大 ScaleFactor 倍
func sumAggregations(options *Options, strategy *Strategy) []aggregation.Aggregation {
	script := ""
	if options.ScaleFactor != 1 {
		script = fmt.Sprintf("_value * %d", options.ScaleFactor)
	}
	aggs := make([]aggregation.Aggregation, len(strategy.SumFields))
	for i, sum := range strategy.SumFields {
		aggs[i] = &aggregation.SumAggregation{
			MetricAggregation: aggregation.MetricAggregation{AggName: SumAggName(sum.Name), Field: sum.Field},
			Script:            script,
		}
	}
	return aggs
}

// subGroupAggregation 每个分组桶内的子分组，没有 SubDecision 时返回 nil
func subGroupAggregation(options *Options, plan *Plan) aggregation.Aggregation {
	sd := plan.SubDecision
	if sd == nil {
		return nil
	}
	sub := &aggregation.TermsAggregation{
		BucketAggregation: aggregation.BucketAggregation{AggName: SubGroupAggName, Field: plan.Strategy.SubGroupField},
		Size:              sd.Size,
		ShardSize:         sd.ShardSize,
		Order:             plan.order(),
	}
	sub.Add(sumAggregations(options, plan.Strategy)...)
	return sub
}

func (pl *Planner) groupAggregation(plan *Plan) aggregation.Aggregation {
	p := &plan.Pagination
	d := &plan.Decision
	orders := plan.order()

	group := &aggregation.TermsAggregation{
		BucketAggregation: aggregation.BucketAggregation{AggName: GroupAggName, Field: plan.Strategy.GroupField},
		Size:              d.Size,
		ShardSize:         d.ShardSize,
	}
	page := &aggregation.BucketSortAggregation{AggName: PaginationAggName, From: p.Offset(), Size: p.Limit}
	if d.Capped {
		// 路由字段在 terms 上排序，bucket_sort 多取一条判断下一页
		group.Order = orders
		page.Size = p.Limit + 1
	} else {
		page.Sort = orders
	}

	group.Add(sumAggregations(pl.options, plan.Strategy)...)
	group.Add(plan.Strategy.subAggregations(plan)...)
	group.Add(page)
	if sub := subGroupAggregation(pl.options, plan); sub != nil {
		group.Add(sub)
	}
	return group
}
