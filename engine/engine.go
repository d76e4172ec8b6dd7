package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/spendagg/log"
	"github.com/hatlonely/spendagg/log/logger"
	"github.com/hatlonely/spendagg/search"
)

const cappedMessage = "Notice! API Request is capped at %s results. Either download to view all results or filter using the 'query' attribute."

const sortMessage = "Notice! API Request to sort on '%s' field isn't fully implemented. Results were actually sorted using 'description' field."

// Engine 层级分类聚合引擎，可并发使用
type Engine struct {
	options *Options
	logger  logger.Logger
	metrics *Metrics
	obs     *observer
	policy  *SizingPolicy
	planner *Planner
	scanner *Scanner
	merger  *Merger
}

type EngineOption func(*Engine)

func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine options 为 nil 时使用默认配置
func NewEngine(searcher search.Searcher, options *Options, opts ...EngineOption) (*Engine, error) {
	if searcher == nil {
		return nil, errors.New("searcher is nil")
	}
	if options == nil {
		options = DefaultOptions()
	}
	if err := validate.Struct(options); err != nil {
		return nil, errors.Wrap(err, "invalid engine options")
	}

	e := &Engine{options: options, logger: log.Default(), merger: &Merger{}}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithGroup("engine")
	e.obs = newObserver(searcher, e.logger, e.metrics, options.EnableTracing)
	e.policy = NewSizingPolicy(options)
	e.planner = &Planner{policy: e.policy, options: options, obs: e.obs}
	e.scanner = &Scanner{options: options, obs: e.obs}
	return e, nil
}

func (e *Engine) Planner() *Planner {
	return e.planner
}

func (e *Engine) Scanner() *Scanner {
	return e.scanner
}

func (e *Engine) prepare(ctx context.Context, req *Request, strategy *Strategy) error {
	start := time.Now()
	if err := strategy.Validate(); err != nil {
		return err
	}
	if err := req.Validate(strategy); err != nil {
		return err
	}
	p := req.Resolve(strategy)
	e.obs.stage(ctx, StageReceived, start, "strategy", strategy.Name,
		"page", p.Page, "limit", p.Limit, "sort", p.SortKey, "order", p.SortOrder)
	return nil
}

// Execute 在搜索后端完成排序和分页，返回一页结果
func (e *Engine) Execute(ctx context.Context, req *Request, strategy *Strategy) (resp *Response, err error) {
	ctx, finish := e.obs.request(ctx, "execute", strategy.Name)
	defer func() { finish(err) }()

	if err := e.prepare(ctx, req, strategy); err != nil {
		return nil, err
	}

	plan, err := e.planner.Plan(ctx, req, strategy)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return e.respond(ctx, plan, []ResultRow{}, 0), nil
	}

	start := time.Now()
	res, err := e.obs.search(ctx, callAggregate, plan.Search)
	if err != nil {
		return nil, errors.WithMessage(err, "aggregate")
	}
	e.obs.stage(ctx, StageExecuted, start, "mode", "single", "took", res.Took)

	start = time.Now()
	returned := plan.TrimLookAhead(res.Aggregations)
	rows, err := strategy.parse(plan, res.Aggregations)
	if err != nil {
		return nil, errors.WithMessage(err, "parse aggregation result")
	}
	e.describe(ctx, strategy, rows)
	e.obs.stage(ctx, StageMerged, start, "rows", len(rows))

	total := int(plan.Decision.ExactCount)
	if plan.Decision.Capped {
		total = plan.Pagination.Offset() + returned
	}
	return e.respond(ctx, plan, rows, total), nil
}

// Categories 分区扫描全部分组，在内存中合并、排序、分页
func (e *Engine) Categories(ctx context.Context, req *Request, strategy *Strategy) (resp *Response, err error) {
	ctx, finish := e.obs.request(ctx, "categories", strategy.Name)
	defer func() { finish(err) }()

	if err := e.prepare(ctx, req, strategy); err != nil {
		return nil, err
	}

	plan, err := e.planner.compile(ctx, req, strategy)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	count, err := e.planner.Count(ctx, strategy.Index, plan.Query, strategy.CountField(e.options, strategy.GroupField))
	if err != nil {
		return nil, err
	}
	plan.Decision = BucketCountDecision{Field: strategy.GroupField, ExactCount: count, Size: e.options.PartitionSize, ShardSize: e.options.PartitionSize}
	e.obs.stage(ctx, StageSized, start, "field", strategy.GroupField, "count", count)
	if count == 0 {
		return e.respond(ctx, plan, []ResultRow{}, 0), nil
	}
	if err := e.planner.sizeSubGroup(ctx, plan); err != nil {
		return nil, err
	}

	start = time.Now()
	it := e.scanner.Partitions(plan)
	var pages [][]ResultRow
	if e.options.Concurrency > 1 {
		rows, err := it.CollectConcurrent(ctx, e.options.Concurrency)
		if err != nil {
			return nil, err
		}
		pages = append(pages, rows)
	} else {
		for it.Next(ctx) {
			pages = append(pages, it.Rows())
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
	}
	e.obs.stage(ctx, StageExecuted, start, "mode", "partitioned", "partitions", it.NumPartitions())

	start = time.Now()
	rows := e.merger.Merge(pages...)
	e.describe(ctx, strategy, rows)
	p := &plan.Pagination
	e.merger.Sort(rows, p.SortKey, p.SortOrder)
	e.obs.stage(ctx, StageMerged, start, "rows", len(rows))

	return e.respond(ctx, plan, Paginate(rows, p.Page, p.Limit), len(rows)), nil
}

// Keys 列举过滤后分组字段的全部取值
func (e *Engine) Keys(ctx context.Context, filter *Filter, strategy *Strategy) (keys []string, err error) {
	ctx, finish := e.obs.request(ctx, "keys", strategy.Name)
	defer func() { finish(err) }()

	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	q, _, err := e.planner.BuildQuery(filter, strategy)
	if err != nil {
		return nil, err
	}
	total, err := e.planner.Count(ctx, strategy.Index, q, strategy.CountField(e.options, strategy.GroupField))
	if err != nil {
		return nil, err
	}

	it := e.scanner.Keys(strategy.Index, q, strategy.GroupField, total)
	keys = []string{}
	for it.Next(ctx) {
		keys = append(keys, it.Keys()...)
	}
	return keys, it.Err()
}

func (e *Engine) respond(ctx context.Context, plan *Plan, rows []ResultRow, total int) *Response {
	start := time.Now()
	p := &plan.Pagination
	resp := &Response{
		Results:      rows,
		PageMetadata: NewPageMetadata(total, p.Page, p.Limit),
		Messages:     e.messages(plan, total),
	}
	e.obs.stage(ctx, StagePaged, start, "total", total, "results", len(rows), "hasNext", resp.PageMetadata.HasNext)
	return resp
}

func (e *Engine) messages(plan *Plan, total int) []string {
	var messages []string
	p := &plan.Pagination
	fields := plan.Strategy.sortFields()
	if (p.SortKey == "id" || p.SortKey == "code") && fields[p.SortKey] == fields["description"] {
		messages = append(messages, fmt.Sprintf(sortMessage, p.SortKey))
	}
	// 下一页超出上限时提示
	if plan.Decision.Capped && p.Page*p.Limit < total && (p.Page+1)*p.Limit+1 > e.options.Ceiling {
		messages = append(messages, fmt.Sprintf(cappedMessage, formatThousands(e.options.Ceiling)))
	}
	return messages
}

// describe 补齐缺失的描述，字典出错只记录日志
func (e *Engine) describe(ctx context.Context, strategy *Strategy, rows []ResultRow) {
	if strategy.Dictionary == nil {
		return
	}
	for i := range rows {
		row := &rows[i]
		if row.Description == "" {
			description, ok, err := strategy.Dictionary.Get(ctx, row.Code)
			if err != nil {
				e.logger.WarnContext(ctx, "failed to describe code", "strategy", strategy.Name, "code", row.Code, "error", err.Error())
			} else if ok {
				row.Description = description
			}
		}
		e.describe(ctx, strategy, row.Children)
	}
}

func formatThousands(n int) string {
	s := fmt.Sprint(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
