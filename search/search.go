package search

import (
	"context"
	"fmt"

	"github.com/hatlonely/spendagg/aggregation"
	"github.com/hatlonely/spendagg/query"
)

// Request 一次搜索请求，默认只取聚合不取文档
type Request struct {
	Index        string
	Query        query.Query
	Aggregations []aggregation.Aggregation
	Size         int
	// Source 返回文档时需要的字段
	Source []string
}

// Body 搜索请求体
func (r *Request) Body() map[string]interface{} {
	body := map[string]interface{}{
		"size": r.Size,
	}
	if r.Query != nil {
		body["query"] = r.Query.ToES()
	} else {
		body["query"] = (&query.MatchAllQuery{}).ToES()
	}
	if aggs := aggregation.BuildAggregations(r.Aggregations); aggs != nil {
		body["aggs"] = aggs
	}
	if len(r.Source) > 0 {
		body["_source"] = r.Source
	}
	return body
}

// Response 搜索结果
type Response struct {
	Took         int64
	TotalHits    int64
	Hits         []map[string]interface{}
	Aggregations *aggregation.Result
}

// Searcher 搜索后端
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// SearcherFunc 函数形式的 Searcher
type SearcherFunc func(ctx context.Context, req *Request) (*Response, error)

func (f SearcherFunc) Search(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// TransportError 搜索后端不可用或拒绝了请求
type TransportError struct {
	Op     string
	Status int
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("search %s failed: [%d] %s", e.Op, e.Status, e.Reason)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
