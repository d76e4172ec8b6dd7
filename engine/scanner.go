package engine

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hatlonely/spendagg/aggregation"
	"github.com/hatlonely/spendagg/query"
	"github.com/hatlonely/spendagg/search"
)

// Scanner 把 terms 聚合按 key 哈希分区，逐个分区取回全部桶
type Scanner struct {
	options *Options
	obs     *observer
}

// NumPartitions 总数为 total、每个分区 size 个桶时的分区数
func NumPartitions(total int64, size int) int {
	return int(total/int64(size)) + 1
}

// Partitions 按计划的精确计数扫描全部分组，有 SubDecision 时每个分区带上子分组
func (s *Scanner) Partitions(plan *Plan) *PartitionIterator {
	size := s.options.PartitionSize
	n := NumPartitions(plan.Decision.ExactCount, size)
	parse := func(res *search.Response) ([]ResultRow, error) {
		return plan.Strategy.parse(plan, res.Aggregations)
	}
	build := func(partition int) *search.Request {
		group := &aggregation.TermsAggregation{
			BucketAggregation: aggregation.BucketAggregation{AggName: GroupAggName, Field: plan.Strategy.GroupField},
			Size:              size,
			ShardSize:         size,
			Include:           &aggregation.Partition{Partition: partition, NumPartitions: n},
		}
		group.Add(sumAggregations(s.options, plan.Strategy)...)
		group.Add(plan.Strategy.subAggregations(plan)...)
		if sub := subGroupAggregation(s.options, plan); sub != nil {
			group.Add(sub)
		}
		return &search.Request{Index: plan.Strategy.Index, Query: plan.Query, Aggregations: []aggregation.Aggregation{group}}
	}
	return s.iterator(n, build, parse)
}

// Keys 列举 field 的全部取值，最多 MaxKeys 个
func (s *Scanner) Keys(index string, q query.Query, field string, total int64) *PartitionIterator {
	size := s.options.PartitionSize
	n := NumPartitions(total, size)
	if limit := s.options.MaxKeys / size; n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	build := func(partition int) *search.Request {
		group := &aggregation.TermsAggregation{
			BucketAggregation: aggregation.BucketAggregation{AggName: GroupAggName, Field: field},
			Size:              size,
			ShardSize:         size,
			Include:           &aggregation.Partition{Partition: partition, NumPartitions: n},
		}
		return &search.Request{Index: index, Query: q, Aggregations: []aggregation.Aggregation{group}}
	}
	parse := func(res *search.Response) ([]ResultRow, error) {
		return KeysOnly(nil, res.Aggregations)
	}
	return s.iterator(n, build, parse)
}

func (s *Scanner) iterator(n int, build func(int) *search.Request, parse func(*search.Response) ([]ResultRow, error)) *PartitionIterator {
	return &PartitionIterator{
		n:         n,
		partition: -1,
		fetch: func(ctx context.Context, partition int) ([]ResultRow, error) {
			res, err := s.obs.search(ctx, callPartition, build(partition))
			if err != nil {
				return nil, errors.WithMessagef(err, "partition %d/%d", partition, n)
			}
			s.obs.metrics.observePartition()
			return parse(res)
		},
	}
}

// PartitionIterator 分区迭代器，结束或出错后不可重新开始
//
//	it := scanner.Partitions(plan)
//	for it.Next(ctx) {
//		rows = append(rows, it.Rows()...)
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type PartitionIterator struct {
	n         int
	next      int
	partition int
	rows      []ResultRow
	err       error
	done      bool
	fetch     func(ctx context.Context, partition int) ([]ResultRow, error)
}

// NumPartitions 分区总数
func (it *PartitionIterator) NumPartitions() int {
	return it.n
}

// Next 取下一个分区，每个分区前检查 ctx
func (it *PartitionIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if it.next >= it.n {
		it.finish(nil)
		return false
	}
	if err := ctx.Err(); err != nil {
		it.finish(errors.WithStack(err))
		return false
	}

	rows, err := it.fetch(ctx, it.next)
	if err != nil {
		it.finish(err)
		return false
	}
	it.rows = rows
	it.partition = it.next
	it.next++
	return true
}

func (it *PartitionIterator) finish(err error) {
	it.done = true
	it.rows = nil
	it.err = err
}

// Rows 当前分区的结果
func (it *PartitionIterator) Rows() []ResultRow {
	return it.rows
}

// Keys 当前分区结果的 key
func (it *PartitionIterator) Keys() []string {
	keys := make([]string, len(it.rows))
	for i := range it.rows {
		keys[i] = it.rows[i].Code
	}
	return keys
}

// Partition 当前分区下标
func (it *PartitionIterator) Partition() int {
	return it.partition
}

func (it *PartitionIterator) Err() error {
	return it.err
}

// CollectConcurrent 并发取回剩余的全部分区，结果按分区下标拼接
func (it *PartitionIterator) CollectConcurrent(ctx context.Context, concurrency int) ([]ResultRow, error) {
	if it.done {
		return nil, it.err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	start := it.next
	pages := make([][]ResultRow, it.n-start)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := start; i < it.n; i++ {
		partition := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			rows, err := it.fetch(gctx, partition)
			if err != nil {
				return err
			}
			pages[partition-start] = rows
			return nil
		})
	}
	err := g.Wait()
	it.next = it.n
	it.finish(err)
	if err != nil {
		return nil, err
	}

	var rows []ResultRow
	for _, page := range pages {
		rows = append(rows, page...)
	}
	return rows, nil
}
