package engine

import (
	"context"
	"sort"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/spendagg/aggregation"
	"github.com/hatlonely/spendagg/query"
	"github.com/hatlonely/spendagg/search"
)

func scanPlan(e *Engine, strategy *Strategy, count int64) *Plan {
	req := page(1, 10)
	So(req.Validate(strategy), ShouldBeNil)
	return &Plan{
		Strategy:   strategy,
		Request:    req,
		Pagination: req.Resolve(strategy),
		Query:      &query.MatchAllQuery{},
		Decision:   BucketCountDecision{Field: strategy.GroupField, ExactCount: count},
		options:    e.options,
	}
}

func TestCategories(t *testing.T) {
	Convey("测试分区扫描全部分组", t, func() {
		fake := newFakeSearcher(testDocs())
		e := newTestEngine(fake, func(o *Options) { o.PartitionSize = 2 })

		resp, err := e.Categories(context.Background(), page(1, 4), naicsStrategy())
		So(err, ShouldBeNil)
		So(rowCodes(resp.Results), ShouldResemble, sortedCodes[:4])
		So(resp.PageMetadata.Total, ShouldEqual, 6)
		So(resp.PageMetadata.HasNext, ShouldBeTrue)
		So(fake.calls(callPartition), ShouldEqual, 4)

		Convey("并发扫描结果相同", func() {
			concurrent := newTestEngine(newFakeSearcher(testDocs()), func(o *Options) {
				o.PartitionSize = 2
				o.Concurrency = 3
			})
			other, err := concurrent.Categories(context.Background(), page(1, 4), naicsStrategy())
			So(err, ShouldBeNil)
			So(other.Results, ShouldResemble, resp.Results)
			So(other.PageMetadata, ShouldResemble, resp.PageMetadata)
		})

		Convey("最后一页", func() {
			last, err := e.Categories(context.Background(), page(2, 4), naicsStrategy())
			So(err, ShouldBeNil)
			So(rowCodes(last.Results), ShouldResemble, sortedCodes[4:])
			So(last.PageMetadata.HasNext, ShouldBeFalse)
			So(last.PageMetadata.HasPrevious, ShouldBeTrue)
		})
	})

	Convey("测试分区扫描带子分组", t, func() {
		fake := newFakeSearcher(testDocs())
		e := newTestEngine(fake, func(o *Options) { o.PartitionSize = 2 })
		strategy := naicsStrategy()
		strategy.SubGroupField = "sub_code"

		resp, err := e.Categories(context.Background(), page(1, 10), strategy)
		So(err, ShouldBeNil)
		So(rowCodes(resp.Results), ShouldResemble, sortedCodes)
		agriculture := resp.Results[3]
		So(agriculture.Code, ShouldEqual, "11")
		So(agriculture.Amount("obligation"), ShouldEqual, 15.75)
		So(rowCodes(agriculture.Children), ShouldResemble, []string{"1111", "1112"})
		So(agriculture.Children[1].Amount("obligation"), ShouldEqual, 5.5)
		So(resp.Results[0].Children, ShouldBeEmpty)
		So(fake.calls(callCount), ShouldEqual, 2)
		So(fake.calls(callPartition), ShouldEqual, 4)

		executed, err := e.Execute(context.Background(), page(1, 10), strategy)
		So(err, ShouldBeNil)
		So(rowCodes(executed.Results[3].Children), ShouldResemble, rowCodes(agriculture.Children))

		Convey("子分组超过上限时不扫描分区", func() {
			fake := newFakeSearcher(testDocs())
			fake.counts["sub_code.hash"] = 9950
			e := newTestEngine(fake, func(o *Options) { o.PartitionSize = 2 })

			_, err := e.Categories(context.Background(), page(1, 10), strategy)
			var terr *TooManyValuesError
			So(errors.As(err, &terr), ShouldBeTrue)
			So(terr.Field, ShouldEqual, "sub_code")
			So(fake.calls(callPartition), ShouldEqual, 0)
		})
	})

	Convey("测试不同分区中的同一上一级合并为一行", t, func() {
		fake := newFakeSearcher(nil)
		fake.counts["naics_code.hash"] = 2
		fake.handler = func(req *search.Request) (map[string]interface{}, error) {
			group := req.Aggregations[0].(*aggregation.TermsAggregation)
			var buckets []interface{}
			child := func(key string, obligation float64) map[string]interface{} {
				return map[string]interface{}{
					"key":            key,
					"doc_count":      1.0,
					"sum_obligation": map[string]interface{}{"value": obligation * 100},
					MetadataAggName: map[string]interface{}{"hits": map[string]interface{}{"hits": []interface{}{
						map[string]interface{}{"_source": map[string]interface{}{
							"name": "child " + key, "parent_code": "001", "parent_name": "Parent",
						}},
					}}},
				}
			}
			switch group.Include.Partition {
			case 0:
				buckets = append(buckets, child("00101", 1.0))
			case 1:
				buckets = append(buckets, child("00102", 2.0))
			}
			return map[string]interface{}{GroupAggName: map[string]interface{}{"buckets": buckets}}, nil
		}
		e := newTestEngine(fake, func(o *Options) { o.PartitionSize = 1 })
		strategy := naicsStrategy()
		strategy.ParentFields = &FieldMapping{Code: "parent_code", Description: "parent_name"}

		resp, err := e.Categories(context.Background(), page(1, 10), strategy)
		So(err, ShouldBeNil)
		So(resp.Results, ShouldHaveLength, 1)
		row := resp.Results[0]
		So(row.Code, ShouldEqual, "001")
		So(row.Amount("obligation"), ShouldEqual, 3.0)
		So(rowCodes(row.Children), ShouldResemble, []string{"00102", "00101"})
		So(fake.calls(callPartition), ShouldEqual, 3)
	})

	Convey("测试列举分组 key", t, func() {
		fake := newFakeSearcher(testDocs())
		e := newTestEngine(fake, func(o *Options) { o.PartitionSize = 2 })

		keys, err := e.Keys(context.Background(), &Filter{}, naicsStrategy())
		So(err, ShouldBeNil)
		sort.Strings(keys)
		So(keys, ShouldResemble, []string{"11", "21", "22", "23", "31", "42"})

		limited := newTestEngine(newFakeSearcher(testDocs()), func(o *Options) {
			o.PartitionSize = 2
			o.MaxKeys = 2
		})
		keys, err = limited.Keys(context.Background(), &Filter{}, naicsStrategy())
		So(err, ShouldBeNil)
		So(keys, ShouldHaveLength, 2)
	})
}

func TestPartitionIterator(t *testing.T) {
	Convey("测试分区迭代器", t, func() {
		fake := newFakeSearcher(testDocs())
		e := newTestEngine(fake, func(o *Options) { o.PartitionSize = 2 })
		plan := scanPlan(e, naicsStrategy(), 6)

		Convey("逐个分区取回全部分组", func() {
			it := e.Scanner().Partitions(plan)
			So(it.NumPartitions(), ShouldEqual, 4)
			So(it.Partition(), ShouldEqual, -1)

			var all []string
			var partitions []int
			for it.Next(context.Background()) {
				all = append(all, rowCodes(it.Rows())...)
				partitions = append(partitions, it.Partition())
			}
			So(it.Err(), ShouldBeNil)
			So(partitions, ShouldResemble, []int{0, 1, 2, 3})
			sort.Strings(all)
			So(all, ShouldResemble, []string{"11", "21", "22", "23", "31", "42"})

			So(it.Next(context.Background()), ShouldBeFalse)
			So(fake.calls(callPartition), ShouldEqual, 4)
		})

		Convey("取消后停止且不可重新开始", func() {
			ctx, cancel := context.WithCancel(context.Background())
			it := e.Scanner().Partitions(plan)
			So(it.Next(ctx), ShouldBeTrue)
			cancel()
			So(it.Next(ctx), ShouldBeFalse)
			So(errors.Is(it.Err(), context.Canceled), ShouldBeTrue)
			So(it.Rows(), ShouldBeNil)
			So(it.Next(context.Background()), ShouldBeFalse)
			So(fake.calls(callPartition), ShouldEqual, 1)
		})

		Convey("后端出错时停止", func() {
			calls := 0
			fake.handler = func(req *search.Request) (map[string]interface{}, error) {
				calls++
				if calls == 2 {
					return nil, &search.TransportError{Op: "search", Status: 503, Reason: "unavailable"}
				}
				return map[string]interface{}{GroupAggName: map[string]interface{}{"buckets": []interface{}{}}}, nil
			}
			it := e.Scanner().Partitions(plan)
			So(it.Next(context.Background()), ShouldBeTrue)
			So(it.Next(context.Background()), ShouldBeFalse)
			var terr *search.TransportError
			So(errors.As(it.Err(), &terr), ShouldBeTrue)
			So(it.Err().Error(), ShouldContainSubstring, "partition 1/4")
			So(it.Next(context.Background()), ShouldBeFalse)
			So(calls, ShouldEqual, 2)
		})

		Convey("并发取回剩余分区", func() {
			it := e.Scanner().Partitions(plan)
			So(it.Next(context.Background()), ShouldBeTrue)
			first := rowCodes(it.Rows())

			rest, err := it.CollectConcurrent(context.Background(), 2)
			So(err, ShouldBeNil)
			all := append(first, rowCodes(rest)...)
			sort.Strings(all)
			So(all, ShouldResemble, []string{"11", "21", "22", "23", "31", "42"})
			So(it.Next(context.Background()), ShouldBeFalse)

			again, err := it.CollectConcurrent(context.Background(), 2)
			So(err, ShouldBeNil)
			So(again, ShouldBeNil)
		})
	})

	Convey("测试分区数", t, func() {
		So(NumPartitions(0, 1000), ShouldEqual, 1)
		So(NumPartitions(999, 1000), ShouldEqual, 1)
		So(NumPartitions(1000, 1000), ShouldEqual, 2)
		So(NumPartitions(2500, 1000), ShouldEqual, 3)
	})
}
