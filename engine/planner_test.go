package engine

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/spendagg/aggregation"
	"github.com/hatlonely/spendagg/query"
)

func TestSizingPolicy(t *testing.T) {
	Convey("测试桶数决策", t, func() {
		policy := NewSizingPolicy(DefaultOptions())

		So(policy.NeedsCount("recipient_hash"), ShouldBeFalse)
		So(policy.NeedsCount("naics_code"), ShouldBeTrue)

		d, err := policy.Capped("recipient_hash", &Pagination{Page: 3, Limit: 10})
		So(err, ShouldBeNil)
		So(d.Capped, ShouldBeTrue)
		So(d.Size, ShouldEqual, 31)
		So(d.ShardSize, ShouldEqual, 31)
		So(d.Empty(), ShouldBeFalse)

		d, err = policy.Exact("naics_code", 0)
		So(err, ShouldBeNil)
		So(d.Empty(), ShouldBeTrue)

		d, err = policy.Exact("naics_code", 5)
		So(err, ShouldBeNil)
		So(d.Size, ShouldEqual, 5)
		So(d.ShardSize, ShouldEqual, 105)

		d, err = policy.Exact("naics_code", 9900)
		So(err, ShouldBeNil)
		So(d.ShardSize, ShouldEqual, 10000)

		_, err = policy.Exact("naics_code", 9901)
		var terr *TooManyValuesError
		So(errors.As(err, &terr), ShouldBeTrue)
		So(terr.ShardSize, ShouldEqual, 10001)
	})
}

func TestPlan(t *testing.T) {
	Convey("测试生成聚合请求", t, func() {
		fake := newFakeSearcher(testDocs())
		e := newTestEngine(fake, nil)
		strategy := naicsStrategy()

		req := page(2, 10)
		req.Filter = Filter{Required: []string{"11"}, Excluded: []string{"1111"}, Query: "farm"}
		So(req.Validate(strategy), ShouldBeNil)
		So(req.Pagination.SortKey, ShouldEqual, "")
		So(req.Pagination.SortOrder, ShouldEqual, "")

		plan, err := e.Planner().Plan(context.Background(), req, strategy)
		So(err, ShouldBeNil)
		So(plan.Pagination.SortKey, ShouldEqual, "obligation")
		So(plan.Pagination.SortOrder, ShouldEqual, SortDesc)
		So(req.Pagination, ShouldResemble, Pagination{Page: 2, Limit: 10})
		So(plan.Empty(), ShouldBeFalse)
		So(plan.Decision.ExactCount, ShouldEqual, int64(6))

		bq, ok := plan.Query.(*query.BoolQuery)
		So(ok, ShouldBeTrue)
		So(bq.Filter[0], ShouldResemble, &query.QueryStringQuery{Query: "((naics_code:11*) AND (NOT (naics_code:1111*)))"})
		So(bq.Filter[1], ShouldResemble, &query.MultiMatchQuery{Query: "farm", Fields: []string{"naics_description"}, MatchType: "phrase_prefix"})
		So(bq.Must[0], ShouldResemble, query.NonZero("total_obligation", "total_outlay"))
		So(plan.Codes.Match("1112"), ShouldBeTrue)

		group := plan.Search.Aggregations[0].(*aggregation.TermsAggregation)
		So(group.Field, ShouldEqual, "naics_code")
		So(group.Size, ShouldEqual, 6)
		So(group.ShardSize, ShouldEqual, 106)
		So(group.Order, ShouldBeEmpty)

		sum := aggregation.Find(group.SubAggregations, "sum_obligation").(*aggregation.SumAggregation)
		So(sum.Field, ShouldEqual, "total_obligation")
		So(sum.Script, ShouldEqual, "_value * 100")

		paging := aggregation.Find(group.SubAggregations, PaginationAggName).(*aggregation.BucketSortAggregation)
		So(paging.From, ShouldEqual, 10)
		So(paging.Size, ShouldEqual, 10)
		So(paging.Sort, ShouldResemble, []aggregation.Order{{Key: "sum_obligation", Direction: "desc"}, {Key: "_key", Direction: "desc"}})

		metadata := aggregation.Find(group.SubAggregations, MetadataAggName).(*aggregation.TopHitsAggregation)
		So(metadata.Source, ShouldResemble, []string{"name"})
	})

	Convey("测试路由字段在 terms 上排序", t, func() {
		fake := newFakeSearcher(testDocs())
		e := newTestEngine(fake, nil)
		strategy := naicsStrategy()
		strategy.GroupField = "recipient_hash"

		req := page(1, 5)
		req.Pagination.SortKey = "award_count"
		req.Pagination.SortOrder = SortAsc
		So(req.Validate(strategy), ShouldBeNil)

		plan, err := e.Planner().Plan(context.Background(), req, strategy)
		So(err, ShouldBeNil)
		So(fake.calls(callCount), ShouldEqual, 0)

		group := plan.Search.Aggregations[0].(*aggregation.TermsAggregation)
		So(group.Size, ShouldEqual, 6)
		So(group.ShardSize, ShouldEqual, 6)
		So(group.Order, ShouldResemble, []aggregation.Order{{Key: "_count", Direction: "asc"}, {Key: "_key", Direction: "asc"}})
		paging := aggregation.Find(group.SubAggregations, PaginationAggName).(*aggregation.BucketSortAggregation)
		So(paging.Sort, ShouldBeEmpty)
		So(paging.From, ShouldEqual, 0)
		So(paging.Size, ShouldEqual, 6)
	})

	Convey("测试子分组与去重计数", t, func() {
		fake := newFakeSearcher(testDocs())
		e := newTestEngine(fake, func(o *Options) { o.ScaleFactor = 1 })
		strategy := naicsStrategy()
		strategy.SubGroupField = "sub_code"
		strategy.AwardCountField = "award_id"

		req := page(1, 10)
		So(req.Validate(strategy), ShouldBeNil)
		plan, err := e.Planner().Plan(context.Background(), req, strategy)
		So(err, ShouldBeNil)
		So(plan.SubDecision, ShouldNotBeNil)
		So(plan.SubDecision.Size, ShouldEqual, 2)
		So(plan.SubDecision.ShardSize, ShouldEqual, 102)

		group := plan.Search.Aggregations[0].(*aggregation.TermsAggregation)
		sub := aggregation.Find(group.SubAggregations, SubGroupAggName).(*aggregation.TermsAggregation)
		So(sub.Field, ShouldEqual, "sub_code")
		So(sub.Order, ShouldResemble, []aggregation.Order{{Key: "sum_obligation", Direction: "desc"}, {Key: "_key", Direction: "desc"}})
		So(aggregation.Find(sub.SubAggregations, "sum_obligation").(*aggregation.SumAggregation).Script, ShouldEqual, "")

		reverse := aggregation.Find(group.SubAggregations, AwardCountAggName).(*aggregation.ReverseNestedAggregation)
		So(aggregation.Find(reverse.SubAggregations, AwardCountValue), ShouldNotBeNil)
	})

	Convey("测试策略不支持的过滤条件", t, func() {
		fake := newFakeSearcher(testDocs())
		e := newTestEngine(fake, nil)
		strategy := naicsStrategy()
		strategy.Domain = nil
		strategy.QueryFields = nil

		_, _, err := e.Planner().BuildQuery(&Filter{Required: []string{"11"}}, strategy)
		var verr *ValidationError
		So(errors.As(err, &verr), ShouldBeTrue)
		So(verr.Field, ShouldEqual, "filter")

		_, _, err = e.Planner().BuildQuery(&Filter{Query: "farm"}, strategy)
		So(errors.As(err, &verr), ShouldBeTrue)
		So(verr.Field, ShouldEqual, "query")

		lower, upper := 1.0, 5.0
		q, expr, err := e.Planner().BuildQuery(&Filter{
			Numeric: []NumericFilter{{Field: "award_amount", Gte: &lower, Lte: &upper}},
			Terms:   map[string][]string{"def_codes": {"L", "M"}},
		}, strategy)
		So(err, ShouldBeNil)
		So(expr, ShouldBeNil)
		bq := q.(*query.BoolQuery)
		So(bq.Filter[0], ShouldResemble, &query.RangeQuery{Field: "award_amount", Gte: 1.0, Lte: 5.0})
		So(bq.Filter[1], ShouldResemble, &query.TermsQuery{Field: "def_codes", Values: []interface{}{"L", "M"}})
	})
}
