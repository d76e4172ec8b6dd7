package aggregation

// AggregationType 聚合类型
type AggregationType string

const (
	AggTypeSum           AggregationType = "sum"
	AggTypeCardinality   AggregationType = "cardinality"
	AggTypeValueCount    AggregationType = "value_count"
	AggTypeTerms         AggregationType = "terms"
	AggTypeBucketSort    AggregationType = "bucket_sort"
	AggTypeTopHits       AggregationType = "top_hits"
	AggTypeNested        AggregationType = "nested"
	AggTypeReverseNested AggregationType = "reverse_nested"
)

// Aggregation 聚合接口
type Aggregation interface {
	Type() AggregationType
	Name() string
	ToES() map[string]interface{}
}

// Order 排序项，Key 为 _key、_count 或子聚合名
type Order struct {
	Key       string
	Direction string
}

// BuildAggregations 按名字组装 aggs 请求体
func BuildAggregations(aggs []Aggregation) map[string]interface{} {
	if len(aggs) == 0 {
		return nil
	}
	result := make(map[string]interface{}, len(aggs))
	for _, agg := range aggs {
		result[agg.Name()] = agg.ToES()
	}
	return result
}

// Find 按名字查找同级聚合
func Find(aggs []Aggregation, name string) Aggregation {
	for _, agg := range aggs {
		if agg.Name() == name {
			return agg
		}
	}
	return nil
}
