package aggregation

import (
	"fmt"
	"strconv"
)

// Result 一层聚合的解析结果
type Result struct {
	// 指标聚合的值，null 记为 0
	Values map[string]float64
	// 多桶聚合的桶
	Buckets map[string][]Bucket
	// top_hits 的 _source
	Hits map[string][]map[string]interface{}
	// 单桶聚合（nested, reverse_nested）
	Singles map[string]*Bucket
}

// Bucket 聚合桶，子聚合结果在内嵌的 Result 中
type Bucket struct {
	Key      interface{}
	DocCount int64
	Result
}

func newResult() Result {
	return Result{
		Values:  map[string]float64{},
		Buckets: map[string][]Bucket{},
		Hits:    map[string][]map[string]interface{}{},
		Singles: map[string]*Bucket{},
	}
}

// KeyString 桶 key 的字符串形式，数值 key 不带多余小数位
func (b *Bucket) KeyString() string {
	switch key := b.Key.(type) {
	case string:
		return key
	case float64:
		return strconv.FormatFloat(key, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(key)
	}
}

// Value 指标值，不存在时为 0
func (r *Result) Value(name string) float64 {
	return r.Values[name]
}

// GetBuckets 多桶聚合的桶
func (r *Result) GetBuckets(name string) []Bucket {
	return r.Buckets[name]
}

// FirstHit top_hits 的第一个文档，没有时返回 nil
func (r *Result) FirstHit(name string) map[string]interface{} {
	if hits := r.Hits[name]; len(hits) > 0 {
		return hits[0]
	}
	return nil
}

// Single 单桶聚合
func (r *Result) Single(name string) *Bucket {
	return r.Singles[name]
}

type parent interface {
	Children() []Aggregation
}

// Parse 根据请求的聚合定义解析 aggregations 响应
func Parse(aggs []Aggregation, raw map[string]interface{}) (*Result, error) {
	result := newResult()
	if err := parseInto(&result, aggs, raw); err != nil {
		return nil, err
	}
	return &result, nil
}

func parseInto(result *Result, aggs []Aggregation, raw map[string]interface{}) error {
	for _, agg := range aggs {
		value, ok := raw[agg.Name()]
		if !ok {
			continue
		}
		body, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("aggregation %s: unexpected body %T", agg.Name(), value)
		}

		switch agg.Type() {
		case AggTypeSum, AggTypeCardinality, AggTypeValueCount:
			result.Values[agg.Name()] = toFloat(body["value"])
		case AggTypeTerms:
			items, _ := body["buckets"].([]interface{})
			buckets := make([]Bucket, 0, len(items))
			for _, item := range items {
				itemBody, ok := item.(map[string]interface{})
				if !ok {
					return fmt.Errorf("aggregation %s: unexpected bucket %T", agg.Name(), item)
				}
				bucket, err := parseBucket(agg, itemBody)
				if err != nil {
					return err
				}
				buckets = append(buckets, *bucket)
			}
			result.Buckets[agg.Name()] = buckets
		case AggTypeNested, AggTypeReverseNested:
			bucket, err := parseBucket(agg, body)
			if err != nil {
				return err
			}
			result.Singles[agg.Name()] = bucket
		case AggTypeTopHits:
			hits, _ := body["hits"].(map[string]interface{})
			items, _ := hits["hits"].([]interface{})
			sources := make([]map[string]interface{}, 0, len(items))
			for _, item := range items {
				hit, _ := item.(map[string]interface{})
				source, _ := hit["_source"].(map[string]interface{})
				if source != nil {
					sources = append(sources, source)
				}
			}
			result.Hits[agg.Name()] = sources
		case AggTypeBucketSort:
			// 管道聚合只影响父聚合的桶
		}
	}
	return nil
}

func parseBucket(agg Aggregation, body map[string]interface{}) (*Bucket, error) {
	bucket := &Bucket{
		Key:      body["key"],
		DocCount: int64(toFloat(body["doc_count"])),
		Result:   newResult(),
	}
	if p, ok := agg.(parent); ok {
		if err := parseInto(&bucket.Result, p.Children(), body); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
