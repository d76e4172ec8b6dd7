package engine

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/hatlonely/spendagg/aggregation"
	"github.com/hatlonely/spendagg/search"
)

type doc struct {
	Group      string
	Sub        string
	Name       string
	Parent     string
	ParentName string
	Obligation float64
	Outlay     float64
}

// fakeSearcher 在内存中模拟 terms/bucket_sort/sum/cardinality 聚合
type fakeSearcher struct {
	mu       sync.Mutex
	docs     []doc
	fields   map[string]func(d doc) string
	counts   map[string]float64
	err      error
	requests []*search.Request
	handler  func(req *search.Request) (map[string]interface{}, error)
}

func newFakeSearcher(docs []doc) *fakeSearcher {
	group := func(d doc) string { return d.Group }
	sub := func(d doc) string { return d.Sub }
	return &fakeSearcher{
		docs: docs,
		fields: map[string]func(d doc) string{
			"naics_code":          group,
			"naics_code.hash":     group,
			"recipient_hash":      group,
			"recipient_hash.hash": group,
			"sub_code":            sub,
			"sub_code.hash":       sub,
		},
		counts: map[string]float64{},
	}
}

func (f *fakeSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}

	var raw map[string]interface{}
	var err error
	switch {
	case aggregation.Find(req.Aggregations, FieldCountAggName) != nil:
		raw = map[string]interface{}{FieldCountAggName: map[string]interface{}{"value": f.count(req)}}
	case f.handler != nil:
		raw, err = f.handler(req)
	default:
		terms := req.Aggregations[0].(*aggregation.TermsAggregation)
		raw = map[string]interface{}{terms.Name(): map[string]interface{}{"buckets": f.buckets(f.docs, terms)}}
	}
	if err != nil {
		return nil, err
	}

	result, err := aggregation.Parse(req.Aggregations, raw)
	if err != nil {
		return nil, err
	}
	return &search.Response{Aggregations: result}, nil
}

func (f *fakeSearcher) count(req *search.Request) float64 {
	field := aggregation.Find(req.Aggregations, FieldCountAggName).(*aggregation.CardinalityAggregation).Field
	if v, ok := f.counts[field]; ok {
		return v
	}
	keyOf := f.fields[field]
	seen := map[string]bool{}
	for _, d := range f.docs {
		if k := keyOf(d); k != "" {
			seen[k] = true
		}
	}
	return float64(len(seen))
}

func (f *fakeSearcher) calls(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		isCount := aggregation.Find(req.Aggregations, FieldCountAggName) != nil
		if (kind == callCount) == isCount {
			n++
		}
	}
	return n
}

func partitionOf(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

type fakeBucket struct {
	key   string
	docs  []doc
	count int64
	sums  map[string]float64
}

func (f *fakeSearcher) buckets(docs []doc, terms *aggregation.TermsAggregation) []interface{} {
	keyOf := f.fields[terms.Field]
	index := map[string]*fakeBucket{}
	var list []*fakeBucket
	for _, d := range docs {
		key := keyOf(d)
		if key == "" {
			continue
		}
		if terms.Include != nil && partitionOf(key, terms.Include.NumPartitions) != terms.Include.Partition {
			continue
		}
		b, ok := index[key]
		if !ok {
			b = &fakeBucket{key: key, sums: map[string]float64{}}
			index[key] = b
			list = append(list, b)
		}
		b.docs = append(b.docs, d)
		b.count++
		b.sums["sum_obligation"] += d.Obligation * 100
		b.sums["sum_outlay"] += d.Outlay * 100
	}

	var page *aggregation.BucketSortAggregation
	for _, sub := range terms.SubAggregations {
		if bs, ok := sub.(*aggregation.BucketSortAggregation); ok {
			page = bs
		}
	}
	orders := terms.Order
	if len(orders) == 0 {
		orders = []aggregation.Order{{Key: "_count", Direction: "desc"}, {Key: "_key", Direction: "asc"}}
	}
	sortBuckets(list, orders)
	if terms.Size > 0 && len(list) > terms.Size {
		list = list[:terms.Size]
	}
	if page != nil {
		if len(page.Sort) > 0 {
			sortBuckets(list, page.Sort)
		}
		if page.From >= len(list) {
			list = nil
		} else {
			list = list[page.From:]
		}
		if page.Size > 0 && len(list) > page.Size {
			list = list[:page.Size]
		}
	}

	out := make([]interface{}, 0, len(list))
	for _, b := range list {
		body := map[string]interface{}{"key": b.key, "doc_count": float64(b.count)}
		for _, sub := range terms.SubAggregations {
			switch a := sub.(type) {
			case *aggregation.SumAggregation:
				body[a.Name()] = map[string]interface{}{"value": b.sums[a.Name()]}
			case *aggregation.TopHitsAggregation:
				first := b.docs[0]
				body[a.Name()] = map[string]interface{}{"hits": map[string]interface{}{"hits": []interface{}{
					map[string]interface{}{"_source": map[string]interface{}{
						"name":        first.Name,
						"parent_code": first.Parent,
						"parent_name": first.ParentName,
					}},
				}}}
			case *aggregation.TermsAggregation:
				body[a.Name()] = map[string]interface{}{"buckets": f.buckets(b.docs, a)}
			}
		}
		out = append(out, body)
	}
	return out
}

func sortBuckets(list []*fakeBucket, orders []aggregation.Order) {
	sort.SliceStable(list, func(i, j int) bool {
		for _, o := range orders {
			var c int
			switch o.Key {
			case "_key":
				c = strings.Compare(list[i].key, list[j].key)
			case "_count":
				c = compareFloat(float64(list[i].count), float64(list[j].count))
			default:
				c = compareFloat(list[i].sums[o.Key], list[j].sums[o.Key])
			}
			if c != 0 {
				if o.Direction == "desc" {
					return c > 0
				}
				return c < 0
			}
		}
		return false
	})
}

type mapDictionary map[string]string

func (m mapDictionary) Get(ctx context.Context, code string) (string, bool, error) {
	v, ok := m[code]
	return v, ok, nil
}
