package aggregation

// BucketAggregation 桶聚合基础结构
type BucketAggregation struct {
	AggName         string
	Field           string
	SubAggregations []Aggregation
}

func (b *BucketAggregation) Name() string {
	return b.AggName
}

// Children 子聚合
func (b *BucketAggregation) Children() []Aggregation {
	return b.SubAggregations
}

// Add 追加子聚合
func (b *BucketAggregation) Add(aggs ...Aggregation) {
	b.SubAggregations = append(b.SubAggregations, aggs...)
}

// Partition terms 聚合的分区过滤，按 key 的哈希把桶均分到 NumPartitions 个分区
type Partition struct {
	Partition     int
	NumPartitions int
}

// TermsAggregation 词条聚合
type TermsAggregation struct {
	BucketAggregation
	Size      int
	ShardSize int
	Order     []Order
	Include   *Partition
}

func (a *TermsAggregation) Type() AggregationType {
	return AggTypeTerms
}

func (a *TermsAggregation) ToES() map[string]interface{} {
	terms := map[string]interface{}{
		"field": a.Field,
	}
	if a.Size > 0 {
		terms["size"] = a.Size
	}
	if a.ShardSize > 0 {
		terms["shard_size"] = a.ShardSize
	}
	if len(a.Order) > 0 {
		order := make([]interface{}, len(a.Order))
		for i, o := range a.Order {
			order[i] = map[string]interface{}{o.Key: o.Direction}
		}
		terms["order"] = order
	}
	if a.Include != nil {
		terms["include"] = map[string]interface{}{
			"partition":      a.Include.Partition,
			"num_partitions": a.Include.NumPartitions,
		}
	}

	result := map[string]interface{}{
		"terms": terms,
	}
	if subAggs := BuildAggregations(a.SubAggregations); subAggs != nil {
		result["aggs"] = subAggs
	}
	return result
}

// NestedAggregation 进入 nested 文档
type NestedAggregation struct {
	BucketAggregation
	Path string
}

func (a *NestedAggregation) Type() AggregationType {
	return AggTypeNested
}

func (a *NestedAggregation) ToES() map[string]interface{} {
	result := map[string]interface{}{
		"nested": map[string]interface{}{"path": a.Path},
	}
	if subAggs := BuildAggregations(a.SubAggregations); subAggs != nil {
		result["aggs"] = subAggs
	}
	return result
}

// ReverseNestedAggregation 从 nested 文档回到根文档
type ReverseNestedAggregation struct {
	BucketAggregation
}

func (a *ReverseNestedAggregation) Type() AggregationType {
	return AggTypeReverseNested
}

func (a *ReverseNestedAggregation) ToES() map[string]interface{} {
	result := map[string]interface{}{
		"reverse_nested": map[string]interface{}{},
	}
	if subAggs := BuildAggregations(a.SubAggregations); subAggs != nil {
		result["aggs"] = subAggs
	}
	return result
}

// BucketSortAggregation 管道聚合，对父聚合的桶排序并截取 [From, From+Size)
type BucketSortAggregation struct {
	AggName string
	Sort    []Order
	From    int
	Size    int
}

func (a *BucketSortAggregation) Type() AggregationType {
	return AggTypeBucketSort
}

func (a *BucketSortAggregation) Name() string {
	return a.AggName
}

func (a *BucketSortAggregation) ToES() map[string]interface{} {
	bucketSort := map[string]interface{}{
		"from": a.From,
	}
	if a.Size > 0 {
		bucketSort["size"] = a.Size
	}
	if len(a.Sort) > 0 {
		sort := make([]interface{}, len(a.Sort))
		for i, o := range a.Sort {
			sort[i] = map[string]interface{}{
				o.Key: map[string]interface{}{"order": o.Direction},
			}
		}
		bucketSort["sort"] = sort
	}
	return map[string]interface{}{
		"bucket_sort": bucketSort,
	}
}
