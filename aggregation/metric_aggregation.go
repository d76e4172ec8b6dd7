package aggregation

// MetricAggregation 指标聚合基础结构
type MetricAggregation struct {
	AggName string
	Field   string
}

func (m *MetricAggregation) Name() string {
	return m.AggName
}

// SumAggregation 求和聚合，Script 非空时对每个值先做变换，如 "_value * 100"
type SumAggregation struct {
	MetricAggregation
	Script string
}

func (a *SumAggregation) Type() AggregationType {
	return AggTypeSum
}

func (a *SumAggregation) ToES() map[string]interface{} {
	sum := map[string]interface{}{
		"field": a.Field,
	}
	if a.Script != "" {
		sum["script"] = map[string]interface{}{"source": a.Script}
	}
	return map[string]interface{}{
		"sum": sum,
	}
}

// CardinalityAggregation 去重计数
type CardinalityAggregation struct {
	MetricAggregation
	PrecisionThreshold int
}

func (a *CardinalityAggregation) Type() AggregationType {
	return AggTypeCardinality
}

func (a *CardinalityAggregation) ToES() map[string]interface{} {
	cardinality := map[string]interface{}{
		"field": a.Field,
	}
	if a.PrecisionThreshold > 0 {
		cardinality["precision_threshold"] = a.PrecisionThreshold
	}
	return map[string]interface{}{
		"cardinality": cardinality,
	}
}

// ValueCountAggregation 非空值计数
type ValueCountAggregation struct {
	MetricAggregation
}

func (a *ValueCountAggregation) Type() AggregationType {
	return AggTypeValueCount
}

func (a *ValueCountAggregation) ToES() map[string]interface{} {
	return map[string]interface{}{
		"value_count": map[string]interface{}{
			"field": a.Field,
		},
	}
}

// TopHitsAggregation 每个桶取前 Size 个文档的部分字段
type TopHitsAggregation struct {
	AggName string
	Size    int
	Source  []string
}

func (a *TopHitsAggregation) Type() AggregationType {
	return AggTypeTopHits
}

func (a *TopHitsAggregation) Name() string {
	return a.AggName
}

func (a *TopHitsAggregation) ToES() map[string]interface{} {
	size := a.Size
	if size <= 0 {
		size = 1
	}
	topHits := map[string]interface{}{
		"size": size,
	}
	if len(a.Source) > 0 {
		topHits["_source"] = map[string]interface{}{"includes": a.Source}
	}
	return map[string]interface{}{
		"top_hits": topHits,
	}
}
