package query

// BoolQuery 布尔查询
type BoolQuery struct {
	Must           []Query `json:"must,omitempty"`
	Should         []Query `json:"should,omitempty"`
	MustNot        []Query `json:"must_not,omitempty"`
	Filter         []Query `json:"filter,omitempty"`
	MinShouldMatch *int    `json:"minimum_should_match,omitempty"`
}

// NewShouldMatchOne should 子句至少命中一个
func NewShouldMatchOne(should ...Query) *BoolQuery {
	one := 1
	return &BoolQuery{Should: should, MinShouldMatch: &one}
}

func (q *BoolQuery) Type() QueryType {
	return QueryTypeBool
}

// IsEmpty 没有任何子句
func (q *BoolQuery) IsEmpty() bool {
	return len(q.Must) == 0 && len(q.Should) == 0 && len(q.MustNot) == 0 && len(q.Filter) == 0
}

// Clone 复制子句切片，子查询本身共享
func (q *BoolQuery) Clone() *BoolQuery {
	clone := &BoolQuery{
		Must:    append([]Query(nil), q.Must...),
		Should:  append([]Query(nil), q.Should...),
		MustNot: append([]Query(nil), q.MustNot...),
		Filter:  append([]Query(nil), q.Filter...),
	}
	if q.MinShouldMatch != nil {
		n := *q.MinShouldMatch
		clone.MinShouldMatch = &n
	}
	return clone
}

func (q *BoolQuery) ToES() map[string]interface{} {
	boolQuery := make(map[string]interface{})

	if clauses := toESList(q.Must); clauses != nil {
		boolQuery["must"] = clauses
	}
	if clauses := toESList(q.Should); clauses != nil {
		boolQuery["should"] = clauses
	}
	if clauses := toESList(q.MustNot); clauses != nil {
		boolQuery["must_not"] = clauses
	}
	if clauses := toESList(q.Filter); clauses != nil {
		boolQuery["filter"] = clauses
	}
	if q.MinShouldMatch != nil {
		boolQuery["minimum_should_match"] = *q.MinShouldMatch
	}

	return map[string]interface{}{
		"bool": boolQuery,
	}
}

func toESList(queries []Query) []interface{} {
	if len(queries) == 0 {
		return nil
	}
	result := make([]interface{}, len(queries))
	for i, query := range queries {
		result[i] = query.ToES()
	}
	return result
}
