package query

// RangeQuery 范围查询
type RangeQuery struct {
	Field string                 `json:"field"`
	Gt    interface{}            `json:"gt,omitempty"`
	Gte   interface{}            `json:"gte,omitempty"`
	Lt    interface{}            `json:"lt,omitempty"`
	Lte   interface{}            `json:"lte,omitempty"`
	Extra map[string]interface{} `json:"extra,omitempty"`
}

func (q *RangeQuery) Type() QueryType {
	return QueryTypeRange
}

func (q *RangeQuery) ToES() map[string]interface{} {
	rangeQuery := make(map[string]interface{})

	if q.Gt != nil {
		rangeQuery["gt"] = q.Gt
	}
	if q.Gte != nil {
		rangeQuery["gte"] = q.Gte
	}
	if q.Lt != nil {
		rangeQuery["lt"] = q.Lt
	}
	if q.Lte != nil {
		rangeQuery["lte"] = q.Lte
	}
	// format, time_zone 等额外字段
	for k, v := range q.Extra {
		rangeQuery[k] = v
	}

	return map[string]interface{}{
		"range": map[string]interface{}{
			q.Field: rangeQuery,
		},
	}
}

// NonZero 任一字段严格大于 0 或严格小于 0
func NonZero(fields ...string) *BoolQuery {
	should := make([]Query, 0, len(fields)*2)
	for _, field := range fields {
		should = append(should, &RangeQuery{Field: field, Gt: 0})
		should = append(should, &RangeQuery{Field: field, Lt: 0})
	}
	return NewShouldMatchOne(should...)
}
