package query

// TermQuery 精确匹配查询
type TermQuery struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

func (q *TermQuery) Type() QueryType {
	return QueryTypeTerm
}

func (q *TermQuery) ToES() map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{
			q.Field: q.Value,
		},
	}
}

// TermsQuery 多值精确匹配查询
type TermsQuery struct {
	Field  string        `json:"field"`
	Values []interface{} `json:"values"`
}

func (q *TermsQuery) Type() QueryType {
	return QueryTypeTerms
}

func (q *TermsQuery) ToES() map[string]interface{} {
	values := q.Values
	if values == nil {
		values = []interface{}{}
	}
	return map[string]interface{}{
		"terms": map[string]interface{}{
			q.Field: values,
		},
	}
}

// ExistsQuery 字段存在查询
type ExistsQuery struct {
	Field string `json:"field"`
}

func (q *ExistsQuery) Type() QueryType {
	return QueryTypeExists
}

func (q *ExistsQuery) ToES() map[string]interface{} {
	return map[string]interface{}{
		"exists": map[string]interface{}{
			"field": q.Field,
		},
	}
}

// PrefixQuery 前缀查询
type PrefixQuery struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (q *PrefixQuery) Type() QueryType {
	return QueryTypePrefix
}

func (q *PrefixQuery) ToES() map[string]interface{} {
	return map[string]interface{}{
		"prefix": map[string]interface{}{
			q.Field: q.Value,
		},
	}
}
