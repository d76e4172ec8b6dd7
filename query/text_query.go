package query

// QueryStringQuery Lucene 语法查询
type QueryStringQuery struct {
	Query           string   `json:"query"`
	DefaultField    string   `json:"default_field,omitempty"`
	Fields          []string `json:"fields,omitempty"`
	DefaultOperator string   `json:"default_operator,omitempty"`
}

func (q *QueryStringQuery) Type() QueryType {
	return QueryTypeQueryString
}

func (q *QueryStringQuery) ToES() map[string]interface{} {
	body := map[string]interface{}{
		"query": q.Query,
	}
	if q.DefaultField != "" {
		body["default_field"] = q.DefaultField
	}
	if len(q.Fields) > 0 {
		body["fields"] = q.Fields
	}
	if q.DefaultOperator != "" {
		body["default_operator"] = q.DefaultOperator
	}
	return map[string]interface{}{
		"query_string": body,
	}
}

// MultiMatchQuery 多字段全文查询
type MultiMatchQuery struct {
	Query     string   `json:"query"`
	Fields    []string `json:"fields"`
	MatchType string   `json:"type,omitempty"`
}

func (q *MultiMatchQuery) Type() QueryType {
	return QueryTypeMultiMatch
}

func (q *MultiMatchQuery) ToES() map[string]interface{} {
	body := map[string]interface{}{
		"query":  q.Query,
		"fields": q.Fields,
	}
	if q.MatchType != "" {
		body["type"] = q.MatchType
	}
	return map[string]interface{}{
		"multi_match": body,
	}
}
