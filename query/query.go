package query

// QueryType 查询类型
type QueryType string

const (
	QueryTypeBool        QueryType = "bool"
	QueryTypeTerm        QueryType = "term"
	QueryTypeTerms       QueryType = "terms"
	QueryTypeRange       QueryType = "range"
	QueryTypeExists      QueryType = "exists"
	QueryTypePrefix      QueryType = "prefix"
	QueryTypeQueryString QueryType = "query_string"
	QueryTypeMultiMatch  QueryType = "multi_match"
	QueryTypeMatchAll    QueryType = "match_all"
)

// Query 查询节点接口，渲染为 Elasticsearch 查询 DSL
type Query interface {
	Type() QueryType
	ToES() map[string]interface{}
}

// MatchAllQuery 匹配全部文档
type MatchAllQuery struct{}

func (q *MatchAllQuery) Type() QueryType {
	return QueryTypeMatchAll
}

func (q *MatchAllQuery) ToES() map[string]interface{} {
	return map[string]interface{}{
		"match_all": map[string]interface{}{},
	}
}
