package hierarchy

import (
	"strings"

	"github.com/hatlonely/spendagg/query"
)

// Domain 具体编码体系的叶子谓词
type Domain interface {
	// Unit 单个编码的 query_string 片段
	Unit(code string) string
	// Query 单个编码的结构化查询
	Query(code string) query.Query
	// Covers 文档编码 docCode 是否命中编码 code 的谓词
	Covers(code, docCode string) bool
}

// PrefixDomain 编码前缀匹配，如 NAICS、PSC：naics_code:11*
type PrefixDomain struct {
	Field string
}

func (d *PrefixDomain) Unit(code string) string {
	return d.Field + ":" + query.MinimalSanitize(code) + "*"
}

func (d *PrefixDomain) Query(code string) query.Query {
	return &query.PrefixQuery{Field: d.Field, Value: code}
}

func (d *PrefixDomain) Covers(code, docCode string) bool {
	return strings.HasPrefix(docCode, code)
}

// TermDomain 每一层编码单独成字段值，文档携带自身及全部祖先编码
type TermDomain struct {
	Field string
}

func (d *TermDomain) Unit(code string) string {
	return d.Field + `:"` + strings.ReplaceAll(code, `"`, `\"`) + `"`
}

func (d *TermDomain) Query(code string) query.Query {
	return &query.TermQuery{Field: d.Field, Value: code}
}

// Covers 文档编码的任一祖先或自身等于 code 即命中
func (d *TermDomain) Covers(code, docCode string) bool {
	return strings.HasPrefix(docCode, code)
}

// PathDomain 多段路径编码，如 TAS 的 agency/federal_account/tas
// Fields 依次对应每一层使用的字段，叶子谓词落在最深一层的字段上
type PathDomain struct {
	Separator string
	Fields    []string
}

func (d *PathDomain) split(code string) (string, string) {
	parts := strings.Split(code, d.separator())
	depth := len(parts) - 1
	if depth >= len(d.Fields) {
		depth = len(d.Fields) - 1
	}
	return d.Fields[depth], parts[len(parts)-1]
}

func (d *PathDomain) separator() string {
	if d.Separator == "" {
		return "/"
	}
	return d.Separator
}

func (d *PathDomain) Unit(code string) string {
	field, value := d.split(code)
	return field + `:"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}

func (d *PathDomain) Query(code string) query.Query {
	field, value := d.split(code)
	return &query.TermQuery{Field: field, Value: value}
}

func (d *PathDomain) Covers(code, docCode string) bool {
	return docCode == code || strings.HasPrefix(docCode, code+d.separator())
}
