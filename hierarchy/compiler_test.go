package hierarchy

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/spendagg/codetree"
	"github.com/hatlonely/spendagg/query"
)

// expected 按“最深命中编码决定去留”的规则直接计算
func expected(required, excluded []string, doc string) bool {
	positive := map[string]bool{}
	var all []string
	for _, code := range required {
		positive[code] = true
		all = append(all, code)
	}
	all = append(all, excluded...)

	hasPositiveTop := false
	for _, code := range required {
		top := true
		for _, other := range all {
			if other != code && strings.HasPrefix(code, other) {
				top = false
			}
		}
		hasPositiveTop = hasPositiveTop || top
	}

	deepest, shallowest := "", ""
	for _, code := range all {
		if !strings.HasPrefix(doc, code) {
			continue
		}
		if len(code) > len(deepest) {
			deepest = code
		}
		if shallowest == "" || len(code) < len(shallowest) {
			shallowest = code
		}
	}
	if deepest == "" {
		return !hasPositiveTop
	}
	if positive[shallowest] {
		return positive[deepest]
	}
	return positive[deepest] && !hasPositiveTop
}

func allDocs(alphabet string, maxLen int) []string {
	docs := []string{""}
	var out []string
	for l := 1; l <= maxLen; l++ {
		var next []string
		for _, prefix := range docs {
			for _, r := range alphabet {
				next = append(next, prefix+string(r))
			}
		}
		out = append(out, next...)
		docs = next
	}
	return out
}

func TestCompile(t *testing.T) {
	domain := &PrefixDomain{Field: "naics_code"}
	compiler := NewCompiler(domain)

	Convey("测试单个包含编码", t, func() {
		expr, err := compiler.Compile(FilterSpec{Required: []string{"11"}})
		So(err, ShouldBeNil)
		So(expr.String(), ShouldEqual, "(naics_code:11*)")
		So(expr.Match("1111"), ShouldBeTrue)
		So(expr.Match("21"), ShouldBeFalse)
	})

	Convey("测试单个排除编码", t, func() {
		expr, err := compiler.Compile(FilterSpec{Excluded: []string{"11"}})
		So(err, ShouldBeNil)
		So(expr.String(), ShouldEqual, "(NOT (naics_code:11*))")
		So(expr.Match("1111"), ShouldBeFalse)
		So(expr.Match("21"), ShouldBeTrue)
	})

	Convey("测试多个顶层包含编码取并集", t, func() {
		expr, err := compiler.Compile(FilterSpec{Required: []string{"21", "11", "21"}})
		So(err, ShouldBeNil)
		So(expr.String(), ShouldEqual, "((naics_code:11*) OR (naics_code:21*))")
	})

	Convey("测试包含编码下的排除编码", t, func() {
		expr, err := compiler.Compile(FilterSpec{Required: []string{"A"}, Excluded: []string{"AB"}})
		So(err, ShouldBeNil)
		So(expr.String(), ShouldEqual, "((naics_code:A*) AND (NOT (naics_code:AB*)))")
		So(expr.Match("A"), ShouldBeTrue)
		So(expr.Match("AC"), ShouldBeTrue)
		So(expr.Match("AB"), ShouldBeFalse)
		So(expr.Match("ABX"), ShouldBeFalse)
		So(expr.Match("B"), ShouldBeFalse)

		q, ok := expr.ToQuery().(*query.BoolQuery)
		So(ok, ShouldBeTrue)
		So(q.Filter, ShouldHaveLength, 2)
		So(q.Filter[0], ShouldResemble, &query.PrefixQuery{Field: "naics_code", Value: "A"})
		So(q.Filter[1], ShouldResemble, &query.BoolQuery{MustNot: []query.Query{&query.PrefixQuery{Field: "naics_code", Value: "AB"}}})
		So(expr.QueryString().Query, ShouldEqual, expr.String())
	})

	Convey("测试中间层缺失时仍保留子编码", t, func() {
		expr, err := compiler.Compile(FilterSpec{Required: []string{"11"}, Excluded: []string{"111111"}})
		So(err, ShouldBeNil)
		So(expr.Match("111111"), ShouldBeFalse)
		So(expr.Match("111112"), ShouldBeTrue)
	})

	Convey("测试排除编码下的排除编码被消解", t, func() {
		expr, err := compiler.Compile(FilterSpec{Excluded: []string{"11", "1111"}})
		So(err, ShouldBeNil)
		So(expr.String(), ShouldEqual, "(NOT (naics_code:11*))")
	})

	Convey("测试排除编码下重新包含", t, func() {
		expr, err := compiler.Compile(FilterSpec{Required: []string{"1111"}, Excluded: []string{"11"}})
		So(err, ShouldBeNil)
		So(expr.String(), ShouldEqual, "((NOT (naics_code:11*)) OR (naics_code:1111*))")
		So(expr.Match("1111"), ShouldBeTrue)
		So(expr.Match("1112"), ShouldBeFalse)
		So(expr.Match("21"), ShouldBeTrue)
	})

	Convey("测试非法输入", t, func() {
		_, err := compiler.Compile(FilterSpec{})
		var verr *ValidationError
		So(errors.As(err, &verr), ShouldBeTrue)
		So(verr.Field, ShouldEqual, "filter")

		_, err = compiler.Compile(FilterSpec{Required: []string{"11"}, Excluded: []string{"11"}})
		So(errors.As(err, &verr), ShouldBeTrue)
		So(verr.Field, ShouldEqual, "exclude")
		So(verr.Error(), ShouldContainSubstring, `"11"`)

		known := NewCompiler(domain, WithKnownCodes(codetree.Build([]string{"11", "1111"}, 2)))
		_, err = known.Compile(FilterSpec{Required: []string{"99"}})
		So(errors.As(err, &verr), ShouldBeTrue)
		_, err = known.Compile(FilterSpec{Required: []string{"1111"}})
		So(err, ShouldBeNil)
	})
}

func TestCompileSemantics(t *testing.T) {
	Convey("测试编译结果与最深编码规则一致", t, func() {
		compiler := NewCompiler(&PrefixDomain{Field: "code"})
		docs := allDocs("ABC", 4)
		candidates := allDocs("AB", 3)
		r := rand.New(rand.NewSource(42))

		mismatches := 0
		for i := 0; i < 500; i++ {
			var required, excluded []string
			picked := map[string]bool{}
			for n := 1 + r.Intn(5); n > 0; n-- {
				code := candidates[r.Intn(len(candidates))]
				if picked[code] {
					continue
				}
				picked[code] = true
				if r.Intn(2) == 0 {
					required = append(required, code)
				} else {
					excluded = append(excluded, code)
				}
			}

			expr, err := compiler.Compile(FilterSpec{Required: required, Excluded: excluded})
			So(err, ShouldBeNil)
			for _, doc := range docs {
				if expr.Match(doc) != expected(required, excluded, doc) {
					mismatches++
				}
			}
		}
		So(mismatches, ShouldEqual, 0)
	})
}

func TestDomains(t *testing.T) {
	Convey("测试编码体系的叶子谓词", t, func() {
		prefix := &PrefixDomain{Field: "psc"}
		So(prefix.Unit("A1:B"), ShouldEqual, `psc:A1\:B*`)
		So(prefix.Covers("A1", "A1B"), ShouldBeTrue)

		term := &TermDomain{Field: "defc"}
		So(term.Unit("L"), ShouldEqual, `defc:"L"`)
		So(term.Query("L"), ShouldResemble, &query.TermQuery{Field: "defc", Value: "L"})

		path := &PathDomain{Fields: []string{"agency", "federal_account", "tas"}}
		So(path.Unit("012"), ShouldEqual, `agency:"012"`)
		So(path.Unit("012/012-3500"), ShouldEqual, `federal_account:"012-3500"`)
		So(path.Unit("012/012-3500/012-X-3500-000"), ShouldEqual, `tas:"012-X-3500-000"`)
		So(path.Covers("012", "012/012-3500"), ShouldBeTrue)
		So(path.Covers("012", "0123/0123-0001"), ShouldBeFalse)
		So(path.Query("012/012-3500"), ShouldResemble, &query.TermQuery{Field: "federal_account", Value: "012-3500"})
	})
}
