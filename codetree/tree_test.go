package codetree

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func codesOf(t *Tree, idxs []int) []string {
	codes := make([]string, len(idxs))
	for i, idx := range idxs {
		codes[i] = t.Node(idx).Code
	}
	return codes
}

func TestBuild(t *testing.T) {
	Convey("测试从扁平列表构建编码树", t, func() {
		tree := Build([]string{"1111", "11", "21", "111111", "11", "2111", "1112"}, 2)

		So(tree.Len(), ShouldEqual, 6)
		So(codesOf(tree, tree.Roots()), ShouldResemble, []string{"11", "21"})

		idx, ok := tree.Lookup("11")
		So(ok, ShouldBeTrue)
		So(codesOf(tree, tree.Node(idx).Children), ShouldResemble, []string{"1111", "1112"})

		leaf, _ := tree.Lookup("111111")
		So(tree.Node(leaf).Depth, ShouldEqual, 2)
		So(tree.Node(tree.Root(leaf)).Code, ShouldEqual, "11")
		So(tree.Ancestors("111111"), ShouldResemble, []string{"1111", "11"})
		So(tree.Ancestors("111199"), ShouldResemble, []string{"1111", "11"})
		So(tree.Ancestors("99"), ShouldBeNil)

		Convey("中间层缺失时挂到最近祖先", func() {
			gap := Build([]string{"A", "ABC"}, 1)
			child, _ := gap.Lookup("ABC")
			So(gap.Node(gap.Node(child).Parent).Code, ShouldEqual, "A")
		})

		Convey("Nearest 返回最深覆盖节点", func() {
			idx, ok := tree.Nearest("113456")
			So(ok, ShouldBeTrue)
			So(tree.Node(idx).Code, ShouldEqual, "11")
			_, ok = tree.Nearest("31")
			So(ok, ShouldBeFalse)
		})

		Convey("Walk 先序遍历并可剪枝", func() {
			var visited []string
			tree.Walk(func(idx int, node *Node) bool {
				visited = append(visited, node.Code)
				return node.Code != "1111"
			})
			So(visited, ShouldResemble, []string{"11", "1111", "1112", "21", "2111"})
		})
	})
}

func TestCodeRelations(t *testing.T) {
	Convey("测试编码层级关系", t, func() {
		So(IsAncestor("11", "1111"), ShouldBeTrue)
		So(IsAncestor("11", "11"), ShouldBeFalse)
		So(IsAncestor("12", "1111"), ShouldBeFalse)
		So(IsDirectChild("11", "1111", 2), ShouldBeTrue)
		So(IsDirectChild("11", "111111", 2), ShouldBeFalse)
		So(ParentCode("111111", 2), ShouldEqual, "1111")
		So(ParentCode("11", 2), ShouldEqual, "")
		So(ParentCode("11", 0), ShouldEqual, "")
	})
}

func TestRegistry(t *testing.T) {
	Convey("测试编码树注册表", t, func() {
		dir := t.TempDir()
		yamlPath := filepath.Join(dir, "object_class.yaml")
		So(os.WriteFile(yamlPath, []byte("- code: \"10\"\n  description: Personnel compensation and benefits\n- code: \"111\"\n  description: Full-time permanent\n"), 0644), ShouldBeNil)
		jsonPath := filepath.Join(dir, "naics.json")
		So(os.WriteFile(jsonPath, []byte(`[{"code":"11","description":"Agriculture"},{"code":"1111","description":"Oilseed and Grain Farming"}]`), 0644), ShouldBeNil)

		registry, err := NewRegistryWithOptions([]*Options{
			{Name: "object_class", TierWidth: 1, File: yamlPath},
			{Name: "naics", TierWidth: 2, File: jsonPath, Codes: []Entry{{Code: "21"}}},
		})
		So(err, ShouldBeNil)
		So(registry.Names(), ShouldResemble, []string{"naics", "object_class"})

		naics, err := registry.Tree("naics")
		So(err, ShouldBeNil)
		So(naics.Len(), ShouldEqual, 3)
		So(naics.Description("1111"), ShouldEqual, "Oilseed and Grain Farming")
		So(naics.TierWidth(), ShouldEqual, 2)

		oc, err := registry.Tree("object_class")
		So(err, ShouldBeNil)
		So(oc.Description("10"), ShouldEqual, "Personnel compensation and benefits")

		_, err = registry.Tree("psc")
		So(err, ShouldNotBeNil)

		Convey("重复名字", func() {
			_, err := NewRegistryWithOptions([]*Options{{Name: "a"}, {Name: "a"}})
			So(err, ShouldNotBeNil)
		})

		Convey("不支持的文件格式", func() {
			_, err := NewRegistryWithOptions([]*Options{{Name: "a", File: filepath.Join(dir, "codes.csv")}})
			So(err, ShouldNotBeNil)
		})
	})
}
