package engine

import (
	"encoding/json"
	"sort"
	"strings"
)

// ResultRow 一个分组的汇总结果，Children 为下一级分组
type ResultRow struct {
	ID          string
	Code        string
	Description string
	AwardCount  int64
	// Amounts 金额，键为 SumField.Name，如 obligation、outlay
	Amounts  map[string]float64
	Children []ResultRow
}

// Amount 金额，不存在时为 0
func (r *ResultRow) Amount(name string) float64 {
	return r.Amounts[name]
}

// MarshalJSON 金额与其他字段平铺输出
func (r ResultRow) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(r.Amounts)+5)
	for name, amount := range r.Amounts {
		m[name] = amount
	}
	m["id"] = r.ID
	m["code"] = r.Code
	m["description"] = r.Description
	m["award_count"] = r.AwardCount
	if r.Children != nil {
		m["children"] = r.Children
	}
	return json.Marshal(m)
}

func (r *ResultRow) clone() ResultRow {
	c := *r
	c.Amounts = make(map[string]float64, len(r.Amounts))
	for name, amount := range r.Amounts {
		c.Amounts[name] = amount
	}
	if r.Children != nil {
		c.Children = make([]ResultRow, len(r.Children))
		for i := range r.Children {
			c.Children[i] = r.Children[i].clone()
		}
	}
	return c
}

// PageMetadata 分页信息
type PageMetadata struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
	Next        *int `json:"next"`
	Previous    *int `json:"previous"`
}

// NewPageMetadata total 为全部结果数
func NewPageMetadata(total, page, limit int) PageMetadata {
	m := PageMetadata{
		Page:        page,
		Limit:       limit,
		Total:       total,
		HasNext:     page*limit < total,
		HasPrevious: page > 1,
	}
	if m.HasNext {
		next := page + 1
		m.Next = &next
	}
	if m.HasPrevious {
		previous := page - 1
		m.Previous = &previous
	}
	return m
}

// Response 聚合请求的返回
type Response struct {
	Results      []ResultRow  `json:"results"`
	PageMetadata PageMetadata `json:"page_metadata"`
	Messages     []string     `json:"messages,omitempty"`
}

// Paginate 取第 page 页，越界时返回空
func Paginate(rows []ResultRow, page, limit int) []ResultRow {
	offset := (page - 1) * limit
	if offset < 0 || offset >= len(rows) || limit <= 0 {
		return []ResultRow{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

// Merger 按 Code 合并多页结果
type Merger struct{}

// Merge 相同 Code 的行合并为一行：金额与计数相加，子结果拼接，保持首次出现的顺序
func (m *Merger) Merge(pages ...[]ResultRow) []ResultRow {
	index := map[string]int{}
	var merged []ResultRow
	for _, rows := range pages {
		for i := range rows {
			row := &rows[i]
			idx, ok := index[row.Code]
			if !ok {
				index[row.Code] = len(merged)
				merged = append(merged, row.clone())
				continue
			}
			target := &merged[idx]
			target.AwardCount += row.AwardCount
			for name, amount := range row.Amounts {
				target.Amounts[name] += amount
			}
			for j := range row.Children {
				target.Children = append(target.Children, row.Children[j].clone())
			}
		}
	}
	return merged
}

// Sort 按 key 排序，相同时按 ID 同方向排序，子结果按同样规则排序
func (m *Merger) Sort(rows []ResultRow, key, order string) {
	desc := order == SortDesc
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareRows(&rows[i], &rows[j], key)
		if c == 0 {
			c = strings.Compare(rows[i].ID, rows[j].ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	for i := range rows {
		if len(rows[i].Children) > 0 {
			m.Sort(rows[i].Children, key, order)
		}
	}
}

func compareRows(a, b *ResultRow, key string) int {
	switch key {
	case "id":
		return strings.Compare(a.ID, b.ID)
	case "code":
		return strings.Compare(a.Code, b.Code)
	case "description":
		return strings.Compare(a.Description, b.Description)
	case "award_count":
		return compareFloat(float64(a.AwardCount), float64(b.AwardCount))
	default:
		return compareFloat(a.Amount(key), b.Amount(key))
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
