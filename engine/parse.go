package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/spendagg/aggregation"
)

func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// Row 单个桶转为结果行，meta 非空时从 top_hits 文档读取 id/code/description
func (p *Plan) Row(bucket *aggregation.Bucket, meta *FieldMapping) ResultRow {
	key := bucket.KeyString()
	row := ResultRow{
		ID:         key,
		Code:       key,
		AwardCount: bucket.DocCount,
		Amounts:    make(map[string]float64, len(p.Strategy.SumFields)),
	}
	if hit := bucket.FirstHit(MetadataAggName); hit != nil && meta != nil {
		if v, ok := sourceValue(hit, meta.ID); ok {
			row.ID = v
		}
		if v, ok := sourceValue(hit, meta.Code); ok {
			row.Code = v
		}
		if v, ok := sourceValue(hit, meta.Description); ok {
			row.Description = v
		}
	}
	if single := bucket.Single(AwardCountAggName); single != nil {
		row.AwardCount = int64(single.Value(AwardCountValue))
	}
	for _, sum := range p.Strategy.SumFields {
		row.Amounts[sum.Name] = p.Unscale(bucket.Value(SumAggName(sum.Name)))
	}
	return row
}

// ParseNested 每个分组桶一行，子分组桶作为 Children
func ParseNested(plan *Plan, result *aggregation.Result) ([]ResultRow, error) {
	buckets := result.GetBuckets(GroupAggName)
	rows := make([]ResultRow, 0, len(buckets))
	for i := range buckets {
		row := plan.Row(&buckets[i], plan.Strategy.MetadataFields)
		subs := buckets[i].GetBuckets(SubGroupAggName)
		if plan.SubDecision != nil {
			row.Children = make([]ResultRow, 0, len(subs))
		}
		for j := range subs {
			row.Children = append(row.Children, plan.Row(&subs[j], nil))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseWithParent 每个分组桶是一个子级，按 top_hits 中的上一级字段合并为父级行
func ParseWithParent(plan *Plan, result *aggregation.Result) ([]ResultRow, error) {
	parentFields := plan.Strategy.ParentFields
	if parentFields == nil {
		return nil, errors.Errorf("strategy %s has no parent fields", plan.Strategy.Name)
	}

	buckets := result.GetBuckets(GroupAggName)
	parents := make([]ResultRow, 0, len(buckets))
	for i := range buckets {
		child := plan.Row(&buckets[i], plan.Strategy.MetadataFields)
		hit := buckets[i].FirstHit(MetadataAggName)
		if hit == nil {
			return nil, errors.Errorf("bucket %s has no %s hit", buckets[i].KeyString(), MetadataAggName)
		}

		parent := ResultRow{AwardCount: child.AwardCount, Amounts: make(map[string]float64, len(child.Amounts))}
		parent.Code, _ = sourceValue(hit, parentFields.Code)
		parent.ID = parent.Code
		if v, ok := sourceValue(hit, parentFields.ID); ok {
			parent.ID = v
		}
		parent.Description, _ = sourceValue(hit, parentFields.Description)
		for name, amount := range child.Amounts {
			parent.Amounts[name] = amount
		}
		parent.Children = []ResultRow{child}
		parents = append(parents, parent)
	}

	merger := &Merger{}
	rows := merger.Merge(parents)
	p := &plan.Pagination
	merger.Sort(rows, p.SortKey, p.SortOrder)
	return rows, nil
}

// KeysOnly 只取分组桶的 key
func KeysOnly(plan *Plan, result *aggregation.Result) ([]ResultRow, error) {
	buckets := result.GetBuckets(GroupAggName)
	rows := make([]ResultRow, len(buckets))
	for i := range buckets {
		key := buckets[i].KeyString()
		rows[i] = ResultRow{ID: key, Code: key}
	}
	return rows, nil
}

// sourceValue 依次尝试完整字段名、按 . 逐层取值、最后一段字段名
func sourceValue(source map[string]interface{}, field string) (string, bool) {
	if field == "" {
		return "", false
	}
	if v, ok := source[field]; ok {
		return stringValue(v)
	}
	parts := strings.Split(field, ".")
	var cur interface{} = source
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			cur = nil
			break
		}
		cur = m[part]
	}
	if cur != nil {
		return stringValue(cur)
	}
	if v, ok := source[parts[len(parts)-1]]; ok {
		return stringValue(v)
	}
	return "", false
}

func stringValue(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprint(t), true
	}
}
