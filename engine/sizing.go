package engine

import (
	"github.com/pkg/errors"
)

// BucketCountDecision 一个分组字段的桶数决策
type BucketCountDecision struct {
	Field string
	// ExactCount 过滤后的去重数，Capped 时不计数
	ExactCount int64
	// Capped 路由字段只取到当前页为止的桶
	Capped    bool
	Size      int
	ShardSize int
}

// Empty 精确计数为 0，不需要再发聚合请求
func (d *BucketCountDecision) Empty() bool {
	return !d.Capped && d.ExactCount == 0
}

// SizingPolicy 根据字段和计数决定 size/shard_size，并限制在 Ceiling 以内
type SizingPolicy struct {
	RoutingField string
	Ceiling      int
	Margin       int
}

func NewSizingPolicy(options *Options) *SizingPolicy {
	return &SizingPolicy{
		RoutingField: options.RoutingField,
		Ceiling:      options.Ceiling,
		Margin:       options.ShardSizeMargin,
	}
}

// NeedsCount 路由字段不做精确计数
func (p *SizingPolicy) NeedsCount(field string) bool {
	return field != p.RoutingField
}

// Capped 路由字段取到当前页最后一条再多一条
func (p *SizingPolicy) Capped(field string, pagination *Pagination) (BucketCountDecision, error) {
	size := pagination.UpperLimit()
	d := BucketCountDecision{Field: field, Capped: true, Size: size, ShardSize: size}
	return d, p.check(&d)
}

// Exact 按精确计数取全部桶，shard_size 为计数加 Margin
func (p *SizingPolicy) Exact(field string, count int64) (BucketCountDecision, error) {
	d := BucketCountDecision{Field: field, ExactCount: count}
	if count <= 0 {
		d.ExactCount = 0
		return d, nil
	}
	d.Size = int(count)
	d.ShardSize = int(count) + p.Margin
	return d, p.check(&d)
}

func (p *SizingPolicy) check(d *BucketCountDecision) error {
	if d.ShardSize > p.Ceiling {
		return errors.WithStack(&TooManyValuesError{Field: d.Field, ShardSize: d.ShardSize, Ceiling: p.Ceiling})
	}
	return nil
}
