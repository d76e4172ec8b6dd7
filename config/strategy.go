package config

import (
	"github.com/pkg/errors"

	"github.com/hatlonely/spendagg/codetree"
	"github.com/hatlonely/spendagg/engine"
	"github.com/hatlonely/spendagg/hierarchy"
	"github.com/hatlonely/spendagg/refdata"
)

// DomainOptions 层级编码过滤的叶子谓词
type DomainOptions struct {
	// prefix: field:code*，term: field:"code"，path: 按深度选择 Fields 中的字段
	Type      string   `cfg:"type" def:"prefix" validate:"oneof=prefix term path"`
	Field     string   `cfg:"field"`
	Fields    []string `cfg:"fields"`
	Separator string   `cfg:"separator"`
}

func (o *DomainOptions) Build(groupField string) (hierarchy.Domain, error) {
	field := o.Field
	if field == "" {
		field = groupField
	}
	switch o.Type {
	case "", "prefix":
		return &hierarchy.PrefixDomain{Field: field}, nil
	case "term":
		return &hierarchy.TermDomain{Field: field}, nil
	case "path":
		if len(o.Fields) == 0 {
			return nil, errors.New("path domain requires fields")
		}
		return &hierarchy.PathDomain{Separator: o.Separator, Fields: o.Fields}, nil
	default:
		return nil, errors.Errorf("unsupported domain type %q", o.Type)
	}
}

// StrategyOptions 一种分组维度的声明式配置
type StrategyOptions struct {
	Name            string               `cfg:"name" validate:"required"`
	Index           string               `cfg:"index" validate:"required"`
	GroupField      string               `cfg:"groupField" validate:"required"`
	SubGroupField   string               `cfg:"subGroupField"`
	QueryFields     []string             `cfg:"queryFields"`
	SumFields       []engine.SumField    `cfg:"sumFields" validate:"dive"`
	SortFields      map[string]string    `cfg:"sortFields"`
	DefaultSort     string               `cfg:"defaultSort"`
	Domain          *DomainOptions       `cfg:"domain"`
	Tree            string               `cfg:"tree"`
	Dictionary      string               `cfg:"dictionary"`
	MetadataFields  *engine.FieldMapping `cfg:"metadataFields"`
	ParentFields    *engine.FieldMapping `cfg:"parentFields"`
	AwardCountField string               `cfg:"awardCountField"`
}

// Build 生成 engine.Strategy，Tree 与 Dictionary 按名字从注册表中查找
func (o *StrategyOptions) Build(trees *codetree.Registry, dictionaries *refdata.Registry) (*engine.Strategy, error) {
	strategy := &engine.Strategy{
		Name:            o.Name,
		Index:           o.Index,
		GroupField:      o.GroupField,
		SubGroupField:   o.SubGroupField,
		QueryFields:     o.QueryFields,
		SumFields:       o.SumFields,
		SortFields:      o.SortFields,
		DefaultSort:     o.DefaultSort,
		MetadataFields:  o.MetadataFields,
		ParentFields:    o.ParentFields,
		AwardCountField: o.AwardCountField,
	}

	domain := o.Domain
	if domain == nil {
		domain = &DomainOptions{}
	}
	d, err := domain.Build(o.GroupField)
	if err != nil {
		return nil, errors.WithMessagef(err, "strategy %s", o.Name)
	}
	strategy.Domain = d

	if o.Tree != "" {
		if trees == nil {
			return nil, errors.Errorf("strategy %s: no code trees configured", o.Name)
		}
		tree, err := trees.Tree(o.Tree)
		if err != nil {
			return nil, errors.WithMessagef(err, "strategy %s", o.Name)
		}
		strategy.KnownCodes = tree
	}
	if o.Dictionary != "" {
		if dictionaries == nil {
			return nil, errors.Errorf("strategy %s: no dictionaries configured", o.Name)
		}
		dictionary, err := dictionaries.Get(o.Dictionary)
		if err != nil {
			return nil, errors.WithMessagef(err, "strategy %s", o.Name)
		}
		strategy.Dictionary = dictionary
	}

	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	return strategy, nil
}
