package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/hatlonely/spendagg/codetree"
	"github.com/hatlonely/spendagg/engine"
	"github.com/hatlonely/spendagg/log/logger"
	"github.com/hatlonely/spendagg/refdata"
	"github.com/hatlonely/spendagg/search"
)

// Options 进程的全部配置
type Options struct {
	ES           search.ESOptions    `cfg:"es"`
	Engine       engine.Options      `cfg:"engine"`
	Log          *logger.SLogOptions `cfg:"log"`
	Trees        []*codetree.Options `cfg:"trees" validate:"dive"`
	Dictionaries []*refdata.Options  `cfg:"dictionaries" validate:"dive"`
	Strategies   []*StrategyOptions  `cfg:"strategies" validate:"dive"`
}

// Load 按扩展名解析配置文件：.yaml/.yml/.toml/.ini/.json
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "os.ReadFile failed")
	}
	options, err := Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s", path)
	}
	return options, nil
}

// Parse 解析、补默认值并校验
func Parse(data []byte, format string) (*Options, error) {
	tree, err := Decode(data, format)
	if err != nil {
		return nil, err
	}

	options := &Options{}
	if err := Convert(tree, options); err != nil {
		return nil, err
	}
	if err := SetDefaults(options); err != nil {
		return nil, errors.WithMessage(err, "set defaults failed")
	}
	if err := validator.New().Struct(options); err != nil {
		return nil, errors.Wrap(err, "validate failed")
	}
	return options, nil
}

// Strategy 按名字构建策略
func (o *Options) Strategy(name string, trees *codetree.Registry, dictionaries *refdata.Registry) (*engine.Strategy, error) {
	for _, s := range o.Strategies {
		if s.Name == name {
			return s.Build(trees, dictionaries)
		}
	}
	return nil, errors.Errorf("unknown strategy %q", name)
}

// StrategyNames 配置中的策略名
func (o *Options) StrategyNames() []string {
	names := make([]string, 0, len(o.Strategies))
	for _, s := range o.Strategies {
		names = append(names, s.Name)
	}
	return names
}
