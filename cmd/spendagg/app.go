package main

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hatlonely/spendagg/codetree"
	"github.com/hatlonely/spendagg/config"
	"github.com/hatlonely/spendagg/engine"
	"github.com/hatlonely/spendagg/log"
	"github.com/hatlonely/spendagg/log/logger"
	"github.com/hatlonely/spendagg/refdata"
	"github.com/hatlonely/spendagg/search"
)

// app 命令共用的依赖
type app struct {
	options      *config.Options
	logger       logger.Logger
	trees        *codetree.Registry
	dictionaries *refdata.Registry
}

func newApp(path string) (*app, error) {
	options, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	l, err := log.NewLoggerWithOptions(options.Log)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}
	trees, err := codetree.NewRegistryWithOptions(options.Trees)
	if err != nil {
		return nil, err
	}
	dictionaries, err := refdata.NewRegistryWithOptions(options.Dictionaries)
	if err != nil {
		return nil, err
	}
	return &app{options: options, logger: l, trees: trees, dictionaries: dictionaries}, nil
}

func (a *app) strategy(name string) (*engine.Strategy, error) {
	return a.options.Strategy(name, a.trees, a.dictionaries)
}

// engine 连接 Elasticsearch 并创建聚合引擎
func (a *app) engine() (*engine.Engine, error) {
	es, err := search.NewESWithOptions(&a.options.ES)
	if err != nil {
		return nil, err
	}
	metrics, err := engine.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	return engine.NewEngine(es, &a.options.Engine, engine.WithLogger(a.logger), engine.WithMetrics(metrics))
}

func (a *app) Close() error {
	return a.dictionaries.Close()
}
