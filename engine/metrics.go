package engine

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 引擎的 prometheus 指标，nil 时所有方法为空操作
type Metrics struct {
	requests      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	partitions    prometheus.Counter
	searchCalls   *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到 registerer，registerer 为 nil 时注册到默认 registry
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendagg_requests_total",
				Help: "Total number of aggregation requests",
			},
			[]string{"strategy", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spendagg_stage_duration_seconds",
				Help:    "Duration of request lifecycle stages in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"stage"},
		),
		partitions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spendagg_partitions_total",
				Help: "Total number of scanned partitions",
			},
		),
		searchCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendagg_search_calls_total",
				Help: "Total number of search backend calls",
			},
			[]string{"kind"},
		),
	}

	for _, c := range []prometheus.Collector{m.requests, m.stageDuration, m.partitions, m.searchCalls} {
		if err := registerer.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register engine metrics")
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(strategy, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strategy, outcome).Inc()
}

func (m *Metrics) observeStage(stage Stage, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage)).Observe(seconds)
}

func (m *Metrics) observePartition() {
	if m == nil {
		return
	}
	m.partitions.Inc()
}

func (m *Metrics) observeSearch(kind string) {
	if m == nil {
		return
	}
	m.searchCalls.WithLabelValues(kind).Inc()
}
