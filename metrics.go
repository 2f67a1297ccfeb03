package shardset

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the engine's Prometheus collectors.
type metrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	phaseDuration *prometheus.HistogramVec
	linesSplit    prometheus.Counter
	linesEmitted  *prometheus.CounterVec
	partitions    prometheus.Gauge
}

// newMetrics registers the collectors with reg. A nil reg uses a private
// registry, keeping the default registry untouched. Engines sharing a
// registry share its collectors.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	queriesTotal, err := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shardset_queries_total",
			Help: "Total number of shardset queries",
		},
		[]string{"op", "status"}, // op: difference/union_dedup/union_many, status: success/error
	))
	if err != nil {
		return nil, err
	}
	queryDuration, err := register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shardset_query_duration_seconds",
			Help:    "Duration of shardset queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"op"},
	))
	if err != nil {
		return nil, err
	}
	phaseDuration, err := register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shardset_phase_duration_seconds",
			Help:    "Duration of query phases in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"phase"}, // split/work
	))
	if err != nil {
		return nil, err
	}
	linesSplit, err := register(reg, prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shardset_lines_split_total",
			Help: "Total number of input lines routed into shards",
		},
	))
	if err != nil {
		return nil, err
	}
	linesEmitted, err := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shardset_lines_emitted_total",
			Help: "Total number of lines written to query outputs",
		},
		[]string{"op"},
	))
	if err != nil {
		return nil, err
	}
	partitions, err := register(reg, prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shardset_partitions",
			Help: "Number of partitions used by the most recent query",
		},
	))
	if err != nil {
		return nil, err
	}

	return &metrics{
		queriesTotal:  queriesTotal,
		queryDuration: queryDuration,
		phaseDuration: phaseDuration,
		linesSplit:    linesSplit,
		linesEmitted:  linesEmitted,
		partitions:    partitions,
	}, nil
}

// register adds c to reg, returning the collector already registered under
// the same descriptor if there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, fmt.Errorf("register metrics: collector already registered with a different type: %w", err)
		}
		return c, fmt.Errorf("register metrics: %w", err)
	}
	return c, nil
}
