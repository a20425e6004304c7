// Package metrics provides internal metrics collection for the retrieval engine.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 检索指标收集器
type Collector struct {
	// 数据源指标
	sourceRequestsTotal   *prometheus.CounterVec
	sourceRequestDuration *prometheus.HistogramVec
	sourceErrorsTotal     *prometheus.CounterVec
	sourceCandidates      *prometheus.HistogramVec

	// 查询增强指标
	enhancementsTotal  *prometheus.CounterVec
	enhancementFailure *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 端到端检索指标
	retrievalsTotal   prometheus.Counter
	retrievalDuration prometheus.Histogram
}

// NewCollector 创建指标收集器并注册到 reg。
// reg 为 nil 时使用默认注册表。
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{}

	c.sourceRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of source adapter calls",
		},
		[]string{"source"},
	)

	c.sourceRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Source adapter call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	c.sourceErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Total number of failed or timed-out source adapter calls",
		},
		[]string{"source"},
	)

	c.sourceCandidates = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_candidates",
			Help:      "Candidates returned per source call after filtering",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		},
		[]string{"source"},
	)

	c.enhancementsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enhancements_total",
			Help:      "Total number of query enhancement calls",
		},
		[]string{"mode"},
	)

	c.enhancementFailure = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enhancement_failures_total",
			Help:      "Query enhancement calls that failed open to the original query",
		},
		[]string{"mode"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits",
		},
		[]string{"cache"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses",
		},
		[]string{"cache"},
	)

	c.retrievalsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Total number of retrieval requests",
		},
	)

	c.retrievalDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end retrieval duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	return c
}

// RecordSourceRequest 记录一次数据源调用
func (c *Collector) RecordSourceRequest(source string, duration time.Duration, candidates int, err error) {
	c.sourceRequestsTotal.WithLabelValues(source).Inc()
	c.sourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		c.sourceErrorsTotal.WithLabelValues(source).Inc()
		return
	}
	c.sourceCandidates.WithLabelValues(source).Observe(float64(candidates))
}

// RecordEnhancement 记录一次查询增强调用
func (c *Collector) RecordEnhancement(mode string, failed bool) {
	c.enhancementsTotal.WithLabelValues(mode).Inc()
	if failed {
		c.enhancementFailure.WithLabelValues(mode).Inc()
	}
}

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cache string) {
	c.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cache string) {
	c.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordRetrieval 记录一次端到端检索
func (c *Collector) RecordRetrieval(duration time.Duration) {
	c.retrievalsTotal.Inc()
	c.retrievalDuration.Observe(duration.Seconds())
}
