package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsSourceRequests(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector("knowflow", reg)

	c.RecordSourceRequest("knowledge_base", 120*time.Millisecond, 7, nil)
	c.RecordSourceRequest("web", 10*time.Millisecond, 0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sourceRequestsTotal.WithLabelValues("knowledge_base")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sourceRequestsTotal.WithLabelValues("web")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sourceErrorsTotal.WithLabelValues("web")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.sourceErrorsTotal.WithLabelValues("knowledge_base")))
}

func TestCollectorRecordsEnhancementAndCache(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector("knowflow", reg)

	c.RecordEnhancement("rewrite", false)
	c.RecordEnhancement("hypothetical", true)
	c.RecordCacheHit("enhancement")
	c.RecordCacheMiss("enhancement")
	c.RecordCacheMiss("enhancement")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.enhancementsTotal.WithLabelValues("rewrite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.enhancementFailure.WithLabelValues("hypothetical")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.enhancementFailure.WithLabelValues("rewrite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("enhancement")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheMisses.WithLabelValues("enhancement")))
}

func TestCollectorSeparateRegistries(t *testing.T) {
	t.Parallel()

	// 两个独立注册表下创建收集器不应 panic（promauto 重复注册会 panic）
	require.NotPanics(t, func() {
		NewCollector("knowflow", prometheus.NewRegistry())
		NewCollector("knowflow", prometheus.NewRegistry())
	})
}
