package knowflow

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/knowflow/config"
	"github.com/BaSui01/knowflow/rag"
	"github.com/BaSui01/knowflow/types"
)

func TestNewEngine(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	engine, err := New(cfg,
		WithLogger(zap.NewNop()),
		WithRegistry(prometheus.NewRegistry()),
		WithTokenizer(rag.EstimateCounter{}),
	)
	require.NoError(t, err)
	require.NotNil(t, engine)

	// 空 bundle 组装退回原始查询
	got := engine.Assemble("plain question", nil)
	assert.Equal(t, "plain question", got.Prompt)
}

func TestNewEngineNilConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrConfiguration))
}

func TestNewEngineWebDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Web.Enabled = false
	engine, err := New(cfg,
		WithLogger(zap.NewNop()),
		WithRegistry(prometheus.NewRegistry()),
		WithTokenizer(rag.EstimateCounter{}),
	)
	require.NoError(t, err)

	// 未启用网络搜索时请求 UseWeb 返回配置错误
	opts := rag.DefaultRequestOptions()
	opts.UseWeb = true
	_, err = engine.Retrieve(context.Background(), rag.Query{Text: "q", Options: opts})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrConfiguration))
}

func TestRequestOptionsFromConfig(t *testing.T) {
	t.Parallel()

	opts := RequestOptionsFromConfig(config.RetrievalConfig{
		TopK:              7,
		DistanceThreshold: 0.6,
		RerankThreshold:   0.2,
		MaxCandidateCount: 15,
	})
	assert.Equal(t, 7, opts.TopK)
	assert.Equal(t, 0.6, opts.DistanceThreshold)
	assert.Equal(t, 0.2, opts.RerankThreshold)
	assert.Equal(t, 15, opts.MaxCandidateCount)

	// 零值取默认
	def := RequestOptionsFromConfig(config.RetrievalConfig{})
	assert.Equal(t, rag.DefaultRequestOptions(), def)
}
