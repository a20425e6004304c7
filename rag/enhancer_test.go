package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/knowflow/types"
)

func TestQueryEnhancer(t *testing.T) {
	t.Parallel()

	query := func(mode RewriteMode) Query {
		opts := DefaultRequestOptions()
		opts.RewriteMode = mode
		return Query{Text: "What is Milvus?", Options: opts}
	}

	t.Run("off 模式直接返回原始查询", func(t *testing.T) {
		t.Parallel()
		provider := &stubCompletion{reply: "should not be called"}
		e := NewQueryEnhancer(provider, "test-model", nil, nil, zap.NewNop())

		got := e.Enhance(context.Background(), query(RewriteOff))
		assert.Equal(t, "What is Milvus?", got.Text)
		assert.False(t, got.Rewritten)
		assert.Empty(t, provider.prompts)
	})

	t.Run("rewrite 模式使用 LLM 回复", func(t *testing.T) {
		t.Parallel()
		provider := &stubCompletion{reply: "Milvus vector database introduction"}
		e := NewQueryEnhancer(provider, "test-model", nil, nil, zap.NewNop())

		got := e.Enhance(context.Background(), query(RewriteQuery))
		assert.Equal(t, "Milvus vector database introduction", got.Text)
		assert.True(t, got.Rewritten)
	})

	t.Run("rewrite 提示词只包含用户轮历史", func(t *testing.T) {
		t.Parallel()
		provider := &stubCompletion{reply: "rewritten"}
		e := NewQueryEnhancer(provider, "test-model", nil, nil, zap.NewNop())

		q := query(RewriteQuery)
		q.History = []types.Message{
			types.UserMessage("tell me about databases"),
			types.AssistantMessage("assistant turn content"),
		}
		e.Enhance(context.Background(), q)

		require.Len(t, provider.prompts, 1)
		assert.Contains(t, provider.prompts[0], "tell me about databases")
		assert.NotContains(t, provider.prompts[0], "assistant turn content")
	})

	t.Run("hypothetical 模式生成假设回答", func(t *testing.T) {
		t.Parallel()
		provider := &stubCompletion{reply: "Milvus is an open-source vector database..."}
		e := NewQueryEnhancer(provider, "test-model", nil, nil, zap.NewNop())

		got := e.Enhance(context.Background(), query(RewriteHyDE))
		assert.True(t, got.Rewritten)
		assert.Equal(t, "Milvus is an open-source vector database...", got.Text)
		require.Len(t, provider.prompts, 1)
		assert.Contains(t, provider.prompts[0], "write a passage")
	})

	t.Run("LLM 失败时退回原始查询", func(t *testing.T) {
		t.Parallel()
		provider := &stubCompletion{err: errors.New("upstream 500")}
		e := NewQueryEnhancer(provider, "test-model", nil, nil, zap.NewNop())

		got := e.Enhance(context.Background(), query(RewriteQuery))
		assert.Equal(t, "What is Milvus?", got.Text)
		assert.False(t, got.Rewritten)
	})

	t.Run("LLM 超时退回原始查询", func(t *testing.T) {
		t.Parallel()
		e := NewQueryEnhancer(blockingCompletion{}, "test-model", nil, nil, zap.NewNop())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		got := e.Enhance(ctx, query(RewriteQuery))
		assert.Equal(t, "What is Milvus?", got.Text)
		assert.False(t, got.Rewritten)
	})

	t.Run("空回复退回原始查询", func(t *testing.T) {
		t.Parallel()
		provider := &stubCompletion{reply: "   "}
		e := NewQueryEnhancer(provider, "test-model", nil, nil, zap.NewNop())

		got := e.Enhance(context.Background(), query(RewriteHyDE))
		assert.False(t, got.Rewritten)
	})

	t.Run("未配置 provider 时跳过增强", func(t *testing.T) {
		t.Parallel()
		e := NewQueryEnhancer(nil, "test-model", nil, nil, zap.NewNop())

		got := e.Enhance(context.Background(), query(RewriteQuery))
		assert.Equal(t, "What is Milvus?", got.Text)
		assert.False(t, got.Rewritten)
	})

	t.Run("缓存命中不再调用 LLM", func(t *testing.T) {
		t.Parallel()
		provider := &stubCompletion{reply: "rewritten once"}
		cache := NewEnhancementCache(time.Minute, nil, nil, zap.NewNop())
		e := NewQueryEnhancer(provider, "test-model", cache, nil, zap.NewNop())

		first := e.Enhance(context.Background(), query(RewriteQuery))
		second := e.Enhance(context.Background(), query(RewriteQuery))

		assert.Equal(t, first.Text, second.Text)
		assert.True(t, second.Rewritten)
		assert.Len(t, provider.prompts, 1)
	})
}
