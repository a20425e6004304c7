package rag

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/knowflow/internal/metrics"
)

// EnhancedQuery 查询增强结果。
// Rewritten 为 false 时 Text 即原始查询。
type EnhancedQuery struct {
	Text      string
	Rewritten bool
}

// QueryEnhancer 查询增强器：按请求指定的模式改写查询。
// 增强是尽力而为的优化：LLM 失败、超时或返回空串都退回原始查询，
// 绝不因增强失败而中断检索。
type QueryEnhancer struct {
	provider CompletionProvider
	cache    *EnhancementCache
	model    string

	collector *metrics.Collector
	logger    *zap.Logger
}

// NewQueryEnhancer 创建查询增强器。cache、collector 可为 nil。
func NewQueryEnhancer(provider CompletionProvider, model string, cache *EnhancementCache, collector *metrics.Collector, logger *zap.Logger) *QueryEnhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryEnhancer{
		provider:  provider,
		cache:     cache,
		model:     model,
		collector: collector,
		logger:    logger.With(zap.String("component", "query_enhancer")),
	}
}

// Enhance 按 query.Options.RewriteMode 增强查询。
// 返回值永远可用：失败路径返回原始文本。
func (e *QueryEnhancer) Enhance(ctx context.Context, query Query) EnhancedQuery {
	original := EnhancedQuery{Text: query.Text}

	mode := query.Options.RewriteMode
	if mode == RewriteOff || mode == "" {
		return original
	}
	if e.provider == nil {
		e.logger.Warn("未配置 LLM provider，跳过查询增强", zap.String("mode", string(mode)))
		return original
	}

	var key string
	if e.cache != nil {
		key = cacheKey(mode, e.model, query.Text)
		if text, ok := e.cache.Get(ctx, key); ok {
			return EnhancedQuery{Text: text, Rewritten: true}
		}
	}

	var prompt string
	switch mode {
	case RewriteQuery:
		history := WindowByRounds(query.History, query.Options.HistoryRound)
		prompt = buildRewritePrompt(query.Text, history)
	case RewriteHyDE:
		prompt = buildHyDEPrompt(query.Text)
	default:
		e.logger.Warn("未知的改写模式", zap.String("mode", string(mode)))
		return original
	}

	reply, err := e.provider.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("查询增强失败，使用原始查询",
			zap.String("mode", string(mode)),
			zap.Error(err))
		e.record(mode, true)
		return original
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		e.logger.Warn("查询增强返回空结果，使用原始查询", zap.String("mode", string(mode)))
		e.record(mode, true)
		return original
	}

	if e.cache != nil {
		e.cache.Set(ctx, key, reply)
	}
	e.record(mode, false)

	e.logger.Debug("查询增强完成",
		zap.String("mode", string(mode)),
		zap.Int("original_len", len(query.Text)),
		zap.Int("enhanced_len", len(reply)))

	return EnhancedQuery{Text: reply, Rewritten: true}
}

func (e *QueryEnhancer) record(mode RewriteMode, failed bool) {
	if e.collector != nil {
		e.collector.RecordEnhancement(string(mode), failed)
	}
}
