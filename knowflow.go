// Package knowflow provides a top-level convenience entry point for building
// the full retrieval pipeline from configuration with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/knowflow"
//
//	cfg, _ := config.NewLoader().WithConfigPath("config.yaml").Load()
//	engine, err := knowflow.New(cfg)
//	bundle, err := engine.Retrieve(ctx, query)
//	prompt := engine.Assemble(query.Text, bundle)
//
// This is a thin wrapper that wires the LLM provider, source adapters, cache
// and metrics together; each component can also be constructed directly.
package knowflow

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/knowflow/config"
	"github.com/BaSui01/knowflow/internal/metrics"
	"github.com/BaSui01/knowflow/llm"
	"github.com/BaSui01/knowflow/rag"
	"github.com/BaSui01/knowflow/rag/sources"
	"github.com/BaSui01/knowflow/rerank"
	"github.com/BaSui01/knowflow/types"
)

// Engine 检索引擎：编排器与上下文组装器的组合入口。
type Engine struct {
	orchestrator *rag.Orchestrator
	assembler    *rag.ContextAssembler
	logger       *zap.Logger
}

// Option 自定义 Engine 的装配行为。
type Option func(*options)

type options struct {
	logger    *zap.Logger
	registry  prometheus.Registerer
	tokenizer rag.Tokenizer
	embedder  rag.Embedder
}

// WithLogger 指定 zap logger，默认按 Log 配置构建。
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistry 指定 Prometheus 注册表，默认使用全局注册表。
func WithRegistry(registry prometheus.Registerer) Option {
	return func(o *options) { o.registry = registry }
}

// WithTokenizer 指定 token 计数器，默认按 LLM 模型名创建。
func WithTokenizer(tokenizer rag.Tokenizer) Option {
	return func(o *options) { o.tokenizer = tokenizer }
}

// WithEmbedder 替换默认的 OpenAI 兼容向量化客户端。
func WithEmbedder(embedder rag.Embedder) Option {
	return func(o *options) { o.embedder = embedder }
}

// New 按配置装配完整的检索引擎。
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, types.NewError(types.ErrConfiguration, "config is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = config.NewLogger(cfg.Log)
		if err != nil {
			return nil, types.NewError(types.ErrConfiguration, "build logger").WithCause(err)
		}
	}

	collector := metrics.NewCollector("knowflow", o.registry)

	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	embedder := o.embedder
	if embedder == nil {
		embedder = llm.NewOpenAIEmbedder(llm.EmbedderConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLM.Timeout,
		}, logger)
	}

	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	cache := rag.NewEnhancementCache(cfg.Redis.TTL, rdb, collector, logger)

	var reranker rerank.Provider
	if cfg.Rerank.Enabled {
		reranker = rerank.NewJinaProvider(rerank.JinaConfig{
			BaseURL: cfg.Rerank.BaseURL,
			APIKey:  cfg.Rerank.APIKey,
			Model:   cfg.Rerank.Model,
			Timeout: cfg.Rerank.Timeout,
		}, logger)
	}

	knowledge := rag.NewMilvusKnowledgeSearcher(rag.MilvusKnowledgeConfig{
		BaseURL:  cfg.Milvus.BaseURL,
		Token:    cfg.Milvus.Token,
		Database: cfg.Milvus.Database,
		Timeout:  cfg.Milvus.Timeout,
	}, embedder, reranker, logger)

	graph := rag.NewNeo4jGraphStore(rag.Neo4jGraphConfig{
		BaseURL:     cfg.Neo4j.BaseURL,
		Database:    cfg.Neo4j.Database,
		Username:    cfg.Neo4j.Username,
		Password:    cfg.Neo4j.Password,
		ResultLimit: cfg.Retrieval.GraphResultLimit,
		Timeout:     cfg.Neo4j.Timeout,
	}, logger)

	var web rag.WebSearcher
	if cfg.Web.Enabled {
		web = sources.NewTavilySearcher(sources.TavilyConfig{
			APIKey:             cfg.Web.APIKey,
			BaseURL:            cfg.Web.BaseURL,
			SearchDepth:        cfg.Web.SearchDepth,
			RateLimitPerMinute: cfg.Web.RateLimitPerMinute,
			Timeout:            cfg.Web.Timeout,
		}, logger)
	}

	enhancer := rag.NewQueryEnhancer(provider, cfg.LLM.Model, cache, collector, logger)
	recognizer := rag.NewEntityRecognizer(provider, logger)

	orchestrator := rag.NewOrchestrator(rag.OrchestratorConfig{
		GraphHopLimit: cfg.Retrieval.GraphHopLimit,
		WebMaxResults: cfg.Retrieval.WebMaxResults,
		SourceTimeout: cfg.Retrieval.SourceTimeout,
	}, enhancer, recognizer, knowledge, graph, web, collector, logger)

	tokenizer := o.tokenizer
	if tokenizer == nil {
		tokenizer = rag.NewTokenizer(cfg.LLM.Model)
	}
	assembler := rag.NewContextAssembler(rag.DefaultAssemblerConfig(), tokenizer, logger)

	return &Engine{
		orchestrator: orchestrator,
		assembler:    assembler,
		logger:       logger,
	}, nil
}

// Retrieve 执行检索编排。请求未显式设置的参数取配置默认值。
func (e *Engine) Retrieve(ctx context.Context, query rag.Query) (*rag.ReferenceBundle, error) {
	return e.orchestrator.Retrieve(ctx, query)
}

// Assemble 将检索结果组装为最终提示词。
func (e *Engine) Assemble(query string, bundle *rag.ReferenceBundle) rag.AssembledContext {
	return e.assembler.Assemble(query, bundle)
}

// RequestOptionsFromConfig 把部署配置的检索默认值转换为请求选项。
func RequestOptionsFromConfig(cfg config.RetrievalConfig) rag.RequestOptions {
	opts := rag.DefaultRequestOptions()
	if cfg.TopK > 0 {
		opts.TopK = cfg.TopK
	}
	if cfg.DistanceThreshold > 0 {
		opts.DistanceThreshold = cfg.DistanceThreshold
	}
	if cfg.RerankThreshold > 0 {
		opts.RerankThreshold = cfg.RerankThreshold
	}
	if cfg.MaxCandidateCount > 0 {
		opts.MaxCandidateCount = cfg.MaxCandidateCount
	}
	return opts
}
