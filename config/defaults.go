// =============================================================================
// 📦 Knowflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LLM:       DefaultLLMConfig(),
		Milvus:    DefaultMilvusConfig(),
		Neo4j:     DefaultNeo4jConfig(),
		Web:       DefaultWebSearchConfig(),
		Rerank:    DefaultRerankConfig(),
		Redis:     DefaultRedisConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Log:       DefaultLogConfig(),
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		Timeout:     30 * time.Second,
	}
}

// DefaultMilvusConfig 返回默认 Milvus 配置
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		BaseURL: "http://localhost:19530",
		Timeout: 10 * time.Second,
	}
}

// DefaultNeo4jConfig 返回默认 Neo4j 配置
func DefaultNeo4jConfig() Neo4jConfig {
	return Neo4jConfig{
		BaseURL:  "http://localhost:7474",
		Database: "neo4j",
		Username: "neo4j",
		Timeout:  10 * time.Second,
	}
}

// DefaultWebSearchConfig 返回默认网络搜索配置
func DefaultWebSearchConfig() WebSearchConfig {
	return WebSearchConfig{
		Enabled:            false,
		BaseURL:            "https://api.tavily.com",
		SearchDepth:        "basic",
		Timeout:            15 * time.Second,
		RateLimitPerMinute: 30,
	}
}

// DefaultRerankConfig 返回默认重排序配置
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		Enabled: false,
		BaseURL: "https://api.jina.ai/v1/rerank",
		Model:   "jina-reranker-v2-base-multilingual",
		Timeout: 15 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled: false,
		Addr:    "localhost:6379",
		TTL:     30 * time.Minute,
	}
}

// DefaultRetrievalConfig 返回默认检索参数
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:              10,
		DistanceThreshold: 0.5,
		RerankThreshold:   0.1,
		MaxCandidateCount: 20,
		WebMaxResults:     5,
		GraphHopLimit:     2,
		GraphResultLimit:  100,
		SourceTimeout:     15 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		EnableCaller: false,
	}
}
