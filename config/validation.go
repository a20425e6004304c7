package config

import "fmt"

// ValidateRetrieval 校验检索参数的取值范围。
// 作为 Loader.WithValidator 的标准验证器使用。
func ValidateRetrieval(cfg *Config) error {
	r := cfg.Retrieval

	if r.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", r.TopK)
	}
	if r.MaxCandidateCount <= 0 {
		return fmt.Errorf("retrieval.max_candidate_count must be positive, got %d", r.MaxCandidateCount)
	}
	if r.DistanceThreshold < 0 || r.DistanceThreshold > 1 {
		return fmt.Errorf("retrieval.distance_threshold must be in [0,1], got %v", r.DistanceThreshold)
	}
	if r.RerankThreshold < 0 || r.RerankThreshold > 1 {
		return fmt.Errorf("retrieval.rerank_threshold must be in [0,1], got %v", r.RerankThreshold)
	}
	if r.GraphHopLimit <= 0 {
		return fmt.Errorf("retrieval.graph_hop_limit must be positive, got %d", r.GraphHopLimit)
	}
	if r.SourceTimeout <= 0 {
		return fmt.Errorf("retrieval.source_timeout must be positive, got %v", r.SourceTimeout)
	}
	return nil
}

// ValidateWeb 校验网络搜索配置。启用时必须提供 API Key。
func ValidateWeb(cfg *Config) error {
	if cfg.Web.Enabled && cfg.Web.APIKey == "" {
		return fmt.Errorf("web.api_key is required when web search is enabled")
	}
	return nil
}

// ValidateRerank 校验重排序配置。启用时必须提供 API Key。
func ValidateRerank(cfg *Config) error {
	if cfg.Rerank.Enabled && cfg.Rerank.APIKey == "" {
		return fmt.Errorf("rerank.api_key is required when reranking is enabled")
	}
	return nil
}
