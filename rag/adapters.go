package rag

import "context"

// KnowledgeSearcher 知识库向量检索适配器。
// 实现方负责向量化与初始召回，返回的候选 Score 需归一化到 [0,1]；
// 若底层启用了重排序，同时填充 RerankScore。
type KnowledgeSearcher interface {
	// Search 在指定知识库内检索，limit 为最大返回条数。
	Search(ctx context.Context, query, knowledgeBaseID string, limit int) ([]Candidate, error)
}

// GraphStore 图数据库适配器。
type GraphStore interface {
	// Neighbors 返回以 entityName 为中心、hopLimit 跳以内的邻域子图。
	// 实体不存在时返回空邻域而非错误。
	Neighbors(ctx context.Context, entityName string, hopLimit int) (GraphNeighborhood, error)
}

// WebSearcher 网络搜索适配器。
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Candidate, error)
}

// CompletionProvider LLM 补全接口，查询增强与实体识别共用。
// 单轮 prompt-in / text-out，不携带对话状态。
type CompletionProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder 文本向量化接口，知识库适配器依赖。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
