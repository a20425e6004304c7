// Package rerank 提供统一的重排序提供者接口和 HTTP 实现。
// 重排序分数由交叉编码器模型计算，归一化到 [0,1]，
// 由知识库适配器在初始向量召回之后调用。
package rerank

import "context"

// Result 单条文档的重排序结果。
type Result struct {
	Index          int     `json:"index"`           // Original index in input
	RelevanceScore float64 `json:"relevance_score"` // 0-1 normalized score
}

// Provider 重排序提供者接口。
type Provider interface {
	// Rerank 按查询相关性对文本重新打分，返回结果按 RelevanceScore 降序。
	Rerank(ctx context.Context, query string, documents []string) ([]Result, error)

	// Name 返回提供者名称。
	Name() string
}

// Scores 将 Rerank 结果展开为与输入文本对齐的分数切片。
// 结果中缺失的下标得分为 0。
func Scores(results []Result, docCount int) []float64 {
	scores := make([]float64, docCount)
	for _, r := range results {
		if r.Index >= 0 && r.Index < docCount {
			scores[r.Index] = r.RelevanceScore
		}
	}
	return scores
}
