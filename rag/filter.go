package rag

import "sort"

// filterAndRank 对单个来源的候选执行过滤、排序、截断。
// 过滤规则：
//  1. Score 低于 distanceThreshold 的候选丢弃；
//  2. 携带 RerankScore 且低于 rerankThreshold 的候选丢弃，
//     未经过重排序的候选不受该阈值影响。
//
// 排序按重排序分数优先、相似度分数兜底，降序稳定排序：
// 分数相同的候选保持来源返回顺序，保证结果确定性。
func filterAndRank(candidates []Candidate, distanceThreshold, rerankThreshold float64, topK int) []Candidate {
	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < distanceThreshold {
			continue
		}
		if c.RerankScore != nil && *c.RerankScore < rerankThreshold {
			continue
		}
		filtered = append(filtered, c)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].sortKey() > filtered[j].sortKey()
	})

	if topK > 0 && len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered
}
