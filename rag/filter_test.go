package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFilterAndRank(t *testing.T) {
	t.Parallel()

	candidates := func(scores ...float64) []Candidate {
		out := make([]Candidate, len(scores))
		for i, s := range scores {
			out[i] = Candidate{Source: SourceKnowledgeBase, Score: s}
		}
		return out
	}

	t.Run("按阈值过滤后取 top-k", func(t *testing.T) {
		t.Parallel()
		got := filterAndRank(candidates(0.9, 0.7, 0.6, 0.4, 0.2), 0.5, 0.1, 3)
		require.Len(t, got, 3)
		assert.Equal(t, 0.9, got[0].Score)
		assert.Equal(t, 0.7, got[1].Score)
		assert.Equal(t, 0.6, got[2].Score)
	})

	t.Run("全部低于阈值返回空", func(t *testing.T) {
		t.Parallel()
		got := filterAndRank(candidates(0.3, 0.2), 0.5, 0.1, 10)
		assert.Empty(t, got)
	})

	t.Run("重排序分数优先排序", func(t *testing.T) {
		t.Parallel()
		input := []Candidate{
			{Score: 0.9, RerankScore: floatPtr(0.2)},
			{Score: 0.6, RerankScore: floatPtr(0.8)},
		}
		got := filterAndRank(input, 0.5, 0.1, 10)
		require.Len(t, got, 2)
		assert.Equal(t, 0.6, got[0].Score)
	})

	t.Run("低于重排序阈值的候选剔除", func(t *testing.T) {
		t.Parallel()
		input := []Candidate{
			{Score: 0.9, RerankScore: floatPtr(0.05)},
			{Score: 0.8},
		}
		got := filterAndRank(input, 0.5, 0.1, 10)
		require.Len(t, got, 1)
		assert.Equal(t, 0.8, got[0].Score)
	})

	t.Run("无重排序分数不受重排序阈值影响", func(t *testing.T) {
		t.Parallel()
		got := filterAndRank(candidates(0.6), 0.5, 0.99, 10)
		assert.Len(t, got, 1)
	})

	t.Run("同分保持输入顺序", func(t *testing.T) {
		t.Parallel()
		input := []Candidate{
			{Score: 0.8, OriginID: "a"},
			{Score: 0.8, OriginID: "b"},
			{Score: 0.8, OriginID: "c"},
		}
		got := filterAndRank(input, 0.5, 0.1, 10)
		require.Len(t, got, 3)
		assert.Equal(t, "a", got[0].OriginID)
		assert.Equal(t, "b", got[1].OriginID)
		assert.Equal(t, "c", got[2].OriginID)
	})

	t.Run("空输入返回空", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, filterAndRank(nil, 0.5, 0.1, 10))
	})
}

func TestFilterAndRankProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(t, "n")
		input := make([]Candidate, n)
		for i := range input {
			input[i] = Candidate{Score: rapid.Float64Range(0, 1).Draw(t, "score")}
			if rapid.Bool().Draw(t, "hasRerank") {
				input[i].RerankScore = floatPtr(rapid.Float64Range(0, 1).Draw(t, "rerank"))
			}
		}
		distThreshold := rapid.Float64Range(0, 1).Draw(t, "dist")
		rerankThreshold := rapid.Float64Range(0, 1).Draw(t, "rth")
		topK := rapid.IntRange(1, 20).Draw(t, "topK")

		got := filterAndRank(input, distThreshold, rerankThreshold, topK)

		if len(got) > topK {
			t.Fatalf("result exceeds topK: %d > %d", len(got), topK)
		}
		for i, c := range got {
			if c.Score < distThreshold {
				t.Fatalf("candidate %d below distance threshold", i)
			}
			if c.RerankScore != nil && *c.RerankScore < rerankThreshold {
				t.Fatalf("candidate %d below rerank threshold", i)
			}
			if i > 0 && got[i-1].sortKey() < c.sortKey() {
				t.Fatalf("result not sorted at %d", i)
			}
		}

		// 幂等性:对结果再过滤一次不产生变化
		again := filterAndRank(got, distThreshold, rerankThreshold, topK)
		if len(again) != len(got) {
			t.Fatalf("filter is not idempotent: %d != %d", len(again), len(got))
		}
	})
}
