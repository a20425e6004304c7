package rag

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// 带参考资料的问答模板
const knowledgeQATemplate = `Please use the retrieved information to answer the question. When answering, avoid excessive use of bullet points.

<Reference Material>:
%s
</Reference Material>

<Question>
%s
</Question>
`

// Citation 引用条目：对应最终上下文中实际使用的一条候选。
type Citation struct {
	Source   Source  `json:"source"`
	OriginID string  `json:"origin_id"`
	Score    float64 `json:"score"`
	URL      string  `json:"url,omitempty"`
}

// AssembledContext 上下文组装结果。
type AssembledContext struct {
	// Prompt 最终送往 LLM 的完整问答提示词。
	// bundle 为空时即原始查询，不套模板。
	Prompt string `json:"prompt"`
	// Citations 进入上下文的候选引用，按段顺序排列
	Citations []Citation `json:"citations"`
	// Tokens 组装后提示词的 token 数
	Tokens int `json:"tokens"`
	// Truncated 为 true 表示预算不足，有候选被丢弃
	Truncated bool `json:"truncated,omitempty"`
}

// AssemblerConfig 上下文组装器配置
type AssemblerConfig struct {
	// MaxTokens 参考资料部分的 token 预算，0 表示不限制
	MaxTokens int `json:"max_tokens"`
}

// DefaultAssemblerConfig 返回默认组装器配置。
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{MaxTokens: 4096}
}

// ContextAssembler 将 ReferenceBundle 渲染为带参考资料的问答提示词。
// 渲染顺序固定：知识库、图、网络搜索。
// 超出 token 预算时从分数最低的候选开始丢弃，图结果最后丢弃。
type ContextAssembler struct {
	config    AssemblerConfig
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewContextAssembler 创建上下文组装器。tokenizer 为 nil 时用估算计数。
func NewContextAssembler(config AssemblerConfig, tokenizer Tokenizer, logger *zap.Logger) *ContextAssembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokenizer == nil {
		tokenizer = EstimateCounter{}
	}
	return &ContextAssembler{
		config:    config,
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("component", "context_assembler")),
	}
}

// Assemble 组装最终提示词。
// bundle 为空（含 Degraded）时直接返回原始查询，退回模型自身知识。
func (a *ContextAssembler) Assemble(query string, bundle *ReferenceBundle) AssembledContext {
	if bundle == nil || bundle.Empty() {
		return AssembledContext{
			Prompt: query,
			Tokens: a.tokenizer.CountTokens(query),
		}
	}

	kb := bundle.KnowledgeBase.Results
	web := bundle.Web.Results
	truncated := false

	// 预算控制：丢弃分数最低的候选直到图+候选段总量进入预算。
	// 图结果条目小且结构化，不参与丢弃。
	if a.config.MaxTokens > 0 {
		for a.sectionTokens(kb, bundle.Graph, web) > a.config.MaxTokens && len(kb)+len(web) > 0 {
			kb, web = dropLowest(kb, web)
			truncated = true
		}
	}

	var parts []string
	var citations []Citation

	if len(kb) > 0 {
		lines := make([]string, 0, len(kb))
		for _, c := range kb {
			lines = append(lines, fmt.Sprintf("%s: %s", c.OriginID, c.Text))
			citations = append(citations, Citation{
				Source:   SourceKnowledgeBase,
				OriginID: c.OriginID,
				Score:    c.sortKey(),
			})
		}
		parts = append(parts, "Knowledge base information:", strings.Join(lines, "\n"))
	}

	if len(bundle.Graph.Nodes) > 0 {
		lines := make([]string, 0, len(bundle.Graph.Edges))
		for _, edge := range bundle.Graph.Edges {
			lines = append(lines, fmt.Sprintf("%s and %s are connected by %s",
				edge.SourceName, edge.TargetName, edge.Type))
		}
		parts = append(parts, "Graph database information:", strings.Join(lines, "\n"))
	}

	if len(web) > 0 {
		lines := make([]string, 0, len(web))
		for _, c := range web {
			title, _ := c.Metadata["title"].(string)
			lines = append(lines, fmt.Sprintf("%s: %s", title, c.Text))
			url, _ := c.Metadata["url"].(string)
			citations = append(citations, Citation{
				Source:   SourceWeb,
				OriginID: c.OriginID,
				Score:    c.sortKey(),
				URL:      url,
			})
		}
		parts = append(parts, "Web search information:", strings.Join(lines, "\n"))
	}

	if len(parts) == 0 {
		// 预算把候选全部挤掉，且图为空
		return AssembledContext{
			Prompt:    query,
			Tokens:    a.tokenizer.CountTokens(query),
			Truncated: truncated,
		}
	}

	prompt := fmt.Sprintf(knowledgeQATemplate, strings.Join(parts, "\n\n"), query)
	tokens := a.tokenizer.CountTokens(prompt)

	if truncated {
		a.logger.Debug("参考资料超出预算，已截断",
			zap.String("request_id", bundle.RequestID),
			zap.Int("tokens", tokens))
	}

	return AssembledContext{
		Prompt:    prompt,
		Citations: citations,
		Tokens:    tokens,
		Truncated: truncated,
	}
}

// sectionTokens 估算参考资料各段的 token 总量。
func (a *ContextAssembler) sectionTokens(kb []Candidate, graph GraphSection, web []Candidate) int {
	total := 0
	for _, c := range kb {
		total += a.tokenizer.CountTokens(c.Text)
	}
	for _, edge := range graph.Edges {
		total += a.tokenizer.CountTokens(edge.SourceName + edge.TargetName + edge.Type)
	}
	for _, c := range web {
		total += a.tokenizer.CountTokens(c.Text)
	}
	return total
}

// dropLowest 在知识库与网络两段中丢掉分数最低的一条。
func dropLowest(kb, web []Candidate) ([]Candidate, []Candidate) {
	lowestKB, lowestWeb := -1, -1
	for i, c := range kb {
		if lowestKB < 0 || c.sortKey() < kb[lowestKB].sortKey() {
			lowestKB = i
		}
	}
	for i, c := range web {
		if lowestWeb < 0 || c.sortKey() < web[lowestWeb].sortKey() {
			lowestWeb = i
		}
	}

	switch {
	case lowestKB < 0:
		return kb, removeAt(web, lowestWeb)
	case lowestWeb < 0:
		return removeAt(kb, lowestKB), web
	case web[lowestWeb].sortKey() <= kb[lowestKB].sortKey():
		return kb, removeAt(web, lowestWeb)
	default:
		return removeAt(kb, lowestKB), web
	}
}

func removeAt(candidates []Candidate, index int) []Candidate {
	out := make([]Candidate, 0, len(candidates)-1)
	out = append(out, candidates[:index]...)
	return append(out, candidates[index+1:]...)
}

// SortCitations 按分数降序排列引用，分数相同保持原顺序。
func SortCitations(citations []Citation) {
	sort.SliceStable(citations, func(i, j int) bool {
		return citations[i].Score > citations[j].Score
	})
}
