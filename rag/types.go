package rag

import (
	"github.com/BaSui01/knowflow/types"
)

// Source 标识候选结果的来源数据源。
// 来源集合是封闭的：调用方必须穷尽处理全部三种来源。
type Source string

const (
	SourceKnowledgeBase Source = "knowledge_base"
	SourceGraph         Source = "graph"
	SourceWeb           Source = "web"
)

// RewriteMode 查询改写模式
type RewriteMode string

const (
	// RewriteOff 不改写，直接使用原始查询
	RewriteOff RewriteMode = "off"
	// RewriteQuery 用 LLM 结合对话历史改写查询
	RewriteQuery RewriteMode = "rewrite"
	// RewriteHyDE 用 LLM 生成假设性回答作为检索文本（HyDE）
	RewriteHyDE RewriteMode = "hypothetical"
)

// RequestOptions 单次检索请求的配置。
// 以显式不可变值传入 Retrieve，而非读取全局状态，
// 使并发请求可以携带不同配置并保证测试确定性。
type RequestOptions struct {
	UseGraph          bool        `json:"use_graph"`
	UseWeb            bool        `json:"use_web"`
	KnowledgeBaseID   string      `json:"knowledge_base_id,omitempty"`
	RewriteMode       RewriteMode `json:"rewrite_mode"`
	TopK              int         `json:"top_k"`
	DistanceThreshold float64     `json:"distance_threshold"` // [0,1]
	RerankThreshold   float64     `json:"rerank_threshold"`   // [0,1]
	MaxCandidateCount int         `json:"max_candidate_count"`
	HistoryRound      int         `json:"history_round"` // 0 表示不限制
}

// DefaultRequestOptions 返回默认请求配置。
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{
		RewriteMode:       RewriteOff,
		TopK:              10,
		DistanceThreshold: 0.5,
		RerankThreshold:   0.1,
		MaxCandidateCount: 20,
	}
}

// normalized 补齐非法或缺省的数值项。
func (o RequestOptions) normalized() RequestOptions {
	def := DefaultRequestOptions()
	if o.TopK <= 0 {
		o.TopK = def.TopK
	}
	if o.MaxCandidateCount <= 0 {
		o.MaxCandidateCount = def.MaxCandidateCount
	}
	if o.RewriteMode == "" {
		o.RewriteMode = RewriteOff
	}
	return o
}

// Query 一次检索请求的不可变输入。
type Query struct {
	Text    string          `json:"text"`
	History []types.Message `json:"history,omitempty"`
	Options RequestOptions  `json:"options"`
}

// Candidate 单条检索结果。
// Score 归一化到 [0,1]，1.0 为最佳匹配；
// RerankScore 存在时排序优先使用。
type Candidate struct {
	Source      Source         `json:"source"`
	Text        string         `json:"text"`
	Score       float64        `json:"score"`
	RerankScore *float64       `json:"rerank_score,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	OriginID    string         `json:"origin_id"`
}

// sortKey 返回排序用分数：重排序分数优先。
func (c Candidate) sortKey() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.Score
}

// Entity 从查询中识别出的实体。仅用于图查询的种子，不做持久化。
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// GraphNode 图数据库节点
type GraphNode struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

// GraphEdge 图数据库边
type GraphEdge struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	SourceID   string `json:"source_id"`
	TargetID   string `json:"target_id"`
	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`
}

// GraphNeighborhood 单个实体的邻域查询结果
type GraphNeighborhood struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// KnowledgeBaseSection 知识库检索结果段。
// RewrittenQuery 记录实际用于检索的改写文本；改写关闭或失败时为 nil。
// AllResults 保留过滤前的完整召回，供调试与审计。
type KnowledgeBaseSection struct {
	Results        []Candidate `json:"results"`
	AllResults     []Candidate `json:"all_results,omitempty"`
	RewrittenQuery *string     `json:"rewritten_query,omitempty"`
}

// GraphSection 图检索结果段
type GraphSection struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// WebSection 网络搜索结果段
type WebSection struct {
	Results []Candidate `json:"results"`
}

// SourceFailure 记录单个数据源的降级原因，仅用于日志与调试，
// 不会透出给最终用户。
type SourceFailure struct {
	Source  Source `json:"source"`
	Message string `json:"message"`
}

// ReferenceBundle 检索编排器的输出：全部来源的融合结果。
// 每个请求构造一个新实例，交给上下文组装器后不再修改。
// 三个来源段始终存在；被禁用或失败的来源为空切片而非 nil，
// 消费方无需判空分支。
type ReferenceBundle struct {
	RequestID     string               `json:"request_id"`
	Entities      []Entity             `json:"entities"`
	KnowledgeBase KnowledgeBaseSection `json:"knowledge_base"`
	Graph         GraphSection         `json:"graph"`
	Web           WebSection           `json:"web"`
	Failures      []SourceFailure      `json:"failures,omitempty"`

	// Degraded 为 true 表示所有启用的数据源均调用失败。
	// 这是降级信号而非错误：bundle 仍然可用，只是没有外部上下文。
	Degraded bool `json:"degraded,omitempty"`
}

// newReferenceBundle 构造所有段均为空切片的 bundle。
func newReferenceBundle(requestID string) *ReferenceBundle {
	return &ReferenceBundle{
		RequestID:     requestID,
		Entities:      []Entity{},
		KnowledgeBase: KnowledgeBaseSection{Results: []Candidate{}, AllResults: []Candidate{}},
		Graph:         GraphSection{Nodes: []GraphNode{}, Edges: []GraphEdge{}},
		Web:           WebSection{Results: []Candidate{}},
	}
}

// Empty 报告是否没有任何来源产出候选。
// 空 bundle 是合法状态：上下文组装器会退回模型自身知识。
func (b *ReferenceBundle) Empty() bool {
	return len(b.KnowledgeBase.Results) == 0 &&
		len(b.Graph.Nodes) == 0 &&
		len(b.Web.Results) == 0
}
