package rag

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/knowflow/internal/metrics"
	"github.com/BaSui01/knowflow/types"
)

// OrchestratorConfig 编排器部署级配置。
// 请求级参数（TopK、阈值等）走 RequestOptions。
type OrchestratorConfig struct {
	// GraphHopLimit 图邻域查询的最大跳数
	GraphHopLimit int `json:"graph_hop_limit"`
	// WebMaxResults 网络搜索单次请求的最大条数
	WebMaxResults int `json:"web_max_results"`
	// SourceTimeout 单个数据源的调用超时
	SourceTimeout time.Duration `json:"source_timeout"`
}

// DefaultOrchestratorConfig 返回默认编排器配置。
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		GraphHopLimit: 2,
		WebMaxResults: 5,
		SourceTimeout: 15 * time.Second,
	}
}

// Orchestrator 检索编排器：并发扇出到各数据源并融合结果。
// 单个数据源失败只降级该来源，不影响其他来源；
// 所有启用来源全部失败时置 Degraded 标记，仍返回可用的空 bundle。
type Orchestrator struct {
	config     OrchestratorConfig
	enhancer   *QueryEnhancer
	recognizer *EntityRecognizer
	knowledge  KnowledgeSearcher
	graph      GraphStore
	web        WebSearcher

	collector *metrics.Collector
	logger    *zap.Logger
}

// NewOrchestrator 创建检索编排器。
// knowledge 为必需依赖；graph、web 按部署可选，
// 请求启用了缺失的来源时 Retrieve 返回配置错误。
func NewOrchestrator(
	config OrchestratorConfig,
	enhancer *QueryEnhancer,
	recognizer *EntityRecognizer,
	knowledge KnowledgeSearcher,
	graph GraphStore,
	web WebSearcher,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultOrchestratorConfig()
	if config.GraphHopLimit <= 0 {
		config.GraphHopLimit = def.GraphHopLimit
	}
	if config.WebMaxResults <= 0 {
		config.WebMaxResults = def.WebMaxResults
	}
	if config.SourceTimeout <= 0 {
		config.SourceTimeout = def.SourceTimeout
	}

	return &Orchestrator{
		config:     config,
		enhancer:   enhancer,
		recognizer: recognizer,
		knowledge:  knowledge,
		graph:      graph,
		web:        web,
		collector:  collector,
		logger:     logger.With(zap.String("component", "retrieval_orchestrator")),
	}
}

// Retrieve 执行一次完整的检索编排。
// 仅在请求与部署配置不一致时返回错误；
// 数据源故障体现为 bundle 的 Failures 与 Degraded，不产生错误。
func (o *Orchestrator) Retrieve(ctx context.Context, query Query) (*ReferenceBundle, error) {
	start := time.Now()
	opts := query.Options.normalized()

	if o.knowledge == nil {
		return nil, types.NewError(types.ErrConfiguration, "knowledge base searcher is not configured")
	}
	if opts.UseGraph && o.graph == nil {
		return nil, types.NewError(types.ErrConfiguration, "graph retrieval requested but no graph store is configured")
	}
	if opts.UseWeb && o.web == nil {
		return nil, types.NewError(types.ErrConfiguration, "web retrieval requested but no web searcher is configured")
	}

	bundle := newReferenceBundle(uuid.NewString())
	logger := o.logger.With(zap.String("request_id", bundle.RequestID))

	// 前置阶段：查询增强与实体识别并发执行。
	// 实体识别作用于原始查询，与增强结果无依赖。
	var enhanced EnhancedQuery
	var pre sync.WaitGroup
	pre.Add(1)
	go func() {
		defer pre.Done()
		if o.enhancer != nil {
			enhanced = o.enhancer.Enhance(ctx, query)
		} else {
			enhanced = EnhancedQuery{Text: query.Text}
		}
	}()
	if opts.UseGraph && o.recognizer != nil {
		bundle.Entities = o.recognizer.Recognize(ctx, query.Text)
	}
	pre.Wait()

	var mu sync.Mutex
	enabled := 0
	failed := 0
	recordFailure := func(source Source, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed++
		bundle.Failures = append(bundle.Failures, SourceFailure{
			Source:  source,
			Message: err.Error(),
		})
		logger.Warn("数据源检索失败",
			zap.String("source", string(source)),
			zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	// 知识库检索始终启用
	enabled++
	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, o.config.SourceTimeout)
		defer cancel()

		sourceStart := time.Now()
		raw, err := o.knowledge.Search(sctx, enhanced.Text, opts.KnowledgeBaseID, opts.MaxCandidateCount)
		o.recordSource(SourceKnowledgeBase, sourceStart, len(raw), err)
		if err != nil {
			recordFailure(SourceKnowledgeBase, err)
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		bundle.KnowledgeBase.AllResults = raw
		bundle.KnowledgeBase.Results = filterAndRank(raw, opts.DistanceThreshold, opts.RerankThreshold, opts.TopK)
		if enhanced.Rewritten {
			text := enhanced.Text
			bundle.KnowledgeBase.RewrittenQuery = &text
		}
		return nil
	})

	if opts.UseGraph {
		enabled++
		entities := bundle.Entities
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, o.config.SourceTimeout)
			defer cancel()

			sourceStart := time.Now()
			nodes, edges, err := o.queryGraph(sctx, entities)
			o.recordSource(SourceGraph, sourceStart, len(nodes)+len(edges), err)
			if err != nil {
				recordFailure(SourceGraph, err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			bundle.Graph.Nodes = nodes
			bundle.Graph.Edges = edges
			return nil
		})
	}

	if opts.UseWeb {
		enabled++
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, o.config.SourceTimeout)
			defer cancel()

			maxResults := o.config.WebMaxResults
			if opts.MaxCandidateCount < maxResults {
				maxResults = opts.MaxCandidateCount
			}

			sourceStart := time.Now()
			raw, err := o.web.Search(sctx, enhanced.Text, maxResults)
			o.recordSource(SourceWeb, sourceStart, len(raw), err)
			if err != nil {
				recordFailure(SourceWeb, err)
				return nil
			}

			bound := opts.TopK
			if opts.MaxCandidateCount < bound {
				bound = opts.MaxCandidateCount
			}

			mu.Lock()
			defer mu.Unlock()
			bundle.Web.Results = filterAndRank(raw, opts.DistanceThreshold, opts.RerankThreshold, bound)
			return nil
		})
	}

	// 各分支自行吞掉错误，这里不会返回非 nil
	_ = g.Wait()

	bundle.Degraded = enabled > 0 && failed == enabled

	if o.collector != nil {
		o.collector.RecordRetrieval(time.Since(start))
	}
	logger.Info("检索编排完成",
		zap.Int("kb_results", len(bundle.KnowledgeBase.Results)),
		zap.Int("graph_nodes", len(bundle.Graph.Nodes)),
		zap.Int("graph_edges", len(bundle.Graph.Edges)),
		zap.Int("web_results", len(bundle.Web.Results)),
		zap.Int("entities", len(bundle.Entities)),
		zap.Int("failures", failed),
		zap.Bool("degraded", bundle.Degraded),
		zap.Duration("duration", time.Since(start)))

	return bundle, nil
}

// queryGraph 逐实体查询邻域并合并，节点与边按元素 ID 去重。
// 没有实体时返回空子图，不访问图数据库。
func (o *Orchestrator) queryGraph(ctx context.Context, entities []Entity) ([]GraphNode, []GraphEdge, error) {
	nodes := []GraphNode{}
	edges := []GraphEdge{}
	if len(entities) == 0 {
		return nodes, edges, nil
	}

	seenNodes := make(map[string]bool)
	seenEdges := make(map[string]bool)
	var firstErr error
	succeeded := 0

	for _, entity := range entities {
		neighborhood, err := o.graph.Neighbors(ctx, entity.Name, o.config.GraphHopLimit)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded++
		for _, node := range neighborhood.Nodes {
			if seenNodes[node.ID] {
				continue
			}
			seenNodes[node.ID] = true
			nodes = append(nodes, node)
		}
		for _, edge := range neighborhood.Edges {
			if seenEdges[edge.ID] {
				continue
			}
			seenEdges[edge.ID] = true
			edges = append(edges, edge)
		}
	}

	// 部分实体失败不算来源失败，全部失败才降级
	if succeeded == 0 && firstErr != nil {
		return nil, nil, firstErr
	}
	return nodes, edges, nil
}

func (o *Orchestrator) recordSource(source Source, start time.Time, candidates int, err error) {
	if o.collector != nil {
		o.collector.RecordSourceRequest(string(source), time.Since(start), candidates, err)
	}
}
