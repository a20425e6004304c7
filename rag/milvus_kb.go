package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/knowflow/internal/httputil"
	"github.com/BaSui01/knowflow/rerank"
	"github.com/BaSui01/knowflow/types"
)

// MilvusKnowledgeConfig Milvus 知识库适配器配置。
type MilvusKnowledgeConfig struct {
	BaseURL  string `json:"base_url"`
	Token    string `json:"token,omitempty"` // Zilliz Cloud 使用
	Database string `json:"database,omitempty"`

	// Schema 字段名
	ContentField string `json:"content_field,omitempty"`
	VectorField  string `json:"vector_field,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

// MilvusKnowledgeSearcher 基于 Milvus REST API(v2) 的知识库检索适配器。
// 知识库 ID 直接映射为 Milvus collection 名。
// 配置重排序 provider 后，初次召回的候选会附带 RerankScore。
type MilvusKnowledgeSearcher struct {
	cfg      MilvusKnowledgeConfig
	baseURL  string
	client   *http.Client
	embedder Embedder
	reranker rerank.Provider
	logger   *zap.Logger
}

// NewMilvusKnowledgeSearcher 创建 Milvus 知识库适配器。
// reranker 可为 nil，此时候选不带重排序分数。
func NewMilvusKnowledgeSearcher(cfg MilvusKnowledgeConfig, embedder Embedder, reranker rerank.Provider, logger *zap.Logger) *MilvusKnowledgeSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.ContentField == "" {
		cfg.ContentField = "text"
	}
	if cfg.VectorField == "" {
		cfg.VectorField = "vector"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &MilvusKnowledgeSearcher{
		cfg:      cfg,
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:   httputil.NewClient(cfg.Timeout),
		embedder: embedder,
		reranker: reranker,
		logger:   logger.With(zap.String("component", "milvus_knowledge")),
	}
}

// Search 向量化查询后在指定 collection 内召回。
func (s *MilvusKnowledgeSearcher) Search(ctx context.Context, query, knowledgeBaseID string, limit int) ([]Candidate, error) {
	if strings.TrimSpace(knowledgeBaseID) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "knowledge base id is required").WithSource(string(SourceKnowledgeBase))
	}
	if limit <= 0 {
		return []Candidate{}, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "embed query").
			WithSource(string(SourceKnowledgeBase)).WithCause(err).WithRetryable(true)
	}

	req := map[string]any{
		"dbName":         s.cfg.Database,
		"collectionName": knowledgeBaseID,
		"data":           [][]float32{vector},
		"annsField":      s.cfg.VectorField,
		"limit":          limit,
		"outputFields":   []string{s.cfg.ContentField},
	}

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    [][]struct {
			ID       any            `json:"id"`
			Distance float64        `json:"distance"`
			Entity   map[string]any `json:"entity"`
		} `json:"data"`
	}

	if err := s.doJSON(ctx, "/v2/vectordb/entities/search", req, &resp); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0)
	if len(resp.Data) > 0 {
		for _, hit := range resp.Data[0] {
			text := ""
			if hit.Entity != nil {
				text, _ = hit.Entity[s.cfg.ContentField].(string)
			}
			candidates = append(candidates, Candidate{
				Source:   SourceKnowledgeBase,
				Text:     text,
				Score:    clampScore(hit.Distance),
				Metadata: hit.Entity,
				OriginID: fmt.Sprintf("%v", hit.ID),
			})
		}
	}

	if s.reranker != nil && len(candidates) > 0 {
		candidates = s.applyRerank(ctx, query, candidates)
	}

	s.logger.Debug("知识库召回完成",
		zap.String("collection", knowledgeBaseID),
		zap.Int("count", len(candidates)))
	return candidates, nil
}

// applyRerank 对召回结果执行重排序，填充 RerankScore。
// 重排序失败不影响召回结果，仅记录日志。
func (s *MilvusKnowledgeSearcher) applyRerank(ctx context.Context, query string, candidates []Candidate) []Candidate {
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}

	results, err := s.reranker.Rerank(ctx, query, docs)
	if err != nil {
		s.logger.Warn("重排序失败，保留原始召回分数", zap.Error(err))
		return candidates
	}

	scores := rerank.Scores(results, len(candidates))
	for i := range candidates {
		score := scores[i]
		candidates[i].RerankScore = &score
	}
	return candidates
}

func (s *MilvusKnowledgeSearcher) doJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return types.NewError(types.ErrInvalidRequest, "marshal milvus request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return types.NewError(types.ErrInvalidRequest, "create milvus request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, s.client, req, body, httputil.DefaultRetryPolicy())
	if err != nil {
		return types.NewError(types.ErrSourceUnavailable, "milvus request failed").
			WithSource(string(SourceKnowledgeBase)).WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewError(types.ErrUpstreamError, "read milvus response").
			WithSource(string(SourceKnowledgeBase)).WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("milvus request failed: status=%d body=%s", resp.StatusCode, string(respBody))).
			WithSource(string(SourceKnowledgeBase)).WithRetryable(resp.StatusCode >= 500)
	}

	// Milvus REST API 错误时仍可能返回 200，需要检查响应体的 code
	var baseResp struct {
		Code    int    `json:"code"`
		Message string `json:"message,omitempty"`
	}
	if err := json.Unmarshal(respBody, &baseResp); err == nil && baseResp.Code != 0 {
		return types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("milvus error: code=%d message=%s", baseResp.Code, baseResp.Message)).
			WithSource(string(SourceKnowledgeBase))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return types.NewError(types.ErrUpstreamError, "decode milvus response").
				WithSource(string(SourceKnowledgeBase)).WithCause(err)
		}
	}
	return nil
}

// clampScore 将相似度分数钳制到 [0,1]。
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
