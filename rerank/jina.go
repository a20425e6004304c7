package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BaSui01/knowflow/internal/httputil"
	"go.uber.org/zap"
)

// JinaConfig 配置 Jina 重排序提供者。
type JinaConfig struct {
	BaseURL string        `json:"base_url"` // 完整的 rerank 端点 URL
	APIKey  string        `json:"api_key"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// JinaProvider implements reranking using a Jina-compatible rerank API.
type JinaProvider struct {
	cfg    JinaConfig
	client *http.Client
	logger *zap.Logger
}

// NewJinaProvider creates a new Jina reranker provider.
func NewJinaProvider(cfg JinaConfig, logger *zap.Logger) *JinaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.jina.ai/v1/rerank"
	}
	if cfg.Model == "" {
		cfg.Model = "jina-reranker-v2-base-multilingual"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &JinaProvider{
		cfg:    cfg,
		client: httputil.NewClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "reranker_jina")),
	}
}

// Name 返回提供者名称。
func (p *JinaProvider) Name() string { return "jina-rerank" }

type jinaRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
}

type jinaResponse struct {
	Model   string `json:"model"`
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank 按查询相关性对文本重新打分。
func (p *JinaProvider) Rerank(ctx context.Context, query string, documents []string) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(jinaRequest{
		Query:     query,
		Documents: documents,
		Model:     p.cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, p.client, httpReq, payload, httputil.DefaultRetryPolicy())
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var jResp jinaResponse
	if err := json.NewDecoder(resp.Body).Decode(&jResp); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]Result, len(jResp.Results))
	for i, r := range jResp.Results {
		score := r.RelevanceScore
		// 分数钳制到 [0,1]
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		results[i] = Result{Index: r.Index, RelevanceScore: score}
	}

	p.logger.Debug("documents reranked",
		zap.Int("documents", len(documents)),
		zap.Int("results", len(results)))

	return results, nil
}
