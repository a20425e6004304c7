package sources

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
	"golang.org/x/time/rate"

	"github.com/BaSui01/knowflow/internal/httputil"
	"github.com/BaSui01/knowflow/rag"
	"github.com/BaSui01/knowflow/types"
)

// TavilyConfig Tavily 网络搜索配置。
type TavilyConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	// SearchDepth 可选 basic / advanced
	SearchDepth string `json:"search_depth,omitempty"`
	// RateLimitPerMinute 客户端侧限流，0 表示不限流
	RateLimitPerMinute int `json:"rate_limit_per_minute,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

// TavilySearcher 基于 Tavily Search API 的网络搜索适配器。
type TavilySearcher struct {
	cfg     TavilyConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewTavilySearcher 创建 Tavily 搜索适配器。
func NewTavilySearcher(cfg TavilyConfig, logger *zap.Logger) *TavilySearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = "basic"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60.0), cfg.RateLimitPerMinute)
	}

	return &TavilySearcher{
		cfg:     cfg,
		client:  httputil.NewClient(cfg.Timeout),
		limiter: limiter,
		logger:  logger.With(zap.String("component", "web_search_tavily")),
	}
}

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search 执行一次网络搜索。
func (s *TavilySearcher) Search(ctx context.Context, query string, maxResults int) ([]rag.Candidate, error) {
	if strings.TrimSpace(query) == "" || maxResults <= 0 {
		return []rag.Candidate{}, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrTimeout, "web search rate limit wait").
				WithSource("web").WithCause(err)
		}
	}

	body, err := json.Marshal(tavilyRequest{
		Query:       query,
		SearchDepth: s.cfg.SearchDepth,
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "marshal tavily request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "create tavily request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := httputil.DoWithRetry(ctx, s.client, req, body, httputil.DefaultRetryPolicy())
	if err != nil {
		return nil, types.NewError(types.ErrSourceUnavailable, "tavily request failed").
			WithSource("web").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "read tavily response").
			WithSource("web").WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("tavily request failed: status=%d body=%s", resp.StatusCode, string(respBody))).
			WithSource("web").WithRetryable(resp.StatusCode >= 500)
	}

	var decoded tavilyResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "decode tavily response").
			WithSource("web").WithCause(err)
	}

	candidates := make([]rag.Candidate, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		score := r.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		candidates = append(candidates, rag.Candidate{
			Source: rag.SourceWeb,
			Text:   r.Content,
			Score:  score,
			Metadata: map[string]any{
				"title": r.Title,
				"url":   r.URL,
			},
			OriginID: r.URL,
		})
	}

	s.logger.Debug("网络搜索完成",
		zap.Int("requested", maxResults),
		zap.Int("returned", len(candidates)))
	return candidates, nil
}
