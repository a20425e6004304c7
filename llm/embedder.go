package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// EmbedderConfig 配置 OpenAI 兼容向量化客户端。
type EmbedderConfig struct {
	APIKey  string        `json:"api_key"`
	BaseURL string        `json:"base_url,omitempty"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// DefaultEmbedderConfig 返回合理默认值。
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		Model:   string(openai.SmallEmbedding3),
		Timeout: 30 * time.Second,
	}
}

// embeddingClient 抽象 go-openai 客户端，便于测试替换。
type embeddingClient interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder 基于 embeddings 端点的向量化客户端。
type OpenAIEmbedder struct {
	cfg    EmbedderConfig
	client embeddingClient
	logger *zap.Logger
}

// NewOpenAIEmbedder 创建向量化客户端。
func NewOpenAIEmbedder(cfg EmbedderConfig, logger *zap.Logger) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger.With(zap.String("component", "llm_embedder")),
	}
}

// Embed 将文本向量化。
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.cfg.Model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embeddings response contained no data")
	}

	return resp.Data[0].Embedding, nil
}
