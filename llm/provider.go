// Package llm 提供查询增强和实体识别所依赖的语言模型补全客户端。
// 实现基于 OpenAI 兼容的 chat-completions 端点，
// 可通过 BaseURL 指向任何兼容服务（DeepSeek、Qwen、vLLM 等）。
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig 配置 OpenAI 兼容补全客户端。
type OpenAIConfig struct {
	APIKey      string        `json:"api_key"`
	BaseURL     string        `json:"base_url,omitempty"` // 兼容端点，空值使用官方 API
	Model       string        `json:"model"`
	Temperature float32       `json:"temperature"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// DefaultOpenAIConfig 返回合理默认值。
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:       openai.GPT4oMini,
		Temperature: 0.3,
		Timeout:     30 * time.Second,
	}
}

// chatClient 抽象 go-openai 客户端，便于测试替换。
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider 基于 chat-completions 的单轮补全客户端。
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client chatClient
	logger *zap.Logger
}

// NewOpenAIProvider 创建补全客户端。
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
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

	return &OpenAIProvider{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger.With(zap.String("component", "llm_openai")),
	}
}

// Complete 对单个 prompt 生成补全。
// 发起一次非流式 chat-completions 调用并返回首个 choice 的文本。
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	p.logger.Debug("completion finished",
		zap.String("model", p.cfg.Model),
		zap.Int("prompt_len", len(prompt)),
		zap.Duration("duration", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}
