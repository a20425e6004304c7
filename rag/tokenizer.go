package rag

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer 计量文本的 token 数，用于上下文预算控制。
type Tokenizer interface {
	CountTokens(text string) int
}

// TiktokenCounter 基于 tiktoken BPE 编码的精确计数器。
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter 按模型名创建计数器。
// 编码数据需要联网下载，离线环境请使用 EstimateCounter。
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

func (t *TiktokenCounter) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// EstimateCounter 离线估算计数器：按 4 字节 1 token 估算。
// 对英文偏保守，对中文偏乐观，预算控制场景下足够。
type EstimateCounter struct{}

func (EstimateCounter) CountTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}

// NewTokenizer 优先创建精确计数器，失败时降级到估算。
func NewTokenizer(model string) Tokenizer {
	if counter, err := NewTiktokenCounter(model); err == nil {
		return counter
	}
	return EstimateCounter{}
}
