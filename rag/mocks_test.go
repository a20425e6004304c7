package rag

import (
	"context"
	"sync"
)

// stubCompletion 返回固定回复或固定错误的补全桩。
type stubCompletion struct {
	reply string
	err   error

	mu      sync.Mutex
	prompts []string
}

func (s *stubCompletion) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

// blockingCompletion 阻塞到 ctx 取消为止，模拟 LLM 超时。
type blockingCompletion struct{}

func (blockingCompletion) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// stubKnowledge 固定候选或固定错误的知识库桩。
type stubKnowledge struct {
	candidates []Candidate
	err        error

	mu      sync.Mutex
	queries []string
}

func (s *stubKnowledge) Search(_ context.Context, query, _ string, _ int) ([]Candidate, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

// stubGraph 记录查询实体的图桩。
type stubGraph struct {
	neighborhoods map[string]GraphNeighborhood
	err           error

	mu       sync.Mutex
	entities []string
}

func (s *stubGraph) Neighbors(_ context.Context, entityName string, _ int) (GraphNeighborhood, error) {
	s.mu.Lock()
	s.entities = append(s.entities, entityName)
	s.mu.Unlock()
	if s.err != nil {
		return GraphNeighborhood{}, s.err
	}
	return s.neighborhoods[entityName], nil
}

// stubWeb 固定候选或固定错误的网络搜索桩。
type stubWeb struct {
	candidates []Candidate
	err        error

	mu         sync.Mutex
	queries    []string
	maxResults []int
}

func (s *stubWeb) Search(_ context.Context, query string, maxResults int) ([]Candidate, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.maxResults = append(s.maxResults, maxResults)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

func floatPtr(v float64) *float64 { return &v }
