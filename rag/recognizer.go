package rag

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// EntityRecognizer 从查询文本中识别实体，作为图检索的种子。
// 始终作用于原始查询：改写后的文本可能丢失或变形原文实体。
type EntityRecognizer struct {
	provider CompletionProvider
	logger   *zap.Logger
}

// NewEntityRecognizer 创建实体识别器。
func NewEntityRecognizer(provider CompletionProvider, logger *zap.Logger) *EntityRecognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityRecognizer{
		provider: provider,
		logger:   logger.With(zap.String("component", "entity_recognizer")),
	}
}

// Recognize 识别查询中的实体，保持出现顺序并去重。
// 识别不到实体返回空切片，这是合法结果而非错误；
// LLM 失败时退回大写词启发式，保证图检索仍有种子可用。
func (r *EntityRecognizer) Recognize(ctx context.Context, query string) []Entity {
	if strings.TrimSpace(query) == "" {
		return []Entity{}
	}
	if r.provider == nil {
		return heuristicEntities(query)
	}

	reply, err := r.provider.Complete(ctx, buildEntityPrompt(query))
	if err != nil {
		r.logger.Warn("实体识别失败，退回启发式提取", zap.Error(err))
		return heuristicEntities(query)
	}

	entities := parseEntityReply(reply)
	r.logger.Debug("实体识别完成", zap.Int("count", len(entities)))
	return entities
}

// parseEntityReply 解析 LLM 回复：优先按 <-> 分隔，兼容逗号分隔。
func parseEntityReply(reply string) []Entity {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return []Entity{}
	}

	var parts []string
	if strings.Contains(reply, "<->") {
		parts = strings.Split(reply, "<->")
	} else {
		parts = strings.FieldsFunc(reply, func(r rune) bool {
			return r == ',' || r == '，'
		})
	}

	seen := make(map[string]bool, len(parts))
	entities := make([]Entity, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		entities = append(entities, Entity{Name: name})
	}
	return entities
}

// heuristicEntities 降级方案：提取首字母大写的词。
func heuristicEntities(query string) []Entity {
	seen := make(map[string]bool)
	var entities []Entity
	for _, word := range strings.Fields(query) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if word == "" || seen[word] {
			continue
		}
		runes := []rune(word)
		if !unicode.IsUpper(runes[0]) {
			continue
		}
		seen[word] = true
		entities = append(entities, Entity{Name: word})
	}
	if entities == nil {
		return []Entity{}
	}
	return entities
}
