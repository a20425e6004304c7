package rag

import (
	"fmt"
	"strings"

	"github.com/BaSui01/knowflow/types"
)

// 查询改写提示词：结合历史对话改写问题以提高召回质量
const queryRewritePrompt = `You are an assistant helping with query rewriting. Based on the previous conversation and the latest question, rewrite multiple relevant questions to match reference materials from the knowledge base.

<Historical Information>%s</Historical Information>
<Question>%s</Question>
`

// HyDE 提示词：生成假设性回答作为检索文本
const hydePrompt = `Please write a passage to answer the question.
Include as many important details as possible.

%s

Passage:
`

// 实体识别提示词：要求以 <-> 连接关键词输出
const entityExtractionPrompt = `You are an assistant that extracts keywords for knowledge graph queries. From the input text, identify meaningful keywords for retrieval.

Return the keywords joined with <->. For example: keyword1<->keyword2<->keyword3
Do not translate keywords; keep their original language.
<Text>%s</Text>
`

// buildRewritePrompt 构造改写提示词。
// 历史只取用户轮：助手回复会把改写带偏。
func buildRewritePrompt(query string, history []types.Message) string {
	var sb strings.Builder
	for _, msg := range history {
		if msg.Role != types.RoleUser {
			continue
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return fmt.Sprintf(queryRewritePrompt, sb.String(), query)
}

func buildHyDEPrompt(query string) string {
	return fmt.Sprintf(hydePrompt, query)
}

func buildEntityPrompt(query string) string {
	return fmt.Sprintf(entityExtractionPrompt, query)
}
