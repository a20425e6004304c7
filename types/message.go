package types

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 对话中的一条消息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage 创建 system 消息
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage 创建 user 消息
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage 创建 assistant 消息
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
