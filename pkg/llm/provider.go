// Package llm provides the language-model capability used by extraction and
// observation tools.
//
// Tools only need one operation: answer an instruction over page content.
// The openai subpackage implements it against any OpenAI-compatible API.
package llm

import "context"

// Message is one chat message.
type Message struct {
	Role    string
	Content string
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemMessage returns a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Provider completes chat conversations.
type Provider interface {
	// Complete sends messages and returns the assistant's reply.
	Complete(ctx context.Context, messages []Message) (string, error)

	// GetModel returns the model name being used.
	GetModel() string
}
