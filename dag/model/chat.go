// Package model provides the LLM chat adapters a TagModelCall node calls
// into, adapted from the teacher's graph/model package.
package model

import "context"

// ChatModel abstracts a chat-completion provider so node callables aren't
// tied to one vendor's SDK.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in a conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call, in JSON-Schema form.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is a completion's result: text, tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall

	// Model names the provider model that produced this output, used by
	// CostTracker to look up pricing.
	Model string
	// InputTokens and OutputTokens report usage when the provider returns
	// it, so CostTracker can attribute spend without a second call.
	InputTokens  int
	OutputTokens int
}

// ToolCall is one invocation the model requested.
type ToolCall struct {
	Name  string
	Input map[string]any
}
