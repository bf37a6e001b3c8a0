package dag

import (
	"context"

	"github.com/arrowlane/dagrun/dag/model"
)

// ChatModelNode adapts a model.ChatModel into a NodeFunc. Pair it with
// NodeDescriptor.Tags including TagModelCall so Engine.Run attributes the
// call's token usage to a configured CostTracker (spec §9 design notes;
// SPEC_FULL.md DOMAIN STACK).
//
// kwargs["messages"] ([]model.Message) supplies the conversation turns;
// kwargs["tools"] ([]model.ToolSpec), if present, is forwarded as the
// tools the model may call.
func ChatModelNode(m model.ChatModel) NodeFunc {
	return func(ctx context.Context, kwargs map[string]any) (any, error) {
		messages, _ := kwargs["messages"].([]model.Message)
		tools, _ := kwargs["tools"].([]model.ToolSpec)
		return m.Chat(ctx, messages, tools)
	}
}
