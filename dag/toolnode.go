package dag

import (
	"context"

	"github.com/arrowlane/dagrun/dag/tool"
)

// ToolNode adapts a tool.Tool into a NodeFunc, so a node that performs
// external I/O (an HTTP call, a subprocess, anything satisfying
// tool.Tool) runs under the same retry policy as any other node (spec
// §4.3): a transient failure from Call is just another error the
// NodeDescriptor's Attempts/Delay/Retryable/UseDefault fields govern.
//
// kwargs["input"], if present, is passed through to the tool verbatim as
// its input map; everything else is ignored. The tool's output map is
// returned as the node's result.
func ToolNode(t tool.Tool) NodeFunc {
	return func(ctx context.Context, kwargs map[string]any) (any, error) {
		input, _ := kwargs["input"].(map[string]any)
		return t.Call(ctx, input)
	}
}
