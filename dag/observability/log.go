package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// LogFormat selects LogHooks' rendering.
type LogFormat int

const (
	// LogText renders one human-readable line per event.
	LogText LogFormat = iota
	// LogJSON renders one JSON object per event.
	LogJSON
)

// LogHooks writes events to an io.Writer, adapted from the teacher's
// LogEmitter (graph/emit/log.go).
type LogHooks struct {
	mu     sync.Mutex
	w      io.Writer
	format LogFormat
}

// NewLogHooks returns a LogHooks writing to w in the given format.
func NewLogHooks(w io.Writer, format LogFormat) *LogHooks {
	return &LogHooks{w: w, format: format}
}

// Emit implements Hooks.
func (h *LogHooks) Emit(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.format == LogJSON {
		payload := map[string]any{
			"pipeline_id": e.PipelineID,
			"node_id":     e.NodeID,
			"kind":        string(e.Kind),
			"at":          e.At,
		}
		if e.Err != nil {
			payload["err"] = e.Err.Error()
		}
		for k, v := range e.Meta {
			payload[k] = v
		}
		enc, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(h.w, "dag: failed to marshal event: %v\n", err)
			return
		}
		fmt.Fprintln(h.w, string(enc))
		return
	}

	if e.Err != nil {
		fmt.Fprintf(h.w, "[%s] %s node=%s err=%v\n", e.At.Format("15:04:05.000"), e.Kind, e.NodeID, e.Err)
		return
	}
	fmt.Fprintf(h.w, "[%s] %s node=%s\n", e.At.Format("15:04:05.000"), e.Kind, e.NodeID)
}
