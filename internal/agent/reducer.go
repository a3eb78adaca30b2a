package agent

import (
	"strings"

	"proctor/internal/models"
)

// StreamEventKind tags a lifecycle event variant coming off an agent's
// execution stream.
type StreamEventKind string

const (
	// EventToolStart marks a real tool execution beginning.
	EventToolStart StreamEventKind = "tool_start"
	// EventModelStream carries one streamed content chunk.
	EventModelStream StreamEventKind = "model_stream"
	// EventChainEnd closes a graph node; routing decisions surface their
	// tool calls here without a matching tool_start.
	EventChainEnd StreamEventKind = "chain_end"
)

// StreamEvent is one tagged lifecycle event. Exactly the fields relevant to
// its kind are set; unknown kinds are preserved in the trace and otherwise
// ignored.
type StreamEvent struct {
	Kind StreamEventKind

	// Name and Args describe a tool call (tool_start, or chain_end routing).
	Name string
	Args map[string]any

	// Chunk is a streamed content fragment (model_stream).
	Chunk string

	// Streamed marks chunks intended for the end user; internal model
	// traffic streams too but never reaches the reply.
	Streamed bool

	// RoutingCalls are tool calls surfaced by a closing node (chain_end).
	RoutingCalls []models.ToolCall

	// FinalContent is the terminal message carried by the closing node, used
	// when nothing was streamed.
	FinalContent string
}

// Reduction is the normalized view of one event stream.
type Reduction struct {
	Content   string
	ToolCalls []models.ToolCall
	Trace     []models.TraceEvent
}

// Reduce folds an event stream into content and a deduplicated tool-call
// list. A tool observed through both its execution and a routing decision
// counts once, keeping its first-occurrence position and the arguments seen
// most recently. Streamed content wins; the terminal message is the
// fallback when nothing streamed.
func Reduce(events []StreamEvent) Reduction {
	var red Reduction
	var streamed strings.Builder
	var finalContent string

	seen := map[string]int{}
	record := func(name string, args map[string]any) {
		if name == "" {
			return
		}
		if i, ok := seen[name]; ok {
			if args != nil {
				red.ToolCalls[i].Arguments = args
			}
			return
		}
		seen[name] = len(red.ToolCalls)
		red.ToolCalls = append(red.ToolCalls, models.ToolCall{Name: name, Arguments: args})
	}

	for _, ev := range events {
		red.Trace = append(red.Trace, models.TraceEvent{Kind: traceKind(ev.Kind), Name: ev.Name})

		switch ev.Kind {
		case EventToolStart:
			record(ev.Name, ev.Args)
		case EventModelStream:
			if ev.Streamed {
				streamed.WriteString(ev.Chunk)
			}
		case EventChainEnd:
			for _, tc := range ev.RoutingCalls {
				record(tc.Name, tc.Arguments)
			}
			if ev.FinalContent != "" {
				finalContent = ev.FinalContent
			}
		}
	}

	red.Content = streamed.String()
	if red.Content == "" {
		red.Content = finalContent
	}
	return red
}

func traceKind(k StreamEventKind) models.TraceEventKind {
	switch k {
	case EventToolStart:
		return models.TraceToolStart
	case EventModelStream:
		return models.TraceModelStream
	case EventChainEnd:
		return models.TraceChainEnd
	default:
		return models.TraceEventKind(k)
	}
}
