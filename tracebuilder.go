package x402secure

import "github.com/vitwit/x402-secure/types"

// TraceBuilder accumulates agent execution events in order. Build
// snapshots the accumulated events without consuming them, so one
// builder can be inspected or built more than once. Not safe for
// concurrent use.
type TraceBuilder struct {
	events types.Events
}

// NewTraceBuilder returns a fresh, empty builder.
func NewTraceBuilder() *TraceBuilder {
	return &TraceBuilder{}
}

// AddEvent appends an event, preserving insertion order. No
// deduplication or shape validation happens here.
func (b *TraceBuilder) AddEvent(ev types.Event) *TraceBuilder {
	b.events = append(b.events, ev)
	return b
}

// AddToolCall appends a tool_call event.
func (b *TraceBuilder) AddToolCall(tool string, arguments map[string]interface{}, result interface{}) *TraceBuilder {
	return b.AddEvent(types.NewToolCall(tool, arguments, result))
}

// AddReasoning appends a reasoning event.
func (b *TraceBuilder) AddReasoning(content string) *TraceBuilder {
	return b.AddEvent(types.NewReasoning(content))
}

// AddUserRequest appends a user_request event.
func (b *TraceBuilder) AddUserRequest(content string) *TraceBuilder {
	return b.AddEvent(types.NewUserRequest(content))
}

// Len reports how many events have been added.
func (b *TraceBuilder) Len() int {
	return len(b.events)
}

// Events returns a copy of the accumulated events.
func (b *TraceBuilder) Events() types.Events {
	out := make(types.Events, len(b.events))
	copy(out, b.events)
	return out
}

// Build finalizes a trace from the accumulated events. The returned
// trace holds its own event slice; adding events afterwards does not
// mutate earlier snapshots.
func (b *TraceBuilder) Build(task string, modelConfig map[string]interface{}) *types.AgentTrace {
	return &types.AgentTrace{
		Task:        task,
		Events:      b.Events(),
		ModelConfig: modelConfig,
	}
}
