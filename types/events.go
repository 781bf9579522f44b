package types

import (
	"encoding/json"
	"fmt"
)

// Event is a single step in an agent's execution trace. Concrete kinds
// are discriminated by the "type" key on the wire; kinds this version
// does not know decode to UnknownEvent so newer gateways and agents
// stay interoperable.
type Event interface {
	EventType() string
}

// Events is an ordered event sequence. Insertion order is execution
// order and must survive a round trip unchanged.
type Events []Event

// Known event type discriminators.
const (
	EventTypeToolCall    = "tool_call"
	EventTypeReasoning   = "reasoning"
	EventTypeUserRequest = "user_request"
)

// ToolCallEvent records a tool invocation with its arguments and result.
type ToolCallEvent struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Result    interface{}            `json:"result,omitempty"`
}

func (ToolCallEvent) EventType() string { return EventTypeToolCall }

func (e ToolCallEvent) MarshalJSON() ([]byte, error) {
	type alias ToolCallEvent
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: e.EventType(), alias: alias(e)})
}

// ReasoningEvent records a model reasoning step.
type ReasoningEvent struct {
	Content string `json:"content"`
}

func (ReasoningEvent) EventType() string { return EventTypeReasoning }

func (e ReasoningEvent) MarshalJSON() ([]byte, error) {
	type alias ReasoningEvent
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: e.EventType(), alias: alias(e)})
}

// UserRequestEvent records the user's instruction to the agent.
type UserRequestEvent struct {
	Content string `json:"content"`
}

func (UserRequestEvent) EventType() string { return EventTypeUserRequest }

func (e UserRequestEvent) MarshalJSON() ([]byte, error) {
	type alias UserRequestEvent
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: e.EventType(), alias: alias(e)})
}

// UnknownEvent preserves an event of an unrecognized type. Fields hold
// every key except the discriminator so re-encoding reproduces the
// original object.
type UnknownEvent struct {
	Type   string
	Fields map[string]interface{}
}

func (e UnknownEvent) EventType() string { return e.Type }

func (e UnknownEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	if e.Type != "" {
		out["type"] = e.Type
	}
	return json.Marshal(out)
}

// DecodeEvent decodes one wire event into its concrete kind.
func DecodeEvent(raw json.RawMessage) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("event is not an object: %w", err)
	}

	switch head.Type {
	case EventTypeToolCall:
		var e ToolCallEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeReasoning:
		var e ReasoningEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeUserRequest:
		var e UserRequestEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		var fields map[string]interface{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		delete(fields, "type")
		return UnknownEvent{Type: head.Type, Fields: fields}, nil
	}
}

func (evs *Events) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Events, 0, len(raws))
	for i, raw := range raws {
		ev, err := DecodeEvent(raw)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		out = append(out, ev)
	}
	*evs = out
	return nil
}

// NewToolCall builds a tool_call event.
func NewToolCall(tool string, arguments map[string]interface{}, result interface{}) ToolCallEvent {
	return ToolCallEvent{Tool: tool, Arguments: arguments, Result: result}
}

// NewReasoning builds a reasoning event.
func NewReasoning(content string) ReasoningEvent {
	return ReasoningEvent{Content: content}
}

// NewUserRequest builds a user_request event.
func NewUserRequest(content string) UserRequestEvent {
	return UserRequestEvent{Content: content}
}
