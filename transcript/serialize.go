package transcript

import (
	"encoding/json"
	"fmt"
)

// eventEnvelope is the persisted wire form of an Event.
type eventEnvelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalEvent serializes an event with its kind discriminator.
func MarshalEvent(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.EventKind(), err)
	}
	return json.Marshal(eventEnvelope{Kind: ev.EventKind(), Payload: payload})
}

// UnmarshalEvent decodes a persisted event envelope into its concrete type.
// Nested subtask events are decoded recursively.
func UnmarshalEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	var ev Event
	switch env.Kind {
	case "model":
		ev = &ModelEvent{}
	case "tool":
		ev = &ToolEvent{}
	case "store":
		ev = &StoreEvent{}
	case "subtask":
		ev = &SubtaskEvent{}
	case "info":
		ev = &InfoEvent{}
	default:
		return nil, fmt.Errorf("unknown event kind %q", env.Kind)
	}

	if err := json.Unmarshal(env.Payload, ev); err != nil {
		return nil, fmt.Errorf("unmarshal %s event: %w", env.Kind, err)
	}

	return ev, nil
}

// MarshalJSON encodes nested subtask events as envelopes so the child
// transcript survives persistence.
func (e *SubtaskEvent) MarshalJSON() ([]byte, error) {
	nested := make([]json.RawMessage, 0, len(e.Events))
	for _, ev := range e.Events {
		raw, err := MarshalEvent(ev)
		if err != nil {
			return nil, err
		}
		nested = append(nested, raw)
	}

	type alias SubtaskEvent
	return json.Marshal(struct {
		*alias
		Events []json.RawMessage `json:"events,omitempty"`
	}{alias: (*alias)(e), Events: nested})
}

// UnmarshalJSON decodes nested subtask event envelopes.
func (e *SubtaskEvent) UnmarshalJSON(data []byte) error {
	type alias SubtaskEvent
	aux := struct {
		*alias
		Events []json.RawMessage `json:"events,omitempty"`
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	e.Events = make([]Event, 0, len(aux.Events))
	for _, raw := range aux.Events {
		ev, err := UnmarshalEvent(raw)
		if err != nil {
			return err
		}
		e.Events = append(e.Events, ev)
	}

	return nil
}
