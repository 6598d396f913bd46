package transcript

import (
	"sync"
	"time"
)

// Event is a closed set of transcript entries. Concrete event types implement
// the unexported isEvent marker.
type Event interface {
	isEvent()
	// EventKind returns the discriminator used for serialization.
	EventKind() string
}

// BaseEvent carries fields common to all transcript entries. Pending events
// have been recorded before their action finished; Completed is set when the
// action resolves.
type BaseEvent struct {
	Timestamp time.Time  `json:"timestamp"`
	Pending   bool       `json:"pending,omitempty"`
	Completed *time.Time `json:"completed,omitempty"`
}

func newBaseEvent(pending bool) BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC(), Pending: pending}
}

// Complete marks the event as finished.
func (b *BaseEvent) Complete() {
	now := time.Now().UTC()
	b.Pending = false
	b.Completed = &now
}

// ModelEvent records a single model generate call (input, configuration and
// eventual output or error). Cache is "read" when the output came from the
// generate cache and "write" when the result was stored into it.
type ModelEvent struct {
	BaseEvent
	Model      string  `json:"model"`
	Input      any     `json:"input"`
	Tools      any     `json:"tools,omitempty"`
	ToolChoice string  `json:"tool_choice,omitempty"`
	Config     any     `json:"config,omitempty"`
	Output     any     `json:"output,omitempty"`
	Error      string  `json:"error,omitempty"`
	Cache      string  `json:"cache,omitempty"`
	Working    float64 `json:"working_seconds,omitempty"`
}

func (*ModelEvent) isEvent() {}

// EventKind implements Event.
func (*ModelEvent) EventKind() string { return "model" }

// ToolEvent records a tool execution requested by the model.
type ToolEvent struct {
	BaseEvent
	CallID    string         `json:"call_id,omitempty"`
	Function  string         `json:"function"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Approval  string         `json:"approval,omitempty"`
}

func (*ToolEvent) isEvent() {}

// EventKind implements Event.
func (*ToolEvent) EventKind() string { return "tool" }

// StoreEvent records a batch of store mutations applied during a run.
type StoreEvent struct {
	BaseEvent
	Changes map[string]any `json:"changes"`
}

func (*StoreEvent) isEvent() {}

// EventKind implements Event.
func (*StoreEvent) EventKind() string { return "store" }

// SubtaskEvent records a nested unit of work executed against a forked store
// and an isolated transcript. Events holds the child transcript entries.
type SubtaskEvent struct {
	BaseEvent
	Name   string         `json:"name"`
	Input  map[string]any `json:"input,omitempty"`
	Result any            `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Events []Event        `json:"events,omitempty"`
}

func (*SubtaskEvent) isEvent() {}

// EventKind implements Event.
func (*SubtaskEvent) EventKind() string { return "subtask" }

// InfoEvent records arbitrary annotations (sample metadata, scorer notes).
type InfoEvent struct {
	BaseEvent
	Source string `json:"source,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func (*InfoEvent) isEvent() {}

// EventKind implements Event.
func (*InfoEvent) EventKind() string { return "info" }

// Transcript is an ordered, concurrency-safe list of events for one run (or
// one subtask). Events are recorded as pointers so callers can complete
// pending entries in place.
type Transcript struct {
	name   string
	mu     sync.RWMutex
	events []Event
}

// New creates an empty transcript with the given name.
func New(name string) *Transcript {
	return &Transcript{name: name}
}

// Name returns the transcript name (run or subtask identifier).
func (t *Transcript) Name() string { return t.name }

// Record appends an event. The pointer stays live so pending events can be
// completed after the fact.
func (t *Transcript) Record(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

// RecordModel appends a pending ModelEvent and returns it for completion.
func (t *Transcript) RecordModel(model string, input, tools any, toolChoice string, config any) *ModelEvent {
	ev := &ModelEvent{BaseEvent: newBaseEvent(true), Model: model, Input: input, Tools: tools, ToolChoice: toolChoice, Config: config}
	t.Record(ev)
	return ev
}

// RecordTool appends a pending ToolEvent and returns it for completion.
func (t *Transcript) RecordTool(callID, function string, args map[string]any) *ToolEvent {
	ev := &ToolEvent{BaseEvent: newBaseEvent(true), CallID: callID, Function: function, Arguments: args}
	t.Record(ev)
	return ev
}

// RecordSubtask appends a pending SubtaskEvent and returns it for completion.
func (t *Transcript) RecordSubtask(name string, input map[string]any) *SubtaskEvent {
	ev := &SubtaskEvent{BaseEvent: newBaseEvent(true), Name: name, Input: input}
	t.Record(ev)
	return ev
}

// RecordStore appends a StoreEvent for the given changes. Empty change sets
// are ignored.
func (t *Transcript) RecordStore(changes map[string]any) {
	if len(changes) == 0 {
		return
	}
	ev := &StoreEvent{BaseEvent: newBaseEvent(false), Changes: changes}
	ev.Complete()
	t.Record(ev)
}

// RecordInfo appends an InfoEvent.
func (t *Transcript) RecordInfo(source string, data any) {
	ev := &InfoEvent{BaseEvent: newBaseEvent(false), Source: source, Data: data}
	ev.Complete()
	t.Record(ev)
}

// Events returns a defensive copy of the event list.
func (t *Transcript) Events() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	events := make([]Event, len(t.events))
	copy(events, t.events)
	return events
}

// Len returns the number of recorded events.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// FindLastModelEvent returns the most recent ModelEvent, or nil.
func (t *Transcript) FindLastModelEvent() *ModelEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.events) - 1; i >= 0; i-- {
		if me, ok := t.events[i].(*ModelEvent); ok {
			return me
		}
	}
	return nil
}
