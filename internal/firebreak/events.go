package firebreak

// EventType identifies one observable step of an analysis run.
type EventType string

const (
	EventToolCallIssued EventType = "tool_call_issued"
	EventToolResult     EventType = "tool_result_received"
	EventReflection     EventType = "reflection_text"
	EventCompleted      EventType = "completed"
	EventErrored        EventType = "errored"
)

// Event is one step of an analysis run, emitted for observability and UI
// consumption. Emission never changes loop semantics.
type Event struct {
	Type    EventType       `json:"type"`
	Tool    string          `json:"tool,omitempty"`
	CallID  string          `json:"call_id,omitempty"`
	Message string          `json:"message,omitempty"`
	Result  *AnalysisResult `json:"result,omitempty"`
}

// EmitFunc receives run events. A nil EmitFunc disables emission.
type EmitFunc func(Event)

func (f EmitFunc) emit(ev Event) {
	if f != nil {
		f(ev)
	}
}
