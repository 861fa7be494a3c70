package firebreak

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"firedesk/internal/chat"
	"firedesk/internal/llmclient"
)

type fakeTools struct {
	mu      sync.Mutex
	calls   []string
	results map[string]string
	errOn   string
}

func (f *fakeTools) Definitions() []chat.ToolDefinition {
	return []chat.ToolDefinition{{Name: toolNameGetRecentTickets}}
}

func (f *fakeTools) Execute(_ context.Context, name string, _ json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if name == f.errOn {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if out, ok := f.results[name]; ok {
		return out, nil
	}
	return "ok", nil
}

func toolCallResponse(calls ...chat.ToolCall) *chat.Response {
	return &chat.Response{ToolCalls: calls}
}

func TestLoopFirstResponseWithoutToolCallsTerminates(t *testing.T) {
	llm := llmclient.NewFakeClient().
		QueueResponse(&chat.Response{Content: "nothing to do"})
	tools := &fakeTools{}

	resp, tr, err := (&Loop{LLM: llm, Tools: tools}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if resp == nil || resp.Content != "nothing to do" {
		t.Fatalf("expected first response surfaced, got %+v", resp)
	}
	if len(tools.calls) != 0 {
		t.Fatalf("no tools should run, got %v", tools.calls)
	}
	if llm.CompleteCalls != 1 {
		t.Fatalf("expected 1 model call, got %d", llm.CompleteCalls)
	}
	if tr.Len() != 2 {
		t.Fatalf("transcript should hold only the seed messages, got %d", tr.Len())
	}
}

func TestLoopLateResponseWithoutToolCallsIsWithheld(t *testing.T) {
	llm := llmclient.NewFakeClient().
		QueueResponse(toolCallResponse(chat.ToolCall{ID: "c1", Name: toolNameGetRecentTickets, Arguments: json.RawMessage(`{}`)})).
		QueueResponse(&chat.Response{Content: "restating what the tools said"})
	tools := &fakeTools{}

	resp, tr, err := (&Loop{LLM: llm, Tools: tools}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if resp != nil {
		t.Fatalf("late no-tool-call response must be withheld, got %+v", resp)
	}
	if len(tools.calls) != 1 {
		t.Fatalf("expected 1 tool call, got %v", tools.calls)
	}
	// seed(2) + assistant + tool result
	if tr.Len() != 4 {
		t.Fatalf("unexpected transcript length %d", tr.Len())
	}
}

func TestLoopIterationBound(t *testing.T) {
	llm := llmclient.NewFakeClient()
	for i := 0; i < 10; i++ {
		llm.QueueResponse(toolCallResponse(chat.ToolCall{
			ID:        fmt.Sprintf("c%d", i),
			Name:      toolNameGetRecentTickets,
			Arguments: json.RawMessage(`{}`),
		}))
	}
	tools := &fakeTools{}

	resp, tr, err := (&Loop{LLM: llm, Tools: tools}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if llm.CompleteCalls != DefaultMaxIterations {
		t.Fatalf("expected %d model calls, got %d", DefaultMaxIterations, llm.CompleteCalls)
	}
	// The final response's tool calls are left pending; 4 earlier ones ran.
	if len(tools.calls) != DefaultMaxIterations-1 {
		t.Fatalf("expected %d executed tool calls, got %d", DefaultMaxIterations-1, len(tools.calls))
	}
	if resp == nil || !resp.HasToolCalls() {
		t.Fatalf("exhaustion with pending tool calls must surface the last response, got %+v", resp)
	}

	// The terminal turn is archived: seed(2) + 4*(assistant+result) + final assistant.
	msgs := tr.Messages()
	if len(msgs) != 11 {
		t.Fatalf("unexpected transcript length %d", len(msgs))
	}
	last := msgs[len(msgs)-1]
	if last.Role != chat.RoleAssistant || len(last.ToolCalls) == 0 {
		t.Fatalf("transcript must end with the pending assistant turn, got %+v", last)
	}
}

func TestLoopSiblingToolCallsAllExecuteAndFollowAssistantMessage(t *testing.T) {
	llm := llmclient.NewFakeClient().
		QueueResponse(toolCallResponse(
			chat.ToolCall{ID: "c1", Name: toolNameGetRecentTickets, Arguments: json.RawMessage(`{}`)},
			chat.ToolCall{ID: "c2", Name: toolNameGetRecentTickets, Arguments: json.RawMessage(`{}`)},
			chat.ToolCall{ID: "c3", Name: toolNameGetRecentTickets, Arguments: json.RawMessage(`{}`)},
		)).
		QueueResponse(&chat.Response{Content: "done"})
	tools := &fakeTools{}

	_, tr, err := (&Loop{LLM: llm, Tools: tools}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(tools.calls) != 3 {
		t.Fatalf("expected all 3 siblings executed, got %v", tools.calls)
	}
	msgs := tr.Messages()
	if msgs[2].Role != chat.RoleAssistant {
		t.Fatalf("expected assistant message at index 2, got %s", msgs[2].Role)
	}
	seen := map[string]bool{}
	for _, m := range msgs[3:] {
		if m.Role != chat.RoleTool {
			t.Fatalf("expected tool results after assistant message, got %s", m.Role)
		}
		seen[m.ToolCallID] = true
	}
	for _, id := range []string{"c1", "c2", "c3"} {
		if !seen[id] {
			t.Fatalf("missing tool result for %s", id)
		}
	}
}

func TestLoopUnknownToolIsFatal(t *testing.T) {
	llm := llmclient.NewFakeClient().
		QueueResponse(toolCallResponse(chat.ToolCall{ID: "c1", Name: "destroy_everything", Arguments: json.RawMessage(`{}`)}))
	tools := &fakeTools{errOn: "destroy_everything"}

	_, _, err := (&Loop{LLM: llm, Tools: tools}).Run(context.Background())
	if err == nil {
		t.Fatal("expected fatal error for unknown tool")
	}
}

func TestLoopEmitsStepEvents(t *testing.T) {
	llm := llmclient.NewFakeClient().
		QueueResponse(&chat.Response{
			Content:   "checking tickets",
			ToolCalls: []chat.ToolCall{{ID: "c1", Name: toolNameGetRecentTickets, Arguments: json.RawMessage(`{}`)}},
		}).
		QueueResponse(&chat.Response{Content: "done"})
	tools := &fakeTools{results: map[string]string{toolNameGetRecentTickets: "2 tickets"}}

	var events []Event
	var mu sync.Mutex
	emit := func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	_, _, err := (&Loop{LLM: llm, Tools: tools, OnEvent: emit}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	var kinds []EventType
	for _, ev := range events {
		kinds = append(kinds, ev.Type)
	}
	want := []EventType{EventReflection, EventToolCallIssued, EventToolResult}
	if len(kinds) != len(want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}
