package llmclient

import (
	"context"
	"encoding/json"
	"sync"

	genai "google.golang.org/genai"

	"firedesk/internal/chat"
)

// FakeClient returns scripted responses for offline runs and tests. Each
// Complete call consumes the next queued response; each CompleteStructured
// call consumes the next queued structured payload.
type FakeClient struct {
	mu         sync.Mutex
	responses  []*chat.Response
	structured []json.RawMessage

	CompleteCalls   int
	StructuredCalls int
	LastPrompt      string
}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

// QueueResponse appends a scripted conversational response.
func (f *FakeClient) QueueResponse(resp *chat.Response) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return f
}

// QueueStructured appends a scripted structured payload.
func (f *FakeClient) QueueStructured(raw json.RawMessage) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.structured = append(f.structured, raw)
	return f
}

func (f *FakeClient) Complete(ctx context.Context, messages []chat.Message, tools []chat.ToolDefinition) (*chat.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CompleteCalls++
	if len(f.responses) == 0 {
		return &chat.Response{Content: "Nothing further to analyze."}, nil
	}
	out := f.responses[0]
	f.responses = f.responses[1:]
	return out, nil
}

func (f *FakeClient) CompleteStructured(ctx context.Context, prompt string, schema *genai.Schema) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StructuredCalls++
	f.LastPrompt = prompt
	if len(f.structured) == 0 {
		return json.RawMessage(`{}`), nil
	}
	out := f.structured[0]
	f.structured = f.structured[1:]
	return out, nil
}
