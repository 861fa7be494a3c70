package llmclient

import (
	"context"
	"encoding/json"
	"errors"

	genai "google.golang.org/genai"

	"firedesk/internal/chat"
)

var ErrEmptyResponse = errors.New("llmclient: empty response from model")

// LLMClient wraps the two model endpoints the agent needs: a conversational
// completion that may return tool calls, and a strict-schema structured
// completion. Cross-cutting concerns (retries, rate limits) live outside.
type LLMClient interface {
	Name() string
	Complete(ctx context.Context, messages []chat.Message, tools []chat.ToolDefinition) (*chat.Response, error)
	CompleteStructured(ctx context.Context, prompt string, schema *genai.Schema) (json.RawMessage, error)
	Close() error
}
