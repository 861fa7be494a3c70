package firebreak

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"firedesk/internal/chat"
	"firedesk/internal/llmclient"
)

// DefaultMaxIterations caps model invocations per analysis run.
const DefaultMaxIterations = 5

// ToolExecutor abstracts the tool registry for the loop.
type ToolExecutor interface {
	Definitions() []chat.ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Loop is the agent control loop: it alternates model calls and tool
// executions over an append-only transcript until the model stops requesting
// tools or the iteration bound is reached.
type Loop struct {
	LLM           llmclient.LLMClient
	Tools         ToolExecutor
	MaxIterations int
	OnEvent       EmitFunc
}

// Run drives the loop to termination. It returns the terminal model response
// (nil when a late no-tool-call response was withheld) and the full
// transcript. Tool-level input failures surface to the model as string
// results; only an unregistered tool name or a model transport failure ends
// the run with an error.
func (l *Loop) Run(ctx context.Context) (*chat.Response, chat.Transcript, error) {
	if l == nil || l.LLM == nil || l.Tools == nil {
		return nil, chat.Transcript{}, fmt.Errorf("firebreak: loop missing LLM or tools")
	}
	max := l.MaxIterations
	if max <= 0 {
		max = DefaultMaxIterations
	}

	tr := chat.NewTranscript(
		chat.SystemMessage(systemPrompt),
		chat.UserMessage(kickoffMessage),
	)
	tools := l.Tools.Definitions()

	var last *chat.Response
	for i := 0; i < max; i++ {
		resp, err := l.LLM.Complete(ctx, tr.Messages(), tools)
		if err != nil {
			return nil, tr, fmt.Errorf("firebreak: model call %d: %w", i+1, err)
		}
		last = resp

		if !resp.HasToolCalls() {
			if i == 0 {
				// Nothing to execute; the first response is the terminal payload.
				l.OnEvent.emit(Event{Type: EventReflection, Message: resp.Content})
				return resp, tr, nil
			}
			// A late response without tool calls restates what the tools already
			// produced; withhold it so callers don't see a duplicate final message.
			return nil, tr, nil
		}

		if resp.Content != "" {
			l.OnEvent.emit(Event{Type: EventReflection, Message: resp.Content})
		}
		if i == max-1 {
			// Iteration bound reached with tool calls still pending: stop issuing
			// model calls and surface this response as the terminal payload. The
			// turn still lands in the transcript so the archive holds the full
			// conversation.
			tr = tr.Append(chat.AssistantMessage(resp.Content, resp.ToolCalls))
			break
		}

		results := make([]chat.Message, len(resp.ToolCalls))
		g, gctx := errgroup.WithContext(ctx)
		for idx, tc := range resp.ToolCalls {
			l.OnEvent.emit(Event{Type: EventToolCallIssued, Tool: tc.Name, CallID: tc.ID})
			g.Go(func() error {
				out, err := l.Tools.Execute(gctx, tc.Name, tc.Arguments)
				if err != nil {
					return err
				}
				results[idx] = chat.ToolResultMessage(tc.ID, tc.Name, out)
				l.OnEvent.emit(Event{Type: EventToolResult, Tool: tc.Name, CallID: tc.ID, Message: out})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, tr, err
		}

		tr = tr.Append(chat.AssistantMessage(resp.Content, resp.ToolCalls))
		tr = tr.Append(results...)
	}
	return last, tr, nil
}
