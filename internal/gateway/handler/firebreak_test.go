package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"firedesk/internal/chat"
	"firedesk/internal/firebreak"
	"firedesk/internal/gateway/entity"
	"firedesk/internal/gateway/repository/analysisstore"
	"firedesk/internal/gateway/repository/identity"
	"firedesk/internal/gateway/repository/ticketstore"
	"firedesk/internal/gateway/service/analysis"
	"firedesk/internal/llmclient"
)

func newTestHandler(llm *llmclient.FakeClient) *Service {
	runner := &firebreak.Runner{
		LLM:     llm,
		Tickets: ticketstore.NewMemory(),
		Identity: identity.Static{
			SystemAccount: "user-system",
			Workspaces:    map[string]string{entity.DemoWorkspaceSlug: "ws-demo"},
		},
		Analyses: analysisstore.NewMemory(),
	}
	return NewService(analysis.New(runner))
}

func completedScript() *llmclient.FakeClient {
	llm := llmclient.NewFakeClient().
		QueueResponse(&chat.Response{ToolCalls: []chat.ToolCall{{
			ID: "c1", Name: "structure_analysis", Arguments: json.RawMessage(`{"analysis":"quiet window"}`),
		}}}).
		QueueResponse(&chat.Response{Content: "Done."})
	structured, _ := json.Marshal(firebreak.AnalysisResult{
		AnalysisState: firebreak.AnalysisState{
			TimeWindow: firebreak.TimeWindowLabel,
			Status:     firebreak.StatusCompleted,
		},
	})
	llm.QueueStructured(structured)
	return llm
}

func TestHandleRunFirebreak(t *testing.T) {
	h := newTestHandler(completedScript())

	req := httptest.NewRequest(http.MethodPost, "/api/firebreak/run", nil)
	rec := httptest.NewRecorder()
	h.HandleRunFirebreak(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		RunID      string                    `json:"run_id"`
		AnalysisID string                    `json:"analysis_id"`
		Result     *firebreak.AnalysisResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.RunID == "" || out.AnalysisID == "" {
		t.Fatalf("missing identifiers in response: %+v", out)
	}
	if out.Result == nil || out.Result.AnalysisState.Status != firebreak.StatusCompleted {
		t.Fatalf("unexpected result: %+v", out.Result)
	}
}

func TestHandleRunFirebreakMethodNotAllowed(t *testing.T) {
	h := newTestHandler(llmclient.NewFakeClient())

	req := httptest.NewRequest(http.MethodGet, "/api/firebreak/run", nil)
	rec := httptest.NewRecorder()
	h.HandleRunFirebreak(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleRunFirebreakInconclusive(t *testing.T) {
	// The default fake reply has no tool calls, so the run never structures.
	h := newTestHandler(llmclient.NewFakeClient())

	req := httptest.NewRequest(http.MethodPost, "/api/firebreak/run", nil)
	rec := httptest.NewRecorder()
	h.HandleRunFirebreak(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Error != "Analysis inconclusive" {
		t.Fatalf("unexpected error message %q", out.Error)
	}
}

func TestHandleStartFirebreakReturnsRunID(t *testing.T) {
	h := newTestHandler(completedScript())

	req := httptest.NewRequest(http.MethodPost, "/api/firebreak/runs", nil)
	rec := httptest.NewRecorder()
	h.HandleStartFirebreak(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var out struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.RunID == "" {
		t.Fatal("missing run_id")
	}
}

func TestHandleWatchSSEUnknownRun(t *testing.T) {
	h := newTestHandler(llmclient.NewFakeClient())

	req := httptest.NewRequest(http.MethodGet, "/api/firebreak/watch/no-such-run", nil)
	rec := httptest.NewRecorder()
	h.HandleWatchSSE(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
