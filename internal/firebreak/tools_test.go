package firebreak

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"firedesk/internal/chat"
	"firedesk/internal/gateway/entity"
	"firedesk/internal/gateway/repository/identity"
	"firedesk/internal/gateway/repository/ticketstore"
	"firedesk/internal/llmclient"
)

func newTestRegistry(tickets *ticketstore.MemoryStore, llm llmclient.LLMClient) *Registry {
	if llm == nil {
		llm = llmclient.NewFakeClient()
	}
	ident := identity.Static{
		SystemAccount: "user-system",
		Workspaces:    map[string]string{entity.DemoWorkspaceSlug: "ws-demo"},
	}
	return NewRegistry(tickets, ident, llm)
}

func seedOpenTickets(store *ticketstore.MemoryStore, subjects ...string) []string {
	ids := make([]string, len(subjects))
	for i, subject := range subjects {
		ids[i] = "tkt-" + subject
		store.Seed(entity.Ticket{
			ID:          ids[i],
			Subject:     subject,
			Description: "description of " + subject,
			Status:      entity.TicketOpen,
			Priority:    entity.PriorityMedium,
			WorkspaceID: "ws-demo",
			CreatedAt:   time.Now().Add(-10 * time.Minute),
		})
	}
	return ids
}

func TestGetRecentTicketsEmptyWindow(t *testing.T) {
	reg := newTestRegistry(ticketstore.NewMemory(), nil)

	out, err := reg.Execute(context.Background(), toolNameGetRecentTickets, nil)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if out != "No tickets found in the last 2 hours" {
		t.Fatalf("unexpected empty-window message: %q", out)
	}
}

func TestGetRecentTicketsListsAndRecords(t *testing.T) {
	store := ticketstore.NewMemory()
	ids := seedOpenTickets(store, "payments down", "checkout errors")
	// Outside the scan window; must not appear.
	store.Seed(entity.Ticket{
		ID:        "tkt-stale",
		Subject:   "old issue",
		Status:    entity.TicketOpen,
		CreatedAt: time.Now().Add(-3 * time.Hour),
	})
	reg := newTestRegistry(store, nil)

	out, err := reg.Execute(context.Background(), toolNameGetRecentTickets, nil)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "Found 2 tickets in the last 2 hours") {
		t.Fatalf("unexpected summary: %q", out)
	}
	if strings.Contains(out, "tkt-stale") {
		t.Fatalf("stale ticket leaked into the window: %q", out)
	}

	known, _, _ := reg.knownTicketIDs()
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			t.Fatalf("ticket %s not recorded in the run's id set", id)
		}
	}
	if _, ok := known["tkt-stale"]; ok {
		t.Fatal("stale ticket recorded in the run's id set")
	}
}

func TestCreateIncidentRejectsBelowMinimum(t *testing.T) {
	store := ticketstore.NewMemory()
	seedOpenTickets(store, "payments down")
	reg := newTestRegistry(store, nil)

	args := json.RawMessage(`{"subject":"Payments outage","description":"evidence","related_tickets":[{"id":"tkt-payments down"}]}`)
	out, err := reg.Execute(context.Background(), toolNameCreateIncident, args)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "At least 2 related tickets are required") {
		t.Fatalf("expected minimum-cluster rejection, got %q", out)
	}
	if store.Len() != 1 {
		t.Fatalf("no incident should be created, store has %d tickets", store.Len())
	}
	tk, _ := store.Get("tkt-payments down")
	if tk.ParentTicketID != nil {
		t.Fatal("rejected incident must not link tickets")
	}
}

func TestCreateIncidentRejectsDuplicatedTicketIDs(t *testing.T) {
	store := ticketstore.NewMemory()
	seedOpenTickets(store, "payments down")
	reg := newTestRegistry(store, nil)

	// The same ticket listed twice is still a single-ticket cluster.
	args := json.RawMessage(`{"subject":"Payments outage","description":"evidence","related_tickets":[{"id":"tkt-payments down"},{"id":"tkt-payments down"}]}`)
	out, err := reg.Execute(context.Background(), toolNameCreateIncident, args)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "At least 2 related tickets are required") {
		t.Fatalf("expected minimum-cluster rejection, got %q", out)
	}
	if store.Len() != 1 {
		t.Fatalf("no incident should be created, store has %d tickets", store.Len())
	}
	tk, _ := store.Get("tkt-payments down")
	if tk.ParentTicketID != nil {
		t.Fatal("rejected incident must not link tickets")
	}
}

func TestCreateIncidentRejectsMissingTicket(t *testing.T) {
	store := ticketstore.NewMemory()
	seedOpenTickets(store, "payments down")
	reg := newTestRegistry(store, nil)

	args := json.RawMessage(`{"subject":"Payments outage","description":"evidence","related_tickets":[{"id":"tkt-payments down"},{"id":"tkt-ghost"}]}`)
	out, err := reg.Execute(context.Background(), toolNameCreateIncident, args)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "Some of the specified tickets could not be found") {
		t.Fatalf("expected missing-ticket rejection, got %q", out)
	}
	if store.Len() != 1 {
		t.Fatalf("no incident should be created, store has %d tickets", store.Len())
	}
}

func TestCreateIncidentLinksTickets(t *testing.T) {
	store := ticketstore.NewMemory()
	ids := seedOpenTickets(store, "payments down", "checkout errors", "card declines")
	reg := newTestRegistry(store, nil)

	args := json.RawMessage(`{"subject":"Payment processor outage","description":"related failures","related_tickets":[` +
		`{"id":"` + ids[0] + `"},{"id":"` + ids[1] + `"},{"id":"` + ids[2] + `"}]}`)
	out, err := reg.Execute(context.Background(), toolNameCreateIncident, args)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "linking 3 tickets") {
		t.Fatalf("unexpected result: %q", out)
	}

	var incident entity.Ticket
	for _, id := range ids {
		tk, ok := store.Get(id)
		if !ok || tk.ParentTicketID == nil {
			t.Fatalf("ticket %s not linked to the incident", id)
		}
		parent, ok := store.Get(*tk.ParentTicketID)
		if !ok {
			t.Fatalf("parent %s of ticket %s not found", *tk.ParentTicketID, id)
		}
		incident = parent
	}
	if !strings.HasPrefix(incident.Subject, entity.IncidentSubjectPrefix) {
		t.Fatalf("incident subject missing prefix: %q", incident.Subject)
	}
	if incident.Priority != entity.PriorityHigh {
		t.Fatalf("incident priority must be high, got %s", incident.Priority)
	}
	if incident.CustomerID != "user-system" {
		t.Fatalf("incident must be owned by the system account, got %s", incident.CustomerID)
	}
	for _, id := range ids {
		if incident.ID == id {
			t.Fatal("incident must not be one of its own linked tickets")
		}
	}
}

func TestReviewAnalysisReturnsVerdict(t *testing.T) {
	store := ticketstore.NewMemory()
	ids := seedOpenTickets(store, "payments down", "checkout errors")
	llm := llmclient.NewFakeClient().
		QueueResponse(&chat.Response{Content: "The payment outage pattern is confirmed across both tickets."})
	reg := newTestRegistry(store, llm)

	args, _ := json.Marshal(map[string]any{
		"tickets": []map[string]string{{"id": ids[0]}, {"id": ids[1]}},
		"patterns": []map[string]any{{
			"title":              "Payment outage",
			"description":        "checkout failures",
			"severity":           "high",
			"related_ticket_ids": ids,
		}},
	})
	out, err := reg.Execute(context.Background(), toolNameReviewAnalysis, args)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "confirmed across both tickets") {
		t.Fatalf("unexpected verdict: %q", out)
	}
}

func TestStructureAnalysisFiltersForeignTicketIDs(t *testing.T) {
	store := ticketstore.NewMemory()
	ids := seedOpenTickets(store, "payments down", "checkout errors")
	llm := llmclient.NewFakeClient()
	reg := newTestRegistry(store, llm)

	if _, err := reg.Execute(context.Background(), toolNameGetRecentTickets, nil); err != nil {
		t.Fatalf("get_recent_tickets: %v", err)
	}

	payload, _ := json.Marshal(AnalysisResult{
		AnalysisState: AnalysisState{TotalTickets: 2, TimeWindow: TimeWindowLabel, Status: StatusCompleted},
		FoundTickets: []FoundTicket{
			{ID: ids[0], Subject: "payments down", Status: "open"},
			{ID: "tkt-hallucinated", Subject: "made up", Status: "open"},
		},
		IdentifiedPatterns: []IdentifiedPattern{{
			Name:             "Payment outage",
			Description:      "checkout failures",
			Severity:         SeverityHigh,
			RelatedTicketIDs: []string{ids[0], "tkt-hallucinated", ids[1]},
		}},
		CreatedIncidents: []CreatedIncident{{
			Subject:         "Payment processor outage",
			PatternName:     "Payment outage",
			LinkedTicketIDs: []string{"tkt-hallucinated", ids[1]},
		}},
	})
	llm.QueueStructured(payload)

	if _, err := reg.Execute(context.Background(), toolNameStructureAnalysis,
		json.RawMessage(`{"analysis":"summary of the run"}`)); err != nil {
		t.Fatalf("structure_analysis: %v", err)
	}

	raw, ok := reg.StructuredResult()
	if !ok {
		t.Fatal("structured payload missing")
	}
	result, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if len(result.FoundTickets) != 1 || result.FoundTickets[0].ID != ids[0] {
		t.Fatalf("foreign found ticket survived: %+v", result.FoundTickets)
	}
	got := result.IdentifiedPatterns[0].RelatedTicketIDs
	if len(got) != 2 || got[0] != ids[0] || got[1] != ids[1] {
		t.Fatalf("foreign pattern reference survived: %v", got)
	}
	linked := result.CreatedIncidents[0].LinkedTicketIDs
	if len(linked) != 1 || linked[0] != ids[1] {
		t.Fatalf("foreign incident link survived: %v", linked)
	}
}

func TestStructureAnalysisStatusNeverRegresses(t *testing.T) {
	store := ticketstore.NewMemory()
	seedOpenTickets(store, "payments down", "checkout errors")
	llm := llmclient.NewFakeClient()
	reg := newTestRegistry(store, llm)
	if _, err := reg.Execute(context.Background(), toolNameGetRecentTickets, nil); err != nil {
		t.Fatalf("get_recent_tickets: %v", err)
	}

	completed, _ := json.Marshal(AnalysisResult{
		AnalysisState: AnalysisState{TotalTickets: 2, TimeWindow: TimeWindowLabel, Status: StatusCompleted},
	})
	regressed, _ := json.Marshal(AnalysisResult{
		AnalysisState: AnalysisState{TotalTickets: 2, TimeWindow: TimeWindowLabel, Status: StatusAnalyzing},
	})
	llm.QueueStructured(completed).QueueStructured(regressed)

	args := json.RawMessage(`{"analysis":"summary of the run"}`)
	if _, err := reg.Execute(context.Background(), toolNameStructureAnalysis, args); err != nil {
		t.Fatalf("first structure_analysis: %v", err)
	}
	if _, err := reg.Execute(context.Background(), toolNameStructureAnalysis, args); err != nil {
		t.Fatalf("second structure_analysis: %v", err)
	}

	raw, _ := reg.StructuredResult()
	result, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if result.AnalysisState.Status != StatusCompleted {
		t.Fatalf("status regressed to %q after reaching completed", result.AnalysisState.Status)
	}
}

func TestExecuteUnknownToolFatal(t *testing.T) {
	reg := newTestRegistry(ticketstore.NewMemory(), nil)
	_, err := reg.Execute(context.Background(), "drop_database", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool name")
	}
}
