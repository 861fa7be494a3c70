package firebreak

import (
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// LookbackHours is the fixed scan window for candidate tickets.
const LookbackHours = 2

// TimeWindowLabel is the human-readable form of the scan window.
const TimeWindowLabel = "2 hours"

const systemPrompt = `You are Firebreak, a crisis-detection agent for a customer support desk.

Your job is to find cross-ticket incident patterns in recent support traffic:

1. Call get_recent_tickets to fetch tickets from the last ` + TimeWindowLabel + `.
2. Look for clusters of tickets that likely share one root cause: repeated
   mentions of the same system or feature, similar error descriptions, bursts
   of the same complaint, matching timestamps.
3. When you suspect a pattern, call review_analysis with the candidate
   tickets and patterns. Only move on once the review confirms a single
   significant pattern backed by enough tickets.
4. Create an incident with create_incident_ticket only after review, and only
   for a confirmed pattern with at least 2 related tickets.
5. Always finish by calling structure_analysis with your full analysis
   narrative — even when you found no tickets or no pattern. That call is how
   your findings are recorded.

Do not invent tickets and do not create an incident for unrelated one-off
complaints. If get_recent_tickets reports no tickets, skip straight to
structure_analysis.`

const kickoffMessage = "Run the crisis scan over recent support tickets now."

// reviewPrompt asks a second model pass to converge candidate patterns onto
// at most one significant cluster.
func reviewPrompt(tickets []FoundTicket, patterns []reviewPattern) string {
	var b strings.Builder
	b.WriteString(`You are validating a crisis analysis for a support desk.

Policy: converge all evidence onto the ONE most significant pattern. Drop
tickets that do not belong to it and drop competing patterns. A pattern
backed by fewer than 3 tickets does not qualify and must be reported as not
qualifying. If no pattern is actionable, say so explicitly.

Respond with a short free-text verdict: either the single confirmed pattern
(name, why it holds, which ticket ids belong to it) or a clear statement
that no actionable pattern exists.

`)
	b.WriteString("[TICKETS]\n")
	for _, t := range tickets {
		fmt.Fprintf(&b, "- %s | %s | %s\n  %s\n", t.ID, t.Subject, t.Status, t.Description)
	}
	b.WriteString("\n[CANDIDATE PATTERNS]\n")
	for _, p := range patterns {
		fmt.Fprintf(&b, "- %s (severity %s): %s\n  related tickets: %s\n",
			p.Title, p.Severity, p.Description, strings.Join(p.RelatedTicketIDs, ", "))
	}
	return b.String()
}

// structuringPrompt converts the free-text analysis narrative into the strict
// result schema. The model must only use ticket ids from the original set.
func structuringPrompt(analysis string, allowedIDs []string, found []FoundTicket) string {
	var b strings.Builder
	b.WriteString(`Convert the following crisis analysis narrative into the structured result.

Rules:
- Use ONLY ticket ids from the allowed list below. Never invent ids.
- status is "completed" when the analysis finished (with or without
  patterns), "no_tickets" when no tickets were found to analyze.
- time_window is "` + TimeWindowLabel + `".
- identified_patterns and created_incidents must be empty arrays when the
  narrative reports none.

[ALLOWED TICKET IDS]
`)
	if len(allowedIDs) == 0 {
		b.WriteString("(none)\n")
	}
	for _, id := range allowedIDs {
		fmt.Fprintf(&b, "- %s\n", id)
	}
	b.WriteString("\n[TICKETS]\n")
	for _, t := range found {
		fmt.Fprintf(&b, "- %s | %s | %s\n", t.ID, t.Subject, t.Status)
	}
	b.WriteString("\n[ANALYSIS]\n")
	b.WriteString(analysis)
	return b.String()
}

// resultSchema is the genai response schema for AnalysisResult.
func resultSchema() *genai.Schema {
	ticketIDList := &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"analysis_state", "found_tickets", "identified_patterns", "created_incidents"},
		Properties: map[string]*genai.Schema{
			"analysis_state": {
				Type:     genai.TypeObject,
				Required: []string{"total_tickets", "time_window", "status"},
				Properties: map[string]*genai.Schema{
					"total_tickets": {Type: genai.TypeInteger},
					"time_window":   {Type: genai.TypeString},
					"status": {
						Type: genai.TypeString,
						Enum: []string{string(StatusAnalyzing), string(StatusCompleted), string(StatusNoTickets)},
					},
				},
			},
			"found_tickets": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:     genai.TypeObject,
					Required: []string{"id", "subject", "status"},
					Properties: map[string]*genai.Schema{
						"id":          {Type: genai.TypeString},
						"subject":     {Type: genai.TypeString},
						"description": {Type: genai.TypeString},
						"status":      {Type: genai.TypeString},
					},
				},
			},
			"identified_patterns": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:     genai.TypeObject,
					Required: []string{"name", "description", "severity", "related_ticket_ids"},
					Properties: map[string]*genai.Schema{
						"name":             {Type: genai.TypeString},
						"description":      {Type: genai.TypeString},
						"affected_systems": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
						"severity": {
							Type: genai.TypeString,
							Enum: []string{string(SeverityLow), string(SeverityMedium), string(SeverityHigh)},
						},
						"related_ticket_ids": ticketIDList,
					},
				},
			},
			"created_incidents": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:     genai.TypeObject,
					Required: []string{"id", "subject", "description", "pattern_name", "linked_ticket_ids"},
					Properties: map[string]*genai.Schema{
						"id":                {Type: genai.TypeString},
						"subject":           {Type: genai.TypeString},
						"description":       {Type: genai.TypeString},
						"pattern_name":      {Type: genai.TypeString},
						"linked_ticket_ids": ticketIDList,
					},
				},
			},
		},
	}
}
