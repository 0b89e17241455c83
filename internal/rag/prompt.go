package rag

import (
	"fmt"
	"strings"
)

// maxContextFieldLen bounds description and resolution excerpts included in
// the rendered prompt.
const maxContextFieldLen = 500

// maxSanitisedQueryLen caps the sanitised query passed to the generator.
const maxSanitisedQueryLen = 500

// injectionPatterns are substrings stripped from the query before it is
// rendered into a prompt. This is not a security boundary against a
// determined attacker, only a cheap filter against copy-pasted jailbreak text.
var injectionPatterns = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard previous instructions",
	"you are now",
	"system:",
	"assistant:",
}

// ContextIncident is one admitted candidate rendered into the prompt.
type ContextIncident struct {
	ID          string
	Title       string
	Description string
	Resolution  string
}

// PromptTemplate holds the named slots of a grounded-generation prompt. It
// is rendered once per call, so query sanitisation has a single chokepoint
// rather than being repeated at every call site.
type PromptTemplate struct {
	Instructions string
	Query        string
	Incidents    []ContextIncident
}

const defaultInstructions = `Answer the user's question using only the incidents listed below.
Cite every factual claim with its incident id in parentheses, e.g. (JSP-1052).
If the incidents do not contain enough information to answer, say so explicitly and stop.`

// NewPromptTemplate sanitises query and truncates each incident's
// description/resolution before building the template.
func NewPromptTemplate(query string, incidents []ContextIncident) PromptTemplate {
	sanitised := sanitiseQuery(query)
	rendered := make([]ContextIncident, len(incidents))
	for i, inc := range incidents {
		rendered[i] = ContextIncident{
			ID:          inc.ID,
			Title:       inc.Title,
			Description: truncate(inc.Description, maxContextFieldLen),
			Resolution:  truncate(inc.Resolution, maxContextFieldLen),
		}
	}
	return PromptTemplate{Instructions: defaultInstructions, Query: sanitised, Incidents: rendered}
}

// Render produces the final prompt text sent to the generator.
func (t PromptTemplate) Render() string {
	var b strings.Builder
	b.WriteString(t.Instructions)
	b.WriteString("\n\nIncidents:\n")
	for _, inc := range t.Incidents {
		fmt.Fprintf(&b, "- %s: %s\n  Description: %s\n  Resolution: %s\n", inc.ID, inc.Title, inc.Description, inc.Resolution)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(t.Query)
	return b.String()
}

func sanitiseQuery(query string) string {
	lower := strings.ToLower(query)
	cleaned := query
	for _, pattern := range injectionPatterns {
		if idx := strings.Index(lower, pattern); idx >= 0 {
			cleaned = cleaned[:idx] + cleaned[idx+len(pattern):]
			lower = strings.ToLower(cleaned)
		}
	}
	return truncate(strings.TrimSpace(cleaned), maxSanitisedQueryLen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
