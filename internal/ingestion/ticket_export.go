package ingestion

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"incidentrag/internal/core"
)

var collapseWhitespace = regexp.MustCompile(`\s+`)

// TicketExport is one record from a rich-text ticketing tool's export: the
// description and resolution bodies are HTML fragments, not plain text.
type TicketExport struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	DescriptionHTML string    `json:"description_html"`
	ResolutionHTML  string    `json:"resolution_html"`
	Tags            []string  `json:"tags"`
	ResolvedBy      string    `json:"resolved_by"`
	Category        string    `json:"category"`
	Priority        string    `json:"priority"`
	CreatedAt       time.Time `json:"created_at"`
}

// LoadTicketExports normalises a batch of HTML ticket exports into
// incidents by stripping markup from the description/resolution bodies and
// collapsing whitespace, before the shared validate step runs.
func LoadTicketExports(exports []TicketExport) []core.Incident {
	incidents := make([]core.Incident, 0, len(exports))
	for _, e := range exports {
		incidents = append(incidents, core.Incident{
			ID:          e.ID,
			Title:       e.Title,
			Description: stripHTML(e.DescriptionHTML),
			Resolution:  stripHTML(e.ResolutionHTML),
			Tags:        e.Tags,
			CreatedAt:   e.CreatedAt,
			ResolvedBy:  e.ResolvedBy,
			Category:    e.Category,
			Priority:    e.Priority,
		})
	}
	return incidents
}

// stripHTML removes markup and collapses an HTML fragment into plain text,
// the way a ticket-export body needs to be normalised before it can satisfy
// the incident schema's free-text description/resolution fields.
func stripHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseWhitespace.ReplaceAllString(strings.TrimSpace(fragment), " ")
	}
	doc.Find("script, style").Remove()
	text := doc.Text()
	return strings.TrimSpace(collapseWhitespace.ReplaceAllString(text, " "))
}
