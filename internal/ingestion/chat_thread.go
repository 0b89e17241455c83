package ingestion

import (
	"fmt"
	"strings"
	"time"

	"incidentrag/internal/core"
)

// ChatMessage is one message in a flat incident chat-thread export.
type ChatMessage struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Responder bool      `json:"responder"` // true when Author holds a responder role distinct from the reporter
}

// ChatThread is a flat, time-ordered list of messages exported from a
// chat-platform incident channel.
type ChatThread struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Messages []ChatMessage `json:"messages"`
	Tags     []string      `json:"tags"`
	Category string        `json:"category"`
	Priority string        `json:"priority"`
}

// LoadChatThread concatenates a thread's messages in order into a single
// description, treating the last responder-authored message as the
// resolution. A thread with no responder message yields an incident whose
// resolution is empty and which therefore fails validation and is dropped,
// rather than fabricating one.
func LoadChatThread(t ChatThread) core.Incident {
	var body strings.Builder
	resolution := ""
	resolvedBy := ""
	createdAt := time.Now().UTC()

	for i, m := range t.Messages {
		if i == 0 {
			createdAt = m.Timestamp
		}
		fmt.Fprintf(&body, "%s: %s\n", m.Author, strings.TrimSpace(m.Text))
		if m.Responder {
			resolution = strings.TrimSpace(m.Text)
			resolvedBy = m.Author
		}
	}

	return core.Incident{
		ID:          t.ID,
		Title:       t.Title,
		Description: strings.TrimSpace(body.String()),
		Resolution:  resolution,
		Tags:        t.Tags,
		CreatedAt:   createdAt,
		ResolvedBy:  resolvedBy,
		Category:    t.Category,
		Priority:    t.Priority,
	}
}

// LoadChatThreads normalises a batch of chat threads into incidents.
func LoadChatThreads(threads []ChatThread) []core.Incident {
	incidents := make([]core.Incident, 0, len(threads))
	for _, t := range threads {
		incidents = append(incidents, LoadChatThread(t))
	}
	return incidents
}
