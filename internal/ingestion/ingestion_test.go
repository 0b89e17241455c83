package ingestion

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"incidentrag/internal/core"
	"incidentrag/internal/corpus"
	"incidentrag/internal/embedding"
	"incidentrag/internal/sparseindex"
	"incidentrag/internal/store"
	"incidentrag/internal/vectorindex"

	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mgr, err := corpus.New(s, vectorindex.NewFakeIndex(), sparseindex.New(), embedding.NewFakeEmbedder(16))
	require.NoError(t, err)
	return New(mgr)
}

func validIncident(id string) core.Incident {
	return core.Incident{
		ID:          id,
		Title:       "UPI payment webhook timeout",
		Description: "Payments via the UPI gateway stalled after the webhook callback stopped arriving within the deadline.",
		Resolution:  "Increased webhook retry window and fixed a connection pool leak on the gateway adapter.",
		Tags:        []string{"upi", "webhook", "timeout"},
		CreatedAt:   time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		ResolvedBy:  "oncall-1",
		Category:    "payments",
		Priority:    "p1",
	}
}

func TestRunAdmitsValidRecordsAndQuarantinesInvalid(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	bad := validIncident("JSP-2001")
	bad.Description = "too short"

	out := p.Run(ctx, []core.Incident{validIncident("JSP-2000"), bad})

	require.Equal(t, []string{"JSP-2000"}, out.Live)
	require.Len(t, out.Quarantined, 1)
	require.Equal(t, "JSP-2001", out.Quarantined[0].IncidentID)
	require.Equal(t, StageQuarantined, out.Quarantined[0].Stage)

	_, ok := p.Corpus.Get("JSP-2001")
	require.False(t, ok, "an invalid record must never touch the corpus")
}

func TestRunIsIdempotentOnID(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	incident := validIncident("JSP-2002")
	out1 := p.Run(ctx, []core.Incident{incident})
	require.Equal(t, []string{"JSP-2002"}, out1.Live)

	out2 := p.Run(ctx, []core.Incident{incident})
	require.Equal(t, []string{"JSP-2002"}, out2.Live)
	require.Empty(t, out2.Quarantined)

	ids := p.Corpus.AllIDs()
	require.Len(t, ids, 1)
}

func TestLoadCSVProjectsColumnsOntoIncident(t *testing.T) {
	csvData := "ticket_id,summary,body,fix,labels,owner\n" +
		"JSP-3000,Webhook SSL failure on gateway,The SSL handshake with the payment gateway began failing after a certificate rotation broke trust.,Rotated the intermediate certificate and redeployed the gateway adapter with the new chain.,ssl|webhook,oncall-2\n"

	mapping := ColumnMapping{
		"id":          "ticket_id",
		"title":       "summary",
		"description": "body",
		"resolution":  "fix",
		"tags":        "labels",
		"resolved_by": "owner",
	}

	incidents, dropped, err := LoadCSV(strings.NewReader(csvData), mapping)
	require.NoError(t, err)
	require.Empty(t, dropped)
	require.Len(t, incidents, 1)

	got := incidents[0]
	require.Equal(t, "JSP-3000", got.ID)
	require.Equal(t, []string{"ssl", "webhook"}, got.Tags)
	require.Equal(t, "oncall-2", got.ResolvedBy)
	require.NoError(t, got.Validate())
}

func TestLoadTicketExportsStripsHTML(t *testing.T) {
	exports := []TicketExport{{
		ID:              "JSP-3001",
		Title:           "Settlement batch stuck in pending",
		DescriptionHTML: "<p>The <b>settlement batch</b> stalled after the nightly job hit a lock on the ledger table.</p>",
		ResolutionHTML:  "<ul><li>Killed the stuck job</li><li>Added a statement timeout to the ledger query</li></ul>",
		Tags:            []string{"settlement", "batch"},
		CreatedAt:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}}

	incidents := LoadTicketExports(exports)
	require.Len(t, incidents, 1)

	got := incidents[0]
	require.NotContains(t, got.Description, "<")
	require.NotContains(t, got.Resolution, "<")
	require.Contains(t, got.Description, "settlement batch stalled")
}

func TestLoadChatThreadUsesLastResponderMessageAsResolution(t *testing.T) {
	thread := ChatThread{
		ID:    "JSP-3002",
		Title: "Axis PG connection reset under load",
		Tags:  []string{"axis", "pg"},
		Messages: []ChatMessage{
			{Author: "reporter", Text: "Seeing connection resets from Axis PG during the evening peak window.", Timestamp: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)},
			{Author: "oncall-3", Text: "Looking into it, checking connection pool saturation now.", Timestamp: time.Date(2026, 3, 1, 18, 5, 0, 0, time.UTC), Responder: true},
			{Author: "oncall-3", Text: "Raised the connection pool limit on the Axis PG adapter and restarted the service to clear stuck sockets.", Timestamp: time.Date(2026, 3, 1, 18, 20, 0, 0, time.UTC), Responder: true},
		},
	}

	incident := LoadChatThread(thread)
	require.Equal(t, "Raised the connection pool limit on the Axis PG adapter and restarted the service to clear stuck sockets.", incident.Resolution)
	require.Equal(t, "oncall-3", incident.ResolvedBy)
	require.Contains(t, incident.Description, "reporter:")
	require.NoError(t, incident.Validate())
}

func TestLoadChatThreadWithNoResponderFailsValidation(t *testing.T) {
	thread := ChatThread{
		ID:    "JSP-3003",
		Title: "Unresolved webhook delay report",
		Tags:  []string{"webhook"},
		Messages: []ChatMessage{
			{Author: "reporter", Text: "Webhooks are arriving several minutes late for the last hour.", Timestamp: time.Now()},
		},
	}

	incident := LoadChatThread(thread)
	require.Error(t, incident.Validate())
}
