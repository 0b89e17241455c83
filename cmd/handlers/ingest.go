package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"incidentrag/internal/app"
	"incidentrag/internal/config"
	"incidentrag/internal/core"
	"incidentrag/internal/ingestion"

	"github.com/spf13/cobra"
)

// NewIngestCmd creates the ingest command: the operator surface for C10,
// loading a batch from a source file and running it through
// load -> validate -> normalise -> embed -> upsert -> index -> verify.
func NewIngestCmd() *cobra.Command {
	var (
		format  string
		mapFlag string
	)

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Normalise and admit a batch of incidents from an external source",
		Long: `Load a batch of incidents from path and run it through the ingestion
pipeline: validate, normalise, embed, upsert into the dense index, index
into the sparse index, and verify. Invalid records are dropped; records
that fail a later stage are quarantined. Re-ingesting the same batch is a
no-op for ids already live in the corpus.

Supported --format values:
  json           a JSON array of Incident objects (the default)
  csv            a CSV export with a column mapping supplied via --map
  ticket-export  a JSON array of HTML ticket exports
  chat-thread    a JSON array of chat threads

Examples:
  incidentrag ingest incidents.json
  incidentrag ingest export.csv --format=csv --map=map.json
  incidentrag ingest tickets.json --format=ticket-export`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ingestRun(cmd, args[0], format, mapFlag)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "source format: json|csv|ticket-export|chat-thread")
	cmd.Flags().StringVar(&mapFlag, "map", "", "path to a JSON column-mapping file (required for --format=csv)")
	return cmd
}

func ingestRun(cmd *cobra.Command, path, format, mapPath string) error {
	cfg := config.Get()
	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	defer application.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	incidents, err := loadBatch(f, format, mapPath)
	if err != nil {
		return err
	}

	outcome := application.Ingestion.Run(context.Background(), incidents)

	fmt.Fprintf(cmd.OutOrStdout(), "admitted %d record(s), quarantined %d\n", len(outcome.Live), len(outcome.Quarantined))
	for _, q := range outcome.Quarantined {
		fmt.Fprintf(cmd.OutOrStdout(), "  quarantined %s: %s\n", q.IncidentID, q.Reason)
	}
	return nil
}

func loadBatch(f *os.File, format, mapPath string) ([]core.Incident, error) {
	switch format {
	case "json", "":
		var incidents []core.Incident
		if err := json.NewDecoder(f).Decode(&incidents); err != nil {
			return nil, fmt.Errorf("failed to parse json batch: %w", err)
		}
		return incidents, nil

	case "csv":
		if mapPath == "" {
			return nil, fmt.Errorf("--map is required for --format=csv")
		}
		mapping, err := loadColumnMapping(mapPath)
		if err != nil {
			return nil, err
		}
		incidents, dropped, err := ingestion.LoadCSV(f, mapping)
		if err != nil {
			return nil, err
		}
		for _, d := range dropped {
			fmt.Printf("dropped csv row: %s\n", d.Reason)
		}
		return incidents, nil

	case "ticket-export":
		var exports []ingestion.TicketExport
		if err := json.NewDecoder(f).Decode(&exports); err != nil {
			return nil, fmt.Errorf("failed to parse ticket-export batch: %w", err)
		}
		return ingestion.LoadTicketExports(exports), nil

	case "chat-thread":
		var threads []ingestion.ChatThread
		if err := json.NewDecoder(f).Decode(&threads); err != nil {
			return nil, fmt.Errorf("failed to parse chat-thread batch: %w", err)
		}
		return ingestion.LoadChatThreads(threads), nil

	default:
		return nil, fmt.Errorf("unknown --format %q", format)
	}
}

func loadColumnMapping(path string) (ingestion.ColumnMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column mapping %s: %w", path, err)
	}
	var mapping ingestion.ColumnMapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("failed to parse column mapping %s: %w", path, err)
	}
	return mapping, nil
}
