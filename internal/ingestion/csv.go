package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"incidentrag/internal/core"
)

// ColumnMapping projects a CSV header onto Incident field names
// (id, title, description, resolution, tags, resolved_by, category,
// priority, created_at). tags is split on "|" within the cell.
type ColumnMapping map[string]string

// LoadCSV reads rows from r using header and mapping to build incidents.
// Rows that cannot be projected (missing a mapped column) are skipped and
// returned in the dropped list with a reason, rather than aborting the whole
// batch; LoadCSV itself does not log them.
func LoadCSV(r io.Reader, mapping ColumnMapping) ([]core.Incident, []Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("ingestion: failed to read csv header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, h := range header {
		colIndex[strings.TrimSpace(h)] = i
	}

	var (
		incidents []core.Incident
		dropped   []Result
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return incidents, dropped, fmt.Errorf("ingestion: failed to read csv row: %w", err)
		}

		incident, ok := projectRow(row, colIndex, mapping)
		if !ok {
			dropped = append(dropped, Result{Stage: StageQuarantined, Reason: "csv row missing a mapped column"})
			continue
		}
		incidents = append(incidents, incident)
	}
	return incidents, dropped, nil
}

func projectRow(row []string, colIndex map[string]int, mapping ColumnMapping) (core.Incident, bool) {
	get := func(field string) (string, bool) {
		csvCol, ok := mapping[field]
		if !ok {
			return "", true // field not mapped, leave zero value
		}
		idx, ok := colIndex[csvCol]
		if !ok || idx >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[idx]), true
	}

	id, ok := get("id")
	if !ok {
		return core.Incident{}, false
	}
	title, ok := get("title")
	if !ok {
		return core.Incident{}, false
	}
	description, ok := get("description")
	if !ok {
		return core.Incident{}, false
	}
	resolution, ok := get("resolution")
	if !ok {
		return core.Incident{}, false
	}
	tagsRaw, ok := get("tags")
	if !ok {
		return core.Incident{}, false
	}
	resolvedBy, _ := get("resolved_by")
	category, _ := get("category")
	priority, _ := get("priority")
	createdAtRaw, _ := get("created_at")

	var tags []string
	for _, t := range strings.Split(tagsRaw, "|") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	createdAt := time.Now().UTC()
	if createdAtRaw != "" {
		if parsed, err := time.Parse(time.RFC3339, createdAtRaw); err == nil {
			createdAt = parsed
		}
	}

	return core.Incident{
		ID:          id,
		Title:       title,
		Description: description,
		Resolution:  resolution,
		Tags:        tags,
		CreatedAt:   createdAt,
		ResolvedBy:  resolvedBy,
		Category:    category,
		Priority:    priority,
	}, true
}
