// Package store provides the canonical SQLite-backed persistence for
// incidents and feedback (C9's durable backing store). It is the source of
// truth C4 is rebuilt from after a crash between index-publish phases.
package store

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"incidentrag/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a SQLite database holding incidents and feedback.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the SQLite database at path.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	incidentsTable := `
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		resolution TEXT NOT NULL,
		tags TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		resolved_by TEXT,
		category TEXT,
		priority TEXT,
		embedding BLOB
	);`

	feedbackTable := `
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		result_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		helpful BOOLEAN NOT NULL,
		feedback_text TEXT,
		created_at DATETIME NOT NULL
	);`

	for _, stmt := range []string{incidentsTable, feedbackTable} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Put inserts or replaces an incident record.
func (s *Store) Put(incident core.Incident) error {
	tagsJSON, err := json.Marshal(incident.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	embeddingBytes, err := serializeEmbedding(incident.Embedding)
	if err != nil {
		return fmt.Errorf("failed to serialize embedding: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO incidents
			(id, title, description, resolution, tags, created_at, resolved_by, category, priority, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		incident.ID, incident.Title, incident.Description, incident.Resolution,
		string(tagsJSON), incident.CreatedAt, incident.ResolvedBy, incident.Category,
		incident.Priority, embeddingBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to put incident %s: %w", incident.ID, err)
	}
	return nil
}

// Get fetches an incident by id.
func (s *Store) Get(id string) (core.Incident, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, title, description, resolution, tags, created_at, resolved_by, category, priority, embedding
		 FROM incidents WHERE id = ?`, id,
	)
	incident, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return core.Incident{}, false, nil
	}
	if err != nil {
		return core.Incident{}, false, fmt.Errorf("failed to get incident %s: %w", id, err)
	}
	return incident, true, nil
}

// Delete removes an incident by id.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM incidents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete incident %s: %w", id, err)
	}
	return nil
}

// AllIDs returns every incident id in the store. The crash-recovery rebuild
// of C4 loads full records through All, not through AllIDs.
func (s *Store) AllIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM incidents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list incident ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan incident id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// All returns every incident in the store, used to rebuild C4 wholesale.
func (s *Store) All() ([]core.Incident, error) {
	rows, err := s.db.Query(
		`SELECT id, title, description, resolution, tags, created_at, resolved_by, category, priority, embedding
		 FROM incidents`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []core.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, incident)
	}
	return incidents, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIncident(row scanner) (core.Incident, error) {
	var (
		incident      core.Incident
		tagsJSON      string
		embeddingData []byte
	)
	if err := row.Scan(
		&incident.ID, &incident.Title, &incident.Description, &incident.Resolution,
		&tagsJSON, &incident.CreatedAt, &incident.ResolvedBy, &incident.Category,
		&incident.Priority, &embeddingData,
	); err != nil {
		return core.Incident{}, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &incident.Tags); err != nil {
		return core.Incident{}, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	embedding, err := deserializeEmbedding(embeddingData)
	if err != nil {
		return core.Incident{}, fmt.Errorf("failed to deserialize embedding: %w", err)
	}
	incident.Embedding = embedding
	return incident, nil
}

// PutFeedback appends a feedback record. Feedback is append-only: writers
// never block readers, and no update/delete is exposed.
func (s *Store) PutFeedback(fb core.Feedback) error {
	_, err := s.db.Exec(
		`INSERT INTO feedback (id, query, result_id, rating, helpful, feedback_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.Query, fb.ResultID, fb.Rating, fb.Helpful, fb.FeedbackText, fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put feedback: %w", err)
	}
	return nil
}

// serializeEmbedding converts a float32 slice to bytes for database storage.
func serializeEmbedding(embedding []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, val := range embedding {
		if err := binary.Write(buf, binary.LittleEndian, val); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// deserializeEmbedding converts bytes back to a float32 slice.
func deserializeEmbedding(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	buf := bytes.NewReader(data)
	n := len(data) / 4
	embedding := make([]float32, n)
	for i := 0; i < n; i++ {
		if err := binary.Read(buf, binary.LittleEndian, &embedding[i]); err != nil {
			return nil, err
		}
	}
	return embedding, nil
}
