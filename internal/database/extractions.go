package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/defeso/backend/internal/core"
)

// ExtractionRepository persists extractor payloads, one row per document.
type ExtractionRepository struct {
	store *Store
}

// NewExtractionRepository builds the repository over the shared pool.
func NewExtractionRepository(store *Store) *ExtractionRepository {
	return &ExtractionRepository{store: store}
}

// Upsert writes the extraction payload for a document. Re-extraction
// replaces the previous payload, keeping the invariant of at most one row
// per document.
func (r *ExtractionRepository) Upsert(ctx context.Context, extraction *core.DocumentExtraction) error {
	raw, err := json.Marshal(extraction.Payload)
	if err != nil {
		return fmt.Errorf("marshal extraction payload: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO extracoes (document_id, document_type, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (document_id) DO UPDATE
		SET document_type = EXCLUDED.document_type,
		    payload = EXCLUDED.payload,
		    updated_at = EXCLUDED.updated_at`,
		extraction.DocumentID, extraction.DocumentType, raw, now)
	if err != nil {
		return fmt.Errorf("upsert extraction for %s: %w", extraction.DocumentID, err)
	}
	return nil
}

// Get fetches the extraction of one document, or nil when the document was
// never extracted.
func (r *ExtractionRepository) Get(ctx context.Context, documentID string) (*core.DocumentExtraction, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT document_id, document_type, payload, created_at, updated_at
		FROM extracoes WHERE document_id = $1`, documentID)

	extraction, err := scanExtraction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch extraction for %s: %w", documentID, err)
	}
	return extraction, nil
}

// ListBySolicitation returns the extractions of every document of a
// solicitation.
func (r *ExtractionRepository) ListBySolicitation(ctx context.Context, solicitationID string) ([]core.DocumentExtraction, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT e.document_id, e.document_type, e.payload, e.created_at, e.updated_at
		FROM extracoes e
		JOIN documentos d ON d.id = e.document_id
		WHERE d.solicitacao_id = $1
		ORDER BY e.created_at`, solicitationID)
	if err != nil {
		return nil, fmt.Errorf("list extractions for %s: %w", solicitationID, err)
	}
	defer rows.Close()

	var out []core.DocumentExtraction
	for rows.Next() {
		extraction, err := scanExtraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan extraction: %w", err)
		}
		out = append(out, *extraction)
	}
	return out, rows.Err()
}

func scanExtraction(row rowScanner) (*core.DocumentExtraction, error) {
	var extraction core.DocumentExtraction
	var raw []byte
	err := row.Scan(&extraction.DocumentID, &extraction.DocumentType, &raw,
		&extraction.CreatedAt, &extraction.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &extraction.Payload); err != nil {
			return nil, fmt.Errorf("decode extraction payload: %w", err)
		}
	}
	return &extraction, nil
}
