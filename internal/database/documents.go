package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/defeso/backend/internal/core"
)

// DocumentRepository persists uploaded documents and their classification.
type DocumentRepository struct {
	store *Store
}

// NewDocumentRepository builds the repository over the shared pool.
func NewDocumentRepository(store *Store) *DocumentRepository {
	return &DocumentRepository{store: store}
}

// Create inserts the document row after its bytes reached object storage.
func (r *DocumentRepository) Create(ctx context.Context, doc *core.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO documentos (id, solicitacao_id, s3_key, mimetype, file_name, uploaded_by, uploaded_at, classificacao, confianca)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.SolicitationID, doc.S3Key, doc.Mimetype, doc.FileName,
		doc.UploadedBy, doc.UploadedAt, doc.Classification, doc.Confidence)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Get fetches one document by id.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*core.Document, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, solicitacao_id, s3_key, mimetype, file_name, uploaded_by, uploaded_at, classificacao, confianca
		FROM documentos WHERE id = $1`, id)
	return scanDocument(row)
}

// ListBySolicitation returns every document of a solicitation in upload
// order.
func (r *DocumentRepository) ListBySolicitation(ctx context.Context, solicitationID string) ([]core.Document, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, solicitacao_id, s3_key, mimetype, file_name, uploaded_by, uploaded_at, classificacao, confianca
		FROM documentos WHERE solicitacao_id = $1 ORDER BY uploaded_at`, solicitationID)
	if err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", solicitationID, err)
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// SetClassification records the classifier verdict for a document.
// Confidence may be nil when the provider reports none.
func (r *DocumentRepository) SetClassification(ctx context.Context, id string, class core.DocumentClassification, confidence *float64) error {
	result, err := r.store.db.ExecContext(ctx, `
		UPDATE documentos SET classificacao = $2, confianca = $3 WHERE id = $1`,
		id, class, confidence)
	if err != nil {
		return fmt.Errorf("set classification for %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return core.NewError(core.KindDocumentNotFound, fmt.Sprintf("document %s not found", id))
	}
	return nil
}

// CountByClassification aggregates documents per class for dashboards.
func (r *DocumentRepository) CountByClassification(ctx context.Context) (map[string]int, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT COALESCE(classificacao, 'NAO_CLASSIFICADO'), COUNT(*)
		FROM documentos GROUP BY classificacao`)
	if err != nil {
		return nil, fmt.Errorf("count documents by class: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var class string
		var count int
		if err := rows.Scan(&class, &count); err != nil {
			return nil, fmt.Errorf("scan class count: %w", err)
		}
		out[class] = count
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*core.Document, error) {
	var doc core.Document
	var class sql.NullString
	var confidence sql.NullFloat64
	err := row.Scan(&doc.ID, &doc.SolicitationID, &doc.S3Key, &doc.Mimetype,
		&doc.FileName, &doc.UploadedBy, &doc.UploadedAt, &class, &confidence)
	if err == sql.ErrNoRows {
		return nil, core.NewError(core.KindDocumentNotFound, "document not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if class.Valid {
		c := core.ParseClassification(class.String)
		doc.Classification = &c
	}
	if confidence.Valid {
		doc.Confidence = &confidence.Float64
	}
	return &doc, nil
}
