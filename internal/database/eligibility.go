package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/defeso/backend/internal/core"
)

// EligibilityRepository persists eligibility verdicts, one per solicitation.
type EligibilityRepository struct {
	store *Store
}

// NewEligibilityRepository builds the repository over the shared pool.
func NewEligibilityRepository(store *Store) *EligibilityRepository {
	return &EligibilityRepository{store: store}
}

// Upsert writes the verdict for a solicitation. Re-evaluation replaces the
// previous verdict.
func (r *EligibilityRepository) Upsert(ctx context.Context, result *core.EligibilityResult) error {
	pending, err := json.Marshal(result.PendingItems)
	if err != nil {
		return fmt.Errorf("marshal pending items: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO elegibilidade (solicitacao_id, status, score_texto, pendencias, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (solicitacao_id) DO UPDATE
		SET status = EXCLUDED.status,
		    score_texto = EXCLUDED.score_texto,
		    pendencias = EXCLUDED.pendencias,
		    updated_at = EXCLUDED.updated_at`,
		result.SolicitationID, result.Status, result.ScoreText, pending, now)
	if err != nil {
		return fmt.Errorf("upsert eligibility for %s: %w", result.SolicitationID, err)
	}
	return nil
}

// Get fetches the verdict of one solicitation, or nil when none exists yet.
func (r *EligibilityRepository) Get(ctx context.Context, solicitationID string) (*core.EligibilityResult, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT solicitacao_id, status, score_texto, pendencias, created_at, updated_at
		FROM elegibilidade WHERE solicitacao_id = $1`, solicitationID)

	var result core.EligibilityResult
	var pending []byte
	err := row.Scan(&result.SolicitationID, &result.Status, &result.ScoreText,
		&pending, &result.CreatedAt, &result.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch eligibility for %s: %w", solicitationID, err)
	}
	if len(pending) > 0 {
		if err := json.Unmarshal(pending, &result.PendingItems); err != nil {
			return nil, fmt.Errorf("decode pending items for %s: %w", solicitationID, err)
		}
	}
	return &result, nil
}

// CountByStatus aggregates verdicts per status for dashboards.
func (r *EligibilityRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM elegibilidade GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count eligibility by status: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan eligibility count: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}
