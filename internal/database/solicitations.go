package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/defeso/backend/internal/core"
)

// SolicitationRepository persists benefit requests.
type SolicitationRepository struct {
	store *Store
}

// NewSolicitationRepository builds the repository over the shared pool.
func NewSolicitationRepository(store *Store) *SolicitationRepository {
	return &SolicitationRepository{store: store}
}

// Create inserts a new solicitation, pending and at the lowest priority,
// and returns it.
func (r *SolicitationRepository) Create(ctx context.Context) (*core.Solicitation, error) {
	now := time.Now().UTC()
	sol := &core.Solicitation{
		ID:        uuid.New().String(),
		Status:    core.SolicitationPendente,
		Priority:  core.PriorityBaixa,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO solicitacoes (id, status, prioridade, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sol.ID, sol.Status, sol.Priority, sol.CreatedAt, sol.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert solicitation: %w", err)
	}
	return sol, nil
}

// Get fetches one solicitation by id.
func (r *SolicitationRepository) Get(ctx context.Context, id string) (*core.Solicitation, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, status, prioridade, dados_pescador, analise, created_at, updated_at
		FROM solicitacoes WHERE id = $1`, id)

	var sol core.Solicitation
	var fisherData, analysis []byte
	err := row.Scan(&sol.ID, &sol.Status, &sol.Priority, &fisherData, &analysis, &sol.CreatedAt, &sol.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.NewError(core.KindSolicitationNotFound, fmt.Sprintf("solicitation %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("fetch solicitation %s: %w", id, err)
	}

	if len(fisherData) > 0 {
		if err := json.Unmarshal(fisherData, &sol.FisherData); err != nil {
			return nil, fmt.Errorf("decode fisher data for %s: %w", id, err)
		}
	}
	if len(analysis) > 0 {
		if err := json.Unmarshal(analysis, &sol.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis for %s: %w", id, err)
		}
	}
	return &sol, nil
}

// UpdateStatus moves the solicitation to status and bumps updated_at.
func (r *SolicitationRepository) UpdateStatus(ctx context.Context, id string, status core.SolicitationStatus) error {
	result, err := r.store.db.ExecContext(ctx, `
		UPDATE solicitacoes SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update solicitation %s status: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return core.NewError(core.KindSolicitationNotFound, fmt.Sprintf("solicitation %s not found", id))
	}
	return nil
}

// SetAnalysis stores the eligibility analysis blob on the solicitation row.
func (r *SolicitationRepository) SetAnalysis(ctx context.Context, id string, analysis map[string]interface{}) error {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		UPDATE solicitacoes SET analise = $2, updated_at = $3 WHERE id = $1`,
		id, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store analysis for %s: %w", id, err)
	}
	return nil
}

// filterClauses renders the dashboard filter as a WHERE fragment. UF and
// city live inside the dados_pescador JSONB blob.
func filterClauses(f core.SolicitationFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	add := func(cond string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Priority != "" {
		add("prioridade = $%d", f.Priority)
	}
	if f.UF != "" {
		add("dados_pescador->>'uf' ILIKE $%d", f.UF)
	}
	if f.City != "" {
		add("dados_pescador->>'cidade' ILIKE $%d", f.City)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CountByStatus aggregates solicitations per workflow state for dashboards.
func (r *SolicitationRepository) CountByStatus(ctx context.Context, filter core.SolicitationFilter) (map[string]int, error) {
	where, args := filterClauses(filter)
	return r.countGrouped(ctx, `SELECT status, COUNT(*) FROM solicitacoes`+where+` GROUP BY status`, args)
}

// CountByPriority aggregates solicitations per triage priority.
func (r *SolicitationRepository) CountByPriority(ctx context.Context, filter core.SolicitationFilter) (map[string]int, error) {
	where, args := filterClauses(filter)
	return r.countGrouped(ctx, `SELECT prioridade, COUNT(*) FROM solicitacoes`+where+` GROUP BY prioridade`, args)
}

func (r *SolicitationRepository) countGrouped(ctx context.Context, query string, args []interface{}) (map[string]int, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count solicitations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan solicitation count: %w", err)
		}
		out[key] = count
	}
	return out, rows.Err()
}

// CreatedPerDay buckets new solicitations by day over the trailing window,
// under the same filter as the other aggregations.
func (r *SolicitationRepository) CreatedPerDay(ctx context.Context, filter core.SolicitationFilter, days int) (map[string]int, error) {
	where, args := filterClauses(filter)
	args = append(args, days)
	window := fmt.Sprintf("created_at >= NOW() - ($%d || ' days')::interval", len(args))
	if where == "" {
		where = " WHERE " + window
	} else {
		where += " AND " + window
	}

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT date_trunc('day', created_at)::date AS day, COUNT(*)
		FROM solicitacoes`+where+`
		GROUP BY day ORDER BY day`, args...)
	if err != nil {
		return nil, fmt.Errorf("count solicitations per day: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var day time.Time
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan day count: %w", err)
		}
		out[day.Format("2006-01-02")] = count
	}
	return out, rows.Err()
}
