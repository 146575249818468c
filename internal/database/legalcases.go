package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/defeso/backend/internal/core"
)

// LegalCaseRepository persists judicial processes, their movement history
// and their sync state. Movements live in a child table keyed by the unique
// (case, date, description) triple and are append-only: a sync pass adds the
// rows it has not seen and never rewrites existing ones.
type LegalCaseRepository struct {
	store *Store
}

// NewLegalCaseRepository builds the repository over the shared pool.
func NewLegalCaseRepository(store *Store) *LegalCaseRepository {
	return &LegalCaseRepository{store: store}
}

// GetByNumber fetches a persisted case by its clean 20-digit number, or nil
// when the number was never persisted.
func (r *LegalCaseRepository) GetByNumber(ctx context.Context, cleanNumber string) (*core.PersistedLegalCase, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, numero_processo, tribunal, orgao_julgador, classe, assunto, situacao,
		       data_ajuizamento, ultima_atualizacao, prioridade,
		       movimentacoes, ultima_movimentacao, last_synced_at, created_at
		FROM processos_juridicos WHERE numero_processo = $1`, cleanNumber)

	persisted, err := scanLegalCase(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch legal case %s: %w", cleanNumber, err)
	}
	if persisted.Case.Movements, err = r.loadMovements(ctx, persisted.ID); err != nil {
		return nil, err
	}
	return persisted, nil
}

// Insert persists a freshly fetched case and its movements in one
// transaction.
func (r *LegalCaseRepository) Insert(ctx context.Context, cleanNumber string, legalCase *core.LegalCase) (*core.PersistedLegalCase, error) {
	now := time.Now().UTC()

	persisted := &core.PersistedLegalCase{
		ID:             uuid.New().String(),
		NumeroProcesso: cleanNumber,
		Case:           *legalCase,
		MovementCount:  len(legalCase.Movements),
		LastSyncedAt:   &now,
		CreatedAt:      now,
	}
	if n := len(legalCase.Movements); n > 0 {
		last := legalCase.Movements[n-1].Date
		persisted.LastMovementAt = &last
	}

	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO processos_juridicos
				(id, numero_processo, tribunal, orgao_julgador, classe, assunto, situacao,
				 data_ajuizamento, ultima_atualizacao, movimentacoes,
				 ultima_movimentacao, last_synced_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (numero_processo) DO UPDATE
			SET situacao = EXCLUDED.situacao,
			    ultima_atualizacao = EXCLUDED.ultima_atualizacao,
			    movimentacoes = EXCLUDED.movimentacoes,
			    ultima_movimentacao = EXCLUDED.ultima_movimentacao,
			    last_synced_at = EXCLUDED.last_synced_at`,
			persisted.ID, cleanNumber, legalCase.Court, legalCase.JudgingBody,
			legalCase.ProceduralClass, legalCase.Subject, legalCase.Status,
			legalCase.FilingDate, legalCase.LatestUpdate,
			persisted.MovementCount, persisted.LastMovementAt, now, now)
		if err != nil {
			return err
		}
		return appendMovements(ctx, tx, cleanNumber, legalCase.Movements)
	})
	if err != nil {
		return nil, core.WrapError(core.KindLegalCasePersistence,
			fmt.Sprintf("persist legal case %s", cleanNumber), err)
	}
	return persisted, nil
}

// ApplyUpdates rewrites the mutable case fields after a sync pass found
// changes, appends the movements not yet recorded and bumps the sync
// timestamp, all in one transaction.
func (r *LegalCaseRepository) ApplyUpdates(ctx context.Context, cleanNumber string, legalCase *core.LegalCase) error {
	now := time.Now().UTC()

	var lastMovementAt *time.Time
	if n := len(legalCase.Movements); n > 0 {
		last := legalCase.Movements[n-1].Date
		lastMovementAt = &last
	}

	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE processos_juridicos
			SET tribunal = $2, orgao_julgador = $3, classe = $4, assunto = $5,
			    situacao = $6, data_ajuizamento = $7, ultima_atualizacao = $8,
			    movimentacoes = $9, ultima_movimentacao = $10, last_synced_at = $11
			WHERE numero_processo = $1`,
			cleanNumber, legalCase.Court, legalCase.JudgingBody, legalCase.ProceduralClass,
			legalCase.Subject, legalCase.Status, legalCase.FilingDate, legalCase.LatestUpdate,
			len(legalCase.Movements), lastMovementAt, now)
		if err != nil {
			return err
		}
		return appendMovements(ctx, tx, cleanNumber, legalCase.Movements)
	})
	if err != nil {
		return core.WrapError(core.KindLegalCasePersistence,
			fmt.Sprintf("update legal case %s", cleanNumber), err)
	}
	return nil
}

// appendMovements inserts the movements missing from the history. The
// primary key on (processo_id, data, descricao) makes re-seen movements
// no-ops.
func appendMovements(ctx context.Context, tx *sql.Tx, cleanNumber string, movements []core.Movement) error {
	for _, m := range movements {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO processo_movimentos (processo_id, data, descricao)
			SELECT id, $2, $3 FROM processos_juridicos WHERE numero_processo = $1
			ON CONFLICT (processo_id, data, descricao) DO NOTHING`,
			cleanNumber, m.Date, m.Description)
		if err != nil {
			return fmt.Errorf("append movement: %w", err)
		}
	}
	return nil
}

func (r *LegalCaseRepository) loadMovements(ctx context.Context, caseID string) ([]core.Movement, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT data, descricao FROM processo_movimentos
		WHERE processo_id = $1 ORDER BY data ASC, descricao ASC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("load movements for case %s: %w", caseID, err)
	}
	defer rows.Close()

	var out []core.Movement
	for rows.Next() {
		var m core.Movement
		if err := rows.Scan(&m.Date, &m.Description); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TouchSynced bumps last_synced_at without changing case content. Used when
// a sync pass found the provider view identical.
func (r *LegalCaseRepository) TouchSynced(ctx context.Context, cleanNumber string) error {
	_, err := r.store.db.ExecContext(ctx, `
		UPDATE processos_juridicos SET last_synced_at = $2 WHERE numero_processo = $1`,
		cleanNumber, time.Now().UTC())
	if err != nil {
		return core.WrapError(core.KindLegalCasePersistence,
			fmt.Sprintf("touch legal case %s", cleanNumber), err)
	}
	return nil
}

// ListStale returns up to limit cases whose last sync is older than cutoff,
// oldest first. Never-synced cases sort first.
func (r *LegalCaseRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]core.PersistedLegalCase, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, numero_processo, tribunal, orgao_julgador, classe, assunto, situacao,
		       data_ajuizamento, ultima_atualizacao, prioridade,
		       movimentacoes, ultima_movimentacao, last_synced_at, created_at
		FROM processos_juridicos
		WHERE last_synced_at IS NULL OR last_synced_at < $1
		ORDER BY last_synced_at ASC NULLS FIRST
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale legal cases: %w", err)
	}
	defer rows.Close()

	var out []core.PersistedLegalCase
	for rows.Next() {
		persisted, err := scanLegalCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan legal case: %w", err)
		}
		out = append(out, *persisted)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Case.Movements, err = r.loadMovements(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CountByStatus aggregates cases per procedural situation for dashboards.
func (r *LegalCaseRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return r.countGrouped(ctx, `
		SELECT COALESCE(situacao, ''), COUNT(*) FROM processos_juridicos GROUP BY situacao`)
}

// CountByCourt aggregates cases per court acronym.
func (r *LegalCaseRepository) CountByCourt(ctx context.Context) (map[string]int, error) {
	return r.countGrouped(ctx, `
		SELECT COALESCE(tribunal, ''), COUNT(*) FROM processos_juridicos GROUP BY tribunal`)
}

func (r *LegalCaseRepository) countGrouped(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count legal cases: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan legal case count: %w", err)
		}
		out[key] = count
	}
	return out, rows.Err()
}

// AvgMovementIntervalDays averages the spacing between consecutive
// movements across every case, in days. Zero when no case has two
// movements yet.
func (r *LegalCaseRepository) AvgMovementIntervalDays(ctx context.Context) (float64, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(diff) / 86400.0, 0) FROM (
			SELECT EXTRACT(EPOCH FROM data - lag(data) OVER (PARTITION BY processo_id ORDER BY data)) AS diff
			FROM processo_movimentos
		) deltas WHERE diff IS NOT NULL`)

	var days float64
	if err := row.Scan(&days); err != nil {
		return 0, fmt.Errorf("average movement interval: %w", err)
	}
	return days, nil
}

// TopByMovements lists the cases with the most movements, busiest first.
func (r *LegalCaseRepository) TopByMovements(ctx context.Context, limit int) ([]core.CaseMovementCount, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT numero_processo, movimentacoes FROM processos_juridicos
		ORDER BY movimentacoes DESC, numero_processo ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top cases by movements: %w", err)
	}
	defer rows.Close()

	var out []core.CaseMovementCount
	for rows.Next() {
		var entry core.CaseMovementCount
		if err := rows.Scan(&entry.NumeroProcesso, &entry.Movements); err != nil {
			return nil, fmt.Errorf("scan case ranking: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanLegalCase(row rowScanner) (*core.PersistedLegalCase, error) {
	var persisted core.PersistedLegalCase
	var priority sql.NullString
	var filingDate, lastMovementAt, lastSyncedAt sql.NullTime
	var latestUpdate sql.NullString

	err := row.Scan(&persisted.ID, &persisted.NumeroProcesso, &persisted.Case.Court,
		&persisted.Case.JudgingBody, &persisted.Case.ProceduralClass, &persisted.Case.Subject,
		&persisted.Case.Status, &filingDate, &latestUpdate, &priority,
		&persisted.MovementCount, &lastMovementAt, &lastSyncedAt, &persisted.CreatedAt)
	if err != nil {
		return nil, err
	}

	persisted.Case.CaseNumber = persisted.NumeroProcesso
	if filingDate.Valid {
		persisted.Case.FilingDate = filingDate.Time
	}
	if latestUpdate.Valid {
		persisted.Case.LatestUpdate = latestUpdate.String
	}
	if priority.Valid {
		persisted.Priority = priority.String
	}
	if lastMovementAt.Valid {
		t := lastMovementAt.Time
		persisted.LastMovementAt = &t
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		persisted.LastSyncedAt = &t
	}
	return &persisted, nil
}
