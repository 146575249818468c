package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/defeso/backend/internal/cnj"
	"github.com/defeso/backend/internal/core"
	"github.com/defeso/backend/internal/metrics"
)

// SyncSummary reports one pass of the periodic legal-case refresh. Errors
// lists per-case failures; the pass keeps going past them.
type SyncSummary struct {
	Checked      int      `json:"checked"`
	Updated      int      `json:"updated"`
	NewMovements int      `json:"new_movements"`
	FieldChanges int      `json:"field_changes"`
	NotFound     int      `json:"not_found"`
	Errors       []string `json:"errors"`
}

// SyncLegalCases refreshes persisted cases whose last sync went stale,
// spacing provider calls to honour its request budget.
type SyncLegalCases struct {
	cases          LegalCaseStore
	finder         CaseFinder
	cache          CaseCache
	batchSize      int
	staleAfter     time.Duration
	minCallSpacing time.Duration
	logger         *log.Logger

	// sleep is swappable so tests run without real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyncLegalCases wires the sync stage. externalRPM caps provider calls
// per minute; cache may be nil.
func NewSyncLegalCases(cases LegalCaseStore, finder CaseFinder, cache CaseCache, batchSize, staleAfterDays, externalRPM int) *SyncLegalCases {
	if batchSize < 1 {
		batchSize = 1
	}
	if externalRPM < 1 {
		externalRPM = 1
	}
	return &SyncLegalCases{
		cases:          cases,
		finder:         finder,
		cache:          cache,
		batchSize:      batchSize,
		staleAfter:     time.Duration(staleAfterDays) * 24 * time.Hour,
		minCallSpacing: time.Minute / time.Duration(externalRPM),
		logger:         log.New(log.Writer(), "[SYNC] ", log.LstdFlags),
		sleep:          sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run refreshes one batch of stale cases sequentially, waiting the minimum
// spacing between provider calls. Per-case failures are counted and the pass
// keeps going; only context cancellation aborts it.
func (s *SyncLegalCases) Run(ctx context.Context) (SyncSummary, error) {
	var summary SyncSummary
	metrics.Increment("scheduler_runs")

	cutoff := time.Now().UTC().Add(-s.staleAfter)
	stale, err := s.cases.ListStale(ctx, cutoff, s.batchSize)
	if err != nil {
		return summary, core.WrapError(core.KindLegalCasePersistence, "list stale cases", err)
	}
	if len(stale) == 0 {
		s.logger.Printf("no stale cases, pass finished")
		return summary, nil
	}

	for i, persisted := range stale {
		if i > 0 {
			if err := s.sleep(ctx, s.minCallSpacing); err != nil {
				return summary, err
			}
		}
		if err := s.syncOne(ctx, persisted, &summary); err != nil {
			if ctx.Err() != nil {
				return summary, err
			}
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("%s: %v", persisted.NumeroProcesso, err))
			metrics.Increment("legal_case_sync_errors")
			s.logger.Printf("sync failed for case %s: %v", persisted.NumeroProcesso, err)
		}
	}

	s.logger.Printf("pass finished: checked=%d updated=%d new_movements=%d field_changes=%d not_found=%d errors=%d",
		summary.Checked, summary.Updated, summary.NewMovements, summary.FieldChanges, summary.NotFound, len(summary.Errors))
	return summary, nil
}

func (s *SyncLegalCases) syncOne(ctx context.Context, persisted core.PersistedLegalCase, summary *SyncSummary) error {
	summary.Checked++
	metrics.Increment("legal_cases_checked")

	number, err := parseClean(persisted.NumeroProcesso)
	if err != nil {
		return err
	}

	fresh, err := s.finder.FindCase(ctx, number)
	if err != nil {
		return err
	}
	if fresh == nil {
		summary.NotFound++
		return s.cases.TouchSynced(ctx, persisted.NumeroProcesso)
	}

	newMovements := countNewMovements(persisted.Case.Movements, fresh.Movements)
	changedFields := countFieldChanges(persisted.Case, *fresh)
	if newMovements == 0 && changedFields == 0 {
		return s.cases.TouchSynced(ctx, persisted.NumeroProcesso)
	}

	if err := s.cases.ApplyUpdates(ctx, persisted.NumeroProcesso, fresh); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, persisted.NumeroProcesso)
	}
	summary.Updated++
	summary.NewMovements += newMovements
	summary.FieldChanges += changedFields
	metrics.Increment("legal_cases_updated")
	metrics.Add("legal_case_new_movements", int64(newMovements))
	return nil
}

func parseClean(clean string) (cnj.Number, error) {
	number, err := cnj.Parse(clean)
	if err != nil {
		return cnj.Number{}, core.WrapError(core.KindInvalidInput, "persisted case number is invalid", err)
	}
	return number, nil
}

// countNewMovements counts fresh movements absent from the known set.
// Movement identity is the (date, description) pair.
func countNewMovements(known, fresh []core.Movement) int {
	type identity struct {
		date        time.Time
		description string
	}
	seen := make(map[identity]bool, len(known))
	for _, m := range known {
		seen[identity{m.Date, m.Description}] = true
	}
	count := 0
	for _, m := range fresh {
		if !seen[identity{m.Date, m.Description}] {
			count++
		}
	}
	return count
}

// countFieldChanges compares the scalar case fields the sync tracks.
func countFieldChanges(known, fresh core.LegalCase) int {
	count := 0
	if known.Court != fresh.Court {
		count++
	}
	if known.JudgingBody != fresh.JudgingBody {
		count++
	}
	if known.ProceduralClass != fresh.ProceduralClass {
		count++
	}
	if known.Subject != fresh.Subject {
		count++
	}
	if known.Status != fresh.Status {
		count++
	}
	if !known.FilingDate.Equal(fresh.FilingDate) {
		count++
	}
	if known.LatestUpdate != fresh.LatestUpdate {
		count++
	}
	return count
}
