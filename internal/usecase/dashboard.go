package usecase

import (
	"context"

	"github.com/defeso/backend/internal/core"
	"github.com/defeso/backend/internal/metrics"
)

// SolicitationDashboardStore is the aggregation slice the solicitation
// dashboard reads. Every query honours the same filter.
type SolicitationDashboardStore interface {
	CountSolicitationsByStatus(ctx context.Context, filter core.SolicitationFilter) (map[string]int, error)
	CountSolicitationsByPriority(ctx context.Context, filter core.SolicitationFilter) (map[string]int, error)
	SolicitationsCreatedPerDay(ctx context.Context, filter core.SolicitationFilter, days int) (map[string]int, error)
	CountDocumentsByClassification(ctx context.Context) (map[string]int, error)
	CountEligibilityByStatus(ctx context.Context) (map[string]int, error)
}

// ProcessDashboardStore is the aggregation slice the legal-case dashboard
// reads.
type ProcessDashboardStore interface {
	CountLegalCasesByStatus(ctx context.Context) (map[string]int, error)
	CountLegalCasesByCourt(ctx context.Context) (map[string]int, error)
	AvgMovementIntervalDays(ctx context.Context) (float64, error)
	TopCasesByMovements(ctx context.Context, limit int) ([]core.CaseMovementCount, error)
}

// SolicitationDashboard is the analyst-facing overview of the intake
// pipeline, narrowed by the request filter.
type SolicitationDashboard struct {
	Total       int              `json:"total"`
	ByStatus    map[string]int   `json:"solicitacoes_por_status"`
	ByPriority  map[string]int   `json:"solicitacoes_por_prioridade"`
	PerDay      map[string]int   `json:"solicitacoes_por_dia"`
	Documents   map[string]int   `json:"documentos_por_classe"`
	Eligibility map[string]int   `json:"elegibilidade_por_status"`
	Counters    map[string]int64 `json:"contadores"`
}

// ProcessDashboard summarises the persisted legal cases.
type ProcessDashboard struct {
	ByStatus                map[string]int           `json:"processos_por_situacao"`
	ByCourt                 map[string]int           `json:"processos_por_tribunal"`
	AvgMovementIntervalDays float64                  `json:"intervalo_medio_movimentacao_dias"`
	TopByMovements          []core.CaseMovementCount `json:"mais_movimentados"`
}

// BuildSolicitationDashboard assembles the intake overview.
type BuildSolicitationDashboard struct {
	store      SolicitationDashboardStore
	windowDays int
}

// NewBuildSolicitationDashboard wires the dashboard stage. windowDays
// bounds the per-day series.
func NewBuildSolicitationDashboard(store SolicitationDashboardStore, windowDays int) *BuildSolicitationDashboard {
	if windowDays < 1 {
		windowDays = 30
	}
	return &BuildSolicitationDashboard{store: store, windowDays: windowDays}
}

// Run gathers the filtered aggregations plus the live pipeline counters.
func (b *BuildSolicitationDashboard) Run(ctx context.Context, filter core.SolicitationFilter) (*SolicitationDashboard, error) {
	byStatus, err := b.store.CountSolicitationsByStatus(ctx, filter)
	if err != nil {
		return nil, core.WrapError(core.KindDomain, "aggregate solicitations", err)
	}
	byPriority, err := b.store.CountSolicitationsByPriority(ctx, filter)
	if err != nil {
		return nil, core.WrapError(core.KindDomain, "aggregate solicitations by priority", err)
	}
	perDay, err := b.store.SolicitationsCreatedPerDay(ctx, filter, b.windowDays)
	if err != nil {
		return nil, core.WrapError(core.KindDomain, "aggregate solicitations per day", err)
	}
	documents, err := b.store.CountDocumentsByClassification(ctx)
	if err != nil {
		return nil, core.WrapError(core.KindDomain, "aggregate documents", err)
	}
	eligibility, err := b.store.CountEligibilityByStatus(ctx)
	if err != nil {
		return nil, core.WrapError(core.KindDomain, "aggregate eligibility", err)
	}

	total := 0
	for _, count := range byStatus {
		total += count
	}

	return &SolicitationDashboard{
		Total:       total,
		ByStatus:    byStatus,
		ByPriority:  byPriority,
		PerDay:      perDay,
		Documents:   documents,
		Eligibility: eligibility,
		Counters:    metrics.Snapshot(),
	}, nil
}

// BuildProcessDashboard assembles the legal-case overview.
type BuildProcessDashboard struct {
	store    ProcessDashboardStore
	topLimit int
}

// NewBuildProcessDashboard wires the dashboard stage. topLimit bounds the
// busiest-cases ranking.
func NewBuildProcessDashboard(store ProcessDashboardStore, topLimit int) *BuildProcessDashboard {
	if topLimit < 1 {
		topLimit = 5
	}
	return &BuildProcessDashboard{store: store, topLimit: topLimit}
}

// Run gathers the legal-case aggregations.
func (b *BuildProcessDashboard) Run(ctx context.Context) (*ProcessDashboard, error) {
	byStatus, err := b.store.CountLegalCasesByStatus(ctx)
	if err != nil {
		return nil, core.WrapError(core.KindDomain, "aggregate legal cases", err)
	}
	byCourt, err := b.store.CountLegalCasesByCourt(ctx)
	if err != nil {
		return nil, core.WrapError(core.KindDomain, "aggregate legal cases by court", err)
	}
	interval, err := b.store.AvgMovementIntervalDays(ctx)
	if err != nil {
		return nil, core.WrapError(core.KindDomain, "average movement interval", err)
	}
	top, err := b.store.TopCasesByMovements(ctx, b.topLimit)
	if err != nil {
		return nil, core.WrapError(core.KindDomain, "rank cases by movements", err)
	}

	return &ProcessDashboard{
		ByStatus:                byStatus,
		ByCourt:                 byCourt,
		AvgMovementIntervalDays: interval,
		TopByMovements:          top,
	}, nil
}
