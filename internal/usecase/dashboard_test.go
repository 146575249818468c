package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defeso/backend/internal/core"
)

type fakeDashboardStore struct {
	lastFilter  core.SolicitationFilter
	lastDays    int
	lastLimit   int
	byStatus    map[string]int
	byPriority  map[string]int
	perDay      map[string]int
	documents   map[string]int
	eligibility map[string]int
	caseStatus  map[string]int
	caseCourt   map[string]int
	interval    float64
	top         []core.CaseMovementCount
}

func (f *fakeDashboardStore) CountSolicitationsByStatus(ctx context.Context, filter core.SolicitationFilter) (map[string]int, error) {
	f.lastFilter = filter
	return f.byStatus, nil
}

func (f *fakeDashboardStore) CountSolicitationsByPriority(ctx context.Context, filter core.SolicitationFilter) (map[string]int, error) {
	return f.byPriority, nil
}

func (f *fakeDashboardStore) SolicitationsCreatedPerDay(ctx context.Context, filter core.SolicitationFilter, days int) (map[string]int, error) {
	f.lastDays = days
	return f.perDay, nil
}

func (f *fakeDashboardStore) CountDocumentsByClassification(ctx context.Context) (map[string]int, error) {
	return f.documents, nil
}

func (f *fakeDashboardStore) CountEligibilityByStatus(ctx context.Context) (map[string]int, error) {
	return f.eligibility, nil
}

func (f *fakeDashboardStore) CountLegalCasesByStatus(ctx context.Context) (map[string]int, error) {
	return f.caseStatus, nil
}

func (f *fakeDashboardStore) CountLegalCasesByCourt(ctx context.Context) (map[string]int, error) {
	return f.caseCourt, nil
}

func (f *fakeDashboardStore) AvgMovementIntervalDays(ctx context.Context) (float64, error) {
	return f.interval, nil
}

func (f *fakeDashboardStore) TopCasesByMovements(ctx context.Context, limit int) ([]core.CaseMovementCount, error) {
	f.lastLimit = limit
	return f.top, nil
}

func TestSolicitationDashboardPassesFilterAndTotals(t *testing.T) {
	store := &fakeDashboardStore{
		byStatus:   map[string]int{"pendente": 3, "aprovada": 2},
		byPriority: map[string]int{"baixa": 5},
		perDay:     map[string]int{"2024-03-10": 5},
	}
	filter := core.SolicitationFilter{Status: "pendente", UF: "PA"}

	dashboard, err := NewBuildSolicitationDashboard(store, 7).Run(context.Background(), filter)
	require.NoError(t, err)

	assert.Equal(t, filter, store.lastFilter)
	assert.Equal(t, 7, store.lastDays)
	assert.Equal(t, 5, dashboard.Total)
	assert.Equal(t, map[string]int{"baixa": 5}, dashboard.ByPriority)
}

func TestProcessDashboardAssemblesAggregations(t *testing.T) {
	store := &fakeDashboardStore{
		caseStatus: map[string]int{"em_tramitacao": 4},
		caseCourt:  map[string]int{"TJSP": 3, "TJRJ": 1},
		interval:   2.5,
		top: []core.CaseMovementCount{
			{NumeroProcesso: "00012345620238260100", Movements: 12},
		},
	}

	dashboard, err := NewBuildProcessDashboard(store, 5).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, store.lastLimit)
	assert.Equal(t, map[string]int{"TJSP": 3, "TJRJ": 1}, dashboard.ByCourt)
	assert.Equal(t, 2.5, dashboard.AvgMovementIntervalDays)
	require.Len(t, dashboard.TopByMovements, 1)
	assert.Equal(t, 12, dashboard.TopByMovements[0].Movements)
}
