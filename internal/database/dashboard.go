package database

import (
	"context"

	"github.com/defeso/backend/internal/core"
)

// DashboardQueries bundles the aggregation queries of every repository
// behind one value, matching what the dashboard stages expect.
type DashboardQueries struct {
	solicitations *SolicitationRepository
	documents     *DocumentRepository
	eligibility   *EligibilityRepository
	legalCases    *LegalCaseRepository
}

// NewDashboardQueries wires the aggregations over the existing repositories.
func NewDashboardQueries(
	solicitations *SolicitationRepository,
	documents *DocumentRepository,
	eligibility *EligibilityRepository,
	legalCases *LegalCaseRepository,
) *DashboardQueries {
	return &DashboardQueries{
		solicitations: solicitations,
		documents:     documents,
		eligibility:   eligibility,
		legalCases:    legalCases,
	}
}

func (d *DashboardQueries) CountSolicitationsByStatus(ctx context.Context, filter core.SolicitationFilter) (map[string]int, error) {
	return d.solicitations.CountByStatus(ctx, filter)
}

func (d *DashboardQueries) CountSolicitationsByPriority(ctx context.Context, filter core.SolicitationFilter) (map[string]int, error) {
	return d.solicitations.CountByPriority(ctx, filter)
}

func (d *DashboardQueries) SolicitationsCreatedPerDay(ctx context.Context, filter core.SolicitationFilter, days int) (map[string]int, error) {
	return d.solicitations.CreatedPerDay(ctx, filter, days)
}

func (d *DashboardQueries) CountDocumentsByClassification(ctx context.Context) (map[string]int, error) {
	return d.documents.CountByClassification(ctx)
}

func (d *DashboardQueries) CountEligibilityByStatus(ctx context.Context) (map[string]int, error) {
	return d.eligibility.CountByStatus(ctx)
}

func (d *DashboardQueries) CountLegalCasesByStatus(ctx context.Context) (map[string]int, error) {
	return d.legalCases.CountByStatus(ctx)
}

func (d *DashboardQueries) CountLegalCasesByCourt(ctx context.Context) (map[string]int, error) {
	return d.legalCases.CountByCourt(ctx)
}

func (d *DashboardQueries) AvgMovementIntervalDays(ctx context.Context) (float64, error) {
	return d.legalCases.AvgMovementIntervalDays(ctx)
}

func (d *DashboardQueries) TopCasesByMovements(ctx context.Context, limit int) ([]core.CaseMovementCount, error) {
	return d.legalCases.TopByMovements(ctx, limit)
}
