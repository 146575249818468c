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

// CaseFinder fetches a case from the judicial API. Implemented by the
// DataJud gateway.
type CaseFinder interface {
	FindCase(ctx context.Context, number cnj.Number) (*core.LegalCase, error)
}

// LegalCaseStore is the slice of the legal-case repository the lookup and
// sync stages use.
type LegalCaseStore interface {
	GetByNumber(ctx context.Context, cleanNumber string) (*core.PersistedLegalCase, error)
	Insert(ctx context.Context, cleanNumber string, legalCase *core.LegalCase) (*core.PersistedLegalCase, error)
	ApplyUpdates(ctx context.Context, cleanNumber string, legalCase *core.LegalCase) error
	TouchSynced(ctx context.Context, cleanNumber string) error
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]core.PersistedLegalCase, error)
}

// CaseCache is the optional read-through cache in front of the provider.
type CaseCache interface {
	Get(ctx context.Context, cleanNumber string) (*core.LegalCase, bool)
	Put(ctx context.Context, cleanNumber string, legalCase *core.LegalCase)
	Invalidate(ctx context.Context, cleanNumber string)
}

// LookupLegalCase resolves a case number: persisted copy first, then cache,
// then the provider, persisting whatever the provider returned.
type LookupLegalCase struct {
	cases  LegalCaseStore
	finder CaseFinder
	cache  CaseCache
	logger *log.Logger
}

// NewLookupLegalCase wires the lookup stage. cache may be nil.
func NewLookupLegalCase(cases LegalCaseStore, finder CaseFinder, cache CaseCache) *LookupLegalCase {
	return &LookupLegalCase{
		cases:  cases,
		finder: finder,
		cache:  cache,
		logger: log.New(log.Writer(), "[LEGALCASE] ", log.LstdFlags),
	}
}

// Run returns the persisted view of the case, fetching and persisting it on
// first sight. Unknown numbers at the provider surface as not-found.
func (l *LookupLegalCase) Run(ctx context.Context, rawNumber string) (*core.PersistedLegalCase, error) {
	number, err := cnj.Parse(rawNumber)
	if err != nil {
		return nil, core.WrapError(core.KindInvalidInput, "invalid case number", err)
	}
	metrics.Increment("legal_cases_checked")

	if persisted, err := l.cases.GetByNumber(ctx, number.Clean()); err != nil {
		return nil, core.WrapError(core.KindLegalCasePersistence, "read persisted case", err)
	} else if persisted != nil {
		return persisted, nil
	}

	if l.cache != nil {
		if cached, ok := l.cache.Get(ctx, number.Clean()); ok {
			persisted, err := l.cases.Insert(ctx, number.Clean(), cached)
			if err != nil {
				return nil, err
			}
			return persisted, nil
		}
	}

	legalCase, err := l.finder.FindCase(ctx, number)
	if err != nil {
		return nil, err
	}
	if legalCase == nil {
		return nil, core.NewError(core.KindLegalCaseNotFound,
			fmt.Sprintf("case %s not found at the judicial API", number.Canonical()))
	}

	persisted, err := l.cases.Insert(ctx, number.Clean(), legalCase)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		l.cache.Put(ctx, number.Clean(), legalCase)
	}
	return persisted, nil
}
