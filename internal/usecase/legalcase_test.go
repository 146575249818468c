package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defeso/backend/internal/core"
)

func TestLookupRejectsMalformedNumber(t *testing.T) {
	lookup := NewLookupLegalCase(newFakeCases(), newFakeFinder(), nil)

	_, err := lookup.Run(context.Background(), "123")
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))
}

func TestLookupReturnsPersistedCopyWithoutProviderCall(t *testing.T) {
	cases := newFakeCases()
	finder := newFakeFinder()
	seedCase(t, cases, syncNumberA)

	lookup := NewLookupLegalCase(cases, finder, nil)
	persisted, err := lookup.Run(context.Background(), "0001234-56.2023.8.26.0100")
	require.NoError(t, err)

	assert.Equal(t, syncNumberA, persisted.NumeroProcesso)
	assert.Empty(t, finder.calls)
}

func TestLookupFetchesAndPersistsUnknownCase(t *testing.T) {
	cases := newFakeCases()
	finder := newFakeFinder()
	cache := newFakeCache()
	finder.cases[syncNumberA] = &core.LegalCase{Court: "TJSP", Status: "em_tramitacao"}

	lookup := NewLookupLegalCase(cases, finder, cache)
	persisted, err := lookup.Run(context.Background(), syncNumberA)
	require.NoError(t, err)

	assert.Equal(t, "TJSP", persisted.Case.Court)
	stored, err := cases.GetByNumber(context.Background(), syncNumberA)
	require.NoError(t, err)
	assert.NotNil(t, stored)
	_, cached := cache.Get(context.Background(), syncNumberA)
	assert.True(t, cached)
}

func TestLookupServesFromCacheBeforeProvider(t *testing.T) {
	cases := newFakeCases()
	finder := newFakeFinder()
	cache := newFakeCache()
	cache.Put(context.Background(), syncNumberA, &core.LegalCase{Court: "TJRJ"})

	lookup := NewLookupLegalCase(cases, finder, cache)
	persisted, err := lookup.Run(context.Background(), syncNumberA)
	require.NoError(t, err)

	assert.Equal(t, "TJRJ", persisted.Case.Court)
	assert.Empty(t, finder.calls)
}

func TestLookupUnknownCaseIsNotFound(t *testing.T) {
	lookup := NewLookupLegalCase(newFakeCases(), newFakeFinder(), nil)

	_, err := lookup.Run(context.Background(), syncNumberA)
	require.Error(t, err)
	assert.Equal(t, core.KindLegalCaseNotFound, core.KindOf(err))
}
