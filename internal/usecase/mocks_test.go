package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/defeso/backend/internal/cnj"
	"github.com/defeso/backend/internal/core"
	"github.com/defeso/backend/internal/genai"
)

// In-memory doubles for the repository and gateway interfaces.

type fakeSolicitations struct {
	mu         sync.Mutex
	rows       map[string]*core.Solicitation
	statuses   []core.SolicitationStatus
	failUpdate bool
}

func newFakeSolicitations() *fakeSolicitations {
	return &fakeSolicitations{rows: make(map[string]*core.Solicitation)}
}

func (f *fakeSolicitations) Create(ctx context.Context) (*core.Solicitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sol := &core.Solicitation{
		ID:        uuid.New().String(),
		Status:    core.SolicitationPendente,
		Priority:  core.PriorityBaixa,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.rows[sol.ID] = sol
	return sol, nil
}

func (f *fakeSolicitations) Get(ctx context.Context, id string) (*core.Solicitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sol, ok := f.rows[id]
	if !ok {
		return nil, core.NewError(core.KindSolicitationNotFound, "solicitation "+id+" not found")
	}
	copied := *sol
	return &copied, nil
}

func (f *fakeSolicitations) UpdateStatus(ctx context.Context, id string, status core.SolicitationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return fmt.Errorf("update refused")
	}
	sol, ok := f.rows[id]
	if !ok {
		return core.NewError(core.KindSolicitationNotFound, "solicitation "+id+" not found")
	}
	sol.Status = status
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeSolicitations) SetAnalysis(ctx context.Context, id string, analysis map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sol, ok := f.rows[id]; ok {
		sol.Analysis = analysis
	}
	return nil
}

type fakeDocuments struct {
	mu           sync.Mutex
	rows         map[string]*core.Document
	failCreate   bool
	failClassify map[string]bool
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{
		rows:         make(map[string]*core.Document),
		failClassify: make(map[string]bool),
	}
}

func (f *fakeDocuments) Create(ctx context.Context, doc *core.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return fmt.Errorf("insert refused")
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	copied := *doc
	f.rows[doc.ID] = &copied
	return nil
}

func (f *fakeDocuments) Get(ctx context.Context, id string) (*core.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.rows[id]
	if !ok {
		return nil, core.NewError(core.KindDocumentNotFound, "document "+id+" not found")
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocuments) ListBySolicitation(ctx context.Context, solicitationID string) ([]core.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Document
	for _, doc := range f.rows {
		if doc.SolicitationID == solicitationID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocuments) SetClassification(ctx context.Context, id string, class core.DocumentClassification, confidence *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.rows[id]
	if !ok {
		return core.NewError(core.KindDocumentNotFound, "document "+id+" not found")
	}
	if f.failClassify[doc.FileName] {
		return fmt.Errorf("classification write refused")
	}
	doc.Classification = &class
	doc.Confidence = confidence
	return nil
}

type fakeStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deleted  []string
	failKeys map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte), failKeys: make(map[string]bool)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKeys[key] {
		return core.NewError(core.KindStorage, "upload refused for "+key)
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, core.NewError(core.KindStorage, "object "+key+" missing")
	}
	return data, nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeClassifier struct {
	class core.DocumentClassification
}

func (f *fakeClassifier) Classify(ctx context.Context, data []byte, mimeType string) core.DocumentClassification {
	return f.class
}

type fakeExtractions struct {
	mu      sync.Mutex
	rows    map[string]*core.DocumentExtraction
	upserts int
}

func newFakeExtractions() *fakeExtractions {
	return &fakeExtractions{rows: make(map[string]*core.DocumentExtraction)}
}

func (f *fakeExtractions) Upsert(ctx context.Context, extraction *core.DocumentExtraction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *extraction
	f.rows[extraction.DocumentID] = &copied
	f.upserts++
	return nil
}

func (f *fakeExtractions) Get(ctx context.Context, documentID string) (*core.DocumentExtraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	extraction, ok := f.rows[documentID]
	if !ok {
		return nil, nil
	}
	copied := *extraction
	return &copied, nil
}

func (f *fakeExtractions) ListBySolicitation(ctx context.Context, solicitationID string) ([]core.DocumentExtraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.DocumentExtraction
	for _, extraction := range f.rows {
		out = append(out, *extraction)
	}
	return out, nil
}

type fakeExtractor struct {
	mu       sync.Mutex
	failDocs map[string]bool
	calls    int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{failDocs: make(map[string]bool)}
}

func (f *fakeExtractor) Extract(ctx context.Context, doc core.Document, data []byte) (map[string]interface{}, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failDocs[doc.ID]
	f.mu.Unlock()
	if fail {
		return nil, core.NewError(core.KindExtraction, "extraction refused for "+doc.ID)
	}
	return map[string]interface{}{"documento": doc.FileName}, nil
}

type fakeEvaluator struct {
	evaluation genai.Evaluation
	err        error
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, sol core.Solicitation, docs []core.Document, extractions []core.DocumentExtraction, rules string) (genai.Evaluation, error) {
	return f.evaluation, f.err
}

type fakeEligibility struct {
	mu   sync.Mutex
	rows map[string]*core.EligibilityResult
}

func newFakeEligibility() *fakeEligibility {
	return &fakeEligibility{rows: make(map[string]*core.EligibilityResult)}
}

func (f *fakeEligibility) Upsert(ctx context.Context, result *core.EligibilityResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *result
	f.rows[result.SolicitationID] = &copied
	return nil
}

func (f *fakeEligibility) Get(ctx context.Context, solicitationID string) (*core.EligibilityResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.rows[solicitationID]
	if !ok {
		return nil, nil
	}
	copied := *result
	return &copied, nil
}

type fakeCases struct {
	mu      sync.Mutex
	rows    map[string]*core.PersistedLegalCase
	touched []string
	updated []string
}

func newFakeCases() *fakeCases {
	return &fakeCases{rows: make(map[string]*core.PersistedLegalCase)}
}

func (f *fakeCases) GetByNumber(ctx context.Context, cleanNumber string) (*core.PersistedLegalCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	persisted, ok := f.rows[cleanNumber]
	if !ok {
		return nil, nil
	}
	copied := *persisted
	return &copied, nil
}

func (f *fakeCases) Insert(ctx context.Context, cleanNumber string, legalCase *core.LegalCase) (*core.PersistedLegalCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	persisted := &core.PersistedLegalCase{
		ID:             uuid.New().String(),
		NumeroProcesso: cleanNumber,
		Case:           *legalCase,
		MovementCount:  len(legalCase.Movements),
		LastSyncedAt:   &now,
		CreatedAt:      now,
	}
	f.rows[cleanNumber] = persisted
	copied := *persisted
	return &copied, nil
}

func (f *fakeCases) ApplyUpdates(ctx context.Context, cleanNumber string, legalCase *core.LegalCase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if persisted, ok := f.rows[cleanNumber]; ok {
		persisted.Case = *legalCase
		persisted.MovementCount = len(legalCase.Movements)
	}
	f.updated = append(f.updated, cleanNumber)
	return nil
}

func (f *fakeCases) TouchSynced(ctx context.Context, cleanNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, cleanNumber)
	return nil
}

func (f *fakeCases) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]core.PersistedLegalCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.PersistedLegalCase
	for _, persisted := range f.rows {
		if len(out) >= limit {
			break
		}
		out = append(out, *persisted)
	}
	return out, nil
}

type fakeFinder struct {
	mu    sync.Mutex
	cases map[string]*core.LegalCase
	err   error
	calls []time.Time
}

func newFakeFinder() *fakeFinder {
	return &fakeFinder{cases: make(map[string]*core.LegalCase)}
}

func (f *fakeFinder) FindCase(ctx context.Context, number cnj.Number) (*core.LegalCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, time.Now())
	if f.err != nil {
		return nil, f.err
	}
	legalCase, ok := f.cases[number.Clean()]
	if !ok {
		return nil, nil
	}
	copied := *legalCase
	return &copied, nil
}

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]*core.LegalCase
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*core.LegalCase)}
}

func (f *fakeCache) Get(ctx context.Context, cleanNumber string) (*core.LegalCase, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	legalCase, ok := f.entries[cleanNumber]
	if !ok {
		return nil, false
	}
	copied := *legalCase
	return &copied, true
}

func (f *fakeCache) Put(ctx context.Context, cleanNumber string, legalCase *core.LegalCase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *legalCase
	f.entries[cleanNumber] = &copied
}

func (f *fakeCache) Invalidate(ctx context.Context, cleanNumber string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, cleanNumber)
	f.invalidated = append(f.invalidated, cleanNumber)
}
