package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/defeso/backend/internal/concurrency"
	"github.com/defeso/backend/internal/core"
	"github.com/defeso/backend/internal/metrics"
)

// Extractor turns document bytes into a structured payload. Implemented by
// the GenAI gateway.
type Extractor interface {
	Extract(ctx context.Context, doc core.Document, data []byte) (map[string]interface{}, error)
}

// ExtractionStore is the slice of the extraction repository this stage uses.
type ExtractionStore interface {
	Upsert(ctx context.Context, extraction *core.DocumentExtraction) error
	Get(ctx context.Context, documentID string) (*core.DocumentExtraction, error)
	ListBySolicitation(ctx context.Context, solicitationID string) ([]core.DocumentExtraction, error)
}

// ExtractRequest selects the documents to extract: an explicit id list, or
// every document of one solicitation. DocumentIDs wins when both are set.
type ExtractRequest struct {
	SolicitationID string   `json:"solicitacao_id"`
	DocumentIDs    []string `json:"document_ids"`
}

// ExtractResult carries the upserted extractions and the solicitation they
// belong to. SolicitationID is nil when the selected documents span more
// than one solicitation.
type ExtractResult struct {
	SolicitationID *string                   `json:"solicitacao_id"`
	Extractions    []core.DocumentExtraction `json:"extracoes"`
}

// ExtractDocuments runs the extractor over a set of documents.
type ExtractDocuments struct {
	solicitations SolicitationStore
	documents     DocumentStore
	extractions   ExtractionStore
	storage       ObjectStore
	extractor     Extractor
	maxWorkers    int
	logger        *log.Logger
}

// NewExtractDocuments wires the extraction stage.
func NewExtractDocuments(
	solicitations SolicitationStore,
	documents DocumentStore,
	extractions ExtractionStore,
	storage ObjectStore,
	extractor Extractor,
	maxWorkers int,
) *ExtractDocuments {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ExtractDocuments{
		solicitations: solicitations,
		documents:     documents,
		extractions:   extractions,
		storage:       storage,
		extractor:     extractor,
		maxWorkers:    maxWorkers,
		logger:        log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags),
	}
}

// Run resolves the target documents and extracts them concurrently up to the
// worker cap. The first failure cancels the remaining work and surfaces;
// documents already extracted are replaced, keeping the stage idempotent.
// When every document belongs to one solicitation, that solicitation moves
// to em_analise on success.
func (e *ExtractDocuments) Run(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	docs, err := e.resolveDocuments(ctx, req)
	if err != nil {
		return nil, err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.maxWorkers)

	for _, doc := range docs {
		doc := doc
		group.Go(func() error {
			return e.extractOne(groupCtx, doc)
		})
	}
	if err := group.Wait(); err != nil {
		metrics.Increment("extraction_errors")
		return nil, err
	}

	result := &ExtractResult{SolicitationID: commonSolicitation(docs)}
	if result.SolicitationID != nil {
		if err := e.solicitations.UpdateStatus(ctx, *result.SolicitationID, core.SolicitationEmAnalise); err != nil {
			e.logger.Printf("solicitation %s extracted but status update failed: %v", *result.SolicitationID, err)
		}
	}
	for _, doc := range docs {
		extraction, err := e.extractions.Get(ctx, doc.ID)
		if err != nil {
			return nil, core.WrapError(core.KindExtraction,
				fmt.Sprintf("read extraction for document %s", doc.ID), err)
		}
		if extraction != nil {
			result.Extractions = append(result.Extractions, *extraction)
		}
	}
	return result, nil
}

// resolveDocuments turns the request into the concrete document set. An
// explicit id list takes precedence; otherwise the solicitation's documents
// are used. An empty resolved set is an input error.
func (e *ExtractDocuments) resolveDocuments(ctx context.Context, req ExtractRequest) ([]core.Document, error) {
	if len(req.DocumentIDs) > 0 {
		docs := make([]core.Document, 0, len(req.DocumentIDs))
		for _, id := range req.DocumentIDs {
			doc, err := e.documents.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			docs = append(docs, *doc)
		}
		return docs, nil
	}

	if req.SolicitationID == "" {
		return nil, core.NewError(core.KindInvalidInput,
			"either document ids or a solicitation id is required")
	}
	if _, err := e.solicitations.Get(ctx, req.SolicitationID); err != nil {
		return nil, err
	}
	docs, err := e.documents.ListBySolicitation(ctx, req.SolicitationID)
	if err != nil {
		return nil, core.WrapError(core.KindExtraction, "list documents", err)
	}
	if len(docs) == 0 {
		return nil, core.NewError(core.KindInvalidInput,
			fmt.Sprintf("solicitation %s has no documents to extract", req.SolicitationID))
	}
	return docs, nil
}

// commonSolicitation returns the solicitation id shared by every document,
// or nil when the set spans more than one.
func commonSolicitation(docs []core.Document) *string {
	if len(docs) == 0 {
		return nil
	}
	id := docs[0].SolicitationID
	for _, doc := range docs[1:] {
		if doc.SolicitationID != id {
			return nil
		}
	}
	return &id
}

// extractOne serialises on the per-document lock so concurrent extraction
// requests for the same document never interleave their writes.
func (e *ExtractDocuments) extractOne(ctx context.Context, doc core.Document) error {
	lock := concurrency.DocumentLock(doc.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := e.storage.Download(ctx, doc.S3Key)
	if err != nil {
		return err
	}

	payload, err := e.extractor.Extract(ctx, doc, data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	extraction := &core.DocumentExtraction{
		DocumentID:   doc.ID,
		DocumentType: string(doc.ClassificationOrDefault()),
		Payload:      payload,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.extractions.Upsert(ctx, extraction); err != nil {
		return core.WrapError(core.KindExtraction,
			fmt.Sprintf("persist extraction for document %s", doc.ID), err)
	}
	metrics.Increment("documents_extracted")
	return nil
}
