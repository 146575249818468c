// Package usecase implements the pipeline stages over the gateways and
// repositories: document intake and classification, extraction, eligibility
// evaluation, legal-case lookup and the periodic sync pass.
package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/defeso/backend/internal/core"
	"github.com/defeso/backend/internal/metrics"
)

// Classifier labels document bytes. Implemented by the GenAI gateway.
type Classifier interface {
	Classify(ctx context.Context, data []byte, mimeType string) core.DocumentClassification
}

// ObjectStore persists and serves document bytes.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// SolicitationStore is the slice of the solicitation repository the stages
// use.
type SolicitationStore interface {
	Create(ctx context.Context) (*core.Solicitation, error)
	Get(ctx context.Context, id string) (*core.Solicitation, error)
	UpdateStatus(ctx context.Context, id string, status core.SolicitationStatus) error
	SetAnalysis(ctx context.Context, id string, analysis map[string]interface{}) error
}

// DocumentStore is the slice of the document repository the stages use.
type DocumentStore interface {
	Create(ctx context.Context, doc *core.Document) error
	Get(ctx context.Context, id string) (*core.Document, error)
	ListBySolicitation(ctx context.Context, solicitationID string) ([]core.Document, error)
	SetClassification(ctx context.Context, id string, class core.DocumentClassification, confidence *float64) error
}

// maxBatchFiles caps one intake batch.
const maxBatchFiles = 15

// acceptedMimetypes are the document formats the pipeline ingests.
var acceptedMimetypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/tiff":      true,
}

// UploadFile is one file of an intake batch.
type UploadFile struct {
	FileName string
	Mimetype string
	Data     []byte
}

// ClassifiedDocument pairs an uploaded file with its labelled document row.
// Documents that failed labelling are persisted but absent from the list.
type ClassifiedDocument struct {
	FileName string         `json:"file_name"`
	Document *core.Document `json:"document"`
}

// ClassifyBatch is the intake stage: store each file, record its document
// row and label it.
type ClassifyBatch struct {
	solicitations SolicitationStore
	documents     DocumentStore
	storage       ObjectStore
	classifier    Classifier
	keyFn         func(solicitationID, fileName string) string
	maxWorkers    int
	logger        *log.Logger
}

// NewClassifyBatch wires the intake stage. keyFn derives the object key for
// a new document.
func NewClassifyBatch(
	solicitations SolicitationStore,
	documents DocumentStore,
	storage ObjectStore,
	classifier Classifier,
	keyFn func(solicitationID, fileName string) string,
	maxWorkers int,
) *ClassifyBatch {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ClassifyBatch{
		solicitations: solicitations,
		documents:     documents,
		storage:       storage,
		classifier:    classifier,
		keyFn:         keyFn,
		maxWorkers:    maxWorkers,
		logger:        log.New(log.Writer(), "[CLASSIFY] ", log.LstdFlags),
	}
}

// Run ingests a batch for a solicitation, creating the solicitation when
// solicitationID is empty. The whole batch is validated before anything is
// persisted; files are then stored and recorded sequentially in declaration
// order, and the first storage or insert failure aborts the batch with that
// error, leaving earlier documents in place. Labelling fans out concurrently
// afterwards and never aborts the batch: an unlabelled document simply stays
// without classification and is dropped from the returned list.
func (c *ClassifyBatch) Run(ctx context.Context, solicitationID, uploadedBy string, files []UploadFile) (string, []ClassifiedDocument, error) {
	if len(files) == 0 {
		return "", nil, core.NewError(core.KindInvalidInput, "no files in upload batch")
	}
	if len(files) > maxBatchFiles {
		return "", nil, core.NewError(core.KindInvalidInput,
			fmt.Sprintf("batch of %d files exceeds the limit of %d", len(files), maxBatchFiles))
	}
	for _, file := range files {
		if !acceptedMimetypes[normalizeMimetype(file.Mimetype)] {
			metrics.Increment("document_upload_errors")
			return "", nil, core.NewError(core.KindUnsupportedDocument,
				fmt.Sprintf("unsupported file type %q for %s", file.Mimetype, file.FileName))
		}
		if len(file.Data) == 0 {
			metrics.Increment("document_upload_errors")
			return "", nil, core.NewError(core.KindInvalidInput, fmt.Sprintf("file %s is empty", file.FileName))
		}
	}

	if solicitationID == "" {
		sol, err := c.solicitations.Create(ctx)
		if err != nil {
			return "", nil, core.WrapError(core.KindUpload, "create solicitation", err)
		}
		solicitationID = sol.ID
	} else if _, err := c.solicitations.Get(ctx, solicitationID); err != nil {
		return "", nil, err
	}

	docs := make([]*core.Document, 0, len(files))
	for _, file := range files {
		doc, err := c.persistFile(ctx, solicitationID, uploadedBy, file)
		if err != nil {
			return solicitationID, nil, err
		}
		docs = append(docs, doc)
	}

	classified := c.classifyAll(ctx, files, docs)
	if len(classified) == 0 {
		return solicitationID, nil, core.NewError(core.KindClassification,
			fmt.Sprintf("no document of solicitation %s could be classified", solicitationID))
	}
	return solicitationID, classified, nil
}

func normalizeMimetype(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// persistFile uploads the bytes and records the document row. A row is only
// created after its upload succeeded; a failed insert removes the object
// again so no orphan survives.
func (c *ClassifyBatch) persistFile(ctx context.Context, solicitationID, uploadedBy string, file UploadFile) (*core.Document, error) {
	mimetype := normalizeMimetype(file.Mimetype)
	key := c.keyFn(solicitationID, file.FileName)
	if err := c.storage.Upload(ctx, key, file.Data, mimetype); err != nil {
		metrics.Increment("document_upload_errors")
		return nil, err
	}

	doc := &core.Document{
		SolicitationID: solicitationID,
		S3Key:          key,
		Mimetype:       mimetype,
		FileName:       file.FileName,
		UploadedBy:     uploadedBy,
	}
	if err := c.documents.Create(ctx, doc); err != nil {
		if delErr := c.storage.Delete(ctx, key); delErr != nil {
			c.logger.Printf("orphaned object %s after row insert failure: %v", key, delErr)
		}
		metrics.Increment("document_upload_errors")
		return nil, core.WrapError(core.KindUpload, fmt.Sprintf("record document %s", file.FileName), err)
	}
	return doc, nil
}

// classifyAll labels the persisted documents with a bounded worker pool.
// Classification itself never fails; a label is always produced, OUTRO in
// the worst case. Only persisting the label can fail, and that failure is
// logged and counted while the document keeps a NULL classification.
func (c *ClassifyBatch) classifyAll(ctx context.Context, files []UploadFile, docs []*core.Document) []ClassifiedDocument {
	sem := make(chan struct{}, c.maxWorkers)
	var wg sync.WaitGroup
	labelled := make([]bool, len(docs))

	for i := range docs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			class := c.classifier.Classify(ctx, files[i].Data, docs[i].Mimetype)
			if err := c.documents.SetClassification(ctx, docs[i].ID, class, nil); err != nil {
				metrics.Increment("document_classification_errors")
				c.logger.Printf("document %s stays unclassified: %v", docs[i].ID, err)
				return
			}
			docs[i].Classification = &class
			labelled[i] = true
			metrics.Increment("documents_classified")
		}(i)
	}
	wg.Wait()

	out := make([]ClassifiedDocument, 0, len(docs))
	for i, doc := range docs {
		if labelled[i] {
			out = append(out, ClassifiedDocument{FileName: doc.FileName, Document: doc})
		}
	}
	return out
}
