package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/defeso/backend/internal/concurrency"
	"github.com/defeso/backend/internal/config"
	"github.com/defeso/backend/internal/core"
	"github.com/defeso/backend/internal/metrics"
	"github.com/defeso/backend/internal/prompts"
)

// Prompt registry keys for the fixed pipeline stages. Extractor prompts are
// keyed by document class and resolved through ForClassification.
const (
	promptKeyClassify = "classificador"
	promptKeyEvaluate = "elegibilidade"
)

// Retry counters, one per pipeline stage.
const (
	counterRetriesClassify = "retries_classify"
	counterRetriesExtract  = "retries_extract"
	counterRetriesEvaluate = "retries_evaluate"
)

// Evaluation is the raw eligibility verdict as the model produced it. Status
// normalisation happens in the eligibility use case.
type Evaluation struct {
	RawStatus    string   `json:"status"`
	ScoreText    string   `json:"score_texto"`
	PendingItems []string `json:"pendencias,omitempty"`
}

// Gateway exposes the three model operations of the pipeline. Every call
// holds one slot of the process-wide semaphore for the duration of the
// network exchange and runs under the configured per-call deadline.
type Gateway struct {
	client   *Client
	registry *prompts.Registry
	cfg      config.GenAIConfig
	retry    config.RetryConfig
	logger   *log.Logger
}

// NewGateway wires the provider client with the loaded prompt registry.
func NewGateway(client *Client, registry *prompts.Registry, cfg config.GenAIConfig, retry config.RetryConfig) *Gateway {
	return &Gateway{
		client:   client,
		registry: registry,
		cfg:      cfg,
		retry:    retry,
		logger:   log.New(log.Writer(), "[GENAI] ", log.LstdFlags),
	}
}

// call runs one model exchange under a semaphore slot and the per-call
// deadline. The slot is released before any backoff sleep so waiting retries
// never starve other stages.
func (g *Gateway) call(ctx context.Context, model string, parts []Part, genCfg *GenerationConfig, retryCounter string) (string, error) {
	return doWithRetry(ctx, g.retry, retryCounter, func(ctx context.Context) (string, error) {
		release, err := concurrency.AcquireIASlot(ctx)
		if err != nil {
			return "", err
		}
		defer release()

		callCtx := ctx
		if g.retry.IATimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.retry.IATimeout)
			defer cancel()
		}
		return g.client.GenerateContent(callCtx, model, parts, genCfg)
	})
}

func generationConfigFor(p prompts.Prompt) *GenerationConfig {
	schema := p.Schema()
	return &GenerationConfig{
		ResponseMIMEType: p.ResponseMIMEType,
		ResponseSchema:   schema.Spec,
	}
}

// Classify labels a document's bytes with one of the closed classes. It
// never returns an error: provider failures, malformed responses and unknown
// labels all degrade to OUTRO so an upload batch keeps moving.
func (g *Gateway) Classify(ctx context.Context, data []byte, mimeType string) core.DocumentClassification {
	prompt, ok := g.registry.Get(promptKeyClassify)
	if !ok {
		g.logger.Printf("classifier prompt %q not registered, defaulting to OUTRO", promptKeyClassify)
		return core.ClassOutro
	}

	parts := []Part{TextPart(prompt.FullText()), BytesPart(data, mimeType)}
	text, err := g.call(ctx, g.cfg.ClassifyModel, parts, generationConfigFor(prompt), counterRetriesClassify)
	if err != nil {
		g.logger.Printf("classification call failed, defaulting to OUTRO: %v", err)
		metrics.Increment("classification_fallbacks")
		return core.ClassOutro
	}

	payload, err := DecodeJSONObject(text)
	if err != nil {
		g.logger.Printf("classification response unparseable, defaulting to OUTRO: %v", err)
		metrics.Increment("classification_fallbacks")
		return core.ClassOutro
	}
	if err := prompt.Schema().Validate(payload); err != nil {
		g.logger.Printf("classification response rejected by schema, defaulting to OUTRO: %v", err)
		metrics.Increment("classification_fallbacks")
		return core.ClassOutro
	}

	label, _ := payload["classification"].(string)
	return core.ParseClassification(label)
}

// Extract runs the class-specific extractor prompt over the document bytes
// and returns the structured payload. Failures wrap as extraction errors.
func (g *Gateway) Extract(ctx context.Context, doc core.Document, data []byte) (map[string]interface{}, error) {
	class := doc.ClassificationOrDefault()
	prompt, ok := g.registry.ForClassification(class)
	if !ok {
		return nil, core.NewError(core.KindExtraction, fmt.Sprintf("no extractor prompt registered for class %s", class))
	}

	parts := []Part{TextPart(prompt.FullText()), BytesPart(data, doc.Mimetype)}
	text, err := g.call(ctx, g.cfg.ExtractModel, parts, generationConfigFor(prompt), counterRetriesExtract)
	if err != nil {
		return nil, core.WrapError(core.KindExtraction, fmt.Sprintf("extraction failed for document %s", doc.ID), err)
	}

	payload, err := DecodeJSONObject(text)
	if err != nil {
		return nil, core.WrapError(core.KindExtraction, fmt.Sprintf("extraction produced malformed payload for document %s", doc.ID), err)
	}
	if err := prompt.Schema().Validate(payload); err != nil {
		return nil, core.WrapError(core.KindExtraction, fmt.Sprintf("extraction payload rejected for document %s", doc.ID), err)
	}
	return payload, nil
}

// evaluateInput is the dossier serialised into the evaluator prompt.
type evaluateInput struct {
	Solicitation core.Solicitation         `json:"solicitacao"`
	Documents    []core.Document           `json:"documentos"`
	Extractions  []core.DocumentExtraction `json:"extracoes"`
	Rules        string                    `json:"regras"`
}

// Evaluate asks the model for an eligibility verdict over the full dossier
// of a solicitation, constrained by the opaque rules text.
func (g *Gateway) Evaluate(ctx context.Context, sol core.Solicitation, docs []core.Document, extractions []core.DocumentExtraction, rules string) (Evaluation, error) {
	prompt, ok := g.registry.Get(promptKeyEvaluate)
	if !ok {
		return Evaluation{}, core.NewError(core.KindEligibilityComputation, fmt.Sprintf("evaluator prompt %q not registered", promptKeyEvaluate))
	}

	dossier, err := json.Marshal(evaluateInput{
		Solicitation: sol,
		Documents:    docs,
		Extractions:  extractions,
		Rules:        rules,
	})
	if err != nil {
		return Evaluation{}, core.WrapError(core.KindEligibilityComputation, "marshal evaluation dossier", err)
	}

	parts := []Part{TextPart(prompt.FullText()), TextPart(string(dossier))}
	text, err := g.call(ctx, g.cfg.ExtractModel, parts, generationConfigFor(prompt), counterRetriesEvaluate)
	if err != nil {
		return Evaluation{}, core.WrapError(core.KindEligibilityComputation, fmt.Sprintf("eligibility evaluation failed for solicitation %s", sol.ID), err)
	}

	payload, err := DecodeJSONObject(text)
	if err != nil {
		return Evaluation{}, core.WrapError(core.KindEligibilityComputation, "eligibility evaluation produced malformed payload", err)
	}
	if err := prompt.Schema().Validate(payload); err != nil {
		return Evaluation{}, core.WrapError(core.KindEligibilityComputation, "eligibility evaluation payload rejected", err)
	}

	out := Evaluation{}
	out.RawStatus, _ = payload["status"].(string)
	out.ScoreText, _ = payload["score_texto"].(string)
	if raw, ok := payload["pendencias"].([]interface{}); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok && s != "" {
				out.PendingItems = append(out.PendingItems, s)
			}
		}
	}
	return out, nil
}
