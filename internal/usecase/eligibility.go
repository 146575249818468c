package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/defeso/backend/internal/core"
	"github.com/defeso/backend/internal/genai"
	"github.com/defeso/backend/internal/metrics"
)

// Evaluator produces the raw eligibility verdict. Implemented by the GenAI
// gateway.
type Evaluator interface {
	Evaluate(ctx context.Context, sol core.Solicitation, docs []core.Document, extractions []core.DocumentExtraction, rules string) (genai.Evaluation, error)
}

// EligibilityStore is the slice of the eligibility repository this stage
// uses.
type EligibilityStore interface {
	Upsert(ctx context.Context, result *core.EligibilityResult) error
	Get(ctx context.Context, solicitationID string) (*core.EligibilityResult, error)
}

// EvaluateEligibility is the final pipeline stage: build the dossier, ask
// for a verdict, persist it and move the solicitation accordingly.
type EvaluateEligibility struct {
	solicitations SolicitationStore
	documents     DocumentStore
	extractions   ExtractionStore
	eligibility   EligibilityStore
	evaluator     Evaluator
	rules         string
	logger        *log.Logger
}

// NewEvaluateEligibility wires the evaluation stage. rules is the opaque
// criteria text handed verbatim to the evaluator.
func NewEvaluateEligibility(
	solicitations SolicitationStore,
	documents DocumentStore,
	extractions ExtractionStore,
	eligibility EligibilityStore,
	evaluator Evaluator,
	rules string,
) *EvaluateEligibility {
	return &EvaluateEligibility{
		solicitations: solicitations,
		documents:     documents,
		extractions:   extractions,
		eligibility:   eligibility,
		evaluator:     evaluator,
		rules:         rules,
		logger:        log.New(log.Writer(), "[ELIGIBILITY] ", log.LstdFlags),
	}
}

// Run evaluates the solicitation and returns the persisted verdict.
// Re-evaluation replaces the previous verdict. The follow-up solicitation
// status update is best effort: its failure logs but never invalidates the
// verdict already persisted.
func (e *EvaluateEligibility) Run(ctx context.Context, solicitationID string) (*core.EligibilityResult, error) {
	metrics.Increment("eligibility_requests")

	sol, err := e.solicitations.Get(ctx, solicitationID)
	if err != nil {
		return nil, err
	}

	docs, err := e.documents.ListBySolicitation(ctx, solicitationID)
	if err != nil {
		return nil, core.WrapError(core.KindEligibilityComputation, "list documents", err)
	}
	if len(docs) == 0 {
		return nil, core.NewError(core.KindIncompleteData,
			fmt.Sprintf("solicitation %s has no documents", solicitationID))
	}

	extractions, err := e.extractions.ListBySolicitation(ctx, solicitationID)
	if err != nil {
		return nil, core.WrapError(core.KindEligibilityComputation, "list extractions", err)
	}
	if len(extractions) == 0 {
		return nil, core.NewError(core.KindIncompleteData,
			fmt.Sprintf("solicitation %s has no extractions, run extraction first", solicitationID))
	}

	evaluation, err := e.evaluator.Evaluate(ctx, *sol, docs, extractions, e.rules)
	if err != nil {
		metrics.Increment("eligibility_errors")
		return nil, err
	}

	now := time.Now().UTC()
	result := &core.EligibilityResult{
		SolicitationID: solicitationID,
		Status:         NormalizeEligibilityStatus(evaluation.RawStatus),
		ScoreText:      evaluation.ScoreText,
		PendingItems:   evaluation.PendingItems,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.eligibility.Upsert(ctx, result); err != nil {
		metrics.Increment("eligibility_errors")
		return nil, core.WrapError(core.KindEligibilityComputation, "persist verdict", err)
	}

	if err := e.solicitations.UpdateStatus(ctx, solicitationID, solicitationStatusFor(result)); err != nil {
		e.logger.Printf("verdict stored but solicitation %s status update failed: %v", solicitationID, err)
	}
	return result, nil
}

// solicitationStatusFor maps the verdict onto the workflow state: fit
// approves, unfit with pending items asks for more documents, unfit without
// them rejects.
func solicitationStatusFor(result *core.EligibilityResult) core.SolicitationStatus {
	if result.Status == core.EligibilityApto {
		return core.SolicitationAprovada
	}
	if len(result.PendingItems) > 0 {
		return core.SolicitationDocIncompleta
	}
	return core.SolicitationReprovada
}

// NormalizeEligibilityStatus collapses the many spellings models produce
// onto the two-valued verdict. Comparison runs over the lowercased,
// accent-stripped, alphanumeric-only form; unrecognised statuses fail
// closed to nao_apto.
func NormalizeEligibilityStatus(raw string) core.EligibilityStatus {
	compact := compactStatus(raw)
	switch compact {
	case "apto", "apta", "elegivel", "eligible":
		return core.EligibilityApto
	case "naoapto", "naoapta", "inapto", "naoelegivel", "inelegivel", "ineligible", "noteligible", "reprovado", "reprovada":
		return core.EligibilityNaoApto
	}
	// Substring fallback for verbose answers such as "o pescador é apto".
	if strings.Contains(compact, "naoapto") || strings.Contains(compact, "inapto") ||
		strings.Contains(compact, "naoelegivel") || strings.Contains(compact, "inelegivel") {
		return core.EligibilityNaoApto
	}
	if strings.Contains(compact, "apto") || strings.Contains(compact, "elegivel") {
		return core.EligibilityApto
	}
	return core.EligibilityNaoApto
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

// compactStatus lowercases, strips Portuguese accents and drops everything
// outside [a-z0-9].
func compactStatus(raw string) string {
	lowered := accentReplacer.Replace(strings.ToLower(raw))
	var b strings.Builder
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
