// Package core holds the domain entities shared by every stage of the
// document pipeline: solicitations, documents, extractions, eligibility
// verdicts and legal cases.
package core

import "time"

// SolicitationStatus is the workflow state of a benefit request.
type SolicitationStatus string

const (
	SolicitationPendente      SolicitationStatus = "pendente"
	SolicitationEmAnalise     SolicitationStatus = "em_analise"
	SolicitationAprovada      SolicitationStatus = "aprovada"
	SolicitationReprovada     SolicitationStatus = "reprovada"
	SolicitationDocIncompleta SolicitationStatus = "documentacao_incompleta"
)

// Priority ranks a solicitation for analyst triage.
type Priority string

const (
	PriorityBaixa Priority = "baixa"
	PriorityMedia Priority = "media"
	PriorityAlta  Priority = "alta"
)

// Solicitation is a benefit request by one citizen. It aggregates the
// citizen's documents and yields one eligibility verdict.
type Solicitation struct {
	ID         string                 `json:"id"`
	Status     SolicitationStatus     `json:"status"`
	Priority   Priority               `json:"priority"`
	FisherData map[string]interface{} `json:"fisher_data,omitempty"`
	Analysis   map[string]interface{} `json:"analysis,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// SolicitationFilter narrows the solicitation dashboard aggregations. Zero
// fields mean no restriction; UF and City match against the fisher data.
type SolicitationFilter struct {
	Status   string
	Priority string
	UF       string
	City     string
	From     *time.Time
	To       *time.Time
}

// DocumentClassification is the closed set of document classes the
// classifier may assign. Unknown model output coerces to OUTRO.
type DocumentClassification string

const (
	ClassCertificadoRegularidade DocumentClassification = "CERTIFICADO_DE_REGULARIDADE"
	ClassCAEPF                   DocumentClassification = "CAEPF"
	ClassDeclaracaoResidencia    DocumentClassification = "DECLARACAO_DE_RESIDENCIA"
	ClassCNIS                    DocumentClassification = "CNIS"
	ClassTermoRepresentacao      DocumentClassification = "TERMO_DE_REPRESENTACAO"
	ClassProcuracao              DocumentClassification = "PROCURACAO"
	ClassGPSComprovante          DocumentClassification = "GPS_E_COMPROVANTE"
	ClassBiometria               DocumentClassification = "BIOMETRIA"
	ClassComprovanteResidencia   DocumentClassification = "COMPROVANTE_RESIDENCIA"
	ClassDocumentoIdentidade     DocumentClassification = "DOCUMENTO_IDENTIDADE"
	ClassCIN                     DocumentClassification = "CIN"
	ClassCPF                     DocumentClassification = "CPF"
	ClassREAP                    DocumentClassification = "REAP"
	ClassOutro                   DocumentClassification = "OUTRO"
)

// AllClassifications lists every valid class in declaration order. The
// extractor prompt enumeration is generated from this slice.
var AllClassifications = []DocumentClassification{
	ClassCertificadoRegularidade,
	ClassCAEPF,
	ClassDeclaracaoResidencia,
	ClassCNIS,
	ClassTermoRepresentacao,
	ClassProcuracao,
	ClassGPSComprovante,
	ClassBiometria,
	ClassComprovanteResidencia,
	ClassDocumentoIdentidade,
	ClassCIN,
	ClassCPF,
	ClassREAP,
	ClassOutro,
}

// ParseClassification maps a raw model label onto the closed enum,
// coercing anything unknown to OUTRO.
func ParseClassification(raw string) DocumentClassification {
	candidate := DocumentClassification(raw)
	for _, c := range AllClassifications {
		if candidate == c {
			return c
		}
	}
	return ClassOutro
}

// Document is one uploaded file belonging to exactly one solicitation.
// Classification stays nil until the classifier stage assigns one.
type Document struct {
	ID             string                  `json:"id"`
	SolicitationID string                  `json:"solicitation_id"`
	S3Key          string                  `json:"s3_key"`
	Mimetype       string                  `json:"mimetype"`
	FileName       string                  `json:"file_name"`
	UploadedBy     string                  `json:"uploaded_by"`
	UploadedAt     time.Time               `json:"uploaded_at"`
	Classification *DocumentClassification `json:"classification,omitempty"`
	Confidence     *float64                `json:"confidence,omitempty"`
}

// ClassificationOrDefault returns the document's class, or OUTRO when the
// classifier never labelled it.
func (d *Document) ClassificationOrDefault() DocumentClassification {
	if d.Classification == nil {
		return ClassOutro
	}
	return *d.Classification
}

// DocumentExtraction is the structured payload the extractor produced for
// one document. At most one row exists per document; re-extraction replaces
// the payload.
type DocumentExtraction struct {
	DocumentID   string                 `json:"document_id"`
	DocumentType string                 `json:"document_type"`
	Payload      map[string]interface{} `json:"payload"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// EligibilityStatus is the final fit/not-fit verdict for a solicitation.
type EligibilityStatus string

const (
	EligibilityApto    EligibilityStatus = "apto"
	EligibilityNaoApto EligibilityStatus = "nao_apto"
)

// EligibilityResult is the persisted verdict. At most one per solicitation.
type EligibilityResult struct {
	SolicitationID string            `json:"solicitation_id"`
	Status         EligibilityStatus `json:"status"`
	ScoreText      string            `json:"score_texto"`
	PendingItems   []string          `json:"pendencias,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Movement is one procedural step of a legal case, as reported by the
// judicial API. Identity is the (date, description) pair.
type Movement struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// LegalCase is the provider-side view of a judicial process.
type LegalCase struct {
	CaseNumber      string     `json:"case_number"`
	Court           string     `json:"court"`
	JudgingBody     string     `json:"judging_body"`
	ProceduralClass string     `json:"procedural_class"`
	Subject         string     `json:"subject"`
	Status          string     `json:"status"`
	FilingDate      time.Time  `json:"filing_date"`
	LatestUpdate    string     `json:"latest_update"`
	Movements       []Movement `json:"movements,omitempty"`
}

// CaseMovementCount ranks a case by its number of movements.
type CaseMovementCount struct {
	NumeroProcesso string `json:"numero_processo"`
	Movements      int    `json:"movimentacoes"`
}

// PersistedLegalCase wraps a LegalCase with its database identity and sync
// bookkeeping.
type PersistedLegalCase struct {
	ID             string     `json:"id"`
	NumeroProcesso string     `json:"numero_processo"`
	Case           LegalCase  `json:"case"`
	Priority       string     `json:"prioridade,omitempty"`
	MovementCount  int        `json:"movimentacoes"`
	LastMovementAt *time.Time `json:"ultima_movimentacao,omitempty"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
