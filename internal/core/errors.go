package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories the pipeline surfaces.
// The HTTP edge maps each kind to a status class; the stages only ever deal
// in kinds.
type ErrorKind string

const (
	KindInvalidInput           ErrorKind = "invalid_input"
	KindDocumentNotFound       ErrorKind = "document_not_found"
	KindSolicitationNotFound   ErrorKind = "solicitation_not_found"
	KindUpload                 ErrorKind = "upload"
	KindStorage                ErrorKind = "storage"
	KindClassification         ErrorKind = "classification"
	KindExtraction             ErrorKind = "extraction"
	KindUnsupportedDocument    ErrorKind = "unsupported_document"
	KindIncompleteData         ErrorKind = "incomplete_data"
	KindEligibilityComputation ErrorKind = "eligibility_computation"
	KindLegalCaseNotFound      ErrorKind = "legal_case_not_found"
	KindLegalCasePersistence   ErrorKind = "legal_case_persistence"
	KindExternalRateLimit      ErrorKind = "external_rate_limit"
	KindDomain                 ErrorKind = "domain"
)

// DomainError carries a kind alongside a user-presentable message and the
// underlying cause, if any.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewError builds a DomainError with the given kind and message.
func NewError(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// WrapError builds a DomainError wrapping an underlying cause.
func WrapError(kind ErrorKind, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from err, or KindDomain for anything that is
// not a DomainError.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindDomain
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
