// Package api is the HTTP edge of the service: routing, the response
// envelope and the mapping from domain error kinds to status codes.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/defeso/backend/internal/core"
)

// envelope is the uniform response body: data on success, errors otherwise.
type envelope struct {
	Data   interface{} `json:"data"`
	Errors []apiError  `json:"errors,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		log.Printf("[API] response encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := core.KindOf(err)
	message := err.Error()
	var de *core.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(kind))
	body := envelope{Errors: []apiError{{Message: message, Code: string(kind)}}}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		log.Printf("[API] error response encode failed: %v", encErr)
	}
}

// statusForKind maps domain error kinds to HTTP status classes: client
// mistakes map to 4xx, provider trouble to 502/503, the rest to 500.
func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindInvalidInput, core.KindUnsupportedDocument, core.KindIncompleteData:
		return http.StatusUnprocessableEntity
	case core.KindDocumentNotFound, core.KindSolicitationNotFound, core.KindLegalCaseNotFound:
		return http.StatusNotFound
	case core.KindClassification, core.KindExtraction, core.KindEligibilityComputation:
		return http.StatusBadGateway
	case core.KindExternalRateLimit:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
