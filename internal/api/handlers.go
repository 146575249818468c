package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/defeso/backend/internal/core"
	"github.com/defeso/backend/internal/metrics"
	"github.com/defeso/backend/internal/requestctx"
	"github.com/defeso/backend/internal/usecase"
)

type classifyResponse struct {
	SolicitationID string                       `json:"solicitacao_id"`
	Documents      []usecase.ClassifiedDocument `json:"documentos"`
}

// handleClassify ingests a multipart batch of documents. A missing
// solicitacao_id creates a new solicitation. Validation, storage and insert
// failures abort the batch; a document that could not be labelled stays
// persisted without classification and is absent from the response.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload*4)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, core.WrapError(core.KindInvalidInput, "malformed multipart upload", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []usecase.UploadFile
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				writeError(w, core.WrapError(core.KindInvalidInput,
					fmt.Sprintf("open uploaded file %s", header.Filename), err))
				return
			}
			data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
			file.Close()
			if err != nil {
				writeError(w, core.WrapError(core.KindInvalidInput,
					fmt.Sprintf("read uploaded file %s", header.Filename), err))
				return
			}
			files = append(files, usecase.UploadFile{
				FileName: header.Filename,
				Mimetype: header.Header.Get("Content-Type"),
				Data:     data,
			})
		}
	}

	solicitationID := r.FormValue("solicitacao_id")
	uploadedBy := requestctx.UserID(r.Context())

	resolvedID, results, err := s.classify.Run(r.Context(), solicitationID, uploadedBy, files)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, classifyResponse{SolicitationID: resolvedID, Documents: results})
}

// handleExtract serves both forms of the extraction request: a solicitation
// id in the path, or a JSON body naming a solicitation or explicit document
// ids.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req usecase.ExtractRequest
	if id := mux.Vars(r)["solicitacaoID"]; id != "" {
		req.SolicitationID = id
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.WrapError(core.KindInvalidInput, "malformed extraction request", err))
		return
	}

	result, err := s.extract.Run(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	solicitationID := mux.Vars(r)["solicitacaoID"]
	result, err := s.evaluate.Run(r.Context(), solicitationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// handleGetSolicitation returns the solicitation with its documents and the
// verdict, when one exists.
func (s *Server) handleGetSolicitation(w http.ResponseWriter, r *http.Request) {
	solicitationID := mux.Vars(r)["solicitacaoID"]

	sol, err := s.solicit.Get(r.Context(), solicitationID)
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := s.documents.ListBySolicitation(r.Context(), solicitationID)
	if err != nil {
		writeError(w, core.WrapError(core.KindDomain, "list documents", err))
		return
	}
	verdict, err := s.eligibility.Get(r.Context(), solicitationID)
	if err != nil {
		writeError(w, core.WrapError(core.KindDomain, "read verdict", err))
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"solicitacao":   sol,
		"documentos":    docs,
		"elegibilidade": verdict,
	})
}

func (s *Server) handleLookupCase(w http.ResponseWriter, r *http.Request) {
	rawNumber := mux.Vars(r)["numeroProcesso"]
	persisted, err := s.lookup.Run(r.Context(), rawNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, persisted)
}

// handleSolicitationDashboard aggregates the intake pipeline, narrowed by
// the optional status, prioridade, uf, cidade, de and ate query parameters.
// Dates use the 2006-01-02 layout; ate is inclusive of the named day.
func (s *Server) handleSolicitationDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.SolicitationFilter{
		Status:   q.Get("status"),
		Priority: q.Get("prioridade"),
		UF:       q.Get("uf"),
		City:     q.Get("cidade"),
	}

	from, err := parseDateParam(q.Get("de"))
	if err != nil {
		writeError(w, core.WrapError(core.KindInvalidInput, "invalid date in parameter de", err))
		return
	}
	filter.From = from

	to, err := parseDateParam(q.Get("ate"))
	if err != nil {
		writeError(w, core.WrapError(core.KindInvalidInput, "invalid date in parameter ate", err))
		return
	}
	if to != nil {
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}

	dashboard, err := s.solDashboard.Run(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, dashboard)
}

func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) handleProcessDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.procDashboard.Run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, dashboard)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, metrics.Snapshot())
}
