// Package datajud is the gateway to the national judicial API. It resolves
// the competent court from the case number, issues the search, and maps the
// provider hit into the domain representation.
package datajud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/defeso/backend/internal/circuitbreaker"
	"github.com/defeso/backend/internal/cnj"
	"github.com/defeso/backend/internal/core"
)

// Gateway issues case searches against the judicial API. All calls go
// through a circuit breaker so a degraded provider fails fast instead of
// stalling the sync job.
type Gateway struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *log.Logger
}

// NewGateway builds the gateway. baseURL is the provider root without the
// per-court path segment.
func NewGateway(apiKey, baseURL string) *Gateway {
	return &Gateway{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig("datajud")),
		logger:     log.New(log.Writer(), "[DATAJUD] ", log.LstdFlags),
	}
}

type searchRequest struct {
	Size  int `json:"size"`
	Query struct {
		Match struct {
			NumeroProcesso string `json:"numeroProcesso"`
		} `json:"match"`
	} `json:"query"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source hitSource `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type hitSource struct {
	NumeroProcesso string `json:"numeroProcesso"`
	Tribunal       string `json:"tribunal"`
	Grau           string `json:"grau"`
	OrgaoJulgador  struct {
		Nome string `json:"nome"`
	} `json:"orgaoJulgador"`
	Classe struct {
		Nome string `json:"nome"`
	} `json:"classe"`
	Assuntos []struct {
		Nome string `json:"nome"`
	} `json:"assuntos"`
	DataAjuizamento string `json:"dataAjuizamento"`
	Movimentos      []struct {
		Nome                  string `json:"nome"`
		DataHora              string `json:"dataHora"`
		ComplementosTabelados []struct {
			Nome string `json:"nome"`
		} `json:"complementosTabelados"`
	} `json:"movimentos"`
}

// FindCase fetches the case identified by number from its competent court.
// It returns nil with no error when the provider reports zero hits, so
// callers can distinguish "not found" from transport failures.
func (g *Gateway) FindCase(ctx context.Context, number cnj.Number) (*core.LegalCase, error) {
	court, ok := number.CourtAcronym()
	if !ok {
		return nil, core.NewError(core.KindInvalidInput,
			fmt.Sprintf("case number %s maps to no known court", number.Canonical()))
	}

	result, err := g.breaker.ExecuteContext(ctx, func(ctx context.Context) (interface{}, error) {
		return g.search(ctx, court, number)
	})
	if err != nil {
		if err == circuitbreaker.ErrCircuitOpen || err == circuitbreaker.ErrTooManyRequests {
			return nil, core.WrapError(core.KindExternalRateLimit, "judicial API temporarily unavailable", err)
		}
		return nil, err
	}

	source, _ := result.(*hitSource)
	if source == nil {
		return nil, nil
	}
	legalCase := mapCase(source)
	return &legalCase, nil
}

func (g *Gateway) search(ctx context.Context, court string, number cnj.Number) (*hitSource, error) {
	var req searchRequest
	req.Size = 1
	req.Query.Match.NumeroProcesso = number.Clean()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/api_publica_%s/_search", g.baseURL, court)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "ApiKey "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("judicial API request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read judicial API response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, core.NewError(core.KindExternalRateLimit, "judicial API rate limit reached")
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("judicial API returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var decoded searchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode judicial API response: %w", err)
	}
	if len(decoded.Hits.Hits) == 0 {
		g.logger.Printf("no hits for case %s at %s", number.Canonical(), court)
		return nil, nil
	}
	return &decoded.Hits.Hits[0].Source, nil
}

// mapCase converts a provider hit into the domain view. Movements come out
// sorted ascending by date; tabulated complements are appended to the
// movement description.
func mapCase(source *hitSource) core.LegalCase {
	movements := make([]core.Movement, 0, len(source.Movimentos))
	for _, m := range source.Movimentos {
		description := m.Nome
		for _, c := range m.ComplementosTabelados {
			if c.Nome != "" {
				description += " - " + c.Nome
			}
		}
		movements = append(movements, core.Movement{
			Date:        parseProviderTime(m.DataHora),
			Description: description,
		})
	}
	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].Date.Before(movements[j].Date)
	})

	subjects := make([]string, 0, len(source.Assuntos))
	for _, a := range source.Assuntos {
		if a.Nome != "" {
			subjects = append(subjects, a.Nome)
		}
	}

	latest := ""
	if len(movements) > 0 {
		latest = movements[len(movements)-1].Description
	}

	return core.LegalCase{
		CaseNumber:      cnj.Canonicalize(source.NumeroProcesso),
		Court:           source.Tribunal,
		JudgingBody:     source.OrgaoJulgador.Nome,
		ProceduralClass: source.Classe.Nome,
		Subject:         strings.Join(subjects, "; "),
		Status:          deriveStatus(movements),
		FilingDate:      parseProviderTime(source.DataAjuizamento),
		LatestUpdate:    latest,
		Movements:       movements,
	}
}

// deriveStatus inspects the newest movement for archival markers.
func deriveStatus(movements []core.Movement) string {
	if len(movements) == 0 {
		return "em_tramitacao"
	}
	last := strings.ToLower(movements[len(movements)-1].Description)
	if strings.Contains(last, "arquiv") || strings.Contains(last, "baixa definitiva") {
		return "arquivado"
	}
	if strings.Contains(last, "trânsito em julgado") || strings.Contains(last, "transito em julgado") {
		return "transitado_em_julgado"
	}
	return "em_tramitacao"
}

var providerTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseProviderTime(raw string) time.Time {
	for _, layout := range providerTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
