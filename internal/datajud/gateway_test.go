package datajud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defeso/backend/internal/cnj"
	"github.com/defeso/backend/internal/core"
)

const testCaseNumber = "0001234-56.2023.8.26.0100"

func parseNumber(t *testing.T) cnj.Number {
	t.Helper()
	number, err := cnj.Parse(testCaseNumber)
	require.NoError(t, err)
	return number
}

func hitBody(source map[string]interface{}) string {
	body, _ := json.Marshal(map[string]interface{}{
		"hits": map[string]interface{}{
			"hits": []map[string]interface{}{{"_source": source}},
		},
	})
	return string(body)
}

func TestFindCaseRoutesToCompetentCourt(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(hitBody(map[string]interface{}{
			"numeroProcesso": "00012345620238260100",
			"tribunal":       "TJSP",
		})))
	}))
	defer srv.Close()

	g := NewGateway("secret", srv.URL)
	legalCase, err := g.FindCase(context.Background(), parseNumber(t))
	require.NoError(t, err)
	require.NotNil(t, legalCase)

	assert.Equal(t, "/api_publica_tjsp/_search", gotPath)
	assert.Equal(t, "ApiKey secret", gotAuth)
	assert.Equal(t, testCaseNumber, legalCase.CaseNumber)
}

func TestFindCaseMapsMovementsSortedWithComplements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hitBody(map[string]interface{}{
			"numeroProcesso": "00012345620238260100",
			"tribunal":       "TJSP",
			"orgaoJulgador":  map[string]string{"nome": "1ª Vara Cível"},
			"classe":         map[string]string{"nome": "Procedimento Comum"},
			"assuntos": []map[string]string{
				{"nome": "Seguro"}, {"nome": "Defeso"},
			},
			"dataAjuizamento": "2023-01-10T00:00:00.000Z",
			"movimentos": []map[string]interface{}{
				{
					"nome":     "Conclusão",
					"dataHora": "2023-03-01T09:00:00.000Z",
				},
				{
					"nome":     "Distribuição",
					"dataHora": "2023-01-10T08:00:00.000Z",
					"complementosTabelados": []map[string]string{
						{"nome": "sorteio"},
					},
				},
			},
		})))
	}))
	defer srv.Close()

	g := NewGateway("secret", srv.URL)
	legalCase, err := g.FindCase(context.Background(), parseNumber(t))
	require.NoError(t, err)
	require.NotNil(t, legalCase)

	require.Len(t, legalCase.Movements, 2)
	assert.Equal(t, "Distribuição - sorteio", legalCase.Movements[0].Description)
	assert.Equal(t, "Conclusão", legalCase.Movements[1].Description)
	assert.True(t, legalCase.Movements[0].Date.Before(legalCase.Movements[1].Date))
	assert.Equal(t, "Seguro; Defeso", legalCase.Subject)
	assert.Equal(t, "Conclusão", legalCase.LatestUpdate)
	assert.Equal(t, "1ª Vara Cível", legalCase.JudgingBody)
}

func TestFindCaseZeroHitsReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":{"hits":[]}}`))
	}))
	defer srv.Close()

	g := NewGateway("secret", srv.URL)
	legalCase, err := g.FindCase(context.Background(), parseNumber(t))
	require.NoError(t, err)
	assert.Nil(t, legalCase)
}

func TestFindCaseSurfacesProviderRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGateway("secret", srv.URL)
	_, err := g.FindCase(context.Background(), parseNumber(t))
	require.Error(t, err)
	assert.Equal(t, core.KindExternalRateLimit, core.KindOf(err))
}

func TestFindCaseUnknownCourt(t *testing.T) {
	number, err := cnj.Parse("0001234-56.2023.9.99.0100")
	require.NoError(t, err)

	g := NewGateway("secret", "http://localhost:0")
	_, err = g.FindCase(context.Background(), number)
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, "em_tramitacao", deriveStatus(nil))
	assert.Equal(t, "arquivado", deriveStatus([]core.Movement{{Description: "Arquivado definitivamente"}}))
	assert.Equal(t, "transitado_em_julgado", deriveStatus([]core.Movement{{Description: "Trânsito em julgado"}}))
}
