package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defeso/backend/internal/config"
	"github.com/defeso/backend/internal/core"
	"github.com/defeso/backend/internal/metrics"
	"github.com/defeso/backend/internal/prompts"
)

const gatewayYAML = `
prompts:
  - key: classificador
    response_schema: classification
    prompt: classifique
  - key: elegibilidade
    response_schema: eligibility
    prompt: avalie
  - key: OUTRO
    response_schema: document_metadata
    prompt: extraia
`

func testRegistry(t *testing.T) *prompts.Registry {
	t.Helper()
	reg, err := prompts.ParseRegistry([]byte(gatewayYAML))
	require.NoError(t, err)
	return reg
}

func modelResponse(payload interface{}) string {
	raw, _ := json.Marshal(payload)
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{{
			"content": map[string]interface{}{
				"parts": []map[string]string{{"text": string(raw)}},
			},
		}},
	})
	return string(body)
}

func newTestGateway(t *testing.T, serverURL string) *Gateway {
	t.Helper()
	client, err := NewClient("test-key", serverURL)
	require.NoError(t, err)
	return NewGateway(client, testRegistry(t), config.GenAIConfig{
		ClassifyModel: "m-classify",
		ExtractModel:  "m-extract",
	}, config.RetryConfig{
		MaxAttempts: 3,
		WaitInitial: time.Millisecond,
		WaitMax:     5 * time.Millisecond,
		IATimeout:   time.Second,
	})
}

func TestClassifyRecoversAfterTransientFailures(t *testing.T) {
	metrics.Reset()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(modelResponse(map[string]string{"classification": "CNIS"})))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	class := g.Classify(context.Background(), []byte("pdf-bytes"), "application/pdf")

	assert.Equal(t, core.ClassCNIS, class)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.EqualValues(t, 2, metrics.Snapshot()["retries_classify"])
}

func TestClassifyDefaultsToOutroOnPersistentFailure(t *testing.T) {
	metrics.Reset()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	assert.Equal(t, core.ClassOutro, g.Classify(context.Background(), []byte("x"), "image/png"))
	assert.EqualValues(t, 1, metrics.Snapshot()["classification_fallbacks"])
}

func TestClassifyDefaultsToOutroOnUnknownLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(modelResponse(map[string]string{"classification": "PASSAPORTE"})))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	assert.Equal(t, core.ClassOutro, g.Classify(context.Background(), []byte("x"), "image/png"))
}

func TestClassifyDoesNotRetryTerminalErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	assert.Equal(t, core.ClassOutro, g.Classify(context.Background(), []byte("x"), "image/png"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestExtractReturnsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(modelResponse(map[string]string{"numero_cpf": "123.456.789-00"})))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	doc := core.Document{ID: "doc-1", Mimetype: "application/pdf"}

	payload, err := g.Extract(context.Background(), doc, []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, "123.456.789-00", payload["numero_cpf"])
}

func TestExtractWrapsFailureAsExtractionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	_, err := g.Extract(context.Background(), core.Document{ID: "doc-1"}, []byte("pdf"))

	require.Error(t, err)
	assert.Equal(t, core.KindExtraction, core.KindOf(err))
}

func TestEvaluateParsesVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(modelResponse(map[string]interface{}{
			"status":      "apto",
			"score_texto": "documentacao completa",
			"pendencias":  []string{},
		})))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	evaluation, err := g.Evaluate(context.Background(), core.Solicitation{ID: "s1"}, nil, nil, "regras")
	require.NoError(t, err)

	assert.Equal(t, "apto", evaluation.RawStatus)
	assert.Equal(t, "documentacao completa", evaluation.ScoreText)
	assert.Empty(t, evaluation.PendingItems)
}

func TestDecodeJSONObjectToleratesWrapping(t *testing.T) {
	payload, err := DecodeJSONObject("```json\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.EqualValues(t, 1, payload["a"])

	_, err = DecodeJSONObject("no json here")
	assert.Error(t, err)
}

func TestProviderErrorRetryable(t *testing.T) {
	assert.True(t, (&ProviderError{StatusCode: 429}).Retryable())
	assert.True(t, (&ProviderError{StatusCode: 503}).Retryable())
	assert.True(t, (&ProviderError{StatusCode: 500, Message: "RESOURCE_EXHAUSTED"}).Retryable())
	assert.False(t, (&ProviderError{StatusCode: 400, Message: "bad request"}).Retryable())
}
