package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defeso/backend/internal/core"
)

const validYAML = `
prompts:
  - key: classificador
    response_schema: classification
    prompt: |
      Classifique. Categorias:
      ${DOCUMENT_CATEGORIES_ENUMERATION}
  - key: OUTRO
    response_schema: document_metadata
    system_prompt: ${BASE_EXTRACTOR_SYSTEM_PROMPT}
    prompt: Extraia o que conseguir.
  - key: CNIS
    response_schema: document_metadata
    prompt: Extraia os vinculos.
`

func TestParseRegistry(t *testing.T) {
	reg, err := ParseRegistry([]byte(validYAML))
	require.NoError(t, err)

	p, ok := reg.Get("classificador")
	require.True(t, ok)
	assert.Equal(t, "application/json", p.ResponseMIMEType)
	assert.Equal(t, "classification", p.Schema().Name)
}

func TestParseRegistrySubstitutesTemplates(t *testing.T) {
	reg, err := ParseRegistry([]byte(validYAML))
	require.NoError(t, err)

	classify, _ := reg.Get("classificador")
	assert.NotContains(t, classify.Text, "${DOCUMENT_CATEGORIES_ENUMERATION}")
	for _, c := range core.AllClassifications {
		assert.Contains(t, classify.Text, string(c))
	}

	outro, _ := reg.Get("OUTRO")
	assert.NotContains(t, outro.SystemPrompt, "${BASE_EXTRACTOR_SYSTEM_PROMPT}")
	assert.Contains(t, outro.SystemPrompt, "JSON")
}

func TestParseRegistryRejectsUnknownSchema(t *testing.T) {
	bad := strings.ReplaceAll(validYAML, "response_schema: classification", "response_schema: nonexistent")
	_, err := ParseRegistry([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestParseRegistryRejectsDuplicates(t *testing.T) {
	dup := validYAML + `
  - key: CNIS
    response_schema: document_metadata
    prompt: duplicado
`
	_, err := ParseRegistry([]byte(dup))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestParseRegistryRejectsEmptyBody(t *testing.T) {
	_, err := ParseRegistry([]byte("prompts:\n  - key: x\n    response_schema: classification\n"))
	assert.Error(t, err)
}

func TestForClassificationFallsBackToOutro(t *testing.T) {
	reg, err := ParseRegistry([]byte(validYAML))
	require.NoError(t, err)

	p, ok := reg.ForClassification(core.ClassCNIS)
	require.True(t, ok)
	assert.Equal(t, "CNIS", p.Key)

	p, ok = reg.ForClassification(core.ClassCPF)
	require.True(t, ok)
	assert.Equal(t, "OUTRO", p.Key)
}

func TestFullTextJoinsSystemPrompt(t *testing.T) {
	p := Prompt{SystemPrompt: "sys", Text: "body"}
	assert.Equal(t, "sys\n\nbody", p.FullText())

	p.SystemPrompt = ""
	assert.Equal(t, "body", p.FullText())
}

func TestClassificationSchemaValidation(t *testing.T) {
	schema := schemaRegistry["classification"]
	assert.NoError(t, schema.Validate(map[string]interface{}{"classification": "CNIS"}))
	assert.Error(t, schema.Validate(map[string]interface{}{}))
	assert.Error(t, schema.Validate(map[string]interface{}{"classification": 7}))
}

func TestEligibilitySchemaValidation(t *testing.T) {
	schema := schemaRegistry["eligibility"]
	assert.NoError(t, schema.Validate(map[string]interface{}{
		"status": "apto", "score_texto": "ok",
	}))
	assert.Error(t, schema.Validate(map[string]interface{}{"status": "apto"}))
}
