package prompts

import (
	"fmt"

	"github.com/defeso/backend/internal/core"
)

// ResponseSchema constrains the model output for one prompt. Spec is the
// JSON-schema object sent to the provider; Validate rejects decoded payloads
// that do not satisfy the contract.
type ResponseSchema struct {
	Name     string
	Spec     map[string]interface{}
	Validate func(payload map[string]interface{}) error
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	spec := map[string]interface{}{
		"type":       "OBJECT",
		"properties": properties,
	}
	if len(required) > 0 {
		spec["required"] = required
	}
	return spec
}

func stringProp() map[string]interface{} {
	return map[string]interface{}{"type": "STRING"}
}

func stringArrayProp() map[string]interface{} {
	return map[string]interface{}{
		"type":  "ARRAY",
		"items": map[string]interface{}{"type": "STRING"},
	}
}

func requireStrings(payload map[string]interface{}, fields ...string) error {
	for _, field := range fields {
		v, ok := payload[field]
		if !ok {
			return fmt.Errorf("response missing required field %q", field)
		}
		if _, ok := v.(string); !ok {
			return fmt.Errorf("response field %q is not a string", field)
		}
	}
	return nil
}

// schemaRegistry is the static table every YAML entry must resolve into.
// Extraction payloads stay free-form maps; their schemas only pin the
// object shape the model must emit.
var schemaRegistry = map[string]ResponseSchema{
	"classification": {
		Name: "classification",
		Spec: objectSchema(map[string]interface{}{
			"classification": map[string]interface{}{
				"type": "STRING",
				"enum": classificationEnum(),
			},
		}, "classification"),
		Validate: func(payload map[string]interface{}) error {
			return requireStrings(payload, "classification")
		},
	},
	"eligibility": {
		Name: "eligibility",
		Spec: objectSchema(map[string]interface{}{
			"status":      stringProp(),
			"score_texto": stringProp(),
			"pendencias":  stringArrayProp(),
		}, "status", "score_texto"),
		Validate: func(payload map[string]interface{}) error {
			return requireStrings(payload, "status", "score_texto")
		},
	},
	"document_metadata": {
		Name:     "document_metadata",
		Spec:     objectSchema(map[string]interface{}{}),
		Validate: func(map[string]interface{}) error { return nil },
	},
}

func classificationEnum() []string {
	values := make([]string, 0, len(core.AllClassifications))
	for _, c := range core.AllClassifications {
		values = append(values, string(c))
	}
	return values
}
