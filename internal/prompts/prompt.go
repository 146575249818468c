// Package prompts loads the GenAI prompt definitions from YAML and binds
// each one to a typed response schema from the static registry. Loading
// happens once per process; unknown schema names are a fatal config error.
package prompts

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/defeso/backend/internal/core"
)

// Prompt is one named entry of the YAML registry.
type Prompt struct {
	Key              string `yaml:"key"`
	Description      string `yaml:"description"`
	SystemPrompt     string `yaml:"system_prompt"`
	Text             string `yaml:"prompt"`
	ResponseSchema   string `yaml:"response_schema"`
	ResponseMIMEType string `yaml:"response_mime_type"`
}

// FullText concatenates the system prompt (when present) and the body.
func (p Prompt) FullText() string {
	if p.SystemPrompt != "" {
		return p.SystemPrompt + "\n\n" + p.Text
	}
	return p.Text
}

// Schema resolves the typed response schema this prompt was bound to at
// load time.
func (p Prompt) Schema() ResponseSchema {
	return schemaRegistry[p.ResponseSchema]
}

type promptsFile struct {
	Prompts []Prompt `yaml:"prompts"`
}

// Registry holds the loaded prompts keyed by name.
type Registry struct {
	prompts map[string]Prompt
}

var (
	loadOnce     sync.Once
	loadedReg    *Registry
	loadErr      error
	templateVars = map[string]string{
		"BASE_EXTRACTOR_SYSTEM_PROMPT":    baseExtractorSystemPrompt,
		"DOCUMENT_CATEGORIES_ENUMERATION": categoriesEnumeration(),
	}
)

// Load reads and validates the prompt registry. The first call wins; later
// calls return the cached registry regardless of path.
func Load(path string) (*Registry, error) {
	loadOnce.Do(func() {
		loadedReg, loadErr = loadFile(path)
	})
	return loadedReg, loadErr
}

func loadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	return ParseRegistry(raw)
}

// ParseRegistry decodes and validates YAML prompt definitions. Exposed so
// tests can load fixtures without touching the process-wide cache.
func ParseRegistry(raw []byte) (*Registry, error) {
	var file promptsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode prompts file: %w", err)
	}
	if len(file.Prompts) == 0 {
		return nil, fmt.Errorf("prompts file defines no prompts")
	}

	reg := &Registry{prompts: make(map[string]Prompt, len(file.Prompts))}
	for _, p := range file.Prompts {
		if p.Key == "" {
			return nil, fmt.Errorf("prompt with empty key")
		}
		if p.Text == "" {
			return nil, fmt.Errorf("prompt %q has no body", p.Key)
		}
		if _, ok := schemaRegistry[p.ResponseSchema]; !ok {
			return nil, fmt.Errorf("prompt %q references unknown response schema %q", p.Key, p.ResponseSchema)
		}
		if _, dup := reg.prompts[p.Key]; dup {
			return nil, fmt.Errorf("duplicate prompt key %q", p.Key)
		}
		if p.ResponseMIMEType == "" {
			p.ResponseMIMEType = "application/json"
		}
		p.Text = substitute(p.Text)
		p.SystemPrompt = substitute(p.SystemPrompt)
		reg.prompts[p.Key] = p
	}
	return reg, nil
}

// Get returns the prompt registered under key.
func (r *Registry) Get(key string) (Prompt, bool) {
	p, ok := r.prompts[key]
	return p, ok
}

// ForClassification resolves the extractor prompt for a document class,
// falling back to the OUTRO extractor when the class has no dedicated
// prompt. The second return is false only when not even the fallback is
// registered.
func (r *Registry) ForClassification(class core.DocumentClassification) (Prompt, bool) {
	if p, ok := r.prompts[string(class)]; ok {
		return p, true
	}
	p, ok := r.prompts[string(core.ClassOutro)]
	return p, ok
}

// substitute expands ${NAME} placeholders from the constants map. Unknown
// placeholders are left untouched, mirroring a safe template substitution.
func substitute(text string) string {
	if text == "" {
		return text
	}
	return os.Expand(text, func(name string) string {
		if v, ok := templateVars[name]; ok {
			return v
		}
		return "${" + name + "}"
	})
}

func categoriesEnumeration() string {
	lines := make([]string, 0, len(core.AllClassifications))
	for i, c := range core.AllClassifications {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, c))
	}
	return strings.Join(lines, "\n")
}

const baseExtractorSystemPrompt = `Regras gerais:
- Responda apenas com JSON válido;
- Se a informação não aparecer no documento, não a inclua;
- Utilize datas no formato YYYY-MM-DD;
- Os documentos podem estar em formato PDF ou imagem (JPG/PNG);
- Identifique o tipo de documento pelos termos mais evidentes no conteúdo;
- Se não for possível identificar o documento, retorne um JSON vazio: {};
- Não inclua explicações ou comentários fora do JSON;
- Considere que o texto pode conter erros de OCR e ruídos;
- Não invente informações que não estejam presentes no documento.`
