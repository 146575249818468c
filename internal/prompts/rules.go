package prompts

import (
	"fmt"
	"os"
	"sync"
)

var (
	rulesOnce sync.Once
	rulesText string
	rulesErr  error
)

// LoadRules returns the opaque eligibility rules text, read once per
// process. Editing the file requires a restart, same as the prompt
// registry.
func LoadRules(path string) (string, error) {
	rulesOnce.Do(func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			rulesErr = fmt.Errorf("read rules file: %w", err)
			return
		}
		rulesText = string(raw)
	})
	return rulesText, rulesErr
}
