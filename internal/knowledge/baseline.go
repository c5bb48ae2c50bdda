package knowledge

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed baseline.yaml
var baselineYAML []byte

type baselineFile struct {
	Entries []KnowledgeEntry `yaml:"entries"`
}

// loadBaseline decodes and validates the bundled snapshot.
func loadBaseline(data []byte) ([]KnowledgeEntry, error) {
	var f baselineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("knowledge: decode baseline: %w", err)
	}

	seen := make(map[string]bool, len(f.Entries))
	for _, e := range f.Entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("knowledge: baseline: %w", err)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("knowledge: baseline: duplicate entry id %q", e.ID)
		}
		seen[e.ID] = true
	}
	return f.Entries, nil
}
