package knowledge

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/HendryAvila/hbadvisor/internal/rules"
)

// EntryKind categorizes a knowledge entry.
type EntryKind string

const (
	KindPattern EntryKind = "pattern" // recommended architecture pattern
	KindPitfall EntryKind = "pitfall" // common mistake and its correction
	KindRelease EntryKind = "release" // auto-ingested release summary
	KindPackage EntryKind = "package" // auto-ingested package index summary
)

// KnowledgeEntry is one documentation unit served to clients.
type KnowledgeEntry struct {
	ID         string    `json:"id" yaml:"id" validate:"required"`
	Title      string    `json:"title" yaml:"title" validate:"required"`
	Body       string    `json:"body" yaml:"body" validate:"required"`
	Kind       EntryKind `json:"kind" yaml:"kind" validate:"required,oneof=pattern pitfall release package"`
	Layer      string    `json:"layer,omitempty" yaml:"layer,omitempty"`
	MinVersion string    `json:"min_version,omitempty" yaml:"min_version,omitempty"`
	MaxVersion string    `json:"max_version,omitempty" yaml:"max_version,omitempty"`
	Confidence float64   `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`
	Source     string    `json:"source" yaml:"source" validate:"required"`
	Tags       []string  `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Illustrative marks anti-pattern-only example content: it explains
	// what bad code looks like but is not itself a pitfall to report.
	Illustrative bool `json:"illustrative,omitempty" yaml:"illustrative,omitempty"`

	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty" yaml:"last_verified_at,omitempty"`
}

var validate = validator.New()

// Validate checks required fields and enum values.
func (e KnowledgeEntry) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("entry %q: %w", e.ID, err)
	}
	return nil
}

// IsPitfall reports whether the entry belongs in the pitfall listing.
func (e KnowledgeEntry) IsPitfall() bool {
	return e.Kind == KindPitfall && !e.Illustrative
}

// Stats summarizes store contents.
type Stats struct {
	Entries       int            `json:"entries"`
	EntriesByKind map[string]int `json:"entries_by_kind"`
	StaticRules   int            `json:"static_rules"`
	DynamicRules  int            `json:"dynamic_rules"`
	Draft         int            `json:"draft"`
	Approved      int            `json:"approved"`
	Rejected      int            `json:"rejected"`
}

// Snapshot is the flat, serializable dump of the store.
type Snapshot struct {
	ExportedAt string                `json:"exported_at"`
	Entries    []KnowledgeEntry      `json:"entries"`
	Rules      []rules.ViolationRule `json:"rules"`
}

// RuleMergeResult reports what a batch rule upsert changed.
type RuleMergeResult struct {
	Added     int `json:"added"`
	Refreshed int `json:"refreshed"`
}
