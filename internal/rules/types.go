// Package rules defines violation rules: the hand-authored static catalogue,
// the shared rule model, and the generator that turns parsed changelog facts
// into draft dynamic rules.
//
// Static rules are implicitly approved and always participate in detection.
// Dynamic rules start as drafts and only participate once a reviewer promotes
// them (see knowledge.Store.SetReviewStatus).
package rules

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// --- Severity enum ---

// Severity tells the caller how serious a violation is. Blocking policy
// (e.g. refusing generated code with a critical violation) lives with the caller.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
)

// ParseSeverity converts user input into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityCritical, SeverityError, SeverityWarning:
		return sev, nil
	}
	return "", fmt.Errorf("invalid severity %q: must be one of: critical, error, warning", s)
}

// Rank orders severities from most (0) to least serious.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityError:
		return 1
	case SeverityWarning:
		return 2
	default:
		return 3
	}
}

// --- Origin enum ---

// Origin records where a rule came from.
type Origin string

const (
	OriginStatic        Origin = "static"
	OriginAutoGenerated Origin = "auto-generated"
)

// --- Review status enum ---

// ReviewStatus gates dynamic rules out of detection until approved.
type ReviewStatus string

const (
	StatusDraft    ReviewStatus = "draft"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
)

var validStatuses = map[ReviewStatus]bool{
	StatusDraft:    true,
	StatusApproved: true,
	StatusRejected: true,
}

// ParseReviewStatus converts user input into a ReviewStatus.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	st := ReviewStatus(s)
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid review status %q: must be one of: draft, approved, rejected", s)
	}
	return st, nil
}

// --- Pattern kind enum ---

// PatternKind selects how Pattern is matched against source text.
type PatternKind string

const (
	// PatternLiteral is a plain substring match.
	PatternLiteral PatternKind = "literal"
	// PatternRegex is an RE2 regular expression.
	PatternRegex PatternKind = "regex"
)

// ViolationRule is one executable detection rule, static or dynamic.
type ViolationRule struct {
	ID            string       `json:"id" yaml:"id" validate:"required"`
	Severity      Severity     `json:"severity" yaml:"severity" validate:"required,oneof=critical error warning"`
	Pattern       string       `json:"pattern" yaml:"pattern" validate:"required"`
	PatternKind   PatternKind  `json:"pattern_kind" yaml:"pattern_kind" validate:"required,oneof=literal regex"`
	Description   string       `json:"description" yaml:"description" validate:"required"`
	FixSuggestion string       `json:"fix_suggestion" yaml:"fix_suggestion" validate:"required"`
	CorrectionID  string       `json:"correction_id,omitempty" yaml:"correction_id,omitempty"`
	Origin        Origin       `json:"origin" yaml:"origin" validate:"required,oneof=static auto-generated"`
	ReviewStatus  ReviewStatus `json:"review_status" yaml:"review_status" validate:"required,oneof=draft approved rejected"`

	// FileTypes restricts the rule to files with one of these extensions
	// when the caller supplies a file path hint. Empty means any file.
	FileTypes []string `json:"file_types,omitempty" yaml:"file_types,omitempty"`

	// Dynamic rule provenance. Zero for static rules.
	SourceVersion string    `json:"source_version,omitempty" yaml:"source_version,omitempty"`
	GeneratedAt   time.Time `json:"generated_at,omitempty" yaml:"generated_at,omitempty"`
	Ordinal       int       `json:"ordinal,omitempty" yaml:"ordinal,omitempty"`
}

// validate is shared by every rule validation; validator caches struct
// metadata so a single instance is the intended usage.
var validate = validator.New()

// Validate checks required fields and enum values.
func (r ViolationRule) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("rule %q: %w", r.ID, err)
	}
	return nil
}

// IsActive reports whether the rule participates in detection.
func (r ViolationRule) IsActive() bool {
	if r.Origin == OriginStatic {
		return true
	}
	return r.ReviewStatus == StatusApproved
}
