package rules

import (
	"fmt"
	"regexp"
	"time"

	"github.com/HendryAvila/hbadvisor/internal/changelog"
)

// GenerateOptions carries batch-level metadata stamped on every rule.
type GenerateOptions struct {
	// GeneratedAt is the batch timestamp. Zero means time.Now().UTC().
	GeneratedAt time.Time
	// CorrectionID optionally links every generated rule to a knowledge
	// entry (e.g. the latest release summary).
	CorrectionID string
}

// insteadPattern finds an explicit replacement in a removal note,
// e.g. "Removed HBBar, use Bar instead".
var insteadPattern = regexp.MustCompile("(?i:use)\\s+`?([A-Za-z_][A-Za-z0-9_.]*)`?\\s+(?i:instead)")

// RuleID builds the deterministic id for a fact. The same release always
// yields the same id; a different release yields a different one.
func RuleID(f changelog.DeprecationFact) string {
	return fmt.Sprintf("auto:%s:%s:%s", f.SourceVersion, f.Kind, f.OldName)
}

// Generate maps each fact to exactly one draft rule, preserving fact order.
// Malformed facts are dropped rather than producing an invalid rule.
func Generate(facts []changelog.DeprecationFact, opts GenerateOptions) []ViolationRule {
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	out := make([]ViolationRule, 0, len(facts))
	for _, f := range facts {
		r, ok := ruleFromFact(f)
		if !ok {
			continue
		}
		r.GeneratedAt = generatedAt
		r.Ordinal = len(out)
		r.CorrectionID = opts.CorrectionID
		if err := r.Validate(); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SeverityFor maps a fact kind to the severity of its generated rule.
func SeverityFor(kind changelog.Kind) Severity {
	if kind == changelog.KindRemoved {
		return SeverityError
	}
	return SeverityWarning
}

func ruleFromFact(f changelog.DeprecationFact) (ViolationRule, bool) {
	if !f.Valid() {
		return ViolationRule{}, false
	}

	r := ViolationRule{
		ID:            RuleID(f),
		Severity:      SeverityFor(f.Kind),
		Pattern:       f.OldName,
		PatternKind:   PatternLiteral,
		Origin:        OriginAutoGenerated,
		ReviewStatus:  StatusDraft,
		SourceVersion: f.SourceVersion,
	}

	release := f.SourceVersion
	if release == "" {
		release = "an unknown release"
	}

	switch f.Kind {
	case changelog.KindRenamed:
		r.Description = fmt.Sprintf("`%s` was renamed to `%s` in %s.", f.OldName, f.NewName, release)
		r.FixSuggestion = fmt.Sprintf("Replace `%s` with `%s`.", f.OldName, f.NewName)
	case changelog.KindChanged:
		r.Description = fmt.Sprintf("`%s` changed in %s and is now `%s`.", f.OldName, release, f.NewName)
		r.FixSuggestion = fmt.Sprintf("Replace `%s` with `%s`.", f.OldName, f.NewName)
	case changelog.KindRemoved:
		r.Description = fmt.Sprintf("`%s` was removed in %s.", f.OldName, release)
		if m := insteadPattern.FindStringSubmatch(f.RawSentence); m != nil && m[1] != f.OldName {
			r.FixSuggestion = fmt.Sprintf("Remove usage of `%s`; use `%s` instead.", f.OldName, m[1])
		} else {
			r.FixSuggestion = fmt.Sprintf("Remove usage of `%s`; no direct replacement.", f.OldName)
		}
	case changelog.KindAnnotated:
		r.Description = fmt.Sprintf("`%s` is marked @deprecated as of %s.", f.OldName, release)
		r.FixSuggestion = fmt.Sprintf("Migrate away from `%s` before it is removed in a future release.", f.OldName)
	default:
		return ViolationRule{}, false
	}

	return r, true
}
