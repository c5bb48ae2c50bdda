// Package changelog extracts deprecation facts from release notes.
//
// The parser is a best-effort pattern matcher, not a natural language
// processor. It scans Markdown release bodies line by line and recognizes a
// fixed, ordered set of phrasings:
//
//	X renamed to Y / Renamed X to Y / X → Y / X -> Y   (renamed)
//	X is now Y                                        (changed)
//	Removed X / X was removed                         (removed)
//	@deprecated X                                     (annotated)
//
// Fenced code blocks are skipped. Lines that match nothing contribute
// nothing; parsing never fails.
package changelog

import (
	"regexp"
	"strings"
)

// Kind classifies a deprecation fact.
type Kind string

const (
	KindRenamed   Kind = "renamed"
	KindRemoved   Kind = "removed"
	KindChanged   Kind = "changed"
	KindAnnotated Kind = "annotated"
)

// RequiresNewName reports whether facts of this kind must name a replacement.
func (k Kind) RequiresNewName() bool {
	return k == KindRenamed || k == KindChanged
}

// DeprecationFact is one statement extracted from a changelog.
type DeprecationFact struct {
	Kind          Kind   `json:"kind"`
	OldName       string `json:"old_name"`
	NewName       string `json:"new_name,omitempty"`
	RawSentence   string `json:"raw_sentence"`
	SourceVersion string `json:"source_version"`
}

// Valid reports whether the fact satisfies its invariants: a non-empty
// OldName, and a NewName exactly when the kind requires one.
func (f DeprecationFact) Valid() bool {
	if f.OldName == "" {
		return false
	}
	switch f.Kind {
	case KindRenamed, KindChanged:
		return f.NewName != ""
	case KindRemoved, KindAnnotated:
		return f.NewName == ""
	default:
		return false
	}
}

// ident captures an optionally backticked identifier as two groups:
// the opening backtick (empty when unquoted) and the identifier itself.
const ident = "(`?)([A-Za-z_][A-Za-z0-9_]*(?:\\.[A-Za-z_][A-Za-z0-9_]*)*)(?:\\(\\))?`?"

var (
	renamedToPattern = regexp.MustCompile(ident + `\s+(?:(?i:has\s+been|was|is|were)\s+)?(?i:renamed)\s+(?i:to)\s+` + ident)
	renamedXToY      = regexp.MustCompile(`(?:^|\s)(?i:renamed)\s+` + ident + `\s+(?i:to)\s+` + ident)
	arrowPattern     = regexp.MustCompile(ident + `\s*(?:→|->)\s*` + ident)
	isNowPattern     = regexp.MustCompile(ident + `\s+(?i:is\s+now)\s+(?:(?i:called|named|an|a|the)\s+)?` + ident)
	removedXPattern  = regexp.MustCompile(`(?:^|\s)(?i:removed)\s+(?:(?i:the)\s+)?` + ident)
	xRemovedPattern  = regexp.MustCompile(ident + `\s+(?i:was|has\s+been|have\s+been|were)\s+(?i:removed)`)
	annotatedPattern = regexp.MustCompile(`@deprecated\s+` + ident)

	// Markup stripped before matching. Backticks are kept: they mark
	// identifiers explicitly.
	leadingMarkup = regexp.MustCompile(`^\s*(?:#{1,6}\s+|>\s*|[-*+]\s+|\d+[.)]\s+)*`)
	emphasis      = regexp.MustCompile(`\*\*|__`)
)

// stopWords are capitalized English words that often precede "is now" or
// "removed" in prose and must not be read as identifiers.
var stopWords = map[string]bool{
	"A": true, "An": true, "And": true, "Also": true, "All": true, "Any": true,
	"It": true, "Its": true, "In": true, "If": true, "Is": true,
	"The": true, "This": true, "That": true, "These": true, "Those": true, "There": true,
	"We": true, "You": true, "Our": true, "Support": true, "Now": true, "Note": true,
	"Which": true, "What": true, "When": true, "Where": true, "Some": true, "Each": true,
	"Default": true, "Deprecated": true, "Removed": true, "Renamed": true,
}

// Parse extracts facts from a release body in input line order.
// Lines inside fenced code blocks are skipped. An empty body yields no
// facts.
func Parse(body, sourceVersion string) []DeprecationFact {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	var (
		facts []DeprecationFact
		fence string
	)
	for _, raw := range strings.Split(body, "\n") {
		raw = strings.TrimRight(raw, "\r")
		if marker := fenceMarker(raw); marker != "" {
			switch fence {
			case "":
				fence = marker
			case marker:
				fence = ""
			}
			continue
		}
		if fence != "" {
			continue
		}
		line := cleanLine(raw)
		if line == "" {
			continue
		}
		facts = append(facts, parseLine(line, strings.TrimSpace(raw), sourceVersion)...)
	}
	return facts
}

// fenceMarker returns "```" or "~~~" when the line opens or closes a
// fenced code block, and "" otherwise.
func fenceMarker(line string) string {
	line = strings.TrimSpace(line)
	for _, marker := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, marker) {
			return marker
		}
	}
	return ""
}

// parseLine applies the patterns to one cleaned line. Structural facts
// come from a single kind per line (rename > change > removal), one per
// old name; @deprecated annotations are collected independently.
func parseLine(line, raw, version string) []DeprecationFact {
	var facts []DeprecationFact
	seen := make(map[string]bool)

	emit := func(kind Kind, oldName, newName string) {
		f := DeprecationFact{
			Kind:          kind,
			OldName:       oldName,
			NewName:       newName,
			RawSentence:   raw,
			SourceVersion: version,
		}
		if !f.Valid() || seen[oldName] {
			return
		}
		seen[oldName] = true
		facts = append(facts, f)
	}

	if pairs := matchPairs(line, renamedToPattern, renamedXToY, arrowPattern); len(pairs) > 0 {
		for _, p := range pairs {
			emit(KindRenamed, p[0], p[1])
		}
	} else if pairs := matchPairs(line, isNowPattern); len(pairs) > 0 {
		for _, p := range pairs {
			emit(KindChanged, p[0], p[1])
		}
	} else {
		for _, name := range matchSingles(line, removedXPattern, xRemovedPattern) {
			emit(KindRemoved, name, "")
		}
	}

	for _, m := range annotatedPattern.FindAllStringSubmatch(line, -1) {
		if name, ok := acceptIdent(m[1], m[2]); ok {
			emit(KindAnnotated, name, "")
		}
	}

	return facts
}

// matchPairs returns every accepted (old, new) identifier pair of the
// first pattern, tried in order, that accepts any. Every match of a
// pattern is considered so a rejected prose match does not hide a later
// valid one.
func matchPairs(line string, patterns ...*regexp.Regexp) [][2]string {
	for _, p := range patterns {
		var pairs [][2]string
		for _, m := range p.FindAllStringSubmatch(line, -1) {
			// m[1..2] old identifier, m[3..4] new identifier.
			oldName, okOld := acceptIdent(m[1], m[2])
			newName, okNew := acceptIdent(m[3], m[4])
			if okOld && okNew && oldName != newName {
				pairs = append(pairs, [2]string{oldName, newName})
			}
		}
		if len(pairs) > 0 {
			return pairs
		}
	}
	return nil
}

// matchSingles returns every identifier accepted by the first pattern
// that accepts any.
func matchSingles(line string, patterns ...*regexp.Regexp) []string {
	for _, p := range patterns {
		var names []string
		for _, m := range p.FindAllStringSubmatch(line, -1) {
			if name, ok := acceptIdent(m[1], m[2]); ok {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	return nil
}

// acceptIdent decides whether a captured token is a code identifier.
// Backticked tokens are always accepted; bare tokens must look like code.
func acceptIdent(tick, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if tick != "" {
		return name, true
	}
	if stopWords[name] {
		return "", false
	}
	if strings.ContainsAny(name, "._") {
		return name, true
	}
	first := name[0]
	if first >= 'A' && first <= 'Z' {
		return name, true
	}
	// camelCase: lower-case start with an upper-case letter later on.
	for i := 1; i < len(name); i++ {
		if name[i] >= 'A' && name[i] <= 'Z' {
			return name, true
		}
	}
	return "", false
}

// cleanLine removes list, header and emphasis markup around the text.
func cleanLine(line string) string {
	line = leadingMarkup.ReplaceAllString(line, "")
	line = emphasis.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}
