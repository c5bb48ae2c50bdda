// Package detector scans source text against violation rules.
//
// Matching is deliberately simple: literal rules are substring matches and
// regex rules are RE2 expressions. Every matching rule is reported, in the
// order the rules were supplied; nothing suppresses anything else.
package detector

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/HendryAvila/hbadvisor/internal/rules"
)

// maxSnippet bounds the source line echoed back in a match.
const maxSnippet = 160

// Match is one rule that matched the scanned text.
type Match struct {
	RuleID        string         `json:"rule_id"`
	Severity      rules.Severity `json:"severity"`
	Origin        rules.Origin   `json:"origin"`
	Description   string         `json:"description"`
	FixSuggestion string         `json:"fix_suggestion"`
	CorrectionID  string         `json:"correction_id,omitempty"`
	FilePath      string         `json:"file_path,omitempty"`
	Line          int            `json:"line"`
	Snippet       string         `json:"snippet"`
}

// Detector matches text against rules. Compiled regular expressions are
// cached, so a Detector should be long-lived and shared. It is safe for
// concurrent use.
type Detector struct {
	log *slog.Logger

	mu      sync.Mutex
	regexps map[string]*regexp.Regexp
	invalid map[string]bool
}

// New creates a Detector. A nil logger discards log output.
func New(log *slog.Logger) *Detector {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Detector{
		log:     log,
		regexps: make(map[string]*regexp.Regexp),
		invalid: make(map[string]bool),
	}
}

// Detect returns every rule in rs that matches text, in rule order.
// filePathHint may be empty; when set, rules restricted to other file
// types are skipped. Empty text yields no matches.
func (d *Detector) Detect(text, filePathHint string, rs []rules.ViolationRule) []Match {
	matches := []Match{}
	if text == "" {
		return matches
	}

	ext := strings.ToLower(filepath.Ext(filePathHint))
	for _, r := range rs {
		if !appliesTo(r, filePathHint, ext) {
			continue
		}
		offset, ok := d.find(r, text)
		if !ok {
			continue
		}
		line, snippet := locate(text, offset)
		matches = append(matches, Match{
			RuleID:        r.ID,
			Severity:      r.Severity,
			Origin:        r.Origin,
			Description:   r.Description,
			FixSuggestion: r.FixSuggestion,
			CorrectionID:  r.CorrectionID,
			FilePath:      filePathHint,
			Line:          line,
			Snippet:       snippet,
		})
	}
	return matches
}

// HasCritical reports whether any match is critical.
func HasCritical(matches []Match) bool {
	return AtLeast(matches, rules.SeverityCritical)
}

// AtLeast reports whether any match is at least as serious as floor.
func AtLeast(matches []Match, floor rules.Severity) bool {
	for _, m := range matches {
		if m.Severity.Rank() <= floor.Rank() {
			return true
		}
	}
	return false
}

// find returns the byte offset of the first occurrence of the rule pattern.
func (d *Detector) find(r rules.ViolationRule, text string) (int, bool) {
	if r.Pattern == "" {
		return 0, false
	}
	switch r.PatternKind {
	case rules.PatternRegex:
		re := d.compile(r)
		if re == nil {
			return 0, false
		}
		loc := re.FindStringIndex(text)
		if loc == nil {
			return 0, false
		}
		return loc[0], true
	default:
		i := strings.Index(text, r.Pattern)
		return i, i >= 0
	}
}

// compile returns the cached expression for the rule, or nil if the
// pattern does not compile. Invalid patterns are logged once.
func (d *Detector) compile(r rules.ViolationRule) *regexp.Regexp {
	d.mu.Lock()
	defer d.mu.Unlock()

	if re, ok := d.regexps[r.Pattern]; ok {
		return re
	}
	if d.invalid[r.Pattern] {
		return nil
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		d.invalid[r.Pattern] = true
		d.log.Warn("skipping rule with invalid pattern", "rule", r.ID, "err", err)
		return nil
	}
	d.regexps[r.Pattern] = re
	return re
}

func appliesTo(r rules.ViolationRule, hint, ext string) bool {
	if hint == "" || len(r.FileTypes) == 0 {
		return true
	}
	for _, ft := range r.FileTypes {
		if strings.EqualFold(ft, ext) {
			return true
		}
	}
	return false
}

// locate converts a byte offset into a 1-based line number and the
// trimmed text of that line.
func locate(text string, offset int) (int, string) {
	line := strings.Count(text[:offset], "\n") + 1

	start := strings.LastIndexByte(text[:offset], '\n') + 1
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text)
	} else {
		end += offset
	}

	snippet := strings.TrimSpace(text[start:end])
	if len(snippet) > maxSnippet {
		cut := maxSnippet
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut] + "..."
	}
	return line, snippet
}
