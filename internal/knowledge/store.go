// Package knowledge implements the knowledge store for hbadvisor.
//
// The store is the single owner of every knowledge entry and every dynamic
// violation rule. All state lives behind one RWMutex: mutations are
// serialized against each other and against readers, so a reader never
// observes a half-applied upsert. Every mutation is written through to
// SQLite before it becomes visible in memory.
//
// On startup the bundled YAML baseline is loaded first and the persisted
// overlay (everything upserted since) is applied on top of it, so baseline
// content is present even on a fresh install.
package knowledge

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/HendryAvila/hbadvisor/internal/detector"
	"github.com/HendryAvila/hbadvisor/internal/rules"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

var (
	// ErrRuleNotFound is returned when a rule id is unknown to the store.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrInvalidStatus is returned for an unknown status or a review
	// transition that is not allowed.
	ErrInvalidStatus = errors.New("invalid review status")
	// ErrStaticRule is returned when a caller tries to store or review a
	// static rule; static rules are fixed and always approved.
	ErrStaticRule = errors.New("static rules cannot be modified")
)

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds knowledge store configuration.
type Config struct {
	// DataDir holds knowledge.db, the persisted overlay.
	DataDir string
}

// DefaultConfig returns the default configuration for the knowledge store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".hbadvisor"),
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the concurrency-safe repository of entries and dynamic rules.
type Store struct {
	db       *sql.DB
	cfg      Config
	log      *slog.Logger
	detector *detector.Detector
	hooks    storeHooks

	mu      sync.RWMutex
	entries map[string]KnowledgeEntry
	dynamic map[string]rules.ViolationRule
	static  []rules.ViolationRule
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// storeHooks lets tests inject persistence failures.
type storeHooks struct {
	beginTx func(db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func (s *Store) beginTxHook() (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(s.db)
	}
	return s.db.Begin()
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithDetector shares an existing detector (and its regex cache).
func WithDetector(d *detector.Detector) Option {
	return func(s *Store) { s.detector = d }
}

// New creates a Store: it opens (or creates) the SQLite overlay in
// cfg.DataDir, loads the bundled baseline and overlays persisted state.
func New(cfg Config, opts ...Option) (*Store, error) {
	s := &Store{
		cfg:     cfg,
		entries: make(map[string]KnowledgeEntry),
		dynamic: make(map[string]rules.ViolationRule),
		static:  rules.StaticCatalog(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.detector == nil {
		s.detector = detector.New(s.log)
	}

	baseline, err := loadBaseline(baselineYAML)
	if err != nil {
		return nil, err
	}
	for _, e := range baseline {
		s.entries[e.ID] = e
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("knowledge: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "knowledge.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open database: %w", err)
	}
	s.db = db

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("knowledge: pragma %q: %w", p, err)
		}
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("knowledge: migration: %w", err)
	}
	if err := s.loadOverlay(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("knowledge: load overlay: %w", err)
	}

	s.log.Debug("knowledge store ready",
		"path", dbPath, "entries", len(s.entries), "dynamic_rules", len(s.dynamic))
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			id               TEXT PRIMARY KEY,
			title            TEXT    NOT NULL,
			body             TEXT    NOT NULL,
			kind             TEXT    NOT NULL,
			layer            TEXT    NOT NULL DEFAULT '',
			min_version      TEXT    NOT NULL DEFAULT '',
			max_version      TEXT    NOT NULL DEFAULT '',
			confidence       REAL    NOT NULL DEFAULT 0,
			source           TEXT    NOT NULL,
			tags             TEXT    NOT NULL DEFAULT '[]',
			illustrative     INTEGER NOT NULL DEFAULT 0,
			last_verified_at TEXT,
			updated_at       TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_entries_layer ON entries(layer);
		CREATE INDEX IF NOT EXISTS idx_entries_kind  ON entries(kind);

		CREATE TABLE IF NOT EXISTS rules (
			id             TEXT PRIMARY KEY,
			severity       TEXT    NOT NULL,
			pattern        TEXT    NOT NULL,
			pattern_kind   TEXT    NOT NULL DEFAULT 'literal',
			description    TEXT    NOT NULL,
			fix_suggestion TEXT    NOT NULL,
			correction_id  TEXT    NOT NULL DEFAULT '',
			origin         TEXT    NOT NULL,
			review_status  TEXT    NOT NULL DEFAULT 'draft',
			file_types     TEXT    NOT NULL DEFAULT '[]',
			source_version TEXT    NOT NULL DEFAULT '',
			generated_at   TEXT    NOT NULL DEFAULT '',
			ordinal        INTEGER NOT NULL DEFAULT 0,
			updated_at     TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_rules_status ON rules(review_status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// loadOverlay reads every persisted entry and rule over the baseline.
func (s *Store) loadOverlay() error {
	rows, err := s.db.Query(
		`SELECT id, title, body, kind, layer, min_version, max_version, confidence,
		        source, tags, illustrative, last_verified_at
		 FROM entries ORDER BY id`,
	)
	if err != nil {
		return fmt.Errorf("query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			e          KnowledgeEntry
			tags       string
			verifiedAt sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Body, &e.Kind, &e.Layer, &e.MinVersion, &e.MaxVersion,
			&e.Confidence, &e.Source, &tags, &e.Illustrative, &verifiedAt); err != nil {
			return err
		}
		e.Tags = decodeStrings(tags)
		if verifiedAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, verifiedAt.String); err == nil {
				e.LastVerifiedAt = &t
			}
		}
		s.entries[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return err
	}

	ruleRows, err := s.db.Query(
		`SELECT id, severity, pattern, pattern_kind, description, fix_suggestion, correction_id,
		        origin, review_status, file_types, source_version, generated_at, ordinal
		 FROM rules ORDER BY id`,
	)
	if err != nil {
		return fmt.Errorf("query rules: %w", err)
	}
	defer func() { _ = ruleRows.Close() }()

	for ruleRows.Next() {
		var (
			r           rules.ViolationRule
			fileTypes   string
			generatedAt string
		)
		if err := ruleRows.Scan(&r.ID, &r.Severity, &r.Pattern, &r.PatternKind, &r.Description,
			&r.FixSuggestion, &r.CorrectionID, &r.Origin, &r.ReviewStatus, &fileTypes,
			&r.SourceVersion, &generatedAt, &r.Ordinal); err != nil {
			return err
		}
		r.FileTypes = decodeStrings(fileTypes)
		if generatedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, generatedAt); err == nil {
				r.GeneratedAt = t
			}
		}
		s.dynamic[r.ID] = r
	}
	return ruleRows.Err()
}

// ─── Entries ─────────────────────────────────────────────────────────────────

// Upsert inserts or replaces an entry by id. The write is persisted before
// it becomes visible; if persistence fails the store is left unchanged.
func (s *Store) Upsert(e KnowledgeEntry) error {
	if err := e.Validate(); err != nil {
		upsertsTotal.WithLabelValues("entry", "invalid").Inc()
		return fmt.Errorf("knowledge: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inTx(func(tx execer) error {
		return persistEntry(tx, e)
	})
	if err != nil {
		upsertsTotal.WithLabelValues("entry", "error").Inc()
		return fmt.Errorf("knowledge: persist entry %q: %w", e.ID, err)
	}

	s.entries[e.ID] = cloneEntry(e)
	upsertsTotal.WithLabelValues("entry", "ok").Inc()
	return nil
}

// Entry looks up an entry by id. The boolean is false when no entry exists.
func (s *Store) Entry(id string) (KnowledgeEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return KnowledgeEntry{}, false
	}
	return cloneEntry(e), true
}

// AllEntries returns every entry sorted by id.
func (s *Store) AllEntries() []KnowledgeEntry {
	return s.filterEntries(func(KnowledgeEntry) bool { return true })
}

// Entries returns the entries tagged with the given layer (case-insensitive).
// An empty layer returns every entry.
func (s *Store) Entries(layer string) []KnowledgeEntry {
	layer = strings.TrimSpace(layer)
	if layer == "" {
		return s.AllEntries()
	}
	return s.filterEntries(func(e KnowledgeEntry) bool {
		return strings.EqualFold(e.Layer, layer)
	})
}

// Pitfalls returns pitfall entries, excluding illustrative anti-pattern
// examples.
func (s *Store) Pitfalls() []KnowledgeEntry {
	return s.filterEntries(KnowledgeEntry.IsPitfall)
}

func (s *Store) filterEntries(keep func(KnowledgeEntry) bool) []KnowledgeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]KnowledgeEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ─── Rules ───────────────────────────────────────────────────────────────────

// UpsertRule inserts or replaces a single dynamic rule as given.
func (s *Store) UpsertRule(r rules.ViolationRule) error {
	if r.Origin == rules.OriginStatic {
		return ErrStaticRule
	}
	if err := r.Validate(); err != nil {
		upsertsTotal.WithLabelValues("rule", "invalid").Inc()
		return fmt.Errorf("knowledge: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.inTx(func(tx execer) error { return persistRule(tx, r) }); err != nil {
		upsertsTotal.WithLabelValues("rule", "error").Inc()
		return fmt.Errorf("knowledge: persist rule %q: %w", r.ID, err)
	}
	s.dynamic[r.ID] = cloneRule(r)
	upsertsTotal.WithLabelValues("rule", "ok").Inc()
	return nil
}

// UpsertGeneratedRules merges a batch of freshly generated rules. Rules with
// a known id keep their review status and original generation time, so
// reprocessing a release neither grows the store nor demotes approved
// rules. A repeated id within the batch counts once; the first occurrence
// wins. The batch is persisted in one transaction: either every rule is
// stored or none is.
func (s *Store) UpsertGeneratedRules(batch []rules.ViolationRule) (RuleMergeResult, error) {
	var res RuleMergeResult
	for _, r := range batch {
		if r.Origin == rules.OriginStatic {
			return res, fmt.Errorf("knowledge: rule %q: %w", r.ID, ErrStaticRule)
		}
		if err := r.Validate(); err != nil {
			upsertsTotal.WithLabelValues("rule", "invalid").Inc()
			return res, fmt.Errorf("knowledge: %w", err)
		}
	}
	if len(batch) == 0 {
		return res, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]rules.ViolationRule, 0, len(batch))
	seen := make(map[string]bool, len(batch))
	for _, r := range batch {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		if existing, ok := s.dynamic[r.ID]; ok {
			r.ReviewStatus = existing.ReviewStatus
			r.GeneratedAt = existing.GeneratedAt
			r.Ordinal = existing.Ordinal
			res.Refreshed++
		} else {
			res.Added++
		}
		merged = append(merged, r)
	}

	err := s.inTx(func(tx execer) error {
		for _, r := range merged {
			if err := persistRule(tx, r); err != nil {
				return fmt.Errorf("rule %q: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		upsertsTotal.WithLabelValues("rule", "error").Add(float64(len(merged)))
		return RuleMergeResult{}, fmt.Errorf("knowledge: persist rules: %w", err)
	}

	for _, r := range merged {
		s.dynamic[r.ID] = cloneRule(r)
	}
	upsertsTotal.WithLabelValues("rule", "ok").Add(float64(len(merged)))
	return res, nil
}

// Rule looks up a dynamic rule by id.
func (s *Store) Rule(id string) (rules.ViolationRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.dynamic[id]
	if !ok {
		return rules.ViolationRule{}, false
	}
	return cloneRule(r), true
}

// StaticRules returns the static catalogue in authored order.
func (s *Store) StaticRules() []rules.ViolationRule {
	out := make([]rules.ViolationRule, len(s.static))
	for i, r := range s.static {
		out[i] = cloneRule(r)
	}
	return out
}

// DynamicRules returns dynamic rules with the given status, or all of them
// when status is empty, most recently generated first.
func (s *Store) DynamicRules(status rules.ReviewStatus) []rules.ViolationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dynamicRulesLocked(status)
}

func (s *Store) dynamicRulesLocked(status rules.ReviewStatus) []rules.ViolationRule {
	out := make([]rules.ViolationRule, 0, len(s.dynamic))
	for _, r := range s.dynamic {
		if status == "" || r.ReviewStatus == status {
			out = append(out, cloneRule(r))
		}
	}
	sortNewestFirst(out)
	return out
}

// SetReviewStatus moves a dynamic rule to a new review status. This is the
// explicit promotion step: generated rules stay drafts until a reviewer
// (human or policy) approves them.
func (s *Store) SetReviewStatus(id string, status rules.ReviewStatus) (rules.ViolationRule, error) {
	for _, r := range s.static {
		if r.ID == id {
			return rules.ViolationRule{}, ErrStaticRule
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.dynamic[id]
	if !ok {
		return rules.ViolationRule{}, fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	if err := rules.CheckTransition(r.ReviewStatus, status); err != nil {
		return rules.ViolationRule{}, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}
	if r.ReviewStatus == status {
		return cloneRule(r), nil
	}

	r.ReviewStatus = status
	err := s.inTx(func(tx execer) error {
		_, err := tx.Exec(
			`UPDATE rules SET review_status = ?, updated_at = datetime('now') WHERE id = ?`,
			string(status), id,
		)
		return err
	})
	if err != nil {
		return rules.ViolationRule{}, fmt.Errorf("knowledge: persist review of %q: %w", id, err)
	}

	s.dynamic[id] = r
	s.log.Info("rule reviewed", "rule", id, "status", status)
	return cloneRule(r), nil
}

// ActiveRules returns the rule set used for detection: the static
// catalogue in authored order, then approved dynamic rules with the most
// recently generated first.
func (s *Store) ActiveRules() []rules.ViolationRule {
	s.mu.RLock()
	approved := s.dynamicRulesLocked(rules.StatusApproved)
	s.mu.RUnlock()

	out := make([]rules.ViolationRule, 0, len(s.static)+len(approved))
	out = append(out, s.static...)
	return append(out, approved...)
}

// DetectViolations scans code against the active rules. Draft and
// rejected rules never participate.
func (s *Store) DetectViolations(code, filePathHint string) []detector.Match {
	return s.detector.Detect(code, filePathHint, s.ActiveRules())
}

// ─── Reporting ───────────────────────────────────────────────────────────────

// Stats returns aggregate counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Entries:       len(s.entries),
		EntriesByKind: make(map[string]int),
		StaticRules:   len(s.static),
		DynamicRules:  len(s.dynamic),
	}
	for _, e := range s.entries {
		st.EntriesByKind[string(e.Kind)]++
	}
	for _, r := range s.dynamic {
		switch r.ReviewStatus {
		case rules.StatusDraft:
			st.Draft++
		case rules.StatusApproved:
			st.Approved++
		case rules.StatusRejected:
			st.Rejected++
		}
	}
	return st
}

// Export returns a flat snapshot of every entry and dynamic rule.
func (s *Store) Export() Snapshot {
	return Snapshot{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Entries:    s.AllEntries(),
		Rules:      s.DynamicRules(""),
	}
}

// ─── Persistence helpers ─────────────────────────────────────────────────────

// inTx runs fn inside a transaction and commits it.
func (s *Store) inTx(fn func(tx execer) error) error {
	tx, err := s.beginTxHook()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := s.commitHook(tx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func persistEntry(tx execer, e KnowledgeEntry) error {
	var verifiedAt *string
	if e.LastVerifiedAt != nil {
		v := e.LastVerifiedAt.UTC().Format(time.RFC3339Nano)
		verifiedAt = &v
	}
	_, err := tx.Exec(
		`INSERT INTO entries (id, title, body, kind, layer, min_version, max_version, confidence,
		                      source, tags, illustrative, last_verified_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(id) DO UPDATE SET
		     title = excluded.title,
		     body = excluded.body,
		     kind = excluded.kind,
		     layer = excluded.layer,
		     min_version = excluded.min_version,
		     max_version = excluded.max_version,
		     confidence = excluded.confidence,
		     source = excluded.source,
		     tags = excluded.tags,
		     illustrative = excluded.illustrative,
		     last_verified_at = excluded.last_verified_at,
		     updated_at = datetime('now')`,
		e.ID, e.Title, e.Body, string(e.Kind), e.Layer, e.MinVersion, e.MaxVersion, e.Confidence,
		e.Source, encodeStrings(e.Tags), e.Illustrative, verifiedAt,
	)
	return err
}

func persistRule(tx execer, r rules.ViolationRule) error {
	generatedAt := ""
	if !r.GeneratedAt.IsZero() {
		generatedAt = r.GeneratedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := tx.Exec(
		`INSERT INTO rules (id, severity, pattern, pattern_kind, description, fix_suggestion, correction_id,
		                    origin, review_status, file_types, source_version, generated_at, ordinal, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(id) DO UPDATE SET
		     severity = excluded.severity,
		     pattern = excluded.pattern,
		     pattern_kind = excluded.pattern_kind,
		     description = excluded.description,
		     fix_suggestion = excluded.fix_suggestion,
		     correction_id = excluded.correction_id,
		     origin = excluded.origin,
		     review_status = excluded.review_status,
		     file_types = excluded.file_types,
		     source_version = excluded.source_version,
		     generated_at = excluded.generated_at,
		     ordinal = excluded.ordinal,
		     updated_at = datetime('now')`,
		r.ID, string(r.Severity), r.Pattern, string(r.PatternKind), r.Description, r.FixSuggestion,
		r.CorrectionID, string(r.Origin), string(r.ReviewStatus), encodeStrings(r.FileTypes),
		r.SourceVersion, generatedAt, r.Ordinal,
	)
	return err
}

// sortNewestFirst orders rules by batch (newest first), then by their
// position within the batch, then by id for a total order.
func sortNewestFirst(rs []rules.ViolationRule) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if !a.GeneratedAt.Equal(b.GeneratedAt) {
			return a.GeneratedAt.After(b.GeneratedAt)
		}
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		return a.ID < b.ID
	})
}

func encodeStrings(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStrings(s string) []string {
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil || len(v) == 0 {
		return nil
	}
	return v
}

func cloneEntry(e KnowledgeEntry) KnowledgeEntry {
	e.Tags = append([]string(nil), e.Tags...)
	if e.LastVerifiedAt != nil {
		t := *e.LastVerifiedAt
		e.LastVerifiedAt = &t
	}
	return e
}

func cloneRule(r rules.ViolationRule) rules.ViolationRule {
	r.FileTypes = append([]string(nil), r.FileTypes...)
	return r
}

// Truncate shortens a string to max bytes with an ellipsis, without
// splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
