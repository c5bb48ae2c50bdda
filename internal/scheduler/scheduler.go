// Package scheduler keeps the knowledge store current with upstream
// Hummingbird releases.
//
// A cycle fetches the latest release, stores a summary entry for it, runs
// its notes through the changelog parser and rule generator, and upserts the
// resulting draft rules. A package-index check runs alongside it. Every
// failure is logged and absorbed: a cycle always ends and the scheduler
// always returns to Idle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/HendryAvila/hbadvisor/internal/changelog"
	"github.com/HendryAvila/hbadvisor/internal/knowledge"
	"github.com/HendryAvila/hbadvisor/internal/rules"
	"github.com/HendryAvila/hbadvisor/internal/upstream"
)

const (
	// LatestReleaseEntryID is the singleton entry describing the newest release.
	LatestReleaseEntryID = "hummingbird-latest-release"
	// PackageIndexEntryID is the singleton entry built from the package index.
	PackageIndexEntryID = "hummingbird-package-index"

	// maxReleaseContent bounds the stored release summary.
	maxReleaseContent = 2000
)

// ErrRateLimited is returned by Trigger when a manual refresh comes too soon
// after the previous one.
var ErrRateLimited = errors.New("refresh rate limited, try again later")

// State is the scheduler's lifecycle state.
type State int32

const (
	Idle State = iota
	Updating
)

func (s State) String() string {
	if s == Updating {
		return "updating"
	}
	return "idle"
}

// Source is the upstream the scheduler pulls from.
type Source interface {
	LatestRelease(ctx context.Context) (*upstream.Release, error)
	PackageIndex(ctx context.Context) (*upstream.PackageIndex, error)
}

// Store is the subset of the knowledge store a cycle reads and writes.
type Store interface {
	Entry(id string) (knowledge.KnowledgeEntry, bool)
	Upsert(e knowledge.KnowledgeEntry) error
	UpsertGeneratedRules(batch []rules.ViolationRule) (knowledge.RuleMergeResult, error)
}

// Config holds scheduler configuration.
type Config struct {
	// Interval between automatic cycles.
	Interval time.Duration
	// RefreshCooldown is the minimum time between manual triggers.
	// Zero disables the limit.
	RefreshCooldown time.Duration
}

// DefaultConfig returns hourly cycles and a one minute manual cooldown.
func DefaultConfig() Config {
	return Config{
		Interval:        time.Hour,
		RefreshCooldown: time.Minute,
	}
}

// Report describes one completed cycle.
type Report struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	ReleaseTag     string    `json:"release_tag,omitempty"`
	NewRelease     bool      `json:"new_release"`
	FactsParsed    int       `json:"facts_parsed"`
	RulesGenerated int       `json:"rules_generated"`
	RulesAdded     int       `json:"rules_added"`
	RulesRefreshed int       `json:"rules_refreshed"`
	PackageIndexOK bool      `json:"package_index_ok"`
	Errors         []string  `json:"errors,omitempty"`
}

// Duration is how long the cycle took.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Scheduler runs update cycles.
type Scheduler struct {
	cfg     Config
	src     Source
	store   Store
	log     *slog.Logger
	now     func() time.Time
	limiter *rate.Limiter

	state  atomic.Int32
	flight singleflight.Group

	mu   sync.Mutex
	last *Report
	// lifetime is Run's context while Run is active.
	lifetime context.Context
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler in the Idle state.
func New(cfg Config, src Source, store Store, opts ...Option) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	limit := rate.Inf
	if cfg.RefreshCooldown > 0 {
		limit = rate.Every(cfg.RefreshCooldown)
	}

	s := &Scheduler{
		cfg:     cfg,
		src:     src,
		store:   store,
		now:     func() time.Time { return time.Now().UTC() },
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	return s
}

// State returns the current state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastReport returns the most recent completed cycle, if any.
func (s *Scheduler) LastReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

// Run performs a cycle immediately and then one per interval until ctx is
// cancelled. A cycle already in progress when ctx is cancelled finishes its
// store writes before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.setLifetime(ctx)
	defer s.setLifetime(nil)

	s.log.Info("update scheduler started", "interval", s.cfg.Interval)
	<-s.start(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("update scheduler stopped")
			return
		case <-ticker.C:
			<-s.start(ctx)
		}
	}
}

// RunOnce performs one cycle and returns its report. Concurrent callers
// share the cycle already in flight.
//
// The shared cycle is not bound to any one caller: it runs under Run's
// context when the scheduler is running, and is never cancelled otherwise.
// A caller whose ctx ends first gets a report carrying ctx's error while
// the cycle carries on for everyone else.
func (s *Scheduler) RunOnce(ctx context.Context) Report {
	select {
	case res := <-s.start(ctx):
		return res.Val.(Report)
	case <-ctx.Done():
		now := s.now()
		return Report{StartedAt: now, FinishedAt: now, Errors: []string{ctx.Err().Error()}}
	}
}

// start joins the cycle in flight or begins a new one.
func (s *Scheduler) start(ctx context.Context) <-chan singleflight.Result {
	return s.flight.DoChan("cycle", func() (any, error) {
		return s.cycle(s.cycleContext(ctx)), nil
	})
}

func (s *Scheduler) cycleContext(caller context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifetime != nil {
		return s.lifetime
	}
	return context.WithoutCancel(caller)
}

func (s *Scheduler) setLifetime(ctx context.Context) {
	s.mu.Lock()
	s.lifetime = ctx
	s.mu.Unlock()
}

// Trigger is a manual RunOnce subject to the refresh cooldown.
func (s *Scheduler) Trigger(ctx context.Context) (Report, error) {
	if !s.limiter.Allow() {
		return Report{}, ErrRateLimited
	}
	return s.RunOnce(ctx), nil
}

// ─── Cycle ───────────────────────────────────────────────────────────────────

type releaseOutcome struct {
	tag       string
	isNew     bool
	facts     int
	generated int
	merge     knowledge.RuleMergeResult
	errs      []string
}

type indexOutcome struct {
	ok  bool
	err string
}

func (s *Scheduler) cycle(ctx context.Context) Report {
	s.state.Store(int32(Updating))
	stateGauge.Set(1)
	defer func() {
		s.state.Store(int32(Idle))
		stateGauge.Set(0)
	}()

	rep := Report{RunID: uuid.NewString(), StartedAt: s.now()}
	log := s.log.With("run_id", rep.RunID)
	log.Debug("update cycle started")

	var (
		rel   releaseOutcome
		index indexOutcome
	)
	// Neither branch returns an error: a failed index check must not cancel
	// release ingestion and vice versa.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rel = s.ingestRelease(gctx, log, rep.StartedAt)
		return nil
	})
	g.Go(func() error {
		index = s.checkPackageIndex(gctx, log, rep.StartedAt)
		return nil
	})
	_ = g.Wait()

	rep.ReleaseTag = rel.tag
	rep.NewRelease = rel.isNew
	rep.FactsParsed = rel.facts
	rep.RulesGenerated = rel.generated
	rep.RulesAdded = rel.merge.Added
	rep.RulesRefreshed = rel.merge.Refreshed
	rep.Errors = rel.errs
	rep.PackageIndexOK = index.ok
	if index.err != "" {
		rep.Errors = append(rep.Errors, index.err)
	}
	rep.FinishedAt = s.now()

	result := "ok"
	if len(rel.errs) > 0 {
		result = "release_failed"
	} else if !index.ok {
		result = "index_failed"
	}
	cyclesTotal.WithLabelValues(result).Inc()
	cycleDuration.Observe(rep.Duration().Seconds())
	rulesGenerated.Add(float64(rep.RulesGenerated))

	log.Info("update cycle finished",
		"result", result,
		"release", rep.ReleaseTag,
		"new_release", rep.NewRelease,
		"facts", rep.FactsParsed,
		"rules_added", rep.RulesAdded,
		"rules_refreshed", rep.RulesRefreshed,
		"package_index_ok", rep.PackageIndexOK,
	)

	s.mu.Lock()
	s.last = &rep
	s.mu.Unlock()
	return rep
}

// ingestRelease is steps 1-3 of a cycle. Any fetch failure leaves the store
// untouched.
func (s *Scheduler) ingestRelease(ctx context.Context, log *slog.Logger, now time.Time) releaseOutcome {
	var out releaseOutcome

	release, err := s.src.LatestRelease(ctx)
	if err != nil {
		log.Warn("release fetch failed, keeping current knowledge", "err", err)
		out.errs = append(out.errs, err.Error())
		return out
	}
	out.tag = release.TagName

	var known string
	if prev, ok := s.store.Entry(LatestReleaseEntryID); ok {
		known = prev.MinVersion
	}
	if upstream.IsNewer(known, release.Version()) {
		out.isNew = true
		log.Info("new Hummingbird release", "release", release.TagName, "previous", known)
	}

	if err := s.store.Upsert(releaseEntry(release, now)); err != nil {
		log.Warn("storing release summary failed", "release", release.TagName, "err", err)
		out.errs = append(out.errs, err.Error())
	}

	facts := changelog.Parse(release.Body, release.TagName)
	generated := rules.Generate(facts, rules.GenerateOptions{
		GeneratedAt:  now,
		CorrectionID: LatestReleaseEntryID,
	})
	out.facts = len(facts)
	out.generated = len(generated)

	merge, err := s.store.UpsertGeneratedRules(generated)
	if err != nil {
		log.Warn("storing generated rules failed", "release", release.TagName, "err", err)
		out.errs = append(out.errs, err.Error())
		return out
	}
	out.merge = merge
	return out
}

// checkPackageIndex is step 4: a health signal whose failure only gets logged.
func (s *Scheduler) checkPackageIndex(ctx context.Context, log *slog.Logger, now time.Time) indexOutcome {
	idx, err := s.src.PackageIndex(ctx)
	if err != nil {
		log.Warn("package index check failed", "err", err)
		return indexOutcome{err: err.Error()}
	}
	if err := s.store.Upsert(packageEntry(idx, now)); err != nil {
		log.Warn("storing package index summary failed", "err", err)
		return indexOutcome{ok: true, err: err.Error()}
	}
	return indexOutcome{ok: true}
}

func releaseEntry(r *upstream.Release, now time.Time) knowledge.KnowledgeEntry {
	title := "Hummingbird " + r.TagName
	if r.Name != "" && r.Name != r.TagName {
		title += " (" + r.Name + ")"
	}
	body := strings.TrimSpace(r.Body)
	if body == "" {
		body = fmt.Sprintf("Release %s was published without release notes.", r.TagName)
	}
	source := r.HTMLURL
	if source == "" {
		source = upstream.DefaultReleaseURL
	}
	return knowledge.KnowledgeEntry{
		ID:             LatestReleaseEntryID,
		Title:          title,
		Body:           knowledge.Truncate(body, maxReleaseContent),
		Kind:           knowledge.KindRelease,
		MinVersion:     r.Version(),
		Confidence:     1,
		Source:         source,
		Tags:           []string{"release", r.Version()},
		LastVerifiedAt: &now,
	}
}

func packageEntry(idx *upstream.PackageIndex, now time.Time) knowledge.KnowledgeEntry {
	name := idx.Name
	if name == "" {
		name = "hummingbird"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Package index listing for %s.", name)
	if idx.Summary != "" {
		fmt.Fprintf(&b, " %s", idx.Summary)
	}
	if idx.LatestVersion != "" {
		fmt.Fprintf(&b, " Latest indexed version: %s.", idx.LatestVersion)
	}
	source := idx.URL
	if source == "" {
		source = upstream.DefaultPackageIndexURL
	}
	return knowledge.KnowledgeEntry{
		ID:             PackageIndexEntryID,
		Title:          "Package Index: " + name,
		Body:           knowledge.Truncate(b.String(), maxReleaseContent),
		Kind:           knowledge.KindPackage,
		MinVersion:     upstream.NormalizeVersion(idx.LatestVersion),
		Confidence:     0.8,
		Source:         source,
		Tags:           []string{"package-index"},
		LastVerifiedAt: &now,
	}
}
