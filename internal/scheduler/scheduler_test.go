package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/hbadvisor/internal/knowledge"
	"github.com/HendryAvila/hbadvisor/internal/rules"
	"github.com/HendryAvila/hbadvisor/internal/upstream"
)

// fakeSource serves canned upstream responses. A non-nil gate blocks
// LatestRelease until it is closed.
type fakeSource struct {
	release    *upstream.Release
	releaseErr error
	index      *upstream.PackageIndex
	indexErr   error
	gate       chan struct{}
	calls      atomic.Int32
}

func (f *fakeSource) LatestRelease(ctx context.Context) (*upstream.Release, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.release, f.releaseErr
}

func (f *fakeSource) PackageIndex(context.Context) (*upstream.PackageIndex, error) {
	return f.index, f.indexErr
}

func newStore(t *testing.T) *knowledge.Store {
	t.Helper()
	s, err := knowledge.New(knowledge.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func release(tag, body string) *upstream.Release {
	return &upstream.Release{TagName: tag, Body: body, HTMLURL: "https://github.com/hummingbird-project/hummingbird/releases/tag/" + tag}
}

func counts(s *knowledge.Store) (int, int) {
	st := s.Stats()
	return st.Entries, st.DynamicRules
}

// --- Cycle ---

func TestRunOnce_IngestsReleaseAndGeneratesDrafts(t *testing.T) {
	store := newStore(t)
	before, _ := counts(store)
	src := &fakeSource{
		release: release("v2.1.0", "## Changes\n- HBFoo renamed to Foo\n- Removed HBBar"),
		index:   &upstream.PackageIndex{Name: "hummingbird", LatestVersion: "2.1.0"},
	}
	sched := New(DefaultConfig(), src, store)

	rep := sched.RunOnce(context.Background())

	assert.Empty(t, rep.Errors)
	assert.Equal(t, "v2.1.0", rep.ReleaseTag)
	assert.Equal(t, 2, rep.FactsParsed)
	assert.Equal(t, 2, rep.RulesGenerated)
	assert.Equal(t, 2, rep.RulesAdded)
	assert.True(t, rep.PackageIndexOK)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, Idle, sched.State())

	entries, dynamic := counts(store)
	assert.Equal(t, before+2, entries, "release and package index entries")
	assert.Equal(t, 2, dynamic)

	renamed, ok := store.Rule("auto:v2.1.0:renamed:HBFoo")
	require.True(t, ok)
	assert.Equal(t, rules.SeverityWarning, renamed.Severity)
	assert.Equal(t, "HBFoo", renamed.Pattern)
	assert.Equal(t, rules.StatusDraft, renamed.ReviewStatus)

	removed, ok := store.Rule("auto:v2.1.0:removed:HBBar")
	require.True(t, ok)
	assert.Equal(t, rules.SeverityError, removed.Severity)

	entry, ok := store.Entry(LatestReleaseEntryID)
	require.True(t, ok)
	assert.Equal(t, knowledge.KindRelease, entry.Kind)
	assert.Equal(t, "2.1.0", entry.MinVersion)

	last, ok := sched.LastReport()
	require.True(t, ok)
	assert.Equal(t, rep.RunID, last.RunID)
}

func TestRunOnce_Idempotent(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{
		release: release("v2.1.0", "HBFoo renamed to Foo\nRemoved HBBar"),
		index:   &upstream.PackageIndex{Name: "hummingbird"},
	}
	sched := New(DefaultConfig(), src, store)

	sched.RunOnce(context.Background())
	entries, dynamic := counts(store)

	rep := sched.RunOnce(context.Background())
	entries2, dynamic2 := counts(store)

	assert.Equal(t, entries, entries2)
	assert.Equal(t, dynamic, dynamic2)
	assert.Equal(t, 0, rep.RulesAdded)
	assert.Equal(t, 2, rep.RulesRefreshed)
}

func TestRunOnce_DoesNotDemoteApprovedRule(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{release: release("v2.1.0", "HBFoo renamed to Foo"), indexErr: errors.New("offline")}
	sched := New(DefaultConfig(), src, store)

	sched.RunOnce(context.Background())
	_, err := store.SetReviewStatus("auto:v2.1.0:renamed:HBFoo", rules.StatusApproved)
	require.NoError(t, err)

	sched.RunOnce(context.Background())
	r, ok := store.Rule("auto:v2.1.0:renamed:HBFoo")
	require.True(t, ok)
	assert.Equal(t, rules.StatusApproved, r.ReviewStatus)
}

func TestRunOnce_FlagsNewRelease(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{release: release("v2.1.0", "HBFoo renamed to Foo"), indexErr: errors.New("x")}
	sched := New(DefaultConfig(), src, store)

	rep := sched.RunOnce(context.Background())
	assert.True(t, rep.NewRelease, "first sighting")

	rep = sched.RunOnce(context.Background())
	assert.False(t, rep.NewRelease, "same release again")

	src.release = release("v2.2.0", "Removed HBBar")
	rep = sched.RunOnce(context.Background())
	assert.True(t, rep.NewRelease)
	e, ok := store.Entry(LatestReleaseEntryID)
	require.True(t, ok)
	assert.Equal(t, "2.2.0", e.MinVersion)

	src.release = release("v2.1.5", "")
	rep = sched.RunOnce(context.Background())
	assert.False(t, rep.NewRelease, "an older tag is not new")
}

func TestRunOnce_MalformedReleaseLeavesStoreUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/release") {
			_, _ = w.Write([]byte(`{"tag_name": "v2.1.0", "body": "HBFoo renamed`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := newStore(t)
	client := upstream.New(upstream.Config{
		ReleaseURL:      srv.URL + "/release",
		PackageIndexURL: srv.URL + "/index",
	})
	sched := New(DefaultConfig(), client, store)

	entries, dynamic := counts(store)
	rep := sched.RunOnce(context.Background())
	entries2, dynamic2 := counts(store)

	assert.Equal(t, entries, entries2)
	assert.Equal(t, dynamic, dynamic2)
	assert.NotEmpty(t, rep.Errors)
	assert.False(t, rep.PackageIndexOK)
	assert.Equal(t, Idle, sched.State())
}

func TestRunOnce_FetchErrorsAreAbsorbed(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unexpected status", upstream.ErrUnexpectedStatus},
		{"malformed", upstream.ErrMalformedRelease},
		{"transport", errors.New("dial tcp: connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			src := &fakeSource{releaseErr: tt.err, indexErr: tt.err}
			sched := New(DefaultConfig(), src, store)

			entries, dynamic := counts(store)
			rep := sched.RunOnce(context.Background())
			entries2, dynamic2 := counts(store)

			assert.Equal(t, entries, entries2)
			assert.Equal(t, dynamic, dynamic2)
			assert.Len(t, rep.Errors, 2)
			assert.Empty(t, rep.ReleaseTag)
		})
	}
}

func TestRunOnce_IndexFailureIsIsolated(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{
		release:  release("v2.1.0", "HBFoo renamed to Foo"),
		indexErr: upstream.ErrUnexpectedStatus,
	}
	sched := New(DefaultConfig(), src, store)

	rep := sched.RunOnce(context.Background())

	assert.False(t, rep.PackageIndexOK)
	assert.Equal(t, 1, rep.RulesAdded)
	_, ok := store.Entry(PackageIndexEntryID)
	assert.False(t, ok)
	_, ok = store.Entry(LatestReleaseEntryID)
	assert.True(t, ok)
}

func TestRunOnce_ReleaseFailureStillChecksIndex(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{
		releaseErr: upstream.ErrUnexpectedStatus,
		index:      &upstream.PackageIndex{Name: "hummingbird", LatestVersion: "2.1.0"},
	}
	sched := New(DefaultConfig(), src, store)

	rep := sched.RunOnce(context.Background())

	assert.True(t, rep.PackageIndexOK)
	e, ok := store.Entry(PackageIndexEntryID)
	require.True(t, ok)
	assert.Contains(t, e.Body, "2.1.0")
}

func TestRunOnce_TruncatesReleaseContent(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{release: release("v2.2.0", strings.Repeat("notes ", 1000)), indexErr: errors.New("x")}
	sched := New(DefaultConfig(), src, store)

	sched.RunOnce(context.Background())

	e, ok := store.Entry(LatestReleaseEntryID)
	require.True(t, ok)
	assert.LessOrEqual(t, len(e.Body), maxReleaseContent+len("..."))
}

func TestRunOnce_DraftRulesAreNotDetectedUntilApproved(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{release: release("v2.1.0", "HBFoo renamed to Foo"), indexErr: errors.New("x")}
	sched := New(DefaultConfig(), src, store)
	sched.RunOnce(context.Background())

	code := "let x = HBFoo()"
	assert.Empty(t, store.DetectViolations(code, ""))

	_, err := store.SetReviewStatus("auto:v2.1.0:renamed:HBFoo", rules.StatusApproved)
	require.NoError(t, err)

	matches := store.DetectViolations(code, "")
	require.Len(t, matches, 1)
	assert.Equal(t, "auto:v2.1.0:renamed:HBFoo", matches[0].RuleID)
	assert.Equal(t, rules.SeverityWarning, matches[0].Severity)
}

// --- Concurrency ---

func TestRunOnce_ConcurrentCallersShareCycle(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{
		release:  release("v2.1.0", "HBFoo renamed to Foo"),
		indexErr: errors.New("x"),
		gate:     make(chan struct{}),
	}
	sched := New(DefaultConfig(), src, store)

	var wg sync.WaitGroup
	reports := make([]Report, 4)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i] = sched.RunOnce(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return sched.State() == Updating }, time.Second, 5*time.Millisecond)
	// Let the other callers reach singleflight before releasing the cycle.
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, Idle, sched.State())
	assert.Equal(t, int32(1), src.calls.Load())
	for _, r := range reports {
		assert.Equal(t, reports[0].RunID, r.RunID)
	}
}

func TestRunOnce_CallerCancelDoesNotAbortSharedCycle(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{
		release:  release("v2.1.0", "HBFoo renamed to Foo"),
		indexErr: errors.New("x"),
		gate:     make(chan struct{}),
	}
	sched := New(DefaultConfig(), src, store)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan Report, 1)
	go func() { first <- sched.RunOnce(ctx) }()
	require.Eventually(t, func() bool { return sched.State() == Updating }, time.Second, 5*time.Millisecond)

	second := make(chan Report, 1)
	go func() { second <- sched.RunOnce(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case rep := <-first:
		assert.Contains(t, rep.Errors, context.Canceled.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}
	assert.Equal(t, Updating, sched.State(), "cycle keeps running")

	close(src.gate)
	select {
	case rep := <-second:
		assert.Equal(t, []string{"x"}, rep.Errors, "only the index failure")
		assert.Equal(t, "v2.1.0", rep.ReleaseTag)
		assert.Equal(t, 1, rep.RulesAdded)
	case <-time.After(2 * time.Second):
		t.Fatal("shared cycle did not finish")
	}
	_, ok := store.Rule("auto:v2.1.0:renamed:HBFoo")
	assert.True(t, ok)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestTrigger_RateLimited(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{release: release("v2.1.0", ""), indexErr: errors.New("x")}
	sched := New(Config{Interval: time.Hour, RefreshCooldown: time.Hour}, src, store)

	_, err := sched.Trigger(context.Background())
	require.NoError(t, err)

	_, err = sched.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestTrigger_NoCooldown(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{release: release("v2.1.0", ""), indexErr: errors.New("x")}
	sched := New(Config{Interval: time.Hour}, src, store)

	for i := 0; i < 3; i++ {
		_, err := sched.Trigger(context.Background())
		require.NoError(t, err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{release: release("v2.1.0", "HBFoo renamed to Foo"), indexErr: errors.New("x")}
	sched := New(Config{Interval: 10 * time.Millisecond}, src, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, Idle, sched.State())
	_, dynamic := counts(store)
	assert.Equal(t, 1, dynamic)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "updating", Updating.String())
}
