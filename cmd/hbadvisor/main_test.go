package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/hbadvisor/internal/knowledge"
)

// setupEnv points every command at a temp data dir and a fake upstream
// serving one release.
func setupEnv(t *testing.T, releaseBody string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/release") {
			payload, _ := json.Marshal(map[string]string{"tag_name": "v2.1.0", "body": releaseBody})
			_, _ = w.Write(payload)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	dataDir := t.TempDir()
	t.Chdir(t.TempDir())
	t.Setenv("HBADVISOR_DATA_DIR", dataDir)
	t.Setenv("HBADVISOR_RELEASE_URL", srv.URL+"/release")
	t.Setenv("HBADVISOR_PACKAGE_INDEX_URL", srv.URL+"/index")
	t.Setenv("HBADVISOR_LOG_FORMAT", "text")
	t.Setenv("HBADVISOR_LOG_LEVEL", "error")
	return dataDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hbadvisor v")
}

func TestScan_CriticalExitsTwo(t *testing.T) {
	setupEnv(t, "")
	path := writeFile(t, "App.swift", "func boot() {\n    fatalError(\"no config\")\n}\n")

	out, err := run(t, "scan", path)

	var ee *exitError
	require.True(t, errors.As(err, &ee), "want exitError, got %v", err)
	assert.Equal(t, exitCritical, ee.code)
	assert.True(t, strings.HasPrefix(out, "BLOCKED"), out)
	assert.Contains(t, out, "hb-fatal-error")
}

func TestScan_FailOn(t *testing.T) {
	setupEnv(t, "- HBFoo renamed to Foo")
	path := writeFile(t, "App.swift", "let x = HBFoo()\n")

	_, err := run(t, "refresh")
	require.NoError(t, err)
	_, err = run(t, "rules", "approve", "auto:v2.1.0:renamed:HBFoo")
	require.NoError(t, err)

	_, err = run(t, "scan", "--fail-on", "error", path)
	require.NoError(t, err, "a warning is below the error threshold")

	_, err = run(t, "scan", "--fail-on", "warning", path)
	var ee *exitError
	require.True(t, errors.As(err, &ee), "want exitError, got %v", err)
	assert.Equal(t, exitCritical, ee.code)

	_, err = run(t, "scan", "--fail-on", "fatal", path)
	require.Error(t, err)
	assert.False(t, errors.As(err, &ee))
}

func TestScan_CleanFile(t *testing.T) {
	setupEnv(t, "")
	path := writeFile(t, "App.swift", "let router = Router()\n")

	out, err := run(t, "scan", "--json", path)
	require.NoError(t, err)

	var results []fileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Matches)
}

func TestScan_MissingFile(t *testing.T) {
	setupEnv(t, "")
	_, err := run(t, "scan", filepath.Join(t.TempDir(), "missing.swift"))
	require.Error(t, err)
	var ee *exitError
	assert.False(t, errors.As(err, &ee))
}

func TestRefreshReviewScan(t *testing.T) {
	setupEnv(t, "- HBFoo renamed to Foo\n- Removed HBBar")
	path := writeFile(t, "App.swift", "let x = HBFoo()\n")

	out, err := run(t, "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "v2.1.0")
	assert.Contains(t, out, "2 new")

	out, err = run(t, "rules", "list", "--status", "draft")
	require.NoError(t, err)
	assert.Contains(t, out, "auto:v2.1.0:renamed:HBFoo")
	assert.Contains(t, out, "auto:v2.1.0:removed:HBBar")

	// Drafts do not fire.
	out, err = run(t, "scan", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No violations found")

	out, err = run(t, "rules", "approve", "auto:v2.1.0:renamed:HBFoo")
	require.NoError(t, err)
	assert.Contains(t, out, "approved")

	out, err = run(t, "scan", path)
	require.NoError(t, err, "a warning does not fail the scan")
	assert.Contains(t, out, "auto:v2.1.0:renamed:HBFoo")

	// A second refresh of the same release changes nothing.
	out, err = run(t, "refresh", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"rules_added": 0`)
	assert.Contains(t, out, `"rules_refreshed": 2`)
}

func TestRulesApprove_Unknown(t *testing.T) {
	setupEnv(t, "")
	_, err := run(t, "rules", "approve", "auto:v0:removed:Nope")
	assert.ErrorIs(t, err, knowledge.ErrRuleNotFound)
}

func TestRulesList_Static(t *testing.T) {
	setupEnv(t, "")
	out, err := run(t, "rules", "list", "--static")
	require.NoError(t, err)
	assert.Contains(t, out, "hb-fatal-error")
	assert.NotContains(t, out, "No generated rules")
}

func TestRulesList_BadStatus(t *testing.T) {
	setupEnv(t, "")
	_, err := run(t, "rules", "list", "--status", "pending")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	setupEnv(t, "")
	out, err := run(t, "export")
	require.NoError(t, err)

	var snap knowledge.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.NotEmpty(t, snap.Entries)
	assert.Empty(t, snap.Rules)

	file := filepath.Join(t.TempDir(), "snap.json")
	_, err = run(t, "export", "-o", file)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "async-handlers")
}

func TestInvalidConfigFails(t *testing.T) {
	setupEnv(t, "")
	t.Setenv("HBADVISOR_UPDATE_INTERVAL", "-5m")
	_, err := run(t, "rules", "list")
	assert.Error(t, err)
}
