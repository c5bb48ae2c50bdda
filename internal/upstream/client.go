// Package upstream fetches release metadata for the Hummingbird project.
//
// Two endpoints are used: the GitHub Releases API for the latest release
// (whose body feeds the changelog parser) and a package-index endpoint that
// is only a health/update signal. Both calls are best-effort; callers are
// expected to log and absorb every error returned here.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultReleaseURL is the GitHub API endpoint for the latest release.
	DefaultReleaseURL = "https://api.github.com/repos/hummingbird-project/hummingbird/releases/latest"

	// DefaultPackageIndexURL is the Swift Package Index entry for Hummingbird.
	DefaultPackageIndexURL = "https://swiftpackageindex.com/api/packages/hummingbird-project/hummingbird"

	// githubAPIVersion pins the REST API version we were written against.
	githubAPIVersion = "2022-11-28"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

var (
	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrMalformedRelease is returned when a release payload is not valid
	// JSON or lacks the tag name or body.
	ErrMalformedRelease = errors.New("malformed release payload")
)

// Config configures a Client.
type Config struct {
	ReleaseURL      string
	PackageIndexURL string
	// Token is sent as a bearer token when non-empty. Unauthenticated
	// requests work but are rate-limited harder by GitHub.
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns a Config pointing at the public endpoints.
func DefaultConfig() Config {
	return Config{
		ReleaseURL:      DefaultReleaseURL,
		PackageIndexURL: DefaultPackageIndexURL,
		Timeout:         10 * time.Second,
		UserAgent:       "hbadvisor/dev",
	}
}

// Release holds the fields of a GitHub release we care about.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

// Version returns the tag without its leading "v".
func (r *Release) Version() string {
	return NormalizeVersion(r.TagName)
}

// PackageIndex is a loose summary of the package-index response. Fields the
// endpoint does not provide are left empty.
type PackageIndex struct {
	Name          string `json:"name"`
	Summary       string `json:"summary"`
	LatestVersion string `json:"latest_version"`
	URL           string `json:"url"`
}

// Client talks to the upstream endpoints.
type Client struct {
	cfg  Config
	http *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (tests, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client. Empty URLs fall back to the public defaults.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.ReleaseURL == "" {
		cfg.ReleaseURL = def.ReleaseURL
	}
	if cfg.PackageIndexURL == "" {
		cfg.PackageIndexURL = def.PackageIndexURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	c := &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestRelease fetches the latest release. The tag name and body are
// required; an empty body is accepted, an absent one is not.
func (c *Client) LatestRelease(ctx context.Context) (*Release, error) {
	data, err := c.get(ctx, c.cfg.ReleaseURL, "application/vnd.github+json")
	if err != nil {
		return nil, fmt.Errorf("upstream: latest release: %w", err)
	}

	var payload struct {
		TagName     string    `json:"tag_name"`
		Name        string    `json:"name"`
		Body        *string   `json:"body"`
		HTMLURL     string    `json:"html_url"`
		PublishedAt time.Time `json:"published_at"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("upstream: latest release: %w: %v", ErrMalformedRelease, err)
	}
	if strings.TrimSpace(payload.TagName) == "" {
		return nil, fmt.Errorf("upstream: latest release: %w: missing tag_name", ErrMalformedRelease)
	}
	if payload.Body == nil {
		return nil, fmt.Errorf("upstream: latest release: %w: missing body", ErrMalformedRelease)
	}

	return &Release{
		TagName:     payload.TagName,
		Name:        payload.Name,
		Body:        *payload.Body,
		HTMLURL:     payload.HTMLURL,
		PublishedAt: payload.PublishedAt,
	}, nil
}

// PackageIndex checks the package-index endpoint. Only a 2xx response with
// a JSON object counts as success.
func (c *Client) PackageIndex(ctx context.Context) (*PackageIndex, error) {
	data, err := c.get(ctx, c.cfg.PackageIndexURL, "application/json")
	if err != nil {
		return nil, fmt.Errorf("upstream: package index: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("upstream: package index: decode: %w", err)
	}

	return &PackageIndex{
		Name:          firstString(raw, "name", "packageName", "repositoryName"),
		Summary:       firstString(raw, "summary", "description"),
		LatestVersion: firstString(raw, "latest_version", "latestVersion", "version"),
		URL:           firstString(raw, "url", "html_url", "repositoryURL"),
	}, nil
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return data, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// NormalizeVersion strips the leading "v" from version strings.
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

// IsNewer returns true if latest is a higher version than current.
// Versions compare by their first three numeric parts.
func IsNewer(current, latest string) bool {
	current, latest = NormalizeVersion(current), NormalizeVersion(latest)
	if latest == "" {
		return false
	}
	if current == "" {
		return true
	}

	currentParts := strings.Split(current, ".")
	latestParts := strings.Split(latest, ".")
	for len(currentParts) < 3 {
		currentParts = append(currentParts, "0")
	}
	for len(latestParts) < 3 {
		latestParts = append(latestParts, "0")
	}

	for i := 0; i < 3; i++ {
		c := parseIntSafe(currentParts[i])
		l := parseIntSafe(latestParts[i])
		if l != c {
			return l > c
		}
	}
	return false
}

// parseIntSafe reads the leading digits of s, returning 0 if there are none.
func parseIntSafe(s string) int {
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
