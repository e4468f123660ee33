// Package metadata resolves DOIs to publication records using public
// registries, falling back from a primary to a secondary source.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/reference"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit is the default requests per second per registry.
	DefaultRateLimit = 5.0

	// DefaultUserAgent identifies the client to the registries' polite pools.
	DefaultUserAgent = "bibrename/1.0"

	// maxBodyBytes caps registry response bodies.
	maxBodyBytes = 8 << 20
)

// Source is a registry that can look up a single DOI.
type Source interface {
	Name() string
	Fetch(ctx context.Context, d doi.DOI) (*reference.Publication, error)
}

// client is the rate-limited HTTP plumbing shared by registry sources.
type client struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
}

// SourceOption configures a registry source.
type SourceOption func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) SourceOption {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing or mirrors).
func WithBaseURL(u string) SourceOption {
	return func(c *client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithMailto adds a contact address to the User-Agent, which the registries
// use to route requests to their polite pools.
func WithMailto(email string) SourceOption {
	return func(c *client) {
		if email != "" {
			c.userAgent = fmt.Sprintf("%s (mailto:%s)", DefaultUserAgent, email)
		}
	}
}

// WithRateLimit sets the maximum requests per second. Zero or less disables
// limiting.
func WithRateLimit(perSecond float64) SourceOption {
	return func(c *client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) SourceOption {
	return func(c *client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func newClient(name, baseURL string, opts []SourceOption) *client {
	c := &client{
		name:       name,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    baseURL,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON performs a rate-limited GET and decodes the JSON body into v.
func (c *client) getJSON(ctx context.Context, path string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNetwork, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{Source: c.name, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: reading body: %v", ErrNetwork, c.name, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, c.name, err)
	}
	return nil
}

// escapeDOI path-escapes each segment of a DOI, keeping its slashes.
func escapeDOI(d doi.DOI) string {
	parts := strings.Split(d.String(), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var markupPattern = regexp.MustCompile(`<[^>]+>`)

// cleanText strips inline markup (Crossref titles carry JATS tags) and
// collapses whitespace.
func cleanText(s string) string {
	s = markupPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// firstNonEmpty returns the first non-blank string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = cleanText(v); v != "" {
			return v
		}
	}
	return ""
}
