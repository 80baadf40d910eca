package opensky

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/banshee-data/overflight.report/internal/geo"
	"github.com/banshee-data/overflight.report/internal/httputil"
	"github.com/banshee-data/overflight.report/internal/monitoring"
	"github.com/banshee-data/overflight.report/internal/timeutil"
	"github.com/banshee-data/overflight.report/internal/version"
)

// maxBodyBytes bounds a single states response.
const maxBodyBytes = 8 << 20

// DefaultTimeout applies when NewClient is given no HTTP client.
const DefaultTimeout = 15 * time.Second

var logf = monitoring.Prefixed("opensky")

// Client fetches state vectors for an observation site.
type Client struct {
	HTTPClient httputil.HTTPClient
	BaseURL    string
	Username   string
	Password   string
	Clock      timeutil.Clock
}

// NewClient creates a client for baseURL. A nil httpClient gets a
// StandardClient with DefaultTimeout; an empty baseURL uses the public
// endpoint.
func NewClient(httpClient httputil.HTTPClient, baseURL string) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(DefaultTimeout)
	}
	if baseURL == "" {
		baseURL = DefaultStatesURL
	}
	return &Client{
		HTTPClient: httpClient,
		BaseURL:    baseURL,
		Clock:      timeutil.RealClock{},
	}
}

// WithCredentials sets basic-auth credentials for the authenticated tier.
func (c *Client) WithCredentials(username, password string) *Client {
	c.Username = username
	c.Password = password
	return c
}

// FetchStates requests the state vectors inside the site's bounding box.
// HTTP 429 returns a *RateLimitError, other non-2xx statuses a *StatusError.
func (c *Client) FetchStates(ctx context.Context, site geo.Site) ([]StateVector, error) {
	target, err := BuildStatesURL(c.BaseURL, site)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching states: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := ParseRetryAfter(resp.Header, c.now())
		logf("rate limited for site %q, backing off %s", site.Name, wait)
		return nil, NewRateLimitError(wait)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading states response: %w", err)
	}
	return ParseStates(body)
}

func (c *Client) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}
