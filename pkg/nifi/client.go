package nifi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
)

// maxErrorBody bounds how much of an error response is kept in APIError.
const maxErrorBody = 4 << 10

// Config holds connection settings for a NiFi instance.
type Config struct {
	// BaseURL is the REST API root, e.g. https://nifi:8443/nifi-api
	BaseURL string

	// Token is an optional bearer token (NiFi JWT or OIDC access token).
	Token string

	// Insecure disables TLS certificate verification.
	Insecure bool

	// HTTPClient overrides the transport. Token is still applied on top.
	HTTPClient *http.Client
}

// Client talks to the NiFi REST API.
type Client struct {
	http   *http.Client
	config Config
}

// NewClient creates a client for config. Without a token requests are sent
// unauthenticated, which works against unsecured instances.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL != "" {
		if _, err := url.Parse(config.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid NiFi base URL: %w", err)
		}
	}

	base := config.HTTPClient
	if base == nil {
		base = cleanhttp.DefaultPooledClient()
		if config.Insecure {
			if tr, ok := base.Transport.(*http.Transport); ok {
				tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --insecure
			}
		}
	}

	hc := base
	if config.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token})
		hc = oauth2.NewClient(ctx, ts)
	}

	return &Client{http: hc, config: config}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.config.BaseURL, "/")
}

// GetState fetches the state of the component at uri.
func (c *Client) GetState(ctx context.Context, uri string) (*ComponentState, error) {
	var entity ComponentStateEntity
	if err := c.do(ctx, http.MethodGet, uri+"/state", nil, &entity); err != nil {
		return nil, fmt.Errorf("failed to get component state: %w", err)
	}
	return &entity.ComponentState, nil
}

// ClearState issues a clear request for the component at uri and returns the
// updated revision.
func (c *Client) ClearState(ctx context.Context, uri string, rev Revision) (*Revision, error) {
	form := url.Values{}
	form.Set("version", strconv.FormatInt(rev.Version, 10))
	form.Set("clientId", rev.ClientID)

	var entity ComponentStateClearEntity
	if err := c.do(ctx, http.MethodPost, uri+"/state/clear-requests", form, &entity); err != nil {
		return nil, fmt.Errorf("failed to clear component state: %w", err)
	}
	return &entity.Revision, nil
}

// ClusterSummary fetches the cluster summary of the instance.
func (c *Client) ClusterSummary(ctx context.Context) (*ClusterSummary, error) {
	var entity clusterSummaryEntity
	if err := c.do(ctx, http.MethodGet, c.BaseURL()+"/flow/cluster/summary", nil, &entity); err != nil {
		return nil, fmt.Errorf("failed to get cluster summary: %w", err)
	}
	return &entity.ClusterSummary, nil
}

// IsClustered reports whether the instance runs clustered. Failures are
// logged and treated as standalone.
func (c *Client) IsClustered(ctx context.Context) bool {
	summary, err := c.ClusterSummary(ctx)
	if err != nil {
		slog.Debug("Cluster summary unavailable, assuming standalone", "error", err)
		return false
	}
	return summary.Clustered
}

// DescribeComponent fetches the name and run state of the component at uri.
func (c *Client) DescribeComponent(ctx context.Context, uri string) (*ComponentInfo, error) {
	var entity componentEntity
	if err := c.do(ctx, http.MethodGet, uri, nil, &entity); err != nil {
		return nil, fmt.Errorf("failed to describe component: %w", err)
	}
	return &entity.Component, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	slog.Debug("NiFi request", "method", method, "url", rawURL)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("Failed to close response body", "url", rawURL, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", rawURL, err)
	}
	return nil
}
