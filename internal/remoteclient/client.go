// Package remoteclient implements provider.RemoteClient over HTTP against
// one replica of the remote key/value configuration service: request
// construction, bearer auth, retry with exponential backoff, and error
// classification onto the provider package's sentinel taxonomy.
package remoteclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kptl-dev/remoteconfig-go/internal/provider"
)

const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "remoteconfig-go/0.1"
)

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer per Go
// convention "accept interfaces, return structs" — callers typically adapt
// an oauth2.TokenSource into this shape.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP RemoteClient bound to one replica endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	tracing    bool

	// sleepFunc waits between retries. Defaults to timeSleep; tests
	// override it to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger overrides the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRequestTracing attaches a fresh correlation ID (Correlation-Request-Id) to every
// outbound request.
func WithRequestTracing(enabled bool) Option {
	return func(c *Client) { c.tracing = enabled }
}

// NewClient creates a Client bound to baseURL (e.g.
// "https://primary.configsvc.internal/v1").
func NewClient(baseURL string, token TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		token:      token,
		logger:     slog.Default(),
		sleepFunc:  timeSleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Factory returns a provider.ClientFactory binding one Client per endpoint,
// sharing the given token source, http.Client, logger, and tracing flag.
func Factory(token TokenSource, opts ...Option) provider.ClientFactory {
	cache := make(map[string]*Client)

	return func(endpoint string) provider.RemoteClient {
		if c, ok := cache[endpoint]; ok {
			return c
		}

		c := NewClient(endpoint, token, opts...)
		cache[endpoint] = c

		return c
	}
}

// settingDTO is the wire representation of provider.Setting.
type settingDTO struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
	ETag  string `json:"etag"`
}

func (d settingDTO) toSetting() provider.Setting {
	return provider.Setting{Key: d.Key, Label: d.Label, Value: d.Value, ETag: d.ETag}
}

type snapshotDTO struct {
	Name        string `json:"name"`
	Composition string `json:"composition"`
}

// List returns every setting matching sel.
func (c *Client) List(ctx context.Context, sel provider.Selector) ([]provider.Setting, error) {
	q := url.Values{}
	if sel.KeyFilter != "" {
		q.Set("key", sel.KeyFilter)
	}

	if sel.LabelFilter != "" {
		q.Set("label", sel.LabelFilter)
	}

	resp, err := c.do(ctx, http.MethodGet, "/kv?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dtos []settingDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("remoteclient: decoding list response: %w", err)
	}

	out := make([]provider.Setting, len(dtos))
	for i, d := range dtos {
		out[i] = d.toSetting()
	}

	return out, nil
}

// ListSnapshot returns every setting in the named server-side snapshot.
func (c *Client) ListSnapshot(ctx context.Context, name string) ([]provider.Setting, error) {
	resp, err := c.do(ctx, http.MethodGet, "/snapshots/"+url.PathEscape(name)+"/kv", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dtos []settingDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("remoteclient: decoding snapshot list response: %w", err)
	}

	out := make([]provider.Setting, len(dtos))
	for i, d := range dtos {
		out[i] = d.toSetting()
	}

	return out, nil
}

// GetSnapshot returns a named snapshot's metadata.
func (c *Client) GetSnapshot(ctx context.Context, name string) (provider.Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/snapshots/"+url.PathEscape(name), nil, "")
	if err != nil {
		return provider.Snapshot{}, err
	}
	defer resp.Body.Close()

	var dto snapshotDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return provider.Snapshot{}, fmt.Errorf("remoteclient: decoding snapshot response: %w", err)
	}

	return provider.Snapshot{Name: dto.Name, Composition: provider.SnapshotComposition(dto.Composition)}, nil
}

// Get fetches a single setting by key/label.
func (c *Client) Get(ctx context.Context, key, label string) (provider.Setting, error) {
	resp, err := c.do(ctx, http.MethodGet, settingPath(key, label), nil, "")
	if err != nil {
		return provider.Setting{}, err
	}
	defer resp.Body.Close()

	var dto settingDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return provider.Setting{}, fmt.Errorf("remoteclient: decoding get response: %w", err)
	}

	return dto.toSetting(), nil
}

// GetChange performs a conditional fetch using If-None-Match against
// known's etag: 304 maps to ChangeNone, 200 to ChangeModified,
// 404 to ChangeDeleted.
func (c *Client) GetChange(ctx context.Context, known provider.Setting) (provider.ChangeRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, settingPath(known.Key, known.Label), nil, known.ETag)
	if err != nil {
		if re, ok := err.(*provider.RemoteError); ok && re.StatusCode == http.StatusNotFound {
			return provider.ChangeRecord{Kind: provider.ChangeDeleted, Key: known.Key, Label: known.Label}, nil
		}

		return provider.ChangeRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return provider.ChangeRecord{Kind: provider.ChangeNone, Key: known.Key, Label: known.Label}, nil
	}

	var dto settingDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return provider.ChangeRecord{}, fmt.Errorf("remoteclient: decoding change response: %w", err)
	}

	fresh := dto.toSetting()

	return provider.ChangeRecord{Kind: provider.ChangeModified, Key: known.Key, Label: known.Label, Current: &fresh}, nil
}

func settingPath(key, label string) string {
	q := url.Values{}
	if label != "" {
		q.Set("label", label)
	}

	p := "/kv/" + url.PathEscape(key)
	if len(q) > 0 {
		p += "?" + q.Encode()
	}

	return p
}

// do executes an HTTP request against the configuration service, retrying
// network errors and retryable status codes with exponential backoff.
// A non-empty ifNoneMatch
// attaches an If-None-Match conditional header and, uniquely among the
// methods here, treats 304 as a successful response rather than an error.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, ifNoneMatch string) (*http.Response, error) {
	reqURL := c.baseURL + path

	var attempt int

	for {
		resp, err := c.doOnce(ctx, method, reqURL, body, ifNoneMatch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: remoteclient: request canceled: %v", provider.ErrCancelled, ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method), slog.String("path", path),
					slog.Int("attempt", attempt+1), slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("%w: remoteclient: request canceled: %v", provider.ErrCancelled, sleepErr)
				}

				attempt++

				continue
			}

			return nil, &provider.RemoteError{StatusCode: 0, Message: err.Error(), Err: provider.ErrTransient}
		}

		if resp.StatusCode == http.StatusNotModified && ifNoneMatch != "" {
			return resp, nil
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if provider.IsFailoverableStatus(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method), slog.String("path", path),
				slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("%w: remoteclient: request canceled: %v", provider.ErrCancelled, err)
			}

			attempt++

			continue
		}

		sentinel := provider.ClassifyStatus(resp.StatusCode)
		if sentinel == nil {
			sentinel = provider.ErrTransient
		}

		return nil, &provider.RemoteError{StatusCode: resp.StatusCode, Message: string(errBody), Err: sentinel}
	}
}

func (c *Client) doOnce(ctx context.Context, method, reqURL string, body io.Reader, ifNoneMatch string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}

	if c.tracing {
		req.Header.Set("Correlation-Request-Id", uuid.NewString())
	}

	return c.httpClient.Do(req)
}

func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1)
	backoff += jitter

	return time.Duration(backoff)
}

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
