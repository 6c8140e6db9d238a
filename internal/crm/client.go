package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rpattn/crmimport/internal/logging"
	"github.com/rpattn/crmimport/internal/metrics"
)

const (
	methodFields = "crm.contact.fields"
	methodList   = "crm.contact.list"
	methodAdd    = "crm.contact.add"
)

var (
	// ErrInvalidEndpoint is returned for a blank or non-HTTP endpoint address.
	ErrInvalidEndpoint = errors.New("invalid crm endpoint")
	// ErrSchemaUnavailable is returned when the field catalog cannot be fetched or lacks its result envelope.
	ErrSchemaUnavailable = errors.New("crm field catalog unavailable")
	// ErrUnexpectedResponse is returned when a response body is not the expected JSON envelope.
	ErrUnexpectedResponse = errors.New("unexpected crm response")
	// ErrRemote is returned when the CRM answers with an error envelope.
	ErrRemote = errors.New("crm returned an error")
)

// Timeouts bounds each kind of remote call.
type Timeouts struct {
	Fields time.Duration
	Search time.Duration
	Create time.Duration
}

// DefaultTimeouts returns the per-call timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Fields: 30 * time.Second,
		Search: 30 * time.Second,
		Create: 60 * time.Second,
	}
}

// Client talks to the CRM REST API through an incoming webhook address.
type Client struct {
	endpoint           string
	httpClient         *http.Client
	limiter            *rate.Limiter
	timeouts           Timeouts
	registerSonetEvent bool
	metrics            *metrics.Registry
	logger             *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit paces outgoing calls. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeouts overrides the non-zero per-call timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) {
		if t.Fields > 0 {
			c.timeouts.Fields = t.Fields
		}
		if t.Search > 0 {
			c.timeouts.Search = t.Search
		}
		if t.Create > 0 {
			c.timeouts.Create = t.Create
		}
	}
}

// WithRegisterSonetEvent controls the REGISTER_SONET_EVENT flag sent on create.
func WithRegisterSonetEvent(enabled bool) Option {
	return func(c *Client) {
		c.registerSonetEvent = enabled
	}
}

// WithMetrics records remote call counts and latency.
func WithMetrics(m *metrics.Registry) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.logger = logging.OrDefault(logger, "crm")
	}
}

// NewClient validates and normalizes endpoint and returns a client for it.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	normalized, err := NormalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:   normalized,
		httpClient: &http.Client{},
		timeouts:   DefaultTimeouts(),
		logger:     logging.Named("crm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the normalized endpoint address, or "" for a nil client.
func (c *Client) Endpoint() string {
	if c == nil {
		return ""
	}
	return c.endpoint
}

// NormalizeEndpoint trims the address and makes it end in exactly one "/".
func NormalizeEndpoint(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: address is empty", ErrInvalidEndpoint)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an http(s) address", ErrInvalidEndpoint, trimmed)
	}
	return strings.TrimRight(trimmed, "/") + "/", nil
}

// envelope is the common response shape of the REST API.
type envelope struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (e envelope) hasResult() bool {
	trimmed := bytes.TrimSpace(e.Result)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func (e envelope) errorText() string {
	if e.ErrorDescription != "" {
		return e.ErrorDescription
	}
	return e.Error
}

type response struct {
	status int
	body   []byte
	env    envelope
}

// call performs one request with no retry. The returned error covers transport
// failures and bodies that are not a JSON object; HTTP error statuses are left to the caller.
func (c *Client) call(ctx context.Context, httpMethod, apiMethod string, payload any, timeout time.Duration) (response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, fmt.Errorf("%s: %w", apiMethod, err)
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return response{}, fmt.Errorf("%s: failed to encode request: %w", apiMethod, err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, c.endpoint+apiMethod+".json", body)
	if err != nil {
		return response{}, fmt.Errorf("%s: %w", apiMethod, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRemoteCall(apiMethod, "error", time.Since(start))
		return response{}, fmt.Errorf("%s: %w", apiMethod, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRemoteCall(apiMethod, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return response{}, fmt.Errorf("%s: failed to read response: %w", apiMethod, err)
	}

	c.logger.Debugw("crm call", "method", apiMethod, "status", resp.StatusCode, "duration", time.Since(start))

	out := response{status: resp.StatusCode, body: raw}
	if err := json.Unmarshal(raw, &out.env); err != nil {
		return out, fmt.Errorf("%w: %s returned status %d: %s", ErrUnexpectedResponse, apiMethod, resp.StatusCode, snippet(raw))
	}
	return out, nil
}

func snippet(raw []byte) string {
	const maxSnippet = 200
	text := strings.TrimSpace(string(raw))
	if len(text) > maxSnippet {
		return text[:maxSnippet] + "..."
	}
	return text
}

// idText renders a JSON identifier (string or number) as text; falsy values yield "".
func idText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if f, err := n.Float64(); err == nil && f == 0 {
			return ""
		}
		return n.String()
	}
	return ""
}
