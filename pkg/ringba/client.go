// Package ringba talks to the call-routing platform: paged call-log reads
// and the payout/revenue write-back used by reconciliation. Writes are
// rate-limited and retried; the platform 429s aggressively and treats a
// repeated identical write as a no-op, so retrying is safe.
package ringba

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kunalmkv/ringbav2-sub000/internal/resilience"
)

const (
	defaultBaseURL  = "https://api.ringba.example.com/v2"
	defaultPageSize = 500
	defaultMaxPages = 100
)

// RawCall is one routed call as reported by the platform's call log.
type RawCall struct {
	InboundCallID   string `json:"inbound_call_id"`
	CallerID        string `json:"caller_id"`
	CallTime        string `json:"call_time"`
	RoutingID       string `json:"routing_id"`
	Payout          string `json:"payout"`
	Revenue         string `json:"revenue"`
	DurationSeconds *int   `json:"duration_seconds"`
}

type callLogRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

type callLogResponse struct {
	Records []RawCall `json:"records"`
}

type paymentRequest struct {
	Payout  string `json:"payout"`
	Revenue string `json:"revenue"`
	Reason  string `json:"reason"`
}

// Client defines the routing-platform operations used by the engine.
type Client interface {
	FetchCallsByDateRange(ctx context.Context, start, end time.Time) ([]RawCall, error)
	SetPayoutAndRevenue(ctx context.Context, inboundCallID string, payout, revenue decimal.Decimal, reason string) error
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps payout writes at rps per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the retry settings for reads and writes.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithPageSize overrides the call-log page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	pageSize int
	log      *zap.Logger
}

// NewClient creates a routing-platform client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		retry:    resilience.DefaultRetryConfig(),
		pageSize: defaultPageSize,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: zap.L().Named("ringba"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchCallsByDateRange returns every routed call logged in the range,
// flattened across pages. The loop ends on a short page.
func (c *httpClient) FetchCallsByDateRange(ctx context.Context, start, end time.Time) ([]RawCall, error) {
	var all []RawCall
	for page := 1; page <= defaultMaxPages; page++ {
		req := callLogRequest{
			StartDate: start.Format("2006-01-02"),
			EndDate:   end.Format("2006-01-02"),
			Page:      page,
			PageSize:  c.pageSize,
		}
		resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*callLogResponse, error) {
			return c.postCallLog(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Records...)
		if len(resp.Records) < c.pageSize {
			break
		}
	}
	return all, nil
}

// SetPayoutAndRevenue writes the reconciled payout/revenue for one call.
// The platform applies it idempotently by value.
func (c *httpClient) SetPayoutAndRevenue(ctx context.Context, inboundCallID string, payout, revenue decimal.Decimal, reason string) error {
	if inboundCallID == "" {
		return eris.New("ringba: empty inbound call id")
	}
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "ringba: rate limit")
	}

	body, err := json.Marshal(paymentRequest{
		Payout:  payout.StringFixed(2),
		Revenue: revenue.StringFixed(2),
		Reason:  reason,
	})
	if err != nil {
		return eris.Wrap(err, "ringba: marshal payment")
	}

	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("ringba", "set payout")
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPost, "/calls/"+inboundCallID+"/payment", body)
		return err
	})
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) postCallLog(ctx context.Context, req callLogRequest) (*callLogResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "ringba: marshal call log request")
	}
	respBody, err := c.do(ctx, http.MethodPost, "/calllogs", body)
	if err != nil {
		return nil, err
	}
	var resp callLogResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, eris.Wrap(err, "ringba: decode call log response")
	}
	return &resp, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ringba: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ringba: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ringba: read response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		err := eris.Errorf("ringba: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return respBody, nil
}
