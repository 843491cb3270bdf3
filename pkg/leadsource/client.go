// Package leadsource fetches call and adjustment rows from the lead-delivery
// platform's reporting API. Rows come back as raw strings; normalization is
// the caller's job.
//
// The reporting API's pagination metadata is unreliable: total_pages is
// sometimes absent or zero, and deep pages can 500. The page loop therefore
// runs three independent stop conditions (reported total pages, consecutive
// empty pages, hard page ceiling), and only a first-page failure is fatal —
// a later-page failure ends the loop with whatever was collected.
package leadsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kunalmkv/ringbav2-sub000/internal/resilience"
)

const (
	defaultBaseURL        = "https://reports.leaddelivery.example.com/v2"
	defaultEmptyPageLimit = 3
	defaultMaxPages       = 100
	dateLayout            = "2006-01-02"
)

// RawCall is one call row as reported by the platform.
type RawCall struct {
	CallerID        string `json:"caller_id"`
	CallTime        string `json:"call_time"`
	Payout          string `json:"payout"`
	Category        string `json:"category"`
	DurationSeconds *int   `json:"duration_seconds"`
}

// RawAdjustment is one out-of-band payout correction row.
type RawAdjustment struct {
	CallerID        string `json:"caller_id"`
	TimeOfCall      string `json:"time_of_call"`
	AdjustmentTime  string `json:"adjustment_time"`
	Amount          string `json:"amount"`
	Classification  string `json:"classification"`
	DurationSeconds *int   `json:"duration_seconds"`
}

type callsPage struct {
	Calls      []RawCall `json:"calls"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
}

type adjustmentsPage struct {
	Adjustments []RawAdjustment `json:"adjustments"`
	Page        int             `json:"page"`
	TotalPages  int             `json:"total_pages"`
}

// Client defines the lead-delivery reporting operations used by the engine.
type Client interface {
	FetchCalls(ctx context.Context, start, end time.Time, category string) ([]RawCall, error)
	FetchAdjustments(ctx context.Context, start, end time.Time) ([]RawAdjustment, error)
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

// WithPageLimits overrides the consecutive-empty-page threshold and the
// hard page ceiling. Non-positive values keep the defaults.
func WithPageLimits(emptyPageLimit, maxPages int) Option {
	return func(c *httpClient) {
		if emptyPageLimit > 0 {
			c.emptyPageLimit = emptyPageLimit
		}
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// WithRetry overrides the per-page retry settings.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey         string
	baseURL        string
	http           *http.Client
	emptyPageLimit int
	maxPages       int
	retry          resilience.RetryConfig
	log            *zap.Logger
}

// NewClient creates a lead-delivery reporting client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:         apiKey,
		baseURL:        defaultBaseURL,
		emptyPageLimit: defaultEmptyPageLimit,
		maxPages:       defaultMaxPages,
		retry:          resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: zap.L().Named("leadsource"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchCalls returns every call row the platform reports for the range,
// flattened across pages.
func (c *httpClient) FetchCalls(ctx context.Context, start, end time.Time, category string) ([]RawCall, error) {
	q := url.Values{}
	q.Set("start_date", start.Format(dateLayout))
	q.Set("end_date", end.Format(dateLayout))
	if category != "" {
		q.Set("category", category)
	}

	var all []RawCall
	err := c.paginate(ctx, "/calls", q, func(body []byte) (count, totalPages int, err error) {
		var page callsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, 0, eris.Wrap(err, "leadsource: decode calls page")
		}
		all = append(all, page.Calls...)
		return len(page.Calls), page.TotalPages, nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// FetchAdjustments returns every adjustment row for the range, flattened
// across pages.
func (c *httpClient) FetchAdjustments(ctx context.Context, start, end time.Time) ([]RawAdjustment, error) {
	q := url.Values{}
	q.Set("start_date", start.Format(dateLayout))
	q.Set("end_date", end.Format(dateLayout))

	var all []RawAdjustment
	err := c.paginate(ctx, "/adjustments", q, func(body []byte) (count, totalPages int, err error) {
		var page adjustmentsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, 0, eris.Wrap(err, "leadsource: decode adjustments page")
		}
		all = append(all, page.Adjustments...)
		return len(page.Adjustments), page.TotalPages, nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// paginate walks pages until a stop condition fires. consume decodes one
// page body and reports the row count plus the total page count if the
// platform included one (0 = unknown).
func (c *httpClient) paginate(ctx context.Context, path string, q url.Values, consume func(body []byte) (count, totalPages int, err error)) error {
	emptyStreak := 0
	knownTotal := 0

	for page := 1; page <= c.maxPages; page++ {
		q.Set("page", fmt.Sprintf("%d", page))

		body, err := c.getPage(ctx, path, q)
		if err != nil {
			if page == 1 {
				return err
			}
			// Deep pages fail sporadically; keep what we have.
			c.log.Warn("page fetch failed, stopping pagination",
				zap.String("path", path),
				zap.Int("page", page),
				zap.Error(err),
			)
			return nil
		}

		count, totalPages, err := consume(body)
		if err != nil {
			if page == 1 {
				return err
			}
			c.log.Warn("page decode failed, stopping pagination",
				zap.String("path", path),
				zap.Int("page", page),
				zap.Error(err),
			)
			return nil
		}

		if totalPages > 0 {
			knownTotal = totalPages
		}
		if knownTotal > 0 && page >= knownTotal {
			return nil
		}

		if count == 0 {
			emptyStreak++
			if emptyStreak >= c.emptyPageLimit {
				return nil
			}
		} else {
			emptyStreak = 0
		}
	}
	return nil
}

func (c *httpClient) getPage(ctx context.Context, path string, q url.Values) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "leadsource: create request")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "leadsource: send request")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "leadsource: read response")
		}
		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("leadsource: unexpected status %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}
		return body, nil
	})
}
