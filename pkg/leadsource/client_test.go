package leadsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunalmkv/ringbav2-sub000/internal/resilience"
)

var (
	testStart = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	testEnd   = time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC)
)

func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1}
}

func callRow(n int) RawCall {
	return RawCall{
		CallerID: fmt.Sprintf("555123%04d", n),
		CallTime: "12/02/2025 10:00:00 AM",
		Payout:   "12.00",
		Category: "STATIC",
	}
}

func writePage(t *testing.T, w http.ResponseWriter, page callsPage) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(page))
}

func TestFetchCalls_StopsAtReportedTotalPages(t *testing.T) {
	var served []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calls", r.URL.Path)
		assert.Equal(t, "2025-12-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2025-12-03", r.URL.Query().Get("end_date"))
		assert.Equal(t, "STATIC", r.URL.Query().Get("category"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		served = append(served, page)
		writePage(t, w, callsPage{
			Calls:      []RawCall{callRow(page)},
			Page:       page,
			TotalPages: 2,
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(noRetry()))
	calls, err := c.FetchCalls(context.Background(), testStart, testEnd, "STATIC")

	require.NoError(t, err)
	assert.Len(t, calls, 2)
	assert.Equal(t, []int{1, 2}, served)
}

func TestFetchCalls_StopsAfterConsecutiveEmptyPages(t *testing.T) {
	// total_pages absent: the empty-page streak is the only signal.
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		body := callsPage{Page: page}
		if page <= 2 {
			body.Calls = []RawCall{callRow(page)}
		}
		writePage(t, w, body)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(noRetry()))
	calls, err := c.FetchCalls(context.Background(), testStart, testEnd, "")

	require.NoError(t, err)
	assert.Len(t, calls, 2)
	assert.Equal(t, 5, pages, "2 full pages + 3 empties to trip the streak")
}

func TestFetchCalls_HardPageCeiling(t *testing.T) {
	// Pathological: every page has rows and no total. The ceiling is the
	// only thing standing between us and an unbounded loop.
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		writePage(t, w, callsPage{Calls: []RawCall{callRow(page)}, Page: page})
	}))
	defer srv.Close()

	c := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRetry(noRetry()),
		WithPageLimits(3, 7),
	)
	calls, err := c.FetchCalls(context.Background(), testStart, testEnd, "")

	require.NoError(t, err)
	assert.Len(t, calls, 7)
	assert.Equal(t, 7, pages)
}

func TestFetchCalls_FirstPageFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"bad date range"}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(noRetry()))
	calls, err := c.FetchCalls(context.Background(), testStart, testEnd, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
	assert.Nil(t, calls)
}

func TestFetchCalls_LaterPageFailureStopsGracefully(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page >= 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writePage(t, w, callsPage{Calls: []RawCall{callRow(page)}, Page: page})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(noRetry()))
	calls, err := c.FetchCalls(context.Background(), testStart, testEnd, "")

	require.NoError(t, err, "a deep-page failure keeps the collected rows")
	assert.Len(t, calls, 2)
}

func TestFetchCalls_RetriesTransientStatus(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writePage(t, w, callsPage{Calls: []RawCall{callRow(1)}, Page: 1, TotalPages: 1})
	}))
	defer srv.Close()

	c := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}),
	)
	calls, err := c.FetchCalls(context.Background(), testStart, testEnd, "")

	require.NoError(t, err)
	assert.Len(t, calls, 1)
	assert.Equal(t, 2, attempts)
}

func TestFetchAdjustments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/adjustments", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(adjustmentsPage{
			Adjustments: []RawAdjustment{{
				CallerID:       "5551234567",
				TimeOfCall:     "12/02/2025 10:30:00 AM",
				AdjustmentTime: "12/02/2025 12:00:00 PM",
				Amount:         "5.00",
				Classification: "STATIC",
			}},
			Page:       1,
			TotalPages: 1,
		}))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(noRetry()))
	adjs, err := c.FetchAdjustments(context.Background(), testStart, testEnd)

	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, "5.00", adjs[0].Amount)
	assert.Equal(t, "STATIC", adjs[0].Classification)
}
