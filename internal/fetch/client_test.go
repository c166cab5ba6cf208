package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/anidex/internal/ratelimit"
)

func newTestClient(base time.Duration) (*Client, *[]time.Duration) {
	var mu sync.Mutex
	var waits []time.Duration
	c := &Client{
		HTTP:           &http.Client{},
		Scheduler:      ratelimit.New(1000),
		Base:           base,
		AttemptTimeout: time.Second,
	}
	c.notify = func(_ int, wait time.Duration, _ error) {
		mu.Lock()
		waits = append(waits, wait)
		mu.Unlock()
	}
	return c, &waits
}

func TestDo_RetriesThrottledThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c, waits := newTestClient(10 * time.Millisecond)
	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"data":[]}` {
		t.Fatalf("Body = %q", resp.Body)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("server hits = %d, want 3", got)
	}

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Fatalf("waits = %v, want %v", *waits, want)
		}
	}
}

func TestDo_ThrottledExhaustsAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := newTestClient(5 * time.Millisecond)
	_, err := c.Get(context.Background(), srv.URL, nil)
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("error = %v, want ErrThrottled", err)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != DefaultMaxAttempts {
		t.Fatalf("error = %#v, want ExhaustedError with %d attempts", err, DefaultMaxAttempts)
	}
	if got := hits.Load(); got != DefaultMaxAttempts {
		t.Fatalf("server hits = %d, want %d", got, DefaultMaxAttempts)
	}
}

func TestDo_DoesNotRetryServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, waits := newTestClient(5 * time.Millisecond)
	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("StatusCode = %d, want 500", resp.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("server hits = %d, want 1", got)
	}
	if len(*waits) != 0 {
		t.Fatalf("waits = %v, want none", *waits)
	}
}

func TestDo_RetriesTransportFailureLinearly(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			// Exceed the attempt timeout so the client sees no response.
			time.Sleep(100 * time.Millisecond)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, waits := newTestClient(10 * time.Millisecond)
	c.AttemptTimeout = 20 * time.Millisecond

	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("StatusCode = %d, want 204", resp.StatusCode)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(*waits) != 2 || (*waits)[0] != want[0] || (*waits)[1] != want[1] {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
}

func TestDo_TransportExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from now on

	c, _ := newTestClient(time.Millisecond)
	_, err := c.Get(context.Background(), url, nil)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != DefaultMaxAttempts {
		t.Fatalf("error = %v, want %d attempts", err, DefaultMaxAttempts)
	}
}

func TestDo_HonorsRetryAfter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, waits := newTestClient(time.Millisecond)
	if _, err := c.Get(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(*waits) != 1 || (*waits)[0] != time.Second {
		t.Fatalf("waits = %v, want [1s]", *waits)
	}
}

func TestDo_CallerCancelStopsRetrying(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := newTestClient(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Get(ctx, srv.URL, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Get took %v after cancellation", elapsed)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("server hits = %d, want 1", got)
	}
}

func TestDo_ClosedSchedulerIsNotRetried(t *testing.T) {
	s := ratelimit.New(1000)
	s.Close()

	c := &Client{Scheduler: s, Base: time.Millisecond}
	_, err := c.Get(context.Background(), "http://127.0.0.1:1", nil)
	if !errors.Is(err, ratelimit.ErrClosed) {
		t.Fatalf("error = %v, want ErrClosed", err)
	}
	if errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, should not be a transport failure", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-1", 0},
		{"garbage", 0},
		{now.Add(5 * time.Second).Format(http.TimeFormat), 5 * time.Second},
		{now.Add(-5 * time.Second).Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSchedule(t *testing.T) {
	s := &schedule{base: time.Second, max: 4}

	s.attempt, s.last = 1, failThrottled
	if got := s.NextBackOff(); got != time.Second {
		t.Fatalf("throttled after 1 = %v, want 1s", got)
	}
	s.attempt = 3
	if got := s.NextBackOff(); got != 4*time.Second {
		t.Fatalf("throttled after 3 = %v, want 4s", got)
	}
	s.retryAfter = time.Minute
	if got := s.NextBackOff(); got != maxRetryAfter {
		t.Fatalf("throttled with long Retry-After = %v, want %v", got, maxRetryAfter)
	}

	s.attempt, s.last = 2, failTransport
	if got := s.NextBackOff(); got != 2*time.Second {
		t.Fatalf("transport after 2 = %v, want 2s", got)
	}

	s.attempt = 4
	if got := s.NextBackOff(); got >= 0 {
		t.Fatalf("after max attempts = %v, want Stop", got)
	}
}
