package tools

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultMaxResults = 5
	defaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBackoff        = 30 * time.Second
	maxAttempts       = 4
)

var initialBackoff = time.Second

// SearchResult is a single hit returned by a search tool.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// rateGate spaces requests to one backend at least interval apart across
// every goroutine sharing the gate.
type rateGate struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

var (
	duckDuckGoGate = &rateGate{interval: time.Second}
	googleGate     = &rateGate{interval: time.Second}
	wikipediaGate  = &rateGate{interval: 100 * time.Millisecond}
)

// wait reserves the next free slot and sleeps until it starts. A cancelled
// caller returns at once.
func (g *rateGate) wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	slot := time.Now()
	if next := g.last.Add(g.interval); next.After(slot) {
		slot = next
	}
	g.last = slot
	g.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// doWithBackoff sends the request built by newReq, retrying on 429 with a
// doubling delay. The caller closes the returned body.
func doWithBackoff(ctx context.Context, client *http.Client, gate *rateGate, newReq func() (*http.Request, error)) (*http.Response, error) {
	delay := initialBackoff
	for attempt := 1; ; attempt++ {
		if err := gate.wait(ctx); err != nil {
			return nil, err
		}
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", defaultUserAgent)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		resp.Body.Close()
		if attempt == maxAttempts {
			return nil, fmt.Errorf("%s: rate limited after %d attempts", req.URL.Host, attempt)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < maxBackoff {
			delay *= 2
		}
	}
}

func resultLimit(requested int) int {
	if requested <= 0 || requested > 10 {
		return DefaultMaxResults
	}
	return requested
}
