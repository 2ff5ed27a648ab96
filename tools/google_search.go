package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const GoogleEndpoint = "https://www.google.com/search"

type GoogleSearchInput struct {
	Query      string `json:"query" jsonschema_description:"Search query" jsonschema:"required"`
	MaxResults int    `json:"max_results,omitempty" jsonschema_description:"Number of results to return, default 5"`
	Language   string `json:"language,omitempty" jsonschema_description:"Result language code, default en"`
}

// GoogleSearch scrapes the Google results page.
type GoogleSearch struct {
	Endpoint  string
	Timeout   time.Duration
	transport http.RoundTripper
	gate      *rateGate
}

func NewGoogleSearch(timeout time.Duration) *GoogleSearch {
	return &GoogleSearch{Endpoint: GoogleEndpoint, Timeout: timeout, gate: googleGate}
}

func (g *GoogleSearch) Search(ctx context.Context, input GoogleSearchInput) ([]SearchResult, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, errors.New("query is empty")
	}
	limit := resultLimit(input.MaxResults)
	lang := input.Language
	if lang == "" {
		lang = "en"
	}
	c := colly.NewCollector(colly.UserAgent(defaultUserAgent))
	c.Context = ctx
	c.AllowURLRevisit = true
	if g.Timeout > 0 {
		c.SetRequestTimeout(g.Timeout)
	}
	if g.transport != nil {
		c.WithTransport(g.transport)
	}

	var results []SearchResult
	seen := make(map[string]bool)
	c.OnHTML("div.g", func(e *colly.HTMLElement) {
		if len(results) >= limit {
			return
		}
		title := strings.TrimSpace(e.ChildText("h3"))
		link := unwrapGoogleLink(e.ChildAttr("a[href]", "href"))
		if title == "" || link == "" || seen[link] {
			return
		}
		seen[link] = true
		results = append(results, SearchResult{
			Title:   title,
			URL:     link,
			Snippet: strings.TrimSpace(e.ChildText("div.VwiC3b, span.aCOpRe, div[data-sncf]")),
		})
	})

	var status int
	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		visitErr = fmt.Errorf("google search http %d: %w", r.StatusCode, err)
	})

	params := url.Values{}
	params.Set("q", input.Query)
	params.Set("num", fmt.Sprint(limit+2))
	params.Set("hl", lang)
	target := g.Endpoint + "?" + params.Encode()

	delay := initialBackoff
	for attempt := 1; ; attempt++ {
		if err := g.gate.wait(ctx); err != nil {
			return nil, err
		}
		status, visitErr = 0, nil
		err := c.Visit(target)
		if err == nil {
			return results, nil
		}
		if status != http.StatusTooManyRequests {
			if visitErr != nil {
				return nil, visitErr
			}
			return nil, fmt.Errorf("google search: %w", err)
		}
		if attempt == maxAttempts {
			return nil, fmt.Errorf("google search: rate limited after %d attempts", attempt)
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

// unwrapGoogleLink resolves /url?q=<target> redirects and drops links that
// stay on Google.
func unwrapGoogleLink(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = u.Query().Get("q")
	}
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return ""
	}
	return href
}
