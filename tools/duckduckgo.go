package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const DuckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

type DuckDuckGoInput struct {
	Query      string `json:"query" jsonschema_description:"Search query" jsonschema:"required"`
	MaxResults int    `json:"max_results,omitempty" jsonschema_description:"Number of results to return, default 5"`
}

// DuckDuckGo searches the web through the DuckDuckGo lite HTML page.
type DuckDuckGo struct {
	Endpoint string
	client   *http.Client
	gate     *rateGate
}

func NewDuckDuckGo(timeout time.Duration) *DuckDuckGo {
	return NewDuckDuckGoWithClient(&http.Client{Timeout: timeout})
}

func NewDuckDuckGoWithClient(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{Endpoint: DuckDuckGoEndpoint, client: client, gate: duckDuckGoGate}
}

func (d *DuckDuckGo) Search(ctx context.Context, input DuckDuckGoInput) ([]SearchResult, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, errors.New("query is empty")
	}
	form := url.Values{}
	form.Set("q", input.Query)

	resp, err := doWithBackoff(ctx, d.client, d.gate, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo page: %w", err)
	}
	return parseDuckDuckGo(doc, resultLimit(input.MaxResults)), nil
}

// parseDuckDuckGo pairs every result link with the snippet row that follows it.
func parseDuckDuckGo(doc *goquery.Document, limit int) []SearchResult {
	snippets := doc.Find("td.result-snippet")

	var results []SearchResult
	doc.Find("a.result-link").EachWithBreak(func(i int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		href = unwrapDuckDuckGoLink(strings.TrimSpace(href))
		title := strings.TrimSpace(link.Text())
		if href == "" || title == "" {
			return true
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     href,
			Snippet: strings.TrimSpace(snippets.Eq(i).Text()),
		})
		return len(results) < limit
	})
	return results
}

// unwrapDuckDuckGoLink resolves //duckduckgo.com/l/?uddg=<target> redirects.
func unwrapDuckDuckGoLink(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
