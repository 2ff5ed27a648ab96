package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const WikipediaEndpoint = "https://en.wikipedia.org/w/api.php"

type WikipediaInput struct {
	Query string `json:"query" jsonschema_description:"Topic to look up on Wikipedia" jsonschema:"required"`
}

type WikipediaArticle struct {
	Title   string         `json:"title"`
	URL     string         `json:"url"`
	Summary string         `json:"summary"`
	Related []SearchResult `json:"related,omitempty"`
}

// Wikipedia finds the best matching article through the MediaWiki API and
// returns its introduction as plain text.
type Wikipedia struct {
	Endpoint string
	client   *http.Client
	gate     *rateGate
}

func NewWikipedia(timeout time.Duration) *Wikipedia {
	return NewWikipediaWithClient(&http.Client{Timeout: timeout})
}

func NewWikipediaWithClient(client *http.Client) *Wikipedia {
	return &Wikipedia{Endpoint: WikipediaEndpoint, client: client, gate: wikipediaGate}
}

func (w *Wikipedia) Search(ctx context.Context, input WikipediaInput) (WikipediaArticle, error) {
	if strings.TrimSpace(input.Query) == "" {
		return WikipediaArticle{}, errors.New("query is empty")
	}

	var search struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}
	err := w.get(ctx, url.Values{
		"list":     {"search"},
		"srsearch": {input.Query},
		"srlimit":  {fmt.Sprint(DefaultMaxResults)},
	}, &search)
	if err != nil {
		return WikipediaArticle{}, err
	}
	hits := search.Query.Search
	if len(hits) == 0 {
		return WikipediaArticle{}, fmt.Errorf("no wikipedia article found for %q", input.Query)
	}

	var extract struct {
		Query struct {
			Pages []struct {
				Title   string `json:"title"`
				Extract string `json:"extract"`
				Missing bool   `json:"missing"`
			} `json:"pages"`
		} `json:"query"`
	}
	err = w.get(ctx, url.Values{
		"prop":        {"extracts"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"redirects":   {"1"},
		"titles":      {hits[0].Title},
	}, &extract)
	if err != nil {
		return WikipediaArticle{}, err
	}
	if len(extract.Query.Pages) == 0 || extract.Query.Pages[0].Missing {
		return WikipediaArticle{}, fmt.Errorf("wikipedia article %q is missing", hits[0].Title)
	}

	page := extract.Query.Pages[0]
	article := WikipediaArticle{
		Title:   page.Title,
		URL:     articleURL(page.Title),
		Summary: strings.TrimSpace(page.Extract),
	}
	for _, hit := range hits[1:] {
		article.Related = append(article.Related, SearchResult{
			Title:   hit.Title,
			URL:     articleURL(hit.Title),
			Snippet: htmlText(hit.Snippet),
		})
	}
	return article, nil
}

func (w *Wikipedia) get(ctx context.Context, params url.Values, v any) error {
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	endpoint := w.Endpoint + "?" + params.Encode()

	resp, err := doWithBackoff(ctx, w.client, w.gate, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "healthbot-agent-app/1.0")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode wikipedia response: %w", err)
	}
	return nil
}

func articleURL(title string) string {
	return "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

// htmlText turns a search snippet with highlight markup into plain text.
func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
