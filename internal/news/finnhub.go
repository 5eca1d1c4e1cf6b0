package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"folio/internal/domain"
)

// Compile-time interface check.
var _ Source = (*FinnhubSource)(nil)

// shared across sources, same as the quote fetchers' timeout.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// finnhubArticle is the provider's company-news payload.
type finnhubArticle struct {
	Datetime int64  `json:"datetime"` // epoch seconds
	Headline string `json:"headline"`
	Image    string `json:"image"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// FinnhubSource fetches company news from the Finnhub REST API.
type FinnhubSource struct {
	baseURL string
	apiKey  string
}

// NewFinnhubSource creates a Finnhub news source. An empty baseURL uses the
// public endpoint.
func NewFinnhubSource(baseURL, apiKey string) *FinnhubSource {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	return &FinnhubSource{baseURL: baseURL, apiKey: apiKey}
}

// Name returns the source identifier.
func (s *FinnhubSource) Name() string { return "finnhub" }

// Fetch returns the symbol's company news within [from, to].
func (s *FinnhubSource) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]domain.NewsItem, error) {
	if s.apiKey == "" {
		return nil, ErrNoCredential
	}

	u := fmt.Sprintf("%s/company-news?symbol=%s&from=%s&to=%s&token=%s",
		s.baseURL,
		url.QueryEscape(symbol),
		from.Format("2006-01-02"),
		to.Format("2006-01-02"),
		url.QueryEscape(s.apiKey),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching news for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news for %s: HTTP %d", symbol, resp.StatusCode)
	}

	var articles []finnhubArticle
	if err := json.NewDecoder(resp.Body).Decode(&articles); err != nil {
		return nil, fmt.Errorf("decoding news for %s: %w", symbol, err)
	}

	items := make([]domain.NewsItem, 0, len(articles))
	for _, a := range articles {
		if a.Headline == "" || a.URL == "" {
			continue
		}
		items = append(items, domain.NewsItem{
			Symbol:   symbol,
			Time:     time.Unix(a.Datetime, 0),
			Headline: a.Headline,
			Source:   a.Source,
			URL:      a.URL,
			Image:    a.Image,
			Summary:  a.Summary,
		})
	}
	return items, nil
}
