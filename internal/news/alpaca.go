package news

import (
	"context"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"folio/internal/domain"
)

// Compile-time interface check.
var _ Source = (*AlpacaSource)(nil)

// AlpacaSource fetches company news from the Alpaca marketdata API.
type AlpacaSource struct {
	client *marketdata.Client
}

// NewAlpacaSource creates an Alpaca news source using the given credentials.
func NewAlpacaSource(apiKey, apiSecret, dataURL string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaSource{client: marketdata.NewClient(opts)}
}

// Name returns the source identifier.
func (s *AlpacaSource) Name() string { return "alpaca" }

// Fetch returns the symbol's news within [from, to].
func (s *AlpacaSource) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]domain.NewsItem, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	articles, err := s.client.GetNews(marketdata.GetNewsRequest{
		Symbols:    []string{symbol},
		Start:      from,
		End:        to,
		TotalLimit: 50,
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.NewsItem, 0, len(articles))
	for _, a := range articles {
		if a.Headline == "" || a.URL == "" {
			continue
		}
		item := domain.NewsItem{
			Symbol:   symbol,
			Time:     a.CreatedAt,
			Headline: a.Headline,
			Source:   "alpaca",
			URL:      a.URL,
			Summary:  a.Summary,
		}
		if len(a.Images) > 0 {
			item.Image = a.Images[0].URL
		}
		items = append(items, item)
	}
	return items, nil
}
