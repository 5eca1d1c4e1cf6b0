package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"folio/internal/domain"
	"folio/internal/util"
)

// Compile-time interface check.
var _ Fetcher = (*FinnhubFetcher)(nil)

const defaultFinnhubBaseURL = "https://finnhub.io/api/v1"

// finnhubQuote is the provider's quote payload. A zero current price means
// the symbol is unknown to the provider.
type finnhubQuote struct {
	Current   float64 `json:"c"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	PrevClose float64 `json:"pc"`
	Error     string  `json:"error"`
}

// FinnhubFetcher fetches quotes from the Finnhub REST API. Requests are
// paced by a shared token-bucket limiter to stay inside the provider's
// per-minute quota.
type FinnhubFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewFinnhubFetcher creates a fetcher for the given base URL and credential.
// ratePerMin bounds outbound requests; 0 uses the free-tier limit of 60.
func NewFinnhubFetcher(baseURL, apiKey string, ratePerMin int, log *slog.Logger) *FinnhubFetcher {
	if baseURL == "" {
		baseURL = defaultFinnhubBaseURL
	}
	if ratePerMin <= 0 {
		ratePerMin = 60
	}
	return &FinnhubFetcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: util.NewRateLimiter(ratePerMin),
		log:     log.With("fetcher", "finnhub"),
	}
}

// Quote fetches a snapshot for one symbol. A well-formed response without a
// current price returns (nil, nil).
func (f *FinnhubFetcher) Quote(ctx context.Context, symbol string) (*domain.Snap, error) {
	if f.apiKey == "" {
		return nil, ErrNoCredential
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/quote?symbol=%s&token=%s", f.baseURL, url.QueryEscape(symbol), url.QueryEscape(f.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote for %s: HTTP %d", symbol, resp.StatusCode)
	}
	var q finnhubQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, fmt.Errorf("decoding quote for %s: %w", symbol, err)
	}
	if q.Error != "" {
		return nil, fmt.Errorf("quote for %s: %s", symbol, q.Error)
	}
	if q.Current == 0 {
		// No data, not an error.
		return nil, nil
	}

	snap := &domain.Snap{
		Price:    q.Current,
		TodayPct: todayPct(q.Current, q.PrevClose),
		DayMax:   q.High,
		DayMin:   q.Low,
	}
	if snap.DayMax == 0 {
		snap.DayMax = q.Current
	}
	if snap.DayMin == 0 {
		snap.DayMin = q.Current
	}
	return snap, nil
}

// Quotes fetches all symbols concurrently, isolating per-symbol failures.
func (f *FinnhubFetcher) Quotes(ctx context.Context, symbols []string) map[string]Result {
	results := make(map[string]Result, len(symbols))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			snap, err := f.Quote(ctx, sym)
			mu.Lock()
			results[sym] = Result{Snap: snap, Err: err}
			mu.Unlock()
		}(sym)
	}
	wg.Wait()

	return results
}
