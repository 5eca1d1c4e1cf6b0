// Package news fetches company news for tracked symbols from one or more
// providers, with per-symbol failure isolation, URL dedup, and recency
// ordering.
package news

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"folio/internal/domain"
	"folio/internal/portfolio"
	"folio/internal/util"
)

// ErrNoCredential indicates no usable news source is configured. Unlike a
// per-symbol fetch failure this is fatal for the whole request.
var ErrNoCredential = errors.New("news: missing API credential")

const (
	maxSymbols  = 10
	maxDays     = 30
	defaultDays = 7
)

// Source fetches news for one symbol within a time window.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string, from, to time.Time) ([]domain.NewsItem, error)
}

// Response is the aggregated result of one news request.
type Response struct {
	Items   []domain.NewsItem `json:"items"`
	Warning string            `json:"warning,omitempty"`
	// Errors maps symbols whose fetch failed to a reason. Failures here are
	// isolated: the remaining symbols' items are still present.
	Errors map[string]string `json:"errors,omitempty"`
}

// Service aggregates news across sources.
type Service struct {
	sources  []Source
	maxItems int
	log      *slog.Logger
}

// NewService creates a news service over the given sources. maxItems caps
// the merged result, defaulting to 40.
func NewService(sources []Source, maxItems int, log *slog.Logger) *Service {
	if maxItems <= 0 {
		maxItems = 40
	}
	return &Service{
		sources:  sources,
		maxItems: maxItems,
		log:      log.With("component", "news"),
	}
}

// CleanSymbols validates and normalizes a raw symbol list: trim, uppercase,
// drop anything not matching the ticker pattern, dedup, cap at 10.
func CleanSymbols(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if !portfolio.ValidSymbol(sym) {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
		if len(out) == maxSymbols {
			break
		}
	}
	return out
}

// ClampDays bounds the day range to [1, 30], defaulting to 7 for
// non-positive input.
func ClampDays(days int) int {
	if days <= 0 {
		return defaultDays
	}
	if days > maxDays {
		return maxDays
	}
	return days
}

// Fetch returns deduplicated, recency-sorted news for the given symbols over
// the last days days. An empty or fully-invalid symbol list yields an empty
// result with a warning rather than an error; a missing credential is an
// error for the whole request.
func (s *Service) Fetch(ctx context.Context, symbols []string, days int) (*Response, error) {
	if len(s.sources) == 0 {
		return nil, ErrNoCredential
	}

	clean := CleanSymbols(symbols)
	if len(clean) == 0 {
		return &Response{Items: []domain.NewsItem{}, Warning: "no valid symbols"}, nil
	}

	days = ClampDays(days)
	to := time.Now()
	from := to.AddDate(0, 0, -days)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		items   []domain.NewsItem
		symErrs = make(map[string]string)
	)

	for _, sym := range clean {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			got, err := s.fetchSymbol(ctx, sym, from, to)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				symErrs[sym] = err.Error()
				return
			}
			items = append(items, got...)
		}(sym)
	}
	wg.Wait()

	resp := &Response{Items: dedupAndSort(items, s.maxItems)}
	if len(symErrs) > 0 {
		resp.Errors = symErrs
	}
	return resp, nil
}

// fetchSymbol tries each source in order until one succeeds; transient
// failures get one retry before falling through.
func (s *Service) fetchSymbol(ctx context.Context, symbol string, from, to time.Time) ([]domain.NewsItem, error) {
	var lastErr error
	for _, src := range s.sources {
		var got []domain.NewsItem
		err := util.Retry(ctx, 2, 200*time.Millisecond, func() error {
			var ferr error
			got, ferr = src.Fetch(ctx, symbol, from, to)
			return ferr
		})
		if err == nil {
			return got, nil
		}
		s.log.Warn("news source failed", "source", src.Name(), "symbol", symbol, "error", err)
		lastErr = err
	}
	return nil, lastErr
}

// dedupAndSort removes duplicate URLs (keeping the first occurrence), sorts
// by timestamp descending, and caps the result.
func dedupAndSort(items []domain.NewsItem, maxItems int) []domain.NewsItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.NewsItem, 0, len(items))
	for _, it := range items {
		if it.URL != "" {
			if _, dup := seen[it.URL]; dup {
				continue
			}
			seen[it.URL] = struct{}{}
		}
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.After(out[j].Time)
	})

	if len(out) > maxItems {
		out = out[:maxItems]
	}
	return out
}
