package quote

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"folio/internal/domain"
)

// Compile-time interface check.
var _ Fetcher = (*AlpacaFetcher)(nil)

// AlpacaFetcher fetches quotes from the Alpaca marketdata snapshot endpoint.
// It is the alternate poll source, selected by config when Alpaca
// credentials are present instead of a Finnhub key.
type AlpacaFetcher struct {
	client *marketdata.Client
	log    *slog.Logger
}

// NewAlpacaFetcher creates a fetcher using the given Alpaca credentials.
func NewAlpacaFetcher(apiKey, apiSecret, dataURL string, log *slog.Logger) *AlpacaFetcher {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaFetcher{
		client: marketdata.NewClient(opts),
		log:    log.With("fetcher", "alpaca"),
	}
}

func snapFromSnapshot(s *marketdata.Snapshot) *domain.Snap {
	if s == nil || s.LatestTrade == nil {
		return nil
	}
	price := s.LatestTrade.Price
	snap := &domain.Snap{Price: price, DayMax: price, DayMin: price}
	if s.DailyBar != nil {
		snap.DayMax = s.DailyBar.High
		snap.DayMin = s.DailyBar.Low
	}
	if s.PrevDailyBar != nil {
		snap.TodayPct = todayPct(price, s.PrevDailyBar.Close)
	}
	return snap
}

// Quote fetches a snapshot for one symbol.
func (f *AlpacaFetcher) Quote(ctx context.Context, symbol string) (*domain.Snap, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	snapshot, err := f.client.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
	if err != nil {
		return nil, err
	}
	return snapFromSnapshot(snapshot), nil
}

// Quotes fetches snapshots for several symbols in one provider call. A
// failed call is reported per symbol so the batch contract matches the
// concurrent path.
func (f *AlpacaFetcher) Quotes(ctx context.Context, symbols []string) map[string]Result {
	results := make(map[string]Result, len(symbols))

	snapshots, err := f.client.GetSnapshots(symbols, marketdata.GetSnapshotRequest{})
	if err != nil {
		// Provider rejected the whole batch; fall back to per-symbol calls
		// so one bad symbol cannot poison its siblings.
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, sym := range symbols {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				snap, qerr := f.Quote(ctx, sym)
				mu.Lock()
				results[sym] = Result{Snap: snap, Err: qerr}
				mu.Unlock()
			}(sym)
		}
		wg.Wait()
		return results
	}

	for _, sym := range symbols {
		s, ok := snapshots[sym]
		if !ok {
			results[sym] = Result{}
			continue
		}
		results[sym] = Result{Snap: snapFromSnapshot(s)}
	}
	return results
}
