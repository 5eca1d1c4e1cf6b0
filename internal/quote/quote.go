// Package quote provides the poll source: stateless request/response
// fetchers for per-symbol price snapshots from an external quote provider.
package quote

import (
	"context"
	"errors"
	"math"

	"folio/internal/domain"
)

// ErrNoCredential indicates the provider credential is missing. This is a
// configuration error: the poll source is disabled, not failing.
var ErrNoCredential = errors.New("quote: missing API credential")

// Result is the outcome of one symbol's fetch within a batch. Exactly one of
// Snap and Err is set; a nil Snap with a nil Err means the provider had no
// data for the symbol.
type Result struct {
	Snap *domain.Snap
	Err  error
}

// Fetcher fetches current price snapshots. A nil snapshot with a nil error
// means "no data" (well-formed response lacking a price), distinguished from
// transport or status errors.
type Fetcher interface {
	// Quote fetches a snapshot for one symbol.
	Quote(ctx context.Context, symbol string) (*domain.Snap, error)

	// Quotes fetches snapshots for several symbols. One symbol's failure
	// never aborts the rest: the returned map carries a per-symbol Result
	// for every requested symbol with data or an error.
	Quotes(ctx context.Context, symbols []string) map[string]Result
}

// todayPct computes the day-change percentage from current and previous
// close, rounded to 2 decimals. A zero or absent previous close yields 0.
func todayPct(current, prevClose float64) float64 {
	if prevClose == 0 {
		return 0
	}
	return math.Round((current-prevClose)/prevClose*100*100) / 100
}
