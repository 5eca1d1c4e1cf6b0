// Package portfolio holds the user-declared holdings: the single source of
// truth for which symbols the price sources track.
package portfolio

import (
	"context"
	"regexp"
	"strings"

	"folio/internal/domain"
)

// symbolRe is the accepted ticker shape.
var symbolRe = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// ValidSymbol reports whether s is an acceptable (already-normalized) ticker.
func ValidSymbol(s string) bool {
	return symbolRe.MatchString(s)
}

// Store persists the holdings list.
type Store interface {
	// List returns the stored holdings, normalized.
	List(ctx context.Context) ([]domain.Holding, error)

	// Replace atomically swaps the whole holdings list for the given rows,
	// normalized.
	Replace(ctx context.Context, rows []domain.Holding) error

	// Remove deletes a single holding by symbol.
	Remove(ctx context.Context, symbol string) error

	// Reset deletes all holdings.
	Reset(ctx context.Context) error
}

// Normalize sanitizes a holdings list: symbols are trimmed and uppercased,
// rows with invalid symbols are dropped, negative quantities and prices are
// clamped to zero, and duplicate symbols are removed keeping the first
// occurrence. Normalization is idempotent.
func Normalize(rows []domain.Holding) []domain.Holding {
	seen := make(map[string]struct{}, len(rows))
	out := make([]domain.Holding, 0, len(rows))

	for _, r := range rows {
		sym := strings.ToUpper(strings.TrimSpace(r.Symbol))
		if !ValidSymbol(sym) {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}

		if r.Quantity < 0 {
			r.Quantity = 0
		}
		if r.BuyPrice < 0 {
			r.BuyPrice = 0
		}

		out = append(out, domain.Holding{
			Symbol:      sym,
			DisplayName: strings.TrimSpace(r.DisplayName),
			Quantity:    r.Quantity,
			BuyPrice:    r.BuyPrice,
		})
	}
	return out
}

// Symbols returns the symbol list of a holdings slice, in order.
func Symbols(rows []domain.Holding) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Symbol)
	}
	return out
}
