// Package domain defines the shared types passed between the price sources,
// the reconciler, the portfolio store, and the HTTP API.
package domain

import "time"

// PriceSource identifies which source produced the price currently backing a
// symbol's snapshot.
type PriceSource string

const (
	SourceSimulated PriceSource = "simulated"
	SourcePoll      PriceSource = "poll"
	SourceStream    PriceSource = "stream"
)

// Holding is a single user-declared position. Identity is the symbol, which
// is unique within a portfolio.
type Holding struct {
	Symbol      string  `json:"symbol"`
	DisplayName string  `json:"name,omitempty"`
	Quantity    float64 `json:"qty"`
	BuyPrice    float64 `json:"buyPrice"`
}

// Snap is a symbol's current price plus derived day statistics. It is an
// ephemeral value: recomputed or patched on every price update, never
// persisted.
type Snap struct {
	Price    float64 `json:"price"`
	TodayPct float64 `json:"today"`
	DayMax   float64 `json:"max"`
	DayMin   float64 `json:"min"`
}

// SeriesPoint is one point of a daily historical series, timestamped in Unix
// seconds.
type SeriesPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// NewsItem is a single company-news article from any source.
type NewsItem struct {
	Symbol   string    `json:"symbol"`
	Time     time.Time `json:"time"`
	Headline string    `json:"headline"`
	Source   string    `json:"source"`
	URL      string    `json:"url"`
	Image    string    `json:"image,omitempty"`
	Summary  string    `json:"summary,omitempty"`
}
