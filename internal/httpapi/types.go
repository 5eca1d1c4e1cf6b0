// Package httpapi provides the HTTP REST API for the portfolio dashboard,
// serving prices, holdings, news and valuations in JSON format.
package httpapi

import (
	"folio/internal/dashboard"
	"folio/internal/domain"
)

// QuoteJSON is the JSON representation of one symbol's snapshot.
type QuoteJSON struct {
	Symbol string             `json:"symbol"`
	Snap   domain.Snap        `json:"snap"`
	Source domain.PriceSource `json:"source"`
	Live   bool               `json:"live"`
}

// PricesResponse maps symbols to snapshots for the batch prices endpoint.
type PricesResponse struct {
	Quotes map[string]QuoteJSON `json:"quotes"`
	Errors map[string]string    `json:"errors,omitempty"`
}

// PortfolioResponse lists the current holdings.
type PortfolioResponse struct {
	Holdings []domain.Holding `json:"holdings"`
}

// NewsResponse holds merged news items plus per-symbol fetch errors.
type NewsResponse struct {
	Items   []domain.NewsItem `json:"items"`
	Warning string            `json:"warning,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// SeriesResponse holds the chart series for one symbol.
type SeriesResponse struct {
	Symbol string               `json:"symbol"`
	Points []domain.SeriesPoint `json:"points"`
}

// DashboardResponse is the valuation summary plus the selected symbol.
type DashboardResponse struct {
	dashboard.Summary
	Selected string `json:"selected,omitempty"`
}

// SelectedResponse reports the currently selected symbol.
type SelectedResponse struct {
	Symbol string `json:"symbol"`
}
