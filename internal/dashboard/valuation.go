// Package dashboard computes portfolio valuations from holdings and live
// price snapshots, used by both the HTTP API and the console client.
package dashboard

import (
	"sort"

	"folio/internal/domain"
)

// Row is the valuation of a single holding at current prices.
type Row struct {
	domain.Holding
	Snap     domain.Snap        `json:"snap"`
	Source   domain.PriceSource `json:"source"`
	Invested float64            `json:"invested"`
	Value    float64            `json:"value"`
	PnL      float64            `json:"pnl"`
	PnLPct   float64            `json:"pnlPct"`
}

// KPIs summarize the whole portfolio.
type KPIs struct {
	Invested float64 `json:"invested"`
	Value    float64 `json:"value"`
	PnL      float64 `json:"pnl"`
	PnLPct   float64 `json:"pnlPct"`
	Top      string  `json:"top,omitempty"`   // best mover by today's change
	Worst    string  `json:"worst,omitempty"` // worst mover by today's change
}

// Summary is the full dashboard payload: per-holding rows plus totals.
type Summary struct {
	Rows []Row `json:"rows"`
	KPIs KPIs  `json:"kpis"`
}

// SnapFunc resolves the current snapshot and price source for a symbol.
type SnapFunc func(symbol string) (domain.Snap, domain.PriceSource)

// Compute builds the dashboard summary for the given holdings. Rows keep the
// order of the input holdings; KPI top/worst movers are ranked by today's
// percentage change.
func Compute(holdings []domain.Holding, snap SnapFunc) Summary {
	rows := make([]Row, 0, len(holdings))
	var kpis KPIs

	for _, h := range holdings {
		s, src := snap(h.Symbol)
		r := Row{
			Holding:  h,
			Snap:     s,
			Source:   src,
			Invested: h.Quantity * h.BuyPrice,
			Value:    h.Quantity * s.Price,
		}
		r.PnL = r.Value - r.Invested
		if r.Invested != 0 {
			r.PnLPct = r.PnL / r.Invested * 100
		}
		rows = append(rows, r)

		kpis.Invested += r.Invested
		kpis.Value += r.Value
	}

	kpis.PnL = kpis.Value - kpis.Invested
	if kpis.Invested != 0 {
		kpis.PnLPct = kpis.PnL / kpis.Invested * 100
	}

	if len(rows) > 0 {
		ranked := make([]Row, len(rows))
		copy(ranked, rows)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Snap.TodayPct > ranked[j].Snap.TodayPct
		})
		kpis.Top = ranked[0].Symbol
		kpis.Worst = ranked[len(ranked)-1].Symbol
	}

	return Summary{Rows: rows, KPIs: kpis}
}
