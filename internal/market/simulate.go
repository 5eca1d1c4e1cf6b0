// Package market provides a deterministic price simulator used as the
// fallback source when neither the poll nor the stream has produced a value
// for a symbol. Same symbol, same process run, same output.
package market

import (
	"fmt"
	"math"
	"time"

	"folio/internal/domain"
)

// basePrices anchors the simulator per known symbol. Unknown symbols default
// to 100.
var basePrices = map[string]float64{
	"NVDA": 135, "AI": 28, "PLTR": 16, "META": 510, "AMD": 160, "SMCI": 860,
	"TSLA": 250, "PATH": 18, "AMZN": 180, "BBAI": 3.8, "INTC": 36, "ASTS": 9.5,
}

// BasePrice returns the anchor price for a symbol.
func BasePrice(symbol string) float64 {
	if b, ok := basePrices[symbol]; ok {
		return b
	}
	return 100
}

// hashString is 32-bit FNV-1a.
func hashString(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// newRNG returns a mulberry32 generator producing floats in [0, 1).
func newRNG(seed uint32) func() float64 {
	state := seed
	return func() float64 {
		state += 0x6D2B79F5
		t := state
		t = (t ^ (t >> 15)) * (t | 1)
		t ^= t + (t^(t>>7))*(t|61)
		return float64(t^(t>>14)) / 4294967296
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Simulate produces a reproducible synthetic snapshot for a symbol: a daily
// change drawn in [-3%, +3%] around the base price, and a day range drawn
// with an amplitude in [0%, 5%].
func Simulate(symbol string) domain.Snap {
	base := BasePrice(symbol)
	rng := newRNG(hashString(symbol))

	todayPct := (rng() - 0.5) * 6
	price := round2(base * (1 + todayPct/100))
	amp := math.Abs((rng() - 0.5) * 0.10)

	return domain.Snap{
		Price:    price,
		TodayPct: round2(todayPct),
		DayMax:   round2(price * (1 + amp)),
		DayMin:   round2(price * (1 - amp)),
	}
}

// MakeSeries produces a 121-point daily random walk ending near price,
// seeded by seedKey and the price itself so the same inputs always yield the
// same series. Points are timestamped at midnight-aligned daily offsets back
// from today.
func MakeSeries(price float64, seedKey string) []domain.SeriesPoint {
	return makeSeriesAt(price, seedKey, time.Now())
}

func makeSeriesAt(price float64, seedKey string, now time.Time) []domain.SeriesPoint {
	seed := hashString(fmt.Sprintf("%s|%.2f", seedKey, price))
	rng := newRNG(seed)

	pts := make([]domain.SeriesPoint, 0, 121)
	p := price * (0.9 + rng()*0.2)
	day := now.UTC().Truncate(24 * time.Hour)

	for i := 120; i >= 0; i-- {
		d := day.AddDate(0, 0, -i)
		drift := (rng() - 0.5) * 0.01
		p = math.Max(1, p*(1+drift))
		pts = append(pts, domain.SeriesPoint{Time: d.Unix(), Value: round2(p)})
	}
	return pts
}
