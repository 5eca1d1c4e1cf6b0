// Package prices merges the simulated, polled and streamed price sources
// into one authoritative snapshot per tracked symbol.
package prices

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"folio/internal/domain"
	"folio/internal/market"
	"folio/internal/quote"
)

// Reconciler owns the per-symbol snapshot store. Precedence, highest first:
// a streaming price patches the price field only; a poll result replaces the
// snapshot wholesale; the simulator fills any gap. Once a snapshot exists it
// is patched in place, never reset, so a symbol moves between sources
// without flicker.
type Reconciler struct {
	mu      sync.RWMutex
	snaps   map[string]domain.Snap
	sources map[string]domain.PriceSource

	fetcher  quote.Fetcher
	simulate func(string) domain.Snap
	interval time.Duration
	log      *slog.Logger

	selMu     sync.Mutex
	selected  string
	selCancel context.CancelFunc
}

// New creates a Reconciler polling through fetcher. fetcher may be nil, in
// which case only simulated and streamed data back the snapshots. interval
// is the selected-symbol poll period.
func New(fetcher quote.Fetcher, interval time.Duration, log *slog.Logger) *Reconciler {
	return &Reconciler{
		snaps:    make(map[string]domain.Snap),
		sources:  make(map[string]domain.PriceSource),
		fetcher:  fetcher,
		simulate: market.Simulate,
		interval: interval,
		log:      log.With("component", "prices"),
	}
}

// Track reconciles the snapshot store with the held symbol set: every held
// symbol gets a snapshot immediately (simulated until better data arrives)
// and symbols no longer held are dropped.
func (r *Reconciler) Track(symbols []string) {
	want := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		want[s] = struct{}{}
	}

	// A selection pointing at a symbol that is no longer held is stale; its
	// poll loop would keep re-inserting the dropped symbol. Cancelled before
	// pruning so a last in-flight poll result still gets pruned below.
	r.selMu.Lock()
	if r.selected != "" {
		if _, ok := want[r.selected]; !ok {
			if r.selCancel != nil {
				r.selCancel()
				r.selCancel = nil
			}
			r.selected = ""
		}
	}
	r.selMu.Unlock()

	r.mu.Lock()
	for s := range want {
		if _, ok := r.snaps[s]; !ok {
			r.snaps[s] = r.simulate(s)
			r.sources[s] = domain.SourceSimulated
		}
	}
	for s := range r.snaps {
		if _, ok := want[s]; !ok {
			delete(r.snaps, s)
			delete(r.sources, s)
		}
	}
	r.mu.Unlock()
}

// Snapshot returns the current snapshot and backing source for a symbol. A
// snapshot is always resolvable: untracked symbols get a deterministic
// simulated value.
func (r *Reconciler) Snapshot(symbol string) (domain.Snap, domain.PriceSource) {
	r.mu.RLock()
	snap, ok := r.snaps[symbol]
	src := r.sources[symbol]
	r.mu.RUnlock()
	if !ok {
		return r.simulate(symbol), domain.SourceSimulated
	}
	return snap, src
}

// Live reports whether the streaming feed produced the price currently
// backing the symbol's snapshot.
func (r *Reconciler) Live(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[symbol] == domain.SourceStream
}

// All returns a copy of every tracked snapshot.
func (r *Reconciler) All() map[string]domain.Snap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Snap, len(r.snaps))
	for s, snap := range r.snaps {
		out[s] = snap
	}
	return out
}

// ApplyStreamBatch patches the price of every symbol in the batch, keeping
// the existing day statistics. The batch is applied atomically: readers see
// all of it or none of it.
func (r *Reconciler) ApplyStreamBatch(batch map[string]float64) {
	if len(batch) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for sym, price := range batch {
		snap, ok := r.snaps[sym]
		if !ok {
			snap = r.simulate(sym)
		}
		snap.Price = price
		r.snaps[sym] = snap
		r.sources[sym] = domain.SourceStream
	}
}

// applyPoll replaces a symbol's snapshot wholesale with a poll result. A nil
// snap (no data) only guarantees a fallback exists; it never destroys a
// previously good snapshot.
func (r *Reconciler) applyPoll(symbol string, snap *domain.Snap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap == nil {
		if _, ok := r.snaps[symbol]; !ok {
			r.snaps[symbol] = r.simulate(symbol)
			r.sources[symbol] = domain.SourceSimulated
		}
		return
	}
	r.snaps[symbol] = *snap
	r.sources[symbol] = domain.SourcePoll
}

// Baseline polls every tracked symbol once, sequentially, to establish fresh
// data without a burst of parallel requests. Cancellation is checked before
// each result is applied so a stale run cannot overwrite newer state. A
// missing credential disables polling for the run without an error.
func (r *Reconciler) Baseline(ctx context.Context) {
	if r.fetcher == nil {
		return
	}

	r.mu.RLock()
	symbols := make([]string, 0, len(r.snaps))
	for s := range r.snaps {
		symbols = append(symbols, s)
	}
	r.mu.RUnlock()

	for _, sym := range symbols {
		snap, err := r.fetcher.Quote(ctx, sym)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, quote.ErrNoCredential) {
			r.log.Info("poll source disabled", "reason", err)
			return
		}
		if err != nil {
			r.log.Warn("baseline poll failed", "symbol", sym, "error", err)
			continue
		}
		r.applyPoll(sym, snap)
	}
}

// Select changes the symbol polled on the fixed interval. The previous
// selection's poll loop is cancelled before the new one starts; an empty
// symbol just stops polling. ctx bounds the lifetime of the new loop.
func (r *Reconciler) Select(ctx context.Context, symbol string) {
	r.selMu.Lock()
	defer r.selMu.Unlock()

	if r.selCancel != nil {
		r.selCancel()
		r.selCancel = nil
	}
	r.selected = symbol
	if symbol == "" || r.fetcher == nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.selCancel = cancel
	go r.pollLoop(loopCtx, symbol)
}

// Selected returns the currently selected symbol.
func (r *Reconciler) Selected() string {
	r.selMu.Lock()
	defer r.selMu.Unlock()
	return r.selected
}

// Stop cancels any running selected-symbol poll loop.
func (r *Reconciler) Stop() {
	r.selMu.Lock()
	defer r.selMu.Unlock()
	if r.selCancel != nil {
		r.selCancel()
		r.selCancel = nil
	}
}

func (r *Reconciler) pollLoop(ctx context.Context, symbol string) {
	tick := func() {
		snap, err := r.fetcher.Quote(ctx, symbol)
		if ctx.Err() != nil {
			// Superseded while in flight; discard silently.
			return
		}
		if err != nil {
			r.log.Warn("selected poll failed", "symbol", symbol, "error", err)
			return
		}
		if snap != nil {
			r.applyPoll(symbol, snap)
		}
	}

	tick()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

// ConsumeStream applies streamed trade batches until the channel closes or
// ctx is cancelled. Meant to be run as a goroutine fed by a stream
// subscription.
func (r *Reconciler) ConsumeStream(ctx context.Context, batches <-chan map[string]float64) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			r.ApplyStreamBatch(batch)
		}
	}
}
