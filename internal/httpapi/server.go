package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"folio/internal/dashboard"
	"folio/internal/domain"
	"folio/internal/news"
	"folio/internal/portfolio"
	"folio/internal/prices"
	"folio/internal/quote"
	"folio/internal/series"
)

// SymbolSink receives the wanted symbol set whenever the holdings change.
// The streaming price client implements it.
type SymbolSink interface {
	SetSymbols(symbols []string)
}

// DashboardServer serves the dashboard HTTP API.
type DashboardServer struct {
	store      portfolio.Store
	fetcher    quote.Fetcher
	reconciler *prices.Reconciler
	newsSvc    *news.Service
	series     series.Store
	sink       SymbolSink
	log        *slog.Logger

	// baseCtx bounds background work spawned by requests, such as the
	// selected-symbol poll loop.
	baseCtx context.Context
}

// NewDashboardServer creates a new dashboard HTTP server. sink may be nil
// when no streaming client is configured.
func NewDashboardServer(
	baseCtx context.Context,
	store portfolio.Store,
	fetcher quote.Fetcher,
	reconciler *prices.Reconciler,
	newsSvc *news.Service,
	seriesStore series.Store,
	sink SymbolSink,
	log *slog.Logger,
) *DashboardServer {
	return &DashboardServer{
		store:      store,
		fetcher:    fetcher,
		reconciler: reconciler,
		newsSvc:    newsSvc,
		series:     seriesStore,
		sink:       sink,
		log:        log,
		baseCtx:    baseCtx,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *DashboardServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/prices", s.handlePrices)
	mux.HandleFunc("GET /api/prices/{symbol}", s.handlePrice)
	mux.HandleFunc("GET /api/quote/{symbol}", s.handleQuoteProxy)
	mux.HandleFunc("GET /api/news", s.handleNews)
	mux.HandleFunc("GET /api/portfolio", s.handleGetPortfolio)
	mux.HandleFunc("PUT /api/portfolio", s.handlePutPortfolio)
	mux.HandleFunc("DELETE /api/portfolio", s.handleResetPortfolio)
	mux.HandleFunc("DELETE /api/portfolio/{symbol}", s.handleRemoveHolding)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/selected", s.handleGetSelected)
	mux.HandleFunc("PUT /api/selected/{symbol}", s.handleSelect)
	mux.HandleFunc("GET /api/series/{symbol}", s.handleSeries)
}

// Handler returns an http.Handler with CORS middleware.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// quoteJSON builds the response entry for one symbol from the reconciler.
func (s *DashboardServer) quoteJSON(symbol string) QuoteJSON {
	snap, source := s.reconciler.Snapshot(symbol)
	return QuoteJSON{
		Symbol: symbol,
		Snap:   snap,
		Source: source,
		Live:   s.reconciler.Live(symbol),
	}
}

func (s *DashboardServer) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if !portfolio.ValidSymbol(symbol) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid symbol %q", symbol))
		return
	}
	writeJSON(w, s.quoteJSON(symbol))
}

// handleQuoteProxy forwards one symbol straight to the poll source without
// touching the reconciler. A missing credential is a configuration error, no
// data is 404, and an upstream failure is 502.
func (s *DashboardServer) handleQuoteProxy(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if !portfolio.ValidSymbol(symbol) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid symbol %q", symbol))
		return
	}

	snap, err := s.fetcher.Quote(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, quote.ErrNoCredential) {
			writeError(w, http.StatusServiceUnavailable, "quote source not configured")
			return
		}
		writeError(w, http.StatusBadGateway, fmt.Sprintf("fetching %s failed", symbol))
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no data for %s", symbol))
		return
	}
	writeJSON(w, QuoteJSON{Symbol: symbol, Snap: *snap, Source: domain.SourcePoll})
}

func (s *DashboardServer) handlePrices(w http.ResponseWriter, r *http.Request) {
	raw := strings.Split(r.URL.Query().Get("symbols"), ",")

	resp := PricesResponse{Quotes: make(map[string]QuoteJSON)}
	for _, sym := range raw {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if !portfolio.ValidSymbol(sym) {
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[sym] = "invalid symbol"
			continue
		}
		resp.Quotes[sym] = s.quoteJSON(sym)
	}
	writeJSON(w, resp)
}

func (s *DashboardServer) handleNews(w http.ResponseWriter, r *http.Request) {
	symbols := strings.Split(r.URL.Query().Get("symbols"), ",")

	days := 0
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = n
	}

	result, err := s.newsSvc.Fetch(r.Context(), symbols, days)
	if err != nil {
		if errors.Is(err, news.ErrNoCredential) {
			writeError(w, http.StatusServiceUnavailable, "news source not configured")
			return
		}
		writeError(w, http.StatusBadGateway, "fetching news failed")
		return
	}

	writeJSON(w, NewsResponse{
		Items:   result.Items,
		Warning: result.Warning,
		Errors:  result.Errors,
	})
}

func (s *DashboardServer) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading portfolio failed")
		return
	}
	writeJSON(w, PortfolioResponse{Holdings: holdings})
}

func (s *DashboardServer) handlePutPortfolio(w http.ResponseWriter, r *http.Request) {
	var incoming []domain.Holding
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid holdings payload")
		return
	}

	holdings := portfolio.Normalize(incoming)
	if err := s.store.Replace(r.Context(), holdings); err != nil {
		writeError(w, http.StatusInternalServerError, "saving portfolio failed")
		return
	}

	s.resync(holdings)
	writeJSON(w, PortfolioResponse{Holdings: holdings})
}

func (s *DashboardServer) handleRemoveHolding(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if !portfolio.ValidSymbol(symbol) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid symbol %q", symbol))
		return
	}

	if err := s.store.Remove(r.Context(), symbol); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("removing %s failed", symbol))
		return
	}

	holdings, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading portfolio failed")
		return
	}
	s.resync(holdings)
	writeJSON(w, PortfolioResponse{Holdings: holdings})
}

func (s *DashboardServer) handleResetPortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "resetting portfolio failed")
		return
	}

	holdings, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading portfolio failed")
		return
	}
	s.resync(holdings)
	writeJSON(w, PortfolioResponse{Holdings: holdings})
}

// resync pushes the holdings' symbol set into the reconciler and the
// streaming client after any portfolio change.
func (s *DashboardServer) resync(holdings []domain.Holding) {
	symbols := portfolio.Symbols(holdings)
	s.reconciler.Track(symbols)
	if s.sink != nil {
		s.sink.SetSymbols(symbols)
	}
}

func (s *DashboardServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading portfolio failed")
		return
	}
	writeJSON(w, DashboardResponse{
		Summary:  dashboard.Compute(holdings, s.reconciler.Snapshot),
		Selected: s.reconciler.Selected(),
	})
}

func (s *DashboardServer) handleGetSelected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, SelectedResponse{Symbol: s.reconciler.Selected()})
}

func (s *DashboardServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if !portfolio.ValidSymbol(symbol) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid symbol %q", symbol))
		return
	}

	// Selection polling outlives the request, so it runs on the server's
	// base context rather than r.Context().
	s.reconciler.Select(s.baseCtx, symbol)
	writeJSON(w, SelectedResponse{Symbol: symbol})
}

func (s *DashboardServer) handleSeries(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if !portfolio.ValidSymbol(symbol) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid symbol %q", symbol))
		return
	}

	snap, _ := s.reconciler.Snapshot(symbol)
	points, err := s.series.Get(symbol, snap.Price)
	if err != nil {
		s.log.Warn("series cache", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "building series failed")
		return
	}
	writeJSON(w, SeriesResponse{Symbol: symbol, Points: points})
}
