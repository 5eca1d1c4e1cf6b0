package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"folio/internal/domain"
	"folio/internal/news"
	"folio/internal/portfolio"
	"folio/internal/prices"
	"folio/internal/quote"
	"folio/internal/series"
)

// stubFetcher serves canned snapshots to the reconciler.
type stubFetcher struct {
	snaps map[string]domain.Snap
	errs  map[string]error
}

func (f *stubFetcher) Quote(_ context.Context, symbol string) (*domain.Snap, error) {
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	if s, ok := f.snaps[symbol]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *stubFetcher) Quotes(ctx context.Context, symbols []string) map[string]quote.Result {
	out := make(map[string]quote.Result, len(symbols))
	for _, sym := range symbols {
		s, err := f.Quote(ctx, sym)
		out[sym] = quote.Result{Snap: s, Err: err}
	}
	return out
}

// stubNewsSource returns fixed items for every symbol.
type stubNewsSource struct {
	items []domain.NewsItem
}

func (s *stubNewsSource) Name() string { return "stub" }

func (s *stubNewsSource) Fetch(_ context.Context, symbol string, _, _ time.Time) ([]domain.NewsItem, error) {
	var out []domain.NewsItem
	for _, it := range s.items {
		if it.Symbol == symbol {
			out = append(out, it)
		}
	}
	return out, nil
}

// symbolRecorder captures SetSymbols calls.
type symbolRecorder struct {
	mu   sync.Mutex
	last []string
}

func (r *symbolRecorder) SetSymbols(symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = append([]string(nil), symbols...)
}

func (r *symbolRecorder) Last() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

type testEnv struct {
	server     *httptest.Server
	store      *portfolio.SQLiteStore
	fetcher    *stubFetcher
	reconciler *prices.Reconciler
	sink       *symbolRecorder
}

func newTestEnv(t *testing.T, snaps map[string]domain.Snap, items []domain.NewsItem) *testEnv {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	dir := t.TempDir()

	store, err := portfolio.NewSQLiteStore(filepath.Join(dir, "folio.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	fetcher := &stubFetcher{snaps: snaps}
	rec := prices.New(fetcher, time.Hour, log)
	t.Cleanup(rec.Stop)

	newsSvc := news.NewService([]news.Source{&stubNewsSource{items: items}}, 0, log)
	sink := &symbolRecorder{}

	s := NewDashboardServer(context.Background(), store, fetcher, rec, newsSvc, series.NewParquetStore(dir), sink, log)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: store, fetcher: fetcher, reconciler: rec, sink: sink}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestPriceEndpoint(t *testing.T) {
	env := newTestEnv(t, map[string]domain.Snap{
		"NVDA": {Price: 135, TodayPct: 1.2, DayMax: 137, DayMin: 133},
	}, nil)
	env.reconciler.Track([]string{"NVDA"})
	env.reconciler.Baseline(context.Background())

	var q QuoteJSON
	if code := getJSON(t, env.server.URL+"/api/prices/NVDA", &q); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if q.Symbol != "NVDA" || q.Snap.Price != 135 {
		t.Errorf("quote = %+v, want NVDA @ 135", q)
	}
	if q.Source != domain.SourcePoll {
		t.Errorf("Source = %q, want %q", q.Source, domain.SourcePoll)
	}
}

func TestPriceEndpointSimulatedFallback(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var q QuoteJSON
	if code := getJSON(t, env.server.URL+"/api/prices/PLTR", &q); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if q.Source != domain.SourceSimulated {
		t.Errorf("Source = %q, want %q", q.Source, domain.SourceSimulated)
	}
	if q.Snap.Price <= 0 {
		t.Errorf("Price = %v, want > 0", q.Snap.Price)
	}
}

func TestPriceEndpointInvalidSymbol(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	if code := getJSON(t, env.server.URL+"/api/prices/toolongsymbol", nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestQuoteProxy(t *testing.T) {
	env := newTestEnv(t, map[string]domain.Snap{
		"NVDA": {Price: 135, TodayPct: 1.2},
	}, nil)
	env.fetcher.errs = map[string]error{
		"AMD":  errors.New("rate limited"),
		"ASTS": quote.ErrNoCredential,
	}

	var q QuoteJSON
	if code := getJSON(t, env.server.URL+"/api/quote/NVDA", &q); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if q.Snap.Price != 135 {
		t.Errorf("Price = %v, want 135", q.Snap.Price)
	}

	if code := getJSON(t, env.server.URL+"/api/quote/MISSING", nil); code != http.StatusNotFound {
		t.Errorf("no-data status = %d, want 404", code)
	}
	if code := getJSON(t, env.server.URL+"/api/quote/AMD", nil); code != http.StatusBadGateway {
		t.Errorf("upstream-failure status = %d, want 502", code)
	}
	if code := getJSON(t, env.server.URL+"/api/quote/ASTS", nil); code != http.StatusServiceUnavailable {
		t.Errorf("no-credential status = %d, want 503", code)
	}
}

func TestBatchPrices(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var resp PricesResponse
	if code := getJSON(t, env.server.URL+"/api/prices?symbols=nvda,+tsla+,bad!!,", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(resp.Quotes) != 2 {
		t.Errorf("len(Quotes) = %d, want 2", len(resp.Quotes))
	}
	if _, ok := resp.Quotes["NVDA"]; !ok {
		t.Errorf("Quotes missing NVDA: %v", resp.Quotes)
	}
	if _, ok := resp.Errors["BAD!!"]; !ok {
		t.Errorf("Errors missing BAD!!: %v", resp.Errors)
	}
}

func TestPortfolioRoundtrip(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	body := `[{"symbol":" nvda ","qty":10,"buyPrice":100},{"symbol":"NVDA","qty":5,"buyPrice":90},{"symbol":"tsla","qty":2,"buyPrice":300}]`
	var put PortfolioResponse
	if code := doJSON(t, http.MethodPut, env.server.URL+"/api/portfolio", body, &put); code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200", code)
	}
	if len(put.Holdings) != 2 {
		t.Fatalf("len(Holdings) = %d, want 2 (dup removed)", len(put.Holdings))
	}
	if put.Holdings[0].Symbol != "NVDA" || put.Holdings[0].Quantity != 10 {
		t.Errorf("first holding = %+v, want NVDA qty 10 (first kept)", put.Holdings[0])
	}

	if got := env.sink.Last(); len(got) != 2 || got[0] != "NVDA" || got[1] != "TSLA" {
		t.Errorf("sink symbols = %v, want [NVDA TSLA]", got)
	}

	var get PortfolioResponse
	if code := getJSON(t, env.server.URL+"/api/portfolio", &get); code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", code)
	}
	if len(get.Holdings) != 2 {
		t.Errorf("persisted holdings = %d, want 2", len(get.Holdings))
	}

	if code := doJSON(t, http.MethodDelete, env.server.URL+"/api/portfolio/TSLA", "", &get); code != http.StatusOK {
		t.Fatalf("DELETE status = %d, want 200", code)
	}
	if len(get.Holdings) != 1 || get.Holdings[0].Symbol != "NVDA" {
		t.Errorf("after delete holdings = %+v, want [NVDA]", get.Holdings)
	}
	if got := env.sink.Last(); len(got) != 1 || got[0] != "NVDA" {
		t.Errorf("sink symbols after delete = %v, want [NVDA]", got)
	}
}

func TestPortfolioReset(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	body := `[{"symbol":"NVDA","qty":10,"buyPrice":100}]`
	if code := doJSON(t, http.MethodPut, env.server.URL+"/api/portfolio", body, nil); code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200", code)
	}

	var resp PortfolioResponse
	if code := doJSON(t, http.MethodDelete, env.server.URL+"/api/portfolio", "", &resp); code != http.StatusOK {
		t.Fatalf("DELETE status = %d, want 200", code)
	}
	if len(resp.Holdings) != 0 {
		t.Errorf("holdings after reset = %+v, want empty", resp.Holdings)
	}
	if got := env.sink.Last(); len(got) != 0 {
		t.Errorf("sink symbols after reset = %v, want empty", got)
	}
}

func TestPortfolioBadPayload(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	if code := doJSON(t, http.MethodPut, env.server.URL+"/api/portfolio", `{"not":"a list"}`, nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	env := newTestEnv(t, map[string]domain.Snap{
		"NVDA": {Price: 135, TodayPct: 1.2},
	}, nil)

	body := `[{"symbol":"NVDA","qty":10,"buyPrice":100}]`
	if code := doJSON(t, http.MethodPut, env.server.URL+"/api/portfolio", body, nil); code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200", code)
	}
	env.reconciler.Baseline(context.Background())

	var sum struct {
		Rows []struct {
			Symbol string  `json:"symbol"`
			Value  float64 `json:"value"`
			PnL    float64 `json:"pnl"`
		} `json:"rows"`
		KPIs struct {
			Invested float64 `json:"invested"`
			Value    float64 `json:"value"`
		} `json:"kpis"`
	}
	if code := getJSON(t, env.server.URL+"/api/dashboard", &sum); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(sum.Rows) != 1 || sum.Rows[0].Value != 1350 {
		t.Errorf("rows = %+v, want NVDA value 1350", sum.Rows)
	}
	if sum.KPIs.Invested != 1000 {
		t.Errorf("KPIs.Invested = %v, want 1000", sum.KPIs.Invested)
	}
}

func TestSelectEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var sel SelectedResponse
	if code := doJSON(t, http.MethodPut, env.server.URL+"/api/selected/AMD", "", &sel); code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200", code)
	}
	if sel.Symbol != "AMD" {
		t.Errorf("selected = %q, want AMD", sel.Symbol)
	}

	if code := getJSON(t, env.server.URL+"/api/selected", &sel); code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", code)
	}
	if sel.Symbol != "AMD" {
		t.Errorf("GET selected = %q, want AMD", sel.Symbol)
	}
}

func TestSeriesEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var resp SeriesResponse
	if code := getJSON(t, env.server.URL+"/api/series/NVDA", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Symbol != "NVDA" || len(resp.Points) != 121 {
		t.Errorf("series = %s with %d points, want NVDA with 121", resp.Symbol, len(resp.Points))
	}
}

func TestNewsEndpoint(t *testing.T) {
	now := time.Now().UTC()
	env := newTestEnv(t, nil, []domain.NewsItem{
		{Symbol: "NVDA", Time: now.Add(-time.Hour), Headline: "older", URL: "https://x/1"},
		{Symbol: "NVDA", Time: now, Headline: "newer", URL: "https://x/2"},
	})

	var resp NewsResponse
	if code := getJSON(t, env.server.URL+"/api/news?symbols=NVDA&days=3", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(resp.Items))
	}
	if resp.Items[0].Headline != "newer" {
		t.Errorf("first item = %q, want newest first", resp.Items[0].Headline)
	}
}

func TestNewsEndpointBadDays(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	if code := getJSON(t, env.server.URL+"/api/news?symbols=NVDA&days=x", nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestNewsEndpointNoSources(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	dir := t.TempDir()

	store, err := portfolio.NewSQLiteStore(filepath.Join(dir, "folio.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	fetcher := &stubFetcher{}
	rec := prices.New(fetcher, time.Hour, log)
	defer rec.Stop()

	s := NewDashboardServer(context.Background(), store, fetcher, rec,
		news.NewService(nil, 0, log), series.NewParquetStore(dir), nil, log)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	if code := getJSON(t, ts.URL+"/api/news?symbols=NVDA", nil); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	req, _ := http.NewRequest(http.MethodOptions, env.server.URL+"/api/dashboard", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}
