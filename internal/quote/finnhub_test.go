package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestFinnhubQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "NVDA" {
			t.Errorf("symbol param = %q, want %q", got, "NVDA")
		}
		if got := r.URL.Query().Get("token"); got != "key" {
			t.Errorf("token param = %q, want %q", got, "key")
		}
		fmt.Fprint(w, `{"c":150.25,"h":152.0,"l":148.5,"pc":140.0}`)
	}))
	defer srv.Close()

	f := NewFinnhubFetcher(srv.URL, "key", 600, discard())
	snap, err := f.Quote(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if snap == nil {
		t.Fatal("Quote returned nil snap")
	}
	if snap.Price != 150.25 {
		t.Errorf("Price = %v, want 150.25", snap.Price)
	}
	// (150.25-140)/140*100 = 7.32142... → 7.32
	if snap.TodayPct != 7.32 {
		t.Errorf("TodayPct = %v, want 7.32", snap.TodayPct)
	}
	if snap.DayMax != 152.0 || snap.DayMin != 148.5 {
		t.Errorf("DayMax/DayMin = %v/%v, want 152/148.5", snap.DayMax, snap.DayMin)
	}
}

func TestFinnhubQuoteNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Finnhub returns zeros for unknown symbols.
		fmt.Fprint(w, `{"c":0,"h":0,"l":0,"pc":0}`)
	}))
	defer srv.Close()

	f := NewFinnhubFetcher(srv.URL, "key", 600, discard())
	snap, err := f.Quote(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("no-data response should not be an error, got: %v", err)
	}
	if snap != nil {
		t.Errorf("no-data response should yield nil snap, got %+v", snap)
	}
}

func TestFinnhubQuoteZeroPrevClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"c":10,"h":11,"l":9,"pc":0}`)
	}))
	defer srv.Close()

	f := NewFinnhubFetcher(srv.URL, "key", 600, discard())
	snap, err := f.Quote(context.Background(), "IPO")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if snap.TodayPct != 0 {
		t.Errorf("TodayPct with zero prevClose = %v, want 0", snap.TodayPct)
	}
}

func TestFinnhubQuoteMissingCredential(t *testing.T) {
	f := NewFinnhubFetcher("http://unused", "", 600, discard())
	_, err := f.Quote(context.Background(), "NVDA")
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("Quote without credential returned %v, want ErrNoCredential", err)
	}
}

func TestFinnhubQuotesPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "A":
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{}`)
		case "B":
			fmt.Fprint(w, `{"c":20,"h":21,"l":19,"pc":20}`)
		default:
			t.Errorf("unexpected symbol %q", r.URL.Query().Get("symbol"))
		}
	}))
	defer srv.Close()

	f := NewFinnhubFetcher(srv.URL, "key", 6000, discard())
	results := f.Quotes(context.Background(), []string{"A", "B"})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results["A"].Err == nil {
		t.Error("symbol A should carry an error")
	}
	if results["B"].Err != nil {
		t.Errorf("symbol B should succeed, got error: %v", results["B"].Err)
	}
	if results["B"].Snap == nil || results["B"].Snap.Price != 20 {
		t.Errorf("symbol B snap = %+v, want price 20", results["B"].Snap)
	}
}

func TestTodayPct(t *testing.T) {
	cases := []struct {
		current, prev, want float64
	}{
		{150, 140, 7.14},
		{140, 140, 0},
		{130, 140, -7.14},
		{100, 0, 0},
	}
	for _, c := range cases {
		if got := todayPct(c.current, c.prev); got != c.want {
			t.Errorf("todayPct(%v, %v) = %v, want %v", c.current, c.prev, got, c.want)
		}
	}
}
