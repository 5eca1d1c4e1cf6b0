package series

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"folio/internal/market"
)

func TestGetGeneratesAndCaches(t *testing.T) {
	dir := t.TempDir()
	s := NewParquetStore(dir)

	points, err := s.Get("NVDA", 135)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(points) != 121 {
		t.Errorf("len(points) = %d, want 121", len(points))
	}

	date := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(dir, "series", "NVDA", date+".parquet")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	again, err := s.Get("NVDA", 135)
	if err != nil {
		t.Fatalf("Get() second call error = %v", err)
	}
	if len(again) != len(points) {
		t.Fatalf("len(again) = %d, want %d", len(again), len(points))
	}
	for i := range points {
		if again[i] != points[i] {
			t.Fatalf("point %d = %+v, want %+v", i, again[i], points[i])
		}
	}
}

func TestGetRegeneratesOnPriceChange(t *testing.T) {
	s := NewParquetStore(t.TempDir())

	if _, err := s.Get("TSLA", 250); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	points, err := s.Get("TSLA", 260)
	if err != nil {
		t.Fatalf("Get() after price change error = %v", err)
	}

	want := market.MakeSeries(260, "TSLA")
	if len(points) != len(want) {
		t.Fatalf("len(points) = %d, want %d", len(points), len(want))
	}
	for i := range want {
		if points[i].Value != want[i].Value {
			t.Fatalf("point %d value = %v, want %v", i, points[i].Value, want[i].Value)
		}
	}
}

func TestGetLowercasesSymbolPath(t *testing.T) {
	dir := t.TempDir()
	s := NewParquetStore(dir)

	if _, err := s.Get("amd", 160); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	symbols, err := s.ListSymbols()
	if err != nil {
		t.Fatalf("ListSymbols() error = %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "AMD" {
		t.Errorf("ListSymbols() = %v, want [AMD]", symbols)
	}
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	s := NewParquetStore(dir)

	if _, err := s.Get("META", 510); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// Plant an old file alongside today's.
	old := filepath.Join(dir, "series", "META", "2020-01-01.parquet")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Prune(7); err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("old cache file survived prune")
	}
	today := filepath.Join(dir, "series", "META", time.Now().UTC().Format("2006-01-02")+".parquet")
	if _, err := os.Stat(today); err != nil {
		t.Errorf("today's cache file removed by prune: %v", err)
	}
}
