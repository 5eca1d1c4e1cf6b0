package series

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"folio/internal/domain"
	"folio/internal/market"
)

// Store caches generated chart series on disk so that repeated requests for
// the same symbol on the same day return identical data without regenerating.
type Store interface {
	Get(symbol string, price float64) ([]domain.SeriesPoint, error)
}

// Compile-time interface check.
var _ Store = (*ParquetStore)(nil)

// ParquetStore implements Store using Parquet files on disk.
// Layout: <DataDir>/series/<SYMBOL>/<YYYY-MM-DD>.parquet
type ParquetStore struct {
	DataDir string

	mu sync.Mutex
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// PointRecord is the Parquet schema for a cached series point. Basis carries
// the price the series was generated from so a stale cache can be detected.
type PointRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Value     float64 `parquet:"value"`
	Basis     float64 `parquet:"basis"`
}

// Get returns the cached series for symbol generated at the given price,
// regenerating and rewriting the cache when no file exists for today or the
// cached file was generated from a different price.
func (s *ParquetStore) Get(symbol string, price float64) ([]domain.SeriesPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.seriesPath(symbol, time.Now().UTC())

	records, err := readParquetFile[PointRecord](path)
	if err == nil && len(records) > 0 && records[0].Basis == price {
		return pointsFromRecords(records), nil
	}

	points := market.MakeSeries(price, symbol)

	records = make([]PointRecord, 0, len(points))
	for _, p := range points {
		records = append(records, PointRecord{
			Symbol:    strings.ToUpper(symbol),
			Timestamp: p.Time * 1000,
			Value:     p.Value,
			Basis:     price,
		})
	}
	if err := writeParquetFile(path, records); err != nil {
		return nil, fmt.Errorf("caching series for %s: %w", symbol, err)
	}
	return points, nil
}

// Prune removes cached series files older than the given number of days.
func (s *ParquetStore) Prune(keepDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays).Format("2006-01-02")

	dir := filepath.Join(s.DataDir, "series")
	symbols, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, sym := range symbols {
		if !sym.IsDir() {
			continue
		}
		symDir := filepath.Join(dir, sym.Name())
		files, err := os.ReadDir(symDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			date := strings.TrimSuffix(f.Name(), ".parquet")
			if date < cutoff {
				os.Remove(filepath.Join(symDir, f.Name()))
			}
		}
	}
	return nil
}

// ListSymbols lists all symbols that have cached series data.
func (s *ParquetStore) ListSymbols() ([]string, error) {
	dir := filepath.Join(s.DataDir, "series")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// seriesPath returns the filesystem path for a series Parquet file.
func (s *ParquetStore) seriesPath(symbol string, t time.Time) string {
	date := t.Format("2006-01-02")
	return filepath.Join(s.DataDir, "series", strings.ToUpper(symbol), date+".parquet")
}

func pointsFromRecords(records []PointRecord) []domain.SeriesPoint {
	points := make([]domain.SeriesPoint, 0, len(records))
	for _, r := range records {
		points = append(points, domain.SeriesPoint{
			Time:  r.Timestamp / 1000,
			Value: r.Value,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Time < points[j].Time
	})
	return points
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
