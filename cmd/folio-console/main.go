package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"folio/internal/dashboard"
	"folio/pkg/folio"
)

func main() {
	baseURL := "http://localhost:8080"
	if a := os.Getenv("FOLIO_SERVER"); a != "" {
		baseURL = a
	}

	interval := 5 * time.Second
	if v := os.Getenv("FOLIO_REFRESH"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := folio.NewClient(baseURL)

	printOnce(ctx, client, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printOnce(ctx, client, logger)
		case <-ctx.Done():
			fmt.Println("\nshutdown")
			return
		}
	}
}

func printOnce(ctx context.Context, client *folio.Client, logger *slog.Logger) {
	sum, err := client.GetDashboard(ctx)
	if err != nil {
		logger.Error("fetching dashboard", "error", err)
		return
	}
	printDashboard(sum)
}

func printDashboard(sum *dashboard.Summary) {
	// Clear screen and print header.
	fmt.Print("\033[H\033[2J")
	fmt.Printf("Portfolio Dashboard — %s\n\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	fmt.Printf("Invested: %s   Value: %s   P&L: %s (%s)\n",
		dashboard.FormatMoney(sum.KPIs.Invested),
		dashboard.FormatMoney(sum.KPIs.Value),
		dashboard.FormatMoney(sum.KPIs.PnL),
		dashboard.FormatPct(sum.KPIs.PnLPct))
	if sum.KPIs.Top != "" {
		fmt.Printf("Top: %s   Worst: %s\n", sum.KPIs.Top, sum.KPIs.Worst)
	}

	fmt.Printf("\n  %-8s %10s %10s | %9s %8s %9s %9s | %12s %12s %9s | %-9s\n",
		"Symbol", "Qty", "Buy",
		"Price", "Today%", "High", "Low",
		"Invested", "Value", "P&L%", "Source")

	for _, r := range sum.Rows {
		fmt.Printf("  %-8s %10.2f %10.2f | %9s %8s %9s %9s | %12s %12s %9s | %-9s\n",
			r.Symbol, r.Quantity, r.BuyPrice,
			dashboard.FormatPrice(r.Snap.Price),
			dashboard.FormatPct(r.Snap.TodayPct),
			dashboard.FormatPrice(r.Snap.DayMax),
			dashboard.FormatPrice(r.Snap.DayMin),
			dashboard.FormatMoney(r.Invested),
			dashboard.FormatMoney(r.Value),
			dashboard.FormatPct(r.PnLPct),
			r.Source)
	}
	fmt.Println()
}
