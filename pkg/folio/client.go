// Package folio provides a Go client for the folio-server HTTP API.
package folio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"folio/internal/dashboard"
	"folio/internal/domain"
	"folio/internal/httpapi"
)

// Client calls the folio-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetPrice retrieves the current snapshot for one symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (*httpapi.QuoteJSON, error) {
	var out httpapi.QuoteJSON
	if err := c.do(ctx, http.MethodGet, "/api/prices/"+url.PathEscape(symbol), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPrices retrieves snapshots for multiple symbols in one call.
func (c *Client) GetPrices(ctx context.Context, symbols []string) (*httpapi.PricesResponse, error) {
	var out httpapi.PricesResponse
	path := "/api/prices?symbols=" + url.QueryEscape(strings.Join(symbols, ","))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPortfolio retrieves the current holdings.
func (c *Client) GetPortfolio(ctx context.Context) ([]domain.Holding, error) {
	var out httpapi.PortfolioResponse
	if err := c.do(ctx, http.MethodGet, "/api/portfolio", nil, &out); err != nil {
		return nil, err
	}
	return out.Holdings, nil
}

// PutPortfolio replaces the holdings and returns the normalized list.
func (c *Client) PutPortfolio(ctx context.Context, holdings []domain.Holding) ([]domain.Holding, error) {
	var out httpapi.PortfolioResponse
	if err := c.do(ctx, http.MethodPut, "/api/portfolio", holdings, &out); err != nil {
		return nil, err
	}
	return out.Holdings, nil
}

// RemoveHolding removes one symbol from the portfolio.
func (c *Client) RemoveHolding(ctx context.Context, symbol string) ([]domain.Holding, error) {
	var out httpapi.PortfolioResponse
	if err := c.do(ctx, http.MethodDelete, "/api/portfolio/"+url.PathEscape(symbol), nil, &out); err != nil {
		return nil, err
	}
	return out.Holdings, nil
}

// GetDashboard retrieves the full valuation summary.
func (c *Client) GetDashboard(ctx context.Context) (*dashboard.Summary, error) {
	var out dashboard.Summary
	if err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetNews retrieves merged news for the given symbols over the last days.
// days <= 0 uses the server default.
func (c *Client) GetNews(ctx context.Context, symbols []string, days int) (*httpapi.NewsResponse, error) {
	path := "/api/news?symbols=" + url.QueryEscape(strings.Join(symbols, ","))
	if days > 0 {
		path += "&days=" + strconv.Itoa(days)
	}
	var out httpapi.NewsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSeries retrieves the chart series for one symbol.
func (c *Client) GetSeries(ctx context.Context, symbol string) ([]domain.SeriesPoint, error) {
	var out httpapi.SeriesResponse
	if err := c.do(ctx, http.MethodGet, "/api/series/"+url.PathEscape(symbol), nil, &out); err != nil {
		return nil, err
	}
	return out.Points, nil
}

// Select marks a symbol as selected so the server polls it more often.
func (c *Client) Select(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodPut, "/api/selected/"+url.PathEscape(symbol), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
