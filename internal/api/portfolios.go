package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

func (c *Client) ListPortfolios(ctx context.Context) ([]Portfolio, error) {
	var out []Portfolio
	if err := c.do(ctx, http.MethodGet, "/api/portfolios/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePortfolio(ctx context.Context, in PortfolioCreate) (*Portfolio, error) {
	var out Portfolio
	if err := c.do(ctx, http.MethodPost, "/api/portfolios/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPortfolio returns the portfolio with market data for every holding.
func (c *Client) GetPortfolio(ctx context.Context, id int64) (*Portfolio, error) {
	var out Portfolio
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/portfolios/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePortfolio(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/portfolios/%d", id), nil, nil)
}

func (c *Client) AddHolding(ctx context.Context, portfolioID int64, in HoldingCreate) (*Holding, error) {
	var out Holding
	path := fmt.Sprintf("/api/portfolios/%d/holdings", portfolioID)
	if err := c.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateHolding sets a holding's quantity. The backend takes it as a query
// parameter.
func (c *Client) UpdateHolding(ctx context.Context, holdingID int64, quantity decimal.Decimal) (*Holding, error) {
	var out Holding
	path := fmt.Sprintf("/api/portfolios/holdings/%d?quantity=%s", holdingID, url.QueryEscape(quantity.String()))
	if err := c.do(ctx, http.MethodPatch, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveHolding(ctx context.Context, holdingID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/portfolios/holdings/%d", holdingID), nil, nil)
}

// SearchStocks looks up supported tickers by symbol or name. A blank query
// returns no results without calling the backend.
func (c *Client) SearchStocks(ctx context.Context, query string) ([]Stock, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Stock{}, nil
	}
	var out []Stock
	path := "/api/search/stocks/?query=" + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzePortfolio asks the backend's agent to explain the portfolio's
// performance.
func (c *Client) AnalyzePortfolio(ctx context.Context, portfolioID int64) (*Analysis, error) {
	var out Analysis
	body := map[string]int64{"portfolio_id": portfolioID}
	if err := c.do(ctx, http.MethodPost, "/api/agent/explain-performance", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AccountSummary describes what DeleteAccount would remove.
func (c *Client) AccountSummary(ctx context.Context) (*AccountSummary, error) {
	var out AccountSummary
	if err := c.do(ctx, http.MethodGet, "/api/account/data-summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAccount permanently removes the user's data and account.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/account/", nil, nil)
}
