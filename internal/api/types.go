package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Portfolio is a named collection of holdings. Totals are only present on
// the detail view, where the backend prices every holding.
type Portfolio struct {
	ID                    int64               `json:"id"`
	Name                  string              `json:"name"`
	UserID                string              `json:"user_id,omitempty"`
	Holdings              []Holding           `json:"holdings"`
	TotalValue            decimal.NullDecimal `json:"total_value"`
	TotalDayChangePercent decimal.NullDecimal `json:"total_day_change_percent"`
	TotalDayChange        decimal.NullDecimal `json:"total_day_change"`
}

// Holding is a position in one ticker. Market data fields are null when the
// quote provider had nothing for the ticker.
type Holding struct {
	ID               int64               `json:"id"`
	Ticker           string              `json:"ticker"`
	Quantity         decimal.Decimal     `json:"quantity"`
	StockName        string              `json:"stock_name,omitempty"`
	CurrentPrice     decimal.NullDecimal `json:"current_price"`
	CurrentValue     decimal.NullDecimal `json:"current_value"`
	DayChangePercent decimal.NullDecimal `json:"day_change_percent"`
	TotalDayChange   decimal.NullDecimal `json:"total_day_change"`
}

type PortfolioCreate struct {
	Name string `json:"name"`
}

type HoldingCreate struct {
	Ticker   string
	Quantity decimal.Decimal
}

// MarshalJSON sends the quantity as a JSON number; the backend parses it
// as a float.
func (h HoldingCreate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Ticker   string          `json:"ticker"`
		Quantity json.RawMessage `json:"quantity"`
	}{
		Ticker:   h.Ticker,
		Quantity: json.RawMessage(h.Quantity.String()),
	})
}

// Stock is a ticker the backend can price.
type Stock struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// Analysis is the AI explanation of a portfolio's performance.
type Analysis struct {
	Analysis string `json:"analysis"`
}

type AccountSummary struct {
	PortfoliosCount  int                `json:"portfolios_count"`
	TotalHoldings    int                `json:"total_holdings"`
	PortfolioDetails []PortfolioSummary `json:"portfolio_details"`
	Warning          string             `json:"warning"`
}

type PortfolioSummary struct {
	Name          string `json:"name"`
	HoldingsCount int    `json:"holdings_count"`
	CreatedAt     int64  `json:"created_at"`
}
