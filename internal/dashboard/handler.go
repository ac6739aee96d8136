// Package dashboard serves the signed-in user's portfolio views as JSON,
// forwarding each request to the backend API with the session's token.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"xfoli-web/internal/api"
	"xfoli-web/internal/logger"
	"xfoli-web/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Backend is the part of the API client the dashboard uses.
type Backend interface {
	ListPortfolios(ctx context.Context) ([]api.Portfolio, error)
	CreatePortfolio(ctx context.Context, in api.PortfolioCreate) (*api.Portfolio, error)
	GetPortfolio(ctx context.Context, id int64) (*api.Portfolio, error)
	DeletePortfolio(ctx context.Context, id int64) error
	AddHolding(ctx context.Context, portfolioID int64, in api.HoldingCreate) (*api.Holding, error)
	UpdateHolding(ctx context.Context, holdingID int64, quantity decimal.Decimal) (*api.Holding, error)
	RemoveHolding(ctx context.Context, holdingID int64) error
	SearchStocks(ctx context.Context, query string) ([]api.Stock, error)
	AnalyzePortfolio(ctx context.Context, portfolioID int64) (*api.Analysis, error)
	AccountSummary(ctx context.Context) (*api.AccountSummary, error)
	DeleteAccount(ctx context.Context) error
}

var _ Backend = (*api.Client)(nil)

type Handler struct {
	backend Backend
}

func NewHandler(backend Backend) *Handler {
	return &Handler{backend: backend}
}

// RegisterRoutes mounts the dashboard API on a group that is already
// protected by the session middleware.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/me", h.me)

	g.GET("/portfolios", h.listPortfolios)
	g.POST("/portfolios", h.createPortfolio)
	g.GET("/portfolios/:id", h.getPortfolio)
	g.DELETE("/portfolios/:id", h.deletePortfolio)
	g.POST("/portfolios/:id/holdings", h.addHolding)
	g.POST("/portfolios/:id/analysis", h.analyzePortfolio)

	g.PATCH("/holdings/:id", h.updateHolding)
	g.DELETE("/holdings/:id", h.removeHolding)

	g.GET("/stocks", h.searchStocks)

	g.GET("/account", h.accountSummary)
	g.DELETE("/account", h.deleteAccount)
}

// apiContext carries the session's access token to the API client.
func apiContext(c *gin.Context) context.Context {
	return api.WithAccessToken(c.Request.Context(), c.GetString(middleware.AccessTokenKey))
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": c.GetString(middleware.UserIDKey),
	})
}

func (h *Handler) listPortfolios(c *gin.Context) {
	out, err := h.backend.ListPortfolios(apiContext(c))
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createPortfolio(c *gin.Context) {
	var in api.PortfolioCreate
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "portfolio name is required"})
		return
	}
	in.Name = strings.TrimSpace(in.Name)

	out, err := h.backend.CreatePortfolio(apiContext(c), in)
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// getPortfolio returns the portfolio with its holdings ordered by the
// optional sort and dir query parameters.
func (h *Handler) getPortfolio(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	out, err := h.backend.GetPortfolio(apiContext(c), id)
	if err != nil {
		backendError(c, err)
		return
	}
	if field := c.Query("sort"); field != "" {
		out.Holdings = api.SortHoldings(out.Holdings, field, c.DefaultQuery("dir", "asc"))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) deletePortfolio(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.backend.DeletePortfolio(apiContext(c), id); err != nil {
		backendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type holdingRequest struct {
	Ticker   string          `json:"ticker"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (h *Handler) addHolding(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req holdingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.Ticker == "" || !req.Quantity.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker and a positive quantity are required"})
		return
	}

	out, err := h.backend.AddHolding(apiContext(c), id, api.HoldingCreate{Ticker: req.Ticker, Quantity: req.Quantity})
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) updateHolding(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Quantity decimal.Decimal `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !req.Quantity.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be positive"})
		return
	}

	out, err := h.backend.UpdateHolding(apiContext(c), id, req.Quantity)
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) removeHolding(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.backend.RemoveHolding(apiContext(c), id); err != nil {
		backendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) searchStocks(c *gin.Context) {
	out, err := h.backend.SearchStocks(apiContext(c), c.Query("query"))
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) analyzePortfolio(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := h.backend.AnalyzePortfolio(apiContext(c), id)
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) accountSummary(c *gin.Context) {
	out, err := h.backend.AccountSummary(apiContext(c))
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) deleteAccount(c *gin.Context) {
	if err := h.backend.DeleteAccount(apiContext(c)); err != nil {
		backendError(c, err)
		return
	}
	logger.Info("account deleted", map[string]any{
		"user_id": c.GetString(middleware.UserIDKey),
	})
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// backendError maps API client errors onto responses. Backend statuses are
// passed through; an unreachable backend is a bad gateway.
func backendError(c *gin.Context, err error) {
	if ae, ok := api.AsAPIError(err); ok {
		c.JSON(ae.Status, gin.H{"error": ae.Detail})
		return
	}

	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, api.ErrBackendUnavailable):
		status = http.StatusBadGateway
		msg = "backend unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		msg = "backend timed out"
	}

	logger.Error("backend call failed", map[string]any{
		"path":  c.FullPath(),
		"error": err.Error(),
	})
	c.JSON(status, gin.H{"error": msg})
}
