package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
	"tradejournal/internal/repository"
)

// CatalogHandler serves the reference data trades point at: instruments and
// per-user tags.
type CatalogHandler struct {
	Repo repository.Repository
}

func (h *CatalogHandler) Register(r gin.IRouter) {
	g := r.Group("/api/v1")
	g.GET("/instruments", h.listInstruments)
	g.POST("/instruments", h.upsertInstrument)
	g.GET("/tags", h.listTags)
	g.POST("/tags", h.upsertTag)
}

func (h *CatalogHandler) listInstruments(c *gin.Context) {
	items, err := h.Repo.ListInstruments(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type upsertInstrumentRequest struct {
	Symbol             string           `json:"symbol"`
	ContractMultiplier *decimal.Decimal `json:"contract_multiplier"`
	Currency           string           `json:"currency"`
	TickSize           *decimal.Decimal `json:"tick_size"`
}

func (h *CatalogHandler) upsertInstrument(c *gin.Context) {
	var req upsertInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		Error(c, http.StatusBadRequest, "symbol is required", nil)
		return
	}
	item := &models.Instrument{
		Symbol:             symbol,
		ContractMultiplier: req.ContractMultiplier,
		Currency:           strings.ToUpper(strings.TrimSpace(req.Currency)),
	}
	if item.Currency == "" {
		item.Currency = "USD"
	}
	if req.TickSize != nil && req.TickSize.IsPositive() {
		item.TickSize = *req.TickSize
	} else {
		item.TickSize = decimal.NewFromFloat(0.01)
	}
	if err := h.Repo.UpsertInstrument(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *CatalogHandler) listTags(c *gin.Context) {
	items, err := h.Repo.ListTags(c.Request.Context(), authedUserID(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type upsertTagRequest struct {
	Name string `json:"name"`
}

func (h *CatalogHandler) upsertTag(c *gin.Context) {
	var req upsertTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		Error(c, http.StatusBadRequest, "name is required", nil)
		return
	}
	item := &models.Tag{UserID: authedUserID(c), Name: name}
	if err := h.Repo.UpsertTag(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}
