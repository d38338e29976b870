package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
	"tradejournal/internal/repository"
	"tradejournal/internal/service"
)

type TradeHandler struct {
	Service *service.TradeService
}

func (h *TradeHandler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/trades")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
	g.POST("/:id/restore", h.restore)
}

type tradeDTO struct {
	models.Trade
	PnL *decimal.Decimal `json:"pnl"`
}

func (h *TradeHandler) dto(item models.Trade) tradeDTO {
	return tradeDTO{Trade: item, PnL: h.Service.RealizedPnL(item)}
}

func (h *TradeHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListTradesParams{
		UserID:  authedUserID(c),
		Limit:   limit,
		Offset:  offset,
		Since:   timeQuery(c, "since"),
		Until:   timeQuery(c, "until"),
		TagIDs:  uint64ListQuery(c, "tag_ids"),
		OrderBy: "entry_at",
		Asc:     boolPtr(false),
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		params.Status = &v
	}
	if c.Query("include_deleted") == "true" {
		params.IncludeDeleted = true
	}
	items, total, err := h.Service.List(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]tradeDTO, 0, len(items))
	for _, item := range items {
		out = append(out, h.dto(item))
	}
	Ok(c, out, paginationMeta(limit, offset, total))
}

func (h *TradeHandler) create(c *gin.Context) {
	var req service.TradeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Service.Create(c.Request.Context(), authedUserID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	Ok(c, h.dto(*item), nil)
}

func (h *TradeHandler) get(c *gin.Context) {
	item, err := h.Service.Get(c.Request.Context(), authedUserID(c), uint64Param(c, "id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	Ok(c, h.dto(*item), nil)
}

func (h *TradeHandler) update(c *gin.Context) {
	var req service.TradeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Service.Update(c.Request.Context(), authedUserID(c), uint64Param(c, "id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	Ok(c, h.dto(*item), nil)
}

func (h *TradeHandler) remove(c *gin.Context) {
	if err := h.Service.SoftDelete(c.Request.Context(), authedUserID(c), uint64Param(c, "id")); err != nil {
		h.writeError(c, err)
		return
	}
	Ok(c, gin.H{"deleted": true}, nil)
}

func (h *TradeHandler) restore(c *gin.Context) {
	item, err := h.Service.Restore(c.Request.Context(), authedUserID(c), uint64Param(c, "id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	Ok(c, h.dto(*item), nil)
}

func (h *TradeHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTradeNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrRiskBlocked):
		Error(c, http.StatusForbidden, err.Error(), map[string]any{"code": "RISK_BLOCKED"})
	case errors.Is(err, service.ErrTradeRiskExceeded):
		Error(c, http.StatusForbidden, err.Error(), map[string]any{"code": "TRADE_RISK_EXCEEDED"})
	case errors.Is(err, service.ErrExitFieldsMismatch),
		errors.Is(err, service.ErrInvalidDirection),
		errors.Is(err, service.ErrInstrumentNotFound):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	default:
		Error(c, http.StatusBadGateway, err.Error(), nil)
	}
}
