package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradejournal/internal/equity"
	"tradejournal/internal/models"
	"tradejournal/internal/repository"
)

type SettingsHandler struct {
	Repo    repository.Repository
	Builder *equity.Builder
}

func (h *SettingsHandler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/settings")
	g.GET("", h.get)
	g.PUT("", h.put)
}

func (h *SettingsHandler) get(c *gin.Context) {
	item, err := h.Repo.GetJournalSettings(c.Request.Context(), authedUserID(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "settings not created yet", nil)
		return
	}
	Ok(c, item, nil)
}

type putSettingsRequest struct {
	InitialEquity        decimal.Decimal `json:"initial_equity"`
	RiskPerTradePct      float64         `json:"risk_per_trade_pct"`
	MaxDailyLossPct      float64         `json:"max_daily_loss_pct"`
	MaxConsecutiveLosses int             `json:"max_consecutive_losses"`
}

func (h *SettingsHandler) put(c *gin.Context) {
	var req putSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if !req.InitialEquity.IsPositive() {
		Error(c, http.StatusBadRequest, "initial_equity must be positive", nil)
		return
	}
	userID := authedUserID(c)
	item, err := h.Repo.GetJournalSettings(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	rebuild := false
	if item == nil {
		item = &models.JournalSettings{UserID: userID}
		rebuild = true
	} else if !item.InitialEquity.Equal(req.InitialEquity) {
		rebuild = true
	}
	item.InitialEquity = req.InitialEquity
	item.RiskPerTradePct = req.RiskPerTradePct
	item.MaxDailyLossPct = req.MaxDailyLossPct
	item.MaxConsecutiveLosses = req.MaxConsecutiveLosses
	if err := h.Repo.SaveJournalSettings(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	// A changed starting balance shifts every cumulative figure.
	if rebuild && h.Builder != nil {
		if err := h.Builder.Rebuild(c.Request.Context(), userID, nil); err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
	}
	Ok(c, item, nil)
}
