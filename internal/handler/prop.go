package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
	"tradejournal/internal/propeval"
	"tradejournal/internal/repository"
)

type PropHandler struct {
	Repo   repository.Repository
	Engine *propeval.Engine
}

func (h *PropHandler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/prop-evaluations")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/progress", h.progress)
	g.POST("/evaluate", h.evaluate)
}

type createPropRequest struct {
	FirmName           string           `json:"firm_name"`
	AccountSize        decimal.Decimal  `json:"account_size"`
	ProfitTarget       decimal.Decimal  `json:"profit_target"`
	MaxDailyLoss       decimal.Decimal  `json:"max_daily_loss"`
	MaxOverallLoss     decimal.Decimal  `json:"max_overall_loss"`
	Trailing           bool             `json:"trailing"`
	MinTradingDays     int              `json:"min_trading_days"`
	ConsistencyBand    float64          `json:"consistency_band"`
	MaxSingleTradeRisk *decimal.Decimal `json:"max_single_trade_risk"`
}

func (h *PropHandler) create(c *gin.Context) {
	var req createPropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.FirmName == "" || !req.AccountSize.IsPositive() {
		Error(c, http.StatusBadRequest, "firm_name and a positive account_size are required", nil)
		return
	}
	userID := authedUserID(c)
	existing, err := h.Repo.GetActivePropEvaluation(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if existing != nil {
		Error(c, http.StatusConflict, "an active evaluation already exists", nil)
		return
	}
	item := &models.PropEvaluation{
		UserID:             userID,
		FirmName:           req.FirmName,
		Phase:              models.PropPhase1,
		Status:             models.PropStatusActive,
		AccountSize:        req.AccountSize,
		ProfitTarget:       req.ProfitTarget,
		MaxDailyLoss:       req.MaxDailyLoss,
		MaxOverallLoss:     req.MaxOverallLoss,
		Trailing:           req.Trailing,
		MinTradingDays:     req.MinTradingDays,
		ConsistencyBand:    req.ConsistencyBand,
		MaxSingleTradeRisk: req.MaxSingleTradeRisk,
		StartDate:          time.Now().UTC(),
	}
	if err := h.Repo.InsertPropEvaluation(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *PropHandler) list(c *gin.Context) {
	items, err := h.Repo.ListPropEvaluations(c.Request.Context(), authedUserID(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *PropHandler) progress(c *gin.Context) {
	progress, err := h.Engine.ComputeProgress(c.Request.Context(), authedUserID(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if progress == nil {
		Error(c, http.StatusNotFound, "no active evaluation", nil)
		return
	}
	Ok(c, progress, nil)
}

// evaluate applies fail/pass transitions and reports which one happened.
func (h *PropHandler) evaluate(c *gin.Context) {
	action, err := h.Engine.EvaluateAndMaybeRollover(c.Request.Context(), authedUserID(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"action": action}, nil)
}
