package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradejournal/internal/repository"
	"tradejournal/internal/risk"
)

type RiskHandler struct {
	Repo      repository.Repository
	Evaluator *risk.Evaluator
}

func (h *RiskHandler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/risk")
	g.GET("/status", h.status)
	g.GET("/breaches", h.breaches)
}

// status runs a fresh evaluation and reports whether trading is blocked.
func (h *RiskHandler) status(c *gin.Context) {
	userID := authedUserID(c)
	breaches, err := h.Evaluator.Evaluate(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	blocked, err := h.Evaluator.HasActiveHardBreach(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"blocked":  blocked,
		"breaches": breaches,
	}, nil)
}

func (h *RiskHandler) breaches(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	items, err := h.Repo.ListRiskBreaches(c.Request.Context(), authedUserID(c), limit)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
