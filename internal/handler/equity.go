package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradejournal/internal/equity"
	"tradejournal/internal/repository"
)

type EquityHandler struct {
	Repo    repository.Repository
	Builder *equity.Builder
}

func (h *EquityHandler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/equity")
	g.GET("", h.series)
	g.GET("/validate", h.validate)
	g.POST("/rebuild", h.rebuild)
}

func (h *EquityHandler) series(c *gin.Context) {
	params := repository.ListDailyEquityParams{
		From:  timeQuery(c, "from"),
		Until: timeQuery(c, "until"),
		Limit: intQuery(c, "limit", 0),
	}
	items, err := h.Repo.ListDailyEquity(c.Request.Context(), authedUserID(c), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *EquityHandler) validate(c *gin.Context) {
	report, err := h.Builder.Validate(c.Request.Context(), authedUserID(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, report, map[string]any{"clean": report.Clean()})
}

// rebuild drops and recomputes the caller's series, optionally from a date.
func (h *EquityHandler) rebuild(c *gin.Context) {
	from := timeQuery(c, "from")
	if err := h.Builder.Rebuild(c.Request.Context(), authedUserID(c), from); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"rebuilt": true}, nil)
}
