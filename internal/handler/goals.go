package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradejournal/internal/goals"
	"tradejournal/internal/models"
	"tradejournal/internal/repository"
)

type GoalHandler struct {
	Repo   repository.Repository
	Engine *goals.Engine
}

func (h *GoalHandler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/goals")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.remove)
	g.POST("/recalc", h.recalc)
}

type createGoalRequest struct {
	Type        string  `json:"type"`
	Period      string  `json:"period"`
	TargetValue float64 `json:"target_value"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	WindowDays  int     `json:"window_days"`
}

func (h *GoalHandler) create(c *gin.Context) {
	var req createGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	known := false
	for _, t := range models.GoalTypes() {
		if t == req.Type {
			known = true
			break
		}
	}
	if !known {
		Error(c, http.StatusBadRequest, "unknown goal type", nil)
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid start_date", nil)
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil || end.Before(start) {
		Error(c, http.StatusBadRequest, "invalid end_date", nil)
		return
	}
	if req.Type == models.GoalRollingWindowPnL && req.WindowDays <= 0 {
		Error(c, http.StatusBadRequest, "window_days required for rolling window goals", nil)
		return
	}
	period := strings.TrimSpace(req.Period)
	if period == "" {
		period = "custom"
	}
	userID := authedUserID(c)
	item := &models.Goal{
		UserID:      userID,
		Type:        req.Type,
		Period:      period,
		TargetValue: req.TargetValue,
		StartDate:   start.UTC(),
		EndDate:     end.UTC(),
		WindowDays:  req.WindowDays,
	}
	if err := h.Repo.InsertGoal(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	// Seed CurrentValue right away instead of waiting for the next trade.
	if err := h.Engine.Recalc(c.Request.Context(), userID); err == nil {
		if fresh, err := h.Repo.GetGoalByID(c.Request.Context(), userID, item.ID); err == nil && fresh != nil {
			item = fresh
		}
	}
	Ok(c, item, nil)
}

func (h *GoalHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListGoalsParams{
		UserID:  authedUserID(c),
		Limit:   limit,
		Offset:  offset,
		OrderBy: "created_at",
		Asc:     boolPtr(false),
	}
	if v := strings.TrimSpace(c.Query("type")); v != "" {
		params.Type = &v
	}
	items, err := h.Repo.ListGoals(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *GoalHandler) get(c *gin.Context) {
	item, err := h.Repo.GetGoalByID(c.Request.Context(), authedUserID(c), uint64Param(c, "id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "goal not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *GoalHandler) remove(c *gin.Context) {
	if err := h.Repo.DeleteGoal(c.Request.Context(), authedUserID(c), uint64Param(c, "id")); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"deleted": true}, nil)
}

// recalc forces a synchronous recalculation, bypassing the debounce.
func (h *GoalHandler) recalc(c *gin.Context) {
	userID := authedUserID(c)
	if err := h.Engine.Recalc(c.Request.Context(), userID); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	items, err := h.Repo.ListGoals(c.Request.Context(), repository.ListGoalsParams{UserID: userID})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
