package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradejournal/internal/export"
	"tradejournal/internal/models"
	"tradejournal/internal/repository"
)

type ExportHandler struct {
	Service *export.Service
	Repo    repository.Repository
}

func (h *ExportHandler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/exports")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/download", h.download)
}

// exportJobDTO hides the payload and raw token material; listings only carry
// token metadata.
type exportJobDTO struct {
	ID            uint64     `json:"id"`
	Type          string     `json:"type"`
	Format        string     `json:"format"`
	RequestID     string     `json:"request_id"`
	Status        string     `json:"status"`
	AttemptCount  int        `json:"attempt_count"`
	Error         string     `json:"error,omitempty"`
	Filename      string     `json:"filename,omitempty"`
	ContentType   string     `json:"content_type,omitempty"`
	TokenExpires  *time.Time `json:"token_expires_at"`
	TokenConsumed bool       `json:"token_consumed"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

func exportDTO(job models.ExportJob) exportJobDTO {
	return exportJobDTO{
		ID:            job.ID,
		Type:          job.Type,
		Format:        job.Format,
		RequestID:     job.RequestID,
		Status:        job.Status,
		AttemptCount:  job.AttemptCount,
		Error:         job.Error,
		Filename:      job.Filename,
		ContentType:   job.ContentType,
		TokenExpires:  job.DownloadTokenExpiresAt,
		TokenConsumed: job.DownloadTokenConsumedAt != nil,
		CreatedAt:     job.CreatedAt,
		CompletedAt:   job.CompletedAt,
	}
}

type createExportRequest struct {
	Type   string        `json:"type"`
	Format string        `json:"format"`
	Params export.Params `json:"params"`
}

func (h *ExportHandler) create(c *gin.Context) {
	var req createExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	res, err := h.Service.Enqueue(c.Request.Context(), authedUserID(c), req.Type, req.Format, req.Params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	Ok(c, gin.H{
		"job":   exportDTO(res.Job),
		"token": res.Token,
	}, nil)
}

func (h *ExportHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	userID := authedUserID(c)
	params := repository.ListExportJobsParams{
		UserID:  &userID,
		Limit:   limit,
		Offset:  offset,
		OrderBy: "created_at",
		Asc:     boolPtr(false),
	}
	if v := c.Query("status"); v != "" {
		params.Status = &v
	}
	items, err := h.Repo.ListExportJobs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountExportJobs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]exportJobDTO, 0, len(items))
	for _, item := range items {
		out = append(out, exportDTO(item))
	}
	Ok(c, out, paginationMeta(limit, offset, total))
}

func (h *ExportHandler) get(c *gin.Context) {
	job, err := h.Repo.GetExportJob(c.Request.Context(), authedUserID(c), uint64Param(c, "id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if job == nil {
		Error(c, http.StatusNotFound, "export job not found", nil)
		return
	}
	Ok(c, exportDTO(*job), nil)
}

// download redeems the one-time token and streams the stored payload with
// the job's original content type and filename.
func (h *ExportHandler) download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		Error(c, http.StatusBadRequest, "missing token", nil)
		return
	}
	job, err := h.Service.Redeem(c.Request.Context(), authedUserID(c), uint64Param(c, "id"), token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	payload, err := base64.StdEncoding.DecodeString(job.PayloadBase64)
	if err != nil {
		Error(c, http.StatusInternalServerError, "stored payload is corrupt", nil)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.Filename))
	c.Data(http.StatusOK, job.ContentType, payload)
}

func (h *ExportHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, export.ErrInvalidType), errors.Is(err, export.ErrInvalidFormat):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, export.ErrRateLimited):
		Error(c, http.StatusTooManyRequests, err.Error(), nil)
	case errors.Is(err, export.ErrJobNotReady):
		Error(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, export.ErrTokenInvalid):
		Error(c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, export.ErrTokenExpired):
		Error(c, http.StatusGone, err.Error(), nil)
	case errors.Is(err, export.ErrTokenConsumed):
		Error(c, http.StatusGone, err.Error(), nil)
	default:
		Error(c, http.StatusBadGateway, err.Error(), nil)
	}
}
