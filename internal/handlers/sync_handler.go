package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"venue-booking-backend/internal/models"
	"venue-booking-backend/internal/services/credentials"
	service "venue-booking-backend/internal/services/reconciliation"
)

type SyncHandler struct {
	service *service.Service
}

func NewSyncHandler(s *service.Service) *SyncHandler {
	return &SyncHandler{service: s}
}

type runSyncRequest struct {
	TenantID  string `json:"tenantId"`
	BeginTime string `json:"beginTime"`
	EndTime   string `json:"endTime"`
}

// Run triggers one pull-based reconciliation run. The response always
// carries counts, even for partial runs; only configuration failures get an
// error status.
func (h *SyncHandler) Run(c *gin.Context) {
	var payload runSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
	}

	end := time.Now()
	if payload.EndTime != "" {
		parsed, err := time.Parse(time.RFC3339, payload.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endTime, expected RFC 3339"})
			return
		}
		end = parsed
	}
	begin := end.Add(-24 * time.Hour)
	if payload.BeginTime != "" {
		parsed, err := time.Parse(time.RFC3339, payload.BeginTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid beginTime, expected RFC 3339"})
			return
		}
		begin = parsed
	}
	if !begin.Before(end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "beginTime must be before endTime"})
		return
	}

	run, err := h.service.RunSync(c.Request.Context(), payload.TenantID, begin, end, "manual")
	if err != nil {
		var cfgErr *credentials.ConfigurationError
		switch {
		case errors.As(err, &cfgErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": cfgErr.Error()})
		case errors.Is(err, service.ErrRunInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "sync already running"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed": run.Processed,
		"updated":   run.Updated,
		"message":   runMessage(run),
	})
}

// Runs lists recent sync run audit records.
func (h *SyncHandler) Runs(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

func runMessage(run *models.SyncRun) string {
	switch run.Status {
	case models.SyncRunStatusSuccess:
		return fmt.Sprintf("sync completed: %d transactions processed, %d reservations updated", run.Processed, run.Updated)
	case models.SyncRunStatusPartial:
		return fmt.Sprintf("sync partially completed: %d processed, %d updated, %d failed", run.Processed, run.Updated, run.Failed)
	default:
		return "sync failed; will retry on next run"
	}
}
