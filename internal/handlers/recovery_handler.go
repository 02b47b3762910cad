package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"venue-booking-backend/internal/services/recovery"
)

type RecoveryHandler struct {
	scanner *recovery.Scanner
}

func NewRecoveryHandler(s *recovery.Scanner) *RecoveryHandler {
	return &RecoveryHandler{scanner: s}
}

// Scan triggers one abandonment scan. Per-record failures are reported as a
// count, not as a request failure.
func (h *RecoveryHandler) Scan(c *gin.Context) {
	result, err := h.scanner.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
