package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"venue-booking-backend/internal/services/credentials"
	service "venue-booking-backend/internal/services/reconciliation"
)

type PaymentStatusHandler struct {
	service *service.Service
}

func NewPaymentStatusHandler(s *service.Service) *PaymentStatusHandler {
	return &PaymentStatusHandler{service: s}
}

// Status reports the processor-side state for a reservation identifier.
// Transient inconsistency (payment not created or not yet visible) comes
// back as a successful pending payload, never a 5xx.
func (h *PaymentStatusHandler) Status(c *gin.Context) {
	identifier := c.Param("id")
	tenantID := c.Query("tenantId")

	result, err := h.service.PaymentStatus(c.Request.Context(), identifier, tenantID)
	if err != nil {
		var cfgErr *credentials.ConfigurationError
		switch {
		case errors.Is(err, service.ErrReservationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
		case errors.As(err, &cfgErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": cfgErr.Error()})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment provider unavailable, retry later"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
