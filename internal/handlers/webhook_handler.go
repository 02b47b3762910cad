package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"venue-booking-backend/internal/config"
	service "venue-booking-backend/internal/services/reconciliation"
)

// WebhookHandler ingests processor push notifications. The processor retries
// delivery until it sees a 2xx, so receipt is acknowledged before downstream
// reconciliation runs; a downstream failure is only logged and the next
// scheduled pull run corrects the record.
type WebhookHandler struct {
	service *service.Service
	logger  *logrus.Logger
}

func NewWebhookHandler(s *service.Service) *WebhookHandler {
	return &WebhookHandler{service: s, logger: config.GetLogger()}
}

type webhookBody struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
	Resource string `json:"resource"`
}

// Handle is registered for all methods so non-POST deliveries get a 405 the
// processor will not retry.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
		return
	}

	correlationID := c.GetHeader("x-request-id")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	paymentID, ok := h.extractPaymentID(c)
	if !ok {
		// Ingestion-level failure: the body was present but unreadable.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "malformed notification body"})
		return
	}

	// Acknowledge now; retries must not be mistaken for new events.
	c.JSON(http.StatusOK, gin.H{"received": true})

	if paymentID == "" {
		h.logger.WithFields(logrus.Fields{
			"module":         "webhook",
			"correlation_id": correlationID,
		}).Info("notification without payment id acknowledged and ignored")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.service.ReconcileOne(ctx, paymentID, ""); err != nil {
			config.LogError(h.logger, "webhook", "Handle", "downstream reconciliation failed; next pull run will correct it",
				map[string]string{"paymentId": paymentID, "correlation_id": correlationID}, err)
		}
	}()
}

// extractPaymentID supports both notification shapes the processor sends:
// a JSON body with data.id and the legacy topic/id query parameters.
func (h *WebhookHandler) extractPaymentID(c *gin.Context) (string, bool) {
	if id := c.Query("data.id"); id != "" {
		return id, true
	}
	if c.Query("topic") == "payment" && c.Query("id") != "" {
		return c.Query("id"), true
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", false
	}
	if len(raw) == 0 {
		return "", true
	}

	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", false
	}
	if body.Type != "" && body.Type != "payment" {
		return "", true
	}
	if body.Data.ID.String() != "" {
		return body.Data.ID.String(), true
	}
	if body.Resource != "" {
		parts := strings.Split(strings.TrimRight(body.Resource, "/"), "/")
		return parts[len(parts)-1], true
	}
	return "", true
}
