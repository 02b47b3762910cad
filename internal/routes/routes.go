package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"venue-booking-backend/internal/config"
	handler "venue-booking-backend/internal/handlers"
	"venue-booking-backend/internal/mailer"
	"venue-booking-backend/internal/mercadopago"
	"venue-booking-backend/internal/repository"
	"venue-booking-backend/internal/services/credentials"
	service "venue-booking-backend/internal/services/reconciliation"
	"venue-booking-backend/internal/services/recovery"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB) {
	reservationRepo := repository.NewReservationRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	runRepo := repository.NewSyncRunRepository(db)

	resolver := credentials.NewResolver(credentialRepo)
	client := mercadopago.NewClient()

	reconService := service.NewService(
		reservationRepo,
		runRepo,
		resolver,
		client,
		config.GetRedisLock(),
	)
	scanner := recovery.NewScanner(reservationRepo, mailer.NewSMTPSender())

	syncHandler := handler.NewSyncHandler(reconService)
	webhookHandler := handler.NewWebhookHandler(reconService)
	statusHandler := handler.NewPaymentStatusHandler(reconService)
	recoveryHandler := handler.NewRecoveryHandler(scanner)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Pull-based sync
	sync := api.Group("/sync")
	sync.POST("/run", syncHandler.Run)
	sync.GET("/runs", syncHandler.Runs)

	// Processor push channel. Registered for any method so unsupported
	// methods get a 405 inside the handler.
	api.Any("/webhooks/mercadopago", webhookHandler.Handle)

	// Single-transaction status check
	api.GET("/payments/:id/status", statusHandler.Status)

	// Abandonment scan trigger
	api.POST("/recovery/scan", recoveryHandler.Scan)
}
