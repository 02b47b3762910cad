package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"venue-booking-backend/internal/models"
)

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Expose DB if needed
func (r *ReservationRepository) DB() *gorm.DB {
	return r.db
}

// GetByID fetch a single reservation by its store key
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindAbandoned returns reservations stuck in a pre-payment state within the
// [now-maxAge, now-minAge] creation window that have not been notified yet
// and have a contact address to notify.
func (r *ReservationRepository) FindAbandoned(ctx context.Context, now time.Time, minAge, maxAge time.Duration) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.ReservationStatusPending, models.ReservationStatusWaitingPayment}).
		Where("created_at BETWEEN ? AND ?", now.Add(-maxAge), now.Add(-minAge)).
		Where("recovery_sent = ?", false).
		Where("guest_email <> ''").
		Order("created_at ASC").
		Find(&reservations).Error
	return reservations, err
}

// MarkRecoverySent persists the monotonic notified flag with its timestamp.
func (r *ReservationRepository) MarkRecoverySent(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"recovery_sent":    true,
			"recovery_sent_at": at,
		}).Error
}
