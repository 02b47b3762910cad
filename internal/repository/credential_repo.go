package repository

import (
	"context"

	"gorm.io/gorm"

	"venue-booking-backend/internal/models"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// GetByTenantID returns (nil, nil) when the tenant has no stored credential;
// callers fall back to the platform default.
func (r *CredentialRepository) GetByTenantID(ctx context.Context, tenantID string) (*models.TenantCredential, error) {
	var cred models.TenantCredential
	err := r.db.WithContext(ctx).First(&cred, "tenant_id = ?", tenantID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}
