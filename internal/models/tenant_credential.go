package models

import "time"

// TenantCredential maps an onboarded seller to their Mercado Pago access
// token. Written by the onboarding flow; read-only here. A tenant without a
// row (or with an empty token) bills under the platform default credential.
type TenantCredential struct {
	TenantID    string `gorm:"primaryKey"`
	AccessToken string
	PublicKey   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
