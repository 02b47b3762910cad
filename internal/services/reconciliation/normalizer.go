package reconciliation

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"venue-booking-backend/internal/models"
)

// legacyPrefixes is the ordered table of recognized payment-reference
// prefixes, longest first so "PIX-" can never shadow a longer entry added
// later. Matching is case-sensitive and anchored at the start.
var legacyPrefixes = []string{
	"CARD_",
	"PIX-",
	"MP-",
}

// StripLegacyPrefix removes the first matching legacy prefix from a stored
// payment reference, yielding the bare processor id.
func StripLegacyPrefix(paymentID string) string {
	for _, prefix := range legacyPrefixes {
		if strings.HasPrefix(paymentID, prefix) {
			return paymentID[len(prefix):]
		}
	}
	return paymentID
}

// ReservationStore is the reservation lookup surface the normalizer and
// engine need.
type ReservationStore interface {
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
}

// NormalizedRef is the canonical resolution of a caller-supplied identifier:
// the processor transaction id plus the tenant whose credential applies.
type NormalizedRef struct {
	ProcessorID string
	TenantID    string
}

type Normalizer struct {
	store ReservationStore
}

func NewNormalizer(store ReservationStore) *Normalizer {
	return &Normalizer{store: store}
}

// Normalize maps a reservation identifier to the processor transaction id.
// A numeric identifier is already the processor id and needs no lookup.
// A store key is resolved through the reservation: missing reservation is
// ErrReservationNotFound, a reservation without a payment yet is
// ErrPaymentNotCreated. When the reservation carries a tenant and the caller
// supplied none, the reservation's tenant is adopted.
func (n *Normalizer) Normalize(ctx context.Context, identifier string, tenantID string) (NormalizedRef, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return NormalizedRef{}, ErrReservationNotFound
	}

	if isNumeric(identifier) {
		return NormalizedRef{ProcessorID: identifier, TenantID: tenantID}, nil
	}

	reservation, err := n.store.GetByID(ctx, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NormalizedRef{}, ErrReservationNotFound
		}
		return NormalizedRef{}, &TransientProviderError{Op: "reservation lookup", Err: err}
	}

	if strings.TrimSpace(reservation.PaymentID) == "" {
		return NormalizedRef{}, ErrPaymentNotCreated
	}

	if tenantID == "" && reservation.TenantID != "" {
		tenantID = reservation.TenantID
	}

	return NormalizedRef{
		ProcessorID: StripLegacyPrefix(reservation.PaymentID),
		TenantID:    tenantID,
	}, nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
