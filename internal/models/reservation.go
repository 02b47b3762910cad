package models

import (
	"time"

	"gorm.io/datatypes"
)

// Reservation statuses. The booking flow creates reservations as pending
// (or waiting_payment for deferred methods such as PIX); reconciliation is
// the only writer of confirmed/cancelled.
const (
	ReservationStatusPending        = "pending"
	ReservationStatusWaitingPayment = "waiting_payment"
	ReservationStatusConfirmed      = "confirmed"
	ReservationStatusCancelled      = "cancelled"
)

type Reservation struct {
	ID       string `gorm:"primaryKey"`
	TenantID string `gorm:"index"`

	GuestName  string
	GuestEmail string
	GuestPhone string

	Amount        float64
	PaymentMethod string
	Status        string `gorm:"index"`

	// PaymentID is the processor-facing reference. Legacy rows carry a
	// booking-channel prefix (e.g. "PIX-123456"); the normalizer strips it.
	PaymentID string `gorm:"index"`

	IsFinanciallyReconciled bool
	LastReconciledAt        *time.Time

	// Mirrored verbatim from the processor on every reconciliation.
	ProcessorStatus       string
	ProcessorStatusDetail string
	ProcessorFee          float64
	NetReceived           float64
	ReleaseDate           *time.Time
	PaymentMethodDetail   string
	PaymentType           string
	Installments          int
	ProcessorPayload      datatypes.JSON

	RecoverySent   bool `gorm:"index"`
	RecoverySentAt *time.Time

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}
