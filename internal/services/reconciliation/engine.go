package reconciliation

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"venue-booking-backend/internal/config"
	"venue-booking-backend/internal/mercadopago"
	"venue-booking-backend/internal/models"
)

// ReservationUpdate is one pending store write: absolute field values only,
// so interleaved webhook and pull runs stay correct.
type ReservationUpdate struct {
	ReservationID string
	Fields        map[string]interface{}
}

// Outcome is the per-run accounting. Skipped counts transactions without an
// external reference; Unmatched counts references with no reservation.
type Outcome struct {
	Processed int
	Updated   int
	Skipped   int
	Unmatched int
	Failed    int
}

type Engine struct {
	store  ReservationStore
	logger *logrus.Logger
}

func NewEngine(store ReservationStore) *Engine {
	return &Engine{store: store, logger: config.GetLogger()}
}

// mapProcessorStatus narrows the processor status onto the internal state
// machine. Approved and refunded/cancelled are authoritative; anything else
// leaves the internal status untouched (financial fields still mirror).
func mapProcessorStatus(processorStatus, internalStatus string) string {
	switch processorStatus {
	case mercadopago.StatusApproved:
		return models.ReservationStatusConfirmed
	case mercadopago.StatusRefunded, mercadopago.StatusCancelled:
		return models.ReservationStatusCancelled
	default:
		return internalStatus
	}
}

// ComputeUpdate diffs the reservation against processor-reported truth and
// returns the field set that actually changes. Returns (nil, false) when the
// record is already reconciled to this transaction, so re-running against an
// unchanged transaction set issues zero writes.
func (e *Engine) ComputeUpdate(reservation *models.Reservation, payment *mercadopago.Payment, now time.Time) (map[string]interface{}, bool) {
	fields := map[string]interface{}{}

	if status := mapProcessorStatus(payment.Status, reservation.Status); status != reservation.Status {
		fields["status"] = status
	}
	if payment.Status != reservation.ProcessorStatus {
		fields["processor_status"] = payment.Status
	}
	if payment.StatusDetail != reservation.ProcessorStatusDetail {
		fields["processor_status_detail"] = payment.StatusDetail
	}
	if fee := payment.FeeTotal(); fee != reservation.ProcessorFee {
		fields["processor_fee"] = fee
	}
	if net := payment.TransactionDetails.NetReceivedAmount; net != reservation.NetReceived {
		fields["net_received"] = net
	}
	if payment.PaymentMethodID != reservation.PaymentMethodDetail {
		fields["payment_method_detail"] = payment.PaymentMethodID
	}
	if payment.PaymentTypeID != reservation.PaymentType {
		fields["payment_type"] = payment.PaymentTypeID
	}
	if payment.Installments != reservation.Installments {
		fields["installments"] = payment.Installments
	}
	if release := parseReleaseDate(payment.MoneyReleaseDate); release != nil {
		if reservation.ReleaseDate == nil || !reservation.ReleaseDate.Equal(*release) {
			fields["release_date"] = *release
		}
	}
	if len(payment.Raw) > 0 && !bytes.Equal([]byte(reservation.ProcessorPayload), payment.Raw) {
		fields["processor_payload"] = []byte(payment.Raw)
	}
	if !reservation.IsFinanciallyReconciled {
		fields["is_financially_reconciled"] = true
	}

	if len(fields) == 0 {
		return nil, false
	}

	fields["is_financially_reconciled"] = true
	fields["last_reconciled_at"] = now
	return fields, true
}

// Reconcile computes the pending update set for a fetched transaction batch.
// Per-record failures are isolated: a broken record is counted and skipped,
// the rest of the batch proceeds.
func (e *Engine) Reconcile(ctx context.Context, payments []mercadopago.Payment, now time.Time) ([]ReservationUpdate, Outcome) {
	var updates []ReservationUpdate
	var outcome Outcome
	claimed := map[string]bool{}

	for i := range payments {
		payment := &payments[i]
		outcome.Processed++

		if payment.ExternalReference == "" {
			outcome.Skipped++
			continue
		}

		// A reference can appear more than once in a fetched batch (e.g. a
		// rejected retry next to the approved payment). The first occurrence
		// claims the reservation; with the newest-first fetch order that is
		// the latest transaction, and every update diffs against the same
		// pre-run snapshot, so a later duplicate would overwrite it.
		if claimed[payment.ExternalReference] {
			outcome.Skipped++
			continue
		}

		reservation, err := e.store.GetByID(ctx, payment.ExternalReference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome.Unmatched++
				continue
			}
			outcome.Failed++
			config.LogError(e.logger, "reconciliation", "Reconcile", "reservation lookup failed",
				map[string]string{"externalReference": payment.ExternalReference}, err)
			continue
		}

		claimed[payment.ExternalReference] = true

		fields, changed := e.ComputeUpdate(reservation, payment, now)
		if !changed {
			continue
		}
		updates = append(updates, ReservationUpdate{
			ReservationID: reservation.ID,
			Fields:        fields,
		})
		outcome.Updated++
	}

	if outcome.Skipped > 0 {
		e.logger.WithFields(logrus.Fields{
			"module":  "reconciliation",
			"skipped": outcome.Skipped,
		}).Info("transactions without external reference skipped")
	}

	return updates, outcome
}

func parseReleaseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-07:00"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
