package reconciliation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-booking-backend/internal/mercadopago"
	"venue-booking-backend/internal/models"
)

func applyFields(r *models.Reservation, fields map[string]interface{}) {
	for key, value := range fields {
		switch key {
		case "status":
			r.Status = value.(string)
		case "processor_status":
			r.ProcessorStatus = value.(string)
		case "processor_status_detail":
			r.ProcessorStatusDetail = value.(string)
		case "processor_fee":
			r.ProcessorFee = value.(float64)
		case "net_received":
			r.NetReceived = value.(float64)
		case "payment_method_detail":
			r.PaymentMethodDetail = value.(string)
		case "payment_type":
			r.PaymentType = value.(string)
		case "installments":
			r.Installments = value.(int)
		case "release_date":
			t := value.(time.Time)
			r.ReleaseDate = &t
		case "processor_payload":
			r.ProcessorPayload = value.([]byte)
		case "is_financially_reconciled":
			r.IsFinanciallyReconciled = value.(bool)
		case "last_reconciled_at":
			t := value.(time.Time)
			r.LastReconciledAt = &t
		}
	}
}

func TestMapProcessorStatus(t *testing.T) {
	tests := []struct {
		processor string
		internal  string
		want      string
	}{
		{"approved", models.ReservationStatusPending, models.ReservationStatusConfirmed},
		{"approved", models.ReservationStatusWaitingPayment, models.ReservationStatusConfirmed},
		{"refunded", models.ReservationStatusConfirmed, models.ReservationStatusCancelled},
		{"cancelled", models.ReservationStatusPending, models.ReservationStatusCancelled},
		{"in_process", models.ReservationStatusPending, models.ReservationStatusPending},
		{"rejected", models.ReservationStatusWaitingPayment, models.ReservationStatusWaitingPayment},
		// An admin cancellation survives a non-terminal processor status.
		{"pending", models.ReservationStatusCancelled, models.ReservationStatusCancelled},
	}
	for _, tt := range tests {
		got := mapProcessorStatus(tt.processor, tt.internal)
		assert.Equal(t, tt.want, got, "processor=%s internal=%s", tt.processor, tt.internal)
	}
}

func approvedPayment() mercadopago.Payment {
	return mercadopago.Payment{
		ID:                json.Number("555"),
		Status:            "approved",
		StatusDetail:      "accredited",
		ExternalReference: "R1",
		FeeDetails: []mercadopago.FeeDetail{
			{Type: "mercadopago_fee", Amount: 5},
			{Type: "financing_fee", Amount: 2},
		},
		TransactionDetails: mercadopago.TransactionDetails{NetReceivedAmount: 193},
		PaymentMethodID:    "pix",
		PaymentTypeID:      "bank_transfer",
		Installments:       1,
	}
}

func TestComputeUpdateEndToEndScenario(t *testing.T) {
	engine := NewEngine(&fakeReservationStore{})
	reservation := &models.Reservation{
		ID:        "R1",
		Status:    models.ReservationStatusPending,
		PaymentID: "PIX-555",
		Amount:    200,
	}
	payment := approvedPayment()
	now := time.Now()

	fields, changed := engine.ComputeUpdate(reservation, &payment, now)
	require.True(t, changed)

	assert.Equal(t, models.ReservationStatusConfirmed, fields["status"])
	assert.Equal(t, true, fields["is_financially_reconciled"])
	assert.Equal(t, 7.0, fields["processor_fee"])
	assert.Equal(t, 193.0, fields["net_received"])
	assert.Equal(t, "approved", fields["processor_status"])
	assert.Equal(t, "accredited", fields["processor_status_detail"])
	assert.Equal(t, now, fields["last_reconciled_at"])
}

func TestComputeUpdateIsIdempotent(t *testing.T) {
	engine := NewEngine(&fakeReservationStore{})
	reservation := &models.Reservation{
		ID:        "R1",
		Status:    models.ReservationStatusPending,
		PaymentID: "PIX-555",
	}
	payment := approvedPayment()

	fields, changed := engine.ComputeUpdate(reservation, &payment, time.Now())
	require.True(t, changed)
	applyFields(reservation, fields)

	// Same transaction against the reconciled record: no further writes.
	_, changed = engine.ComputeUpdate(reservation, &payment, time.Now().Add(time.Minute))
	assert.False(t, changed)
}

func TestComputeUpdateMirrorsFinancialsWithoutTouchingStatus(t *testing.T) {
	engine := NewEngine(&fakeReservationStore{})
	reservation := &models.Reservation{
		ID:     "R3",
		Status: models.ReservationStatusPending,
	}
	payment := approvedPayment()
	payment.Status = "in_process"
	payment.StatusDetail = "pending_review_manual"

	fields, changed := engine.ComputeUpdate(reservation, &payment, time.Now())
	require.True(t, changed)
	assert.NotContains(t, fields, "status")
	assert.Equal(t, "in_process", fields["processor_status"])
	assert.Equal(t, 7.0, fields["processor_fee"])
}

func TestReconcileCountsAndIsolation(t *testing.T) {
	store := &fakeReservationStore{reservations: map[string]*models.Reservation{
		"R1": {ID: "R1", Status: models.ReservationStatusPending, PaymentID: "PIX-555"},
	}}
	engine := NewEngine(store)

	matched := approvedPayment()
	noRef := approvedPayment()
	noRef.ExternalReference = ""
	unmatched := approvedPayment()
	unmatched.ExternalReference = "R-GONE"

	updates, outcome := engine.Reconcile(context.Background(),
		[]mercadopago.Payment{matched, noRef, unmatched}, time.Now())

	assert.Equal(t, 3, outcome.Processed)
	assert.Equal(t, 1, outcome.Updated)
	assert.Equal(t, 1, outcome.Skipped)
	assert.Equal(t, 1, outcome.Unmatched)
	assert.Zero(t, outcome.Failed)

	require.Len(t, updates, 1)
	assert.Equal(t, "R1", updates[0].ReservationID)
}

func TestReconcileDuplicateReferenceFirstWins(t *testing.T) {
	store := &fakeReservationStore{reservations: map[string]*models.Reservation{
		"R1": {ID: "R1", Status: models.ReservationStatusPending, PaymentID: "PIX-555"},
	}}
	engine := NewEngine(store)

	// Newest-first order: the approved payment precedes the rejected retry
	// that shares its reference.
	approved := approvedPayment()
	rejected := approvedPayment()
	rejected.ID = json.Number("554")
	rejected.Status = "rejected"
	rejected.StatusDetail = "cc_rejected_insufficient_amount"

	updates, outcome := engine.Reconcile(context.Background(),
		[]mercadopago.Payment{approved, rejected}, time.Now())

	require.Len(t, updates, 1)
	assert.Equal(t, models.ReservationStatusConfirmed, updates[0].Fields["status"])
	assert.Equal(t, "approved", updates[0].Fields["processor_status"])
	assert.Equal(t, 1, outcome.Updated)
	assert.Equal(t, 1, outcome.Skipped)
}

func TestReconcileSecondRunIssuesNoUpdates(t *testing.T) {
	reservation := &models.Reservation{ID: "R1", Status: models.ReservationStatusPending, PaymentID: "PIX-555"}
	store := &fakeReservationStore{reservations: map[string]*models.Reservation{"R1": reservation}}
	engine := NewEngine(store)
	payment := approvedPayment()

	updates, outcome := engine.Reconcile(context.Background(), []mercadopago.Payment{payment}, time.Now())
	require.Len(t, updates, 1)
	require.Equal(t, 1, outcome.Updated)

	// Simulate the commit, then run again against the unchanged set.
	applyFields(reservation, updates[0].Fields)

	updates, outcome = engine.Reconcile(context.Background(), []mercadopago.Payment{payment}, time.Now().Add(time.Minute))
	assert.Empty(t, updates)
	assert.Zero(t, outcome.Updated)
	assert.Equal(t, 1, outcome.Processed)
}
