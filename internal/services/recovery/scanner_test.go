package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-booking-backend/internal/mailer"
	"venue-booking-backend/internal/models"
)

type fakeAbandonedStore struct {
	mu        sync.Mutex
	abandoned []models.Reservation
	marked    map[string]time.Time
	markErr   error
	findErr   error
}

func (f *fakeAbandonedStore) FindAbandoned(_ context.Context, _ time.Time, _, _ time.Duration) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make([]models.Reservation, 0, len(f.abandoned))
	for _, r := range f.abandoned {
		if !r.RecoverySent {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAbandonedStore) MarkRecoverySent(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if f.marked == nil {
		f.marked = map[string]time.Time{}
	}
	f.marked[id] = at
	for i := range f.abandoned {
		if f.abandoned[i].ID == id {
			f.abandoned[i].RecoverySent = true
		}
	}
	return nil
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failTo map[string]error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failTo[msg.To]; ok {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestScanner(store ReservationStore, sender mailer.Sender) *Scanner {
	s := NewScanner(store, sender)
	s.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	return s
}

func abandonedReservation(id, email string) models.Reservation {
	return models.Reservation{
		ID:         id,
		GuestName:  "Ana",
		GuestEmail: email,
		Amount:     150,
		Status:     models.ReservationStatusPending,
	}
}

func TestScanSendsOnceAndMarksFlag(t *testing.T) {
	store := &fakeAbandonedStore{abandoned: []models.Reservation{
		abandonedReservation("R1", "ana@example.com"),
	}}
	sender := &fakeSender{}
	scanner := newTestScanner(store, sender)

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Processed: 1}, result)
	assert.Equal(t, 1, sender.sentCount())
	assert.Contains(t, store.marked, "R1")

	// Second scan: the flag is set, nothing goes out.
	result, err = scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Equal(t, 1, sender.sentCount())
}

func TestScanIsolatesSendFailures(t *testing.T) {
	store := &fakeAbandonedStore{abandoned: []models.Reservation{
		abandonedReservation("R1", "ok@example.com"),
		abandonedReservation("R2", "broken@example.com"),
		abandonedReservation("R3", "also-ok@example.com"),
	}}
	sender := &fakeSender{failTo: map[string]error{
		"broken@example.com": errors.New("550 mailbox unavailable"),
	}}
	scanner := newTestScanner(store, sender)

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 2, sender.sentCount())

	assert.Contains(t, store.marked, "R1")
	assert.Contains(t, store.marked, "R3")
	assert.NotContains(t, store.marked, "R2", "failed send must not set the flag")
}

func TestScanFlagPersistFailureCountsAsError(t *testing.T) {
	store := &fakeAbandonedStore{
		abandoned: []models.Reservation{abandonedReservation("R1", "ana@example.com")},
		markErr:   errors.New("connection reset"),
	}
	sender := &fakeSender{}
	scanner := newTestScanner(store, sender)

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sender.sentCount(), "the email still went out")
	assert.Equal(t, 1, result.Errors)
}

func TestScanStoreFailureAbortsRun(t *testing.T) {
	store := &fakeAbandonedStore{findErr: errors.New("connection refused")}
	scanner := newTestScanner(store, &fakeSender{})

	_, err := scanner.Run(context.Background())
	assert.Error(t, err)
}

func TestScanNothingAbandoned(t *testing.T) {
	scanner := newTestScanner(&fakeAbandonedStore{}, &fakeSender{})

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
}
