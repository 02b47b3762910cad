package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"venue-booking-backend/internal/config"
	"venue-booking-backend/internal/mailer"
	"venue-booking-backend/internal/models"
)

const (
	// Window bounds: younger reservations may still be mid-checkout, older
	// ones are not worth chasing.
	DefaultMinAge = 20 * time.Minute
	DefaultMaxAge = 24 * time.Hour

	defaultWorkers = 4
)

// ReservationStore is the persistence surface the scanner needs.
type ReservationStore interface {
	FindAbandoned(ctx context.Context, now time.Time, minAge, maxAge time.Duration) ([]models.Reservation, error)
	MarkRecoverySent(ctx context.Context, id string, at time.Time) error
}

type ScanResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

type recordResult struct {
	reservationID string
	err           error
}

// Scanner finds reservations abandoned before payment and sends each guest
// exactly one recovery email, guarded by the persisted recovery_sent flag.
// The send and the flag write are not one transaction: a crash between them
// risks at most one duplicate per crash window, which we accept.
type Scanner struct {
	store   ReservationStore
	sender  mailer.Sender
	workers int
	minAge  time.Duration
	maxAge  time.Duration
	logger  *logrus.Logger
	now     func() time.Time
}

func NewScanner(store ReservationStore, sender mailer.Sender) *Scanner {
	return &Scanner{
		store:   store,
		sender:  sender,
		workers: defaultWorkers,
		minAge:  DefaultMinAge,
		maxAge:  DefaultMaxAge,
		logger:  config.GetLogger(),
		now:     time.Now,
	}
}

// Run performs one scan. Per-record dispatch failures are isolated and
// counted; one broken address never aborts the rest of the batch.
func (s *Scanner) Run(ctx context.Context) (ScanResult, error) {
	now := s.now()
	reservations, err := s.store.FindAbandoned(ctx, now, s.minAge, s.maxAge)
	if err != nil {
		return ScanResult{}, err
	}
	if len(reservations) == 0 {
		return ScanResult{}, nil
	}

	jobs := make(chan models.Reservation)
	results := make(chan recordResult, len(reservations))

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for reservation := range jobs {
				results <- recordResult{
					reservationID: reservation.ID,
					err:           s.notify(ctx, reservation),
				}
			}
		}()
	}

	for _, reservation := range reservations {
		jobs <- reservation
	}
	close(jobs)
	wg.Wait()
	close(results)

	var result ScanResult
	for r := range results {
		result.Processed++
		if r.err != nil {
			result.Errors++
			config.LogError(s.logger, "recovery", "Run", "recovery dispatch failed",
				map[string]string{"reservationId": r.reservationID}, r.err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"module":    "recovery",
		"processed": result.Processed,
		"errors":    result.Errors,
	}).Info("abandonment scan finished")

	return result, nil
}

func (s *Scanner) notify(ctx context.Context, reservation models.Reservation) error {
	// The query already filters on the flag; re-check in case a concurrent
	// scan or the webhook path got there first.
	if reservation.RecoverySent {
		return nil
	}

	if err := s.sender.Send(ctx, buildRecoveryMessage(reservation)); err != nil {
		return err
	}

	if err := s.store.MarkRecoverySent(ctx, reservation.ID, s.now()); err != nil {
		// The email went out but the flag did not stick; the next scan may
		// send one duplicate. Log loudly so it is visible.
		config.LogError(s.logger, "recovery", "notify", "recovery flag persist failed after send",
			map[string]string{"reservationId": reservation.ID}, err)
		return err
	}
	return nil
}

func buildRecoveryMessage(reservation models.Reservation) mailer.Message {
	name := reservation.GuestName
	if name == "" {
		name = "visitante"
	}
	return mailer.Message{
		To:      reservation.GuestEmail,
		Subject: "Sua reserva está quase pronta",
		Text: fmt.Sprintf(
			"Olá %s,\n\nNotamos que sua reserva %s ainda não foi finalizada. "+
				"O pagamento de R$ %.2f está pendente. Complete sua compra para garantir seu horário.\n",
			name, reservation.ID, reservation.Amount,
		),
	}
}
