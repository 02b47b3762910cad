package reconciliation

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"venue-booking-backend/internal/config"
	"venue-booking-backend/internal/mercadopago"
	"venue-booking-backend/internal/models"
	"venue-booking-backend/internal/repository"
	"venue-booking-backend/internal/services/credentials"
)

// paymentFetcher is the processor surface the pipeline needs. The concrete
// client lives in internal/mercadopago.
type paymentFetcher interface {
	GetPayment(ctx context.Context, accessToken string, paymentID string) (*mercadopago.Payment, error)
	SearchPayments(ctx context.Context, accessToken string, p mercadopago.SearchParams) ([]mercadopago.Payment, error)
}

// syncRunStore is the audit-record surface the pipeline needs.
type syncRunStore interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Finish(ctx context.Context, run *models.SyncRun, status string, finishedAt time.Time) error
	ListRecent(ctx context.Context, limit int) ([]models.SyncRun, error)
}

// Service runs the pull pipeline (fetch, reconcile, commit) and the targeted
// single-record reconciliation used by the webhook path. Both converge on
// the same absolute-value update contract, so they are safe to interleave.
type Service struct {
	normalizer *Normalizer
	resolver   *credentials.Resolver
	fetcher    paymentFetcher
	engine     *Engine
	committer  *Committer
	runs       syncRunStore
	locker     *redislock.Client
	logger     *logrus.Logger
}

func NewService(
	reservationRepo *repository.ReservationRepository,
	runRepo *repository.SyncRunRepository,
	resolver *credentials.Resolver,
	fetcher *mercadopago.Client,
	locker *redislock.Client,
) *Service {
	return &Service{
		normalizer: NewNormalizer(reservationRepo),
		resolver:   resolver,
		fetcher:    fetcher,
		engine:     NewEngine(reservationRepo),
		committer:  NewCommitter(reservationRepo.DB()),
		runs:       runRepo,
		locker:     locker,
		logger:     config.GetLogger(),
	}
}

const runLeaseTTL = 5 * time.Minute

// RunSync executes one pull-based reconciliation run for the window. Only
// configuration-level failures are returned as errors; everything else is
// recorded on the returned SyncRun so the caller can report counts. The
// per-tenant lease serializes runs in practice, but correctness never
// depends on it.
func (s *Service) RunSync(ctx context.Context, tenantID string, begin, end time.Time, triggeredBy string) (*models.SyncRun, error) {
	token, err := s.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	release, err := s.acquireLease(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	run := &models.SyncRun{
		TenantID:    tenantID,
		BeginTime:   begin,
		EndTime:     end,
		Status:      models.SyncRunStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   time.Now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		config.LogError(s.logger, "reconciliation", "RunSync", "failed to create sync run record", nil, err)
	}

	payments, err := s.fetcher.SearchPayments(ctx, token, mercadopago.SearchParams{
		Begin:    begin,
		End:      end,
		SortDesc: true,
	})
	if err != nil {
		config.LogError(s.logger, "reconciliation", "RunSync", "transaction fetch failed",
			map[string]string{"tenantId": tenantID}, err)
		s.finishRun(ctx, run, models.SyncRunStatusFailed)
		return run, nil
	}

	updates, outcome := s.engine.Reconcile(ctx, payments, time.Now())
	run.Processed = outcome.Processed
	run.Skipped = outcome.Skipped
	run.Unmatched = outcome.Unmatched
	run.Failed = outcome.Failed

	result, commitErr := s.committer.Commit(ctx, updates)
	run.Updated = result.Committed
	if commitErr != nil {
		run.Failed += result.Attempted - result.Committed
		config.LogError(s.logger, "reconciliation", "RunSync", "batch commit incomplete",
			map[string]int{"attempted": result.Attempted, "committed": result.Committed}, commitErr)
	}

	status := models.SyncRunStatusSuccess
	if run.Failed > 0 && run.Updated == 0 && result.Attempted > 0 {
		status = models.SyncRunStatusFailed
	} else if run.Failed > 0 {
		status = models.SyncRunStatusPartial
	}
	s.finishRun(ctx, run, status)

	s.logger.WithFields(logrus.Fields{
		"module":    "reconciliation",
		"tenantId":  tenantID,
		"processed": run.Processed,
		"updated":   run.Updated,
		"skipped":   run.Skipped,
		"unmatched": run.Unmatched,
		"failed":    run.Failed,
		"status":    status,
	}).Info("sync run finished")

	return run, nil
}

// ReconcileOne reconciles a single transaction, used by the webhook path.
// Soft outcomes (payment not created, not yet visible in the processor) are
// not errors: the next pull run self-heals.
func (s *Service) ReconcileOne(ctx context.Context, identifier string, tenantID string) error {
	ref, err := s.normalizer.Normalize(ctx, identifier, tenantID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotCreated) || errors.Is(err, ErrReservationNotFound) {
			return nil
		}
		return err
	}

	token, err := s.resolver.Resolve(ctx, ref.TenantID)
	if err != nil {
		return err
	}

	payment, err := s.fetcher.GetPayment(ctx, token, ref.ProcessorID)
	if err != nil {
		if errors.Is(err, mercadopago.ErrPaymentNotFound) {
			return nil
		}
		return &TransientProviderError{Op: "payment fetch", Err: err}
	}

	updates, _ := s.engine.Reconcile(ctx, []mercadopago.Payment{*payment}, time.Now())
	_, err = s.committer.Commit(ctx, updates)
	return err
}

// StatusResult is the caller-visible payment state for the status-check
// surface.
type StatusResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
}

// PaymentStatus looks up the processor state for a reservation identifier.
// A transaction the processor cannot find yet is reported as pending, not
// as a failure.
func (s *Service) PaymentStatus(ctx context.Context, identifier string, tenantID string) (StatusResult, error) {
	ref, err := s.normalizer.Normalize(ctx, identifier, tenantID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotCreated) {
			return pendingStatus(identifier), nil
		}
		return StatusResult{}, err
	}

	token, err := s.resolver.Resolve(ctx, ref.TenantID)
	if err != nil {
		return StatusResult{}, err
	}

	payment, err := s.fetcher.GetPayment(ctx, token, ref.ProcessorID)
	if err != nil {
		if errors.Is(err, mercadopago.ErrPaymentNotFound) {
			return pendingStatus(ref.ProcessorID), nil
		}
		return StatusResult{}, &TransientProviderError{Op: "payment fetch", Err: err}
	}

	return StatusResult{
		ID:           payment.ID.String(),
		Status:       payment.Status,
		StatusDetail: payment.StatusDetail,
	}, nil
}

func pendingStatus(id string) StatusResult {
	return StatusResult{ID: id, Status: "pending", StatusDetail: "not_found_yet"}
}

// ListRuns returns recent sync run audit records.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	return s.runs.ListRecent(ctx, limit)
}

func (s *Service) finishRun(ctx context.Context, run *models.SyncRun, status string) {
	if run.ID == 0 {
		return
	}
	if err := s.runs.Finish(ctx, run, status, time.Now()); err != nil {
		config.LogError(s.logger, "reconciliation", "finishRun", "failed to finalize sync run record",
			map[string]uint{"runId": run.ID}, err)
	}
}

func (s *Service) acquireLease(ctx context.Context, tenantID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := "reconcile:platform"
	if tenantID != "" {
		key = "reconcile:" + tenantID
	}
	lock, err := s.locker.Obtain(ctx, key, runLeaseTTL, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrRunInProgress
		}
		// Lease is best effort; a lock-service failure must not block the run.
		config.LogError(s.logger, "reconciliation", "acquireLease", "lease unavailable, running without it",
			map[string]string{"key": key}, err)
		return func() {}, nil
	}
	return func() {
		if rerr := lock.Release(context.Background()); rerr != nil && !errors.Is(rerr, redislock.ErrLockNotHeld) {
			config.LogError(s.logger, "reconciliation", "acquireLease", "lease release failed",
				map[string]string{"key": key}, rerr)
		}
	}, nil
}
