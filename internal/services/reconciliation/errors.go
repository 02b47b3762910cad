package reconciliation

import (
	"errors"
	"fmt"
)

// Soft outcomes. Callers of the status-check surface translate these into a
// pending response, never into a 5xx.
var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrPaymentNotCreated   = errors.New("payment not yet created for reservation")
)

// ErrRunInProgress is returned when the per-tenant run lease is held.
var ErrRunInProgress = errors.New("sync already running for tenant")

// TransientProviderError wraps retryable processor/store failures. The
// affected record or run is retried on the next invocation, nothing is lost.
type TransientProviderError struct {
	Op  string
	Err error
}

func (e *TransientProviderError) Error() string {
	return fmt.Sprintf("transient provider error during %s: %v", e.Op, e.Err)
}

func (e *TransientProviderError) Unwrap() error {
	return e.Err
}

// PartialBatchFailure reports a commit run where some batches succeeded and
// others did not. Committed work stays committed; the next idempotent run
// picks up the remainder.
type PartialBatchFailure struct {
	Attempted int
	Committed int
	Errs      []error
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("batch commit incomplete: committed %d of %d records (%d batch errors)",
		e.Committed, e.Attempted, len(e.Errs))
}
