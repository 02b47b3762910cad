package reconciliation

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"venue-booking-backend/internal/config"
	"venue-booking-backend/internal/models"
)

// DefaultBatchLimit stays below the store's hard ceiling of 500 operations
// per atomic unit.
const DefaultBatchLimit = 400

type CommitResult struct {
	Attempted int
	Committed int
	Batches   int
}

// batchWriter commits one batch as a single atomic unit.
type batchWriter interface {
	WriteBatch(ctx context.Context, batch []ReservationUpdate) error
}

type gormBatchWriter struct {
	db *gorm.DB
}

func (w gormBatchWriter) WriteBatch(ctx context.Context, batch []ReservationUpdate) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, update := range batch {
			if err := tx.Model(&models.Reservation{}).
				Where("id = ?", update.ReservationID).
				Updates(update.Fields).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Committer groups pending updates into size-bounded batches and commits
// them in sequence order. Each batch is its own atomic unit; a failed batch
// does not roll back earlier ones and does not stop later ones, since the
// next idempotent run resumes the remainder.
type Committer struct {
	writer batchWriter
	limit  int
	logger *logrus.Logger
}

func NewCommitter(db *gorm.DB) *Committer {
	return &Committer{
		writer: gormBatchWriter{db: db},
		limit:  DefaultBatchLimit,
		logger: config.GetLogger(),
	}
}

func newCommitterWithWriter(writer batchWriter, limit int) *Committer {
	return &Committer{writer: writer, limit: limit, logger: config.GetLogger()}
}

func (c *Committer) Commit(ctx context.Context, updates []ReservationUpdate) (CommitResult, error) {
	result := CommitResult{Attempted: len(updates)}
	if len(updates) == 0 {
		return result, nil
	}

	var batchErrs []error
	for _, batch := range chunkUpdates(updates, c.limit) {
		result.Batches++
		if err := c.writer.WriteBatch(ctx, batch); err != nil {
			batchErrs = append(batchErrs, err)
			config.LogError(c.logger, "reconciliation", "Commit", "batch commit failed",
				map[string]int{"batch": result.Batches, "size": len(batch)}, err)
			continue
		}
		result.Committed += len(batch)
	}

	if len(batchErrs) > 0 {
		return result, &PartialBatchFailure{
			Attempted: result.Attempted,
			Committed: result.Committed,
			Errs:      batchErrs,
		}
	}
	return result, nil
}

func chunkUpdates(updates []ReservationUpdate, limit int) [][]ReservationUpdate {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	var batches [][]ReservationUpdate
	for start := 0; start < len(updates); start += limit {
		end := start + limit
		if end > len(updates) {
			end = len(updates)
		}
		batches = append(batches, updates[start:end])
	}
	return batches
}
