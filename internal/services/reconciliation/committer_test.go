package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatchWriter struct {
	batches  [][]ReservationUpdate
	failures map[int]error // batch index -> error
}

func (f *fakeBatchWriter) WriteBatch(_ context.Context, batch []ReservationUpdate) error {
	index := len(f.batches)
	f.batches = append(f.batches, batch)
	if err, ok := f.failures[index]; ok {
		return err
	}
	return nil
}

func makeUpdates(n int) []ReservationUpdate {
	updates := make([]ReservationUpdate, n)
	for i := range updates {
		updates[i] = ReservationUpdate{
			ReservationID: fmt.Sprintf("R%d", i),
			Fields:        map[string]interface{}{"is_financially_reconciled": true},
		}
	}
	return updates
}

func TestCommitSplitsAtBatchLimit(t *testing.T) {
	writer := &fakeBatchWriter{}
	committer := newCommitterWithWriter(writer, 400)

	result, err := committer.Commit(context.Background(), makeUpdates(850))
	require.NoError(t, err)

	assert.Equal(t, 850, result.Attempted)
	assert.Equal(t, 850, result.Committed)
	assert.Equal(t, 3, result.Batches)

	require.Len(t, writer.batches, 3)
	assert.Len(t, writer.batches[0], 400)
	assert.Len(t, writer.batches[1], 400)
	assert.Len(t, writer.batches[2], 50)

	// Sequence order is preserved across the split.
	assert.Equal(t, "R0", writer.batches[0][0].ReservationID)
	assert.Equal(t, "R400", writer.batches[1][0].ReservationID)
	assert.Equal(t, "R800", writer.batches[2][0].ReservationID)
}

func TestCommitEmptySet(t *testing.T) {
	writer := &fakeBatchWriter{}
	committer := newCommitterWithWriter(writer, 400)

	result, err := committer.Commit(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Attempted)
	assert.Zero(t, result.Batches)
	assert.Empty(t, writer.batches)
}

func TestCommitContinuesAfterFailedBatch(t *testing.T) {
	writer := &fakeBatchWriter{failures: map[int]error{1: errors.New("deadlock detected")}}
	committer := newCommitterWithWriter(writer, 400)

	result, err := committer.Commit(context.Background(), makeUpdates(850))

	var partial *PartialBatchFailure
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 850, partial.Attempted)
	assert.Equal(t, 450, partial.Committed)
	require.Len(t, partial.Errs, 1)

	assert.Equal(t, 850, result.Attempted)
	assert.Equal(t, 450, result.Committed)
	assert.Equal(t, 3, result.Batches, "later batches still run after a failure")
}

func TestCommitSingleShortBatch(t *testing.T) {
	writer := &fakeBatchWriter{}
	committer := newCommitterWithWriter(writer, 400)

	result, err := committer.Commit(context.Background(), makeUpdates(7))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Batches)
	assert.Equal(t, 7, result.Committed)
}
