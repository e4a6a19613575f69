package order

import (
	"context"
	"fmt"

	"github.com/radorder/radorder/internal/platform/db"
	"github.com/radorder/radorder/internal/platform/lock"
	"github.com/radorder/radorder/internal/platform/metrics"
	"github.com/radorder/radorder/pkg/clinical"
)

// AttemptTracker numbers and stores validation attempts. Numbers per order
// start at 1 and have no gaps; Record serializes concurrent callers on the
// same order with a per-order lock, and the database rejects duplicates.
type AttemptTracker struct {
	attempts AttemptRepository
	tx       db.Transactor
	locker   lock.Locker
}

func NewAttemptTracker(attempts AttemptRepository, tx db.Transactor, locker lock.Locker) *AttemptTracker {
	return &AttemptTracker{attempts: attempts, tx: tx, locker: locker}
}

// NextAttemptNumber returns max(attempt_number)+1 for the order, or 1.
// On its own it is not safe against concurrent writers; use Record.
func (t *AttemptTracker) NextAttemptNumber(ctx context.Context, orderID int64) (int, error) {
	max, err := t.attempts.MaxAttemptNumber(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("read attempt numbers for order %d: %w", orderID, err)
	}
	return max + 1, nil
}

// LogAttempt stores one attempt row. A number already in use fails with
// ErrAttemptConflict.
func (t *AttemptTracker) LogAttempt(ctx context.Context, orderID int64, attemptNumber int, dictation string, result *clinical.ValidationResult, userID int64) (*ValidationAttempt, error) {
	if attemptNumber < 1 {
		return nil, fmt.Errorf("attempt number must be positive, got %d", attemptNumber)
	}
	a := &ValidationAttempt{
		OrderID:           orderID,
		AttemptNumber:     attemptNumber,
		ValidationInput:   dictation,
		ValidationOutcome: result.ValidationStatus,
		GeneratedICD10:    result.SuggestedICD10Codes,
		GeneratedCPT:      result.SuggestedCPTCodes,
		Feedback:          result.Feedback,
		ComplianceScore:   result.ComplianceScore,
		UserID:            userID,
	}
	if err := t.attempts.Insert(ctx, a); err != nil {
		return nil, err
	}
	metrics.RecordValidationAttempt(string(result.ValidationStatus))
	return a, nil
}

// Record takes the per-order lock, computes the next number and stores the
// attempt in one transaction. The lock is held until after commit.
func (t *AttemptTracker) Record(ctx context.Context, orderID int64, dictation string, result *clinical.ValidationResult, userID int64) (*ValidationAttempt, error) {
	release := func() {}
	defer func() { release() }()

	var attempt *ValidationAttempt
	err := t.tx.InTx(ctx, func(ctx context.Context) error {
		unlock, err := t.locker.Lock(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order %d: %w", orderID, err)
		}
		release = unlock

		n, err := t.NextAttemptNumber(ctx, orderID)
		if err != nil {
			return err
		}
		attempt, err = t.LogAttempt(ctx, orderID, n, dictation, result, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func (t *AttemptTracker) List(ctx context.Context, orderID int64) ([]*ValidationAttempt, error) {
	return t.attempts.ListByOrder(ctx, orderID)
}
