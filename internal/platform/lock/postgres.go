package lock

import (
	"context"
	"fmt"

	"github.com/radorder/radorder/internal/platform/db"
)

// Advisory locks the order with pg_advisory_xact_lock inside the transaction
// carried by ctx. PostgreSQL releases it at commit or rollback, so the
// returned release func is a no-op.
type Advisory struct{}

func NewAdvisory() *Advisory { return &Advisory{} }

func (a *Advisory) Lock(ctx context.Context, orderID int64) (func(), error) {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, AttemptKey(orderID)); err != nil {
		return nil, fmt.Errorf("advisory lock %s: %w", AttemptKey(orderID), err)
	}
	return func() {}, nil
}
