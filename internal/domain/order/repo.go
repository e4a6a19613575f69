package order

import "context"

// OrderRepository persists orders. Lookups return ErrOrderNotFound when the
// row is absent.
type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	// GetByIDForUpdate locks the row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id int64) (*Order, error)
	ApplyFinalization(ctx context.Context, o *Order) error
	UpdateStatus(ctx context.Context, o *Order) error
	ListByOrganization(ctx context.Context, orgID int64, status Status, limit, offset int) ([]*Order, int, error)
}

// AttemptRepository is append-only.
type AttemptRepository interface {
	MaxAttemptNumber(ctx context.Context, orderID int64) (int, error)
	// Insert fails with ErrAttemptConflict if the attempt number is taken.
	Insert(ctx context.Context, a *ValidationAttempt) error
	ListByOrder(ctx context.Context, orderID int64) ([]*ValidationAttempt, error)
}

type HistoryRepository interface {
	Create(ctx context.Context, h *History) error
	ListByOrder(ctx context.Context, orderID int64) ([]*History, error)
}
