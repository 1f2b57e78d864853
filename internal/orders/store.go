package orders

import (
	"context"
	"time"
)

// Filter narrows a query. Zero fields match everything; From/To bound CreatedAt as [From, To).
type Filter struct {
	UserID string
	Status Status
	From   time.Time
	To     time.Time
}

func (f Filter) Match(o Order) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && (o.CreatedAt.IsZero() || o.CreatedAt.Before(f.From)) {
		return false
	}
	if !f.To.IsZero() && (o.CreatedAt.IsZero() || !o.CreatedAt.Before(f.To)) {
		return false
	}
	return true
}

// Store is the authoritative order collection.
//
// Update is a conditional write: it succeeds only when the stored version equals
// expectedVersion, and returns the saved order with its version incremented. A mismatch
// returns ErrConflict. Subscribe pushes the full filtered result set once immediately and
// again after every change, and blocks until ctx is done.
type Store interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	Query(ctx context.Context, f Filter) ([]Order, error)
	Update(ctx context.Context, id string, expectedVersion int64, o Order) (Order, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, f Filter, onChange func([]Order)) error
}

// CheckStatus rejects an order whose status is outside the enumeration. Stores call it before
// every write.
func CheckStatus(o Order) error {
	if !o.Status.Valid() {
		return validationf("unknown order status %q", o.Status)
	}
	return nil
}
