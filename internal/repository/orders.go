package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cosmetics-shop/internal/model"
)

// OrderMutation edits a locked order in place.
type OrderMutation func(o *model.Order) error

// OrderRepository provides access to orders.
type OrderRepository interface {
	// NextSequence atomically increments and returns the counter for day.
	NextSequence(ctx context.Context, day time.Time) (int, error)
	// Create inserts the order with its initial history; a taken order number yields errs.ErrAlreadyExists.
	Create(ctx context.Context, o *model.Order) error
	// GetByID loads an order with its full status history.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// Mutate locks the order, applies fn and persists the result plus any appended history.
	Mutate(ctx context.Context, id uuid.UUID, fn OrderMutation) (*model.Order, error)
	// ListByAccount returns the owner's orders newest first and the total count.
	ListByAccount(ctx context.Context, accountID uuid.UUID, page model.Page) ([]model.Order, int, error)
	// List returns orders matching f newest first and the total count.
	List(ctx context.Context, f model.OrderFilter, page model.Page) ([]model.Order, int, error)
}
