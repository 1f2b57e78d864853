package orders

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoCourier = errors.New("no courier configured")

// Dispatch books a consignment for a packed order and moves it to Shipped with the tracking
// details attached. If the courier call fails the order stays Packed.
func (c *Conf) Dispatch(ctx context.Context, id string, actor Actor) (Order, error) {
	if c.courier == nil {
		return Order{}, ErrNoCourier
	}
	before, err := c.store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if before.Status != StatusPacked {
		return Order{}, fmt.Errorf("%w: only Packed orders can be dispatched, order is %s", ErrInvalidTransition, before.Status)
	}
	if before.HasPendingCancellation() {
		return Order{}, validationf("order %s has a pending cancellation request", before.ID)
	}

	shipment, err := c.courier.Ship(ctx, before)
	if err != nil {
		return Order{}, fmt.Errorf("booking consignment: %w", err)
	}
	return c.advance(ctx, before, StatusShipped, actor, func(o *Order) {
		o.Shipment = &shipment
	})
}
