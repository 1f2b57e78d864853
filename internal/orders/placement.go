package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/events"
)

// PlaceOrder validates a checkout, recomputes its total on the server and stores it as Pending.
// A client-supplied total that disagrees with the recomputed one is rejected.
func (c *Conf) PlaceOrder(ctx context.Context, in NewOrder) (Order, error) {
	if err := c.validate.Struct(in); err != nil {
		return Order{}, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	method, err := ParsePaymentMethod(string(in.PaymentMethod))
	if err != nil {
		return Order{}, err
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		userID = GuestUserID
	}

	items := make([]LineItem, 0, len(in.Items))
	for i, li := range in.Items {
		if c.pricer != nil {
			q, err := c.pricer.Quote(ctx, li.ProductID, li.SelectedSize)
			if err != nil {
				return Order{}, fmt.Errorf("item %d: %w", i, err)
			}
			li.Name, li.Category, li.UnitPrice = q.Name, q.Category, q.UnitPrice
		}
		if strings.TrimSpace(li.Name) == "" {
			return Order{}, validationf("item %d: name is required", i)
		}
		if !li.UnitPrice.IsPositive() {
			return Order{}, validationf("item %d: unit price must be positive", i)
		}
		items = append(items, li)
	}

	now := c.now()
	o := Order{
		UserID:          userID,
		Items:           items,
		Status:          StatusPending,
		PaymentMethod:   method,
		PaymentStatus:   PaymentPending,
		ShippingAddress: in.ShippingAddress,
		CreatedAt:       now,
		StatusUpdatedAt: now,
		StatusUpdatedBy: userID,
	}
	o.TotalAmount = o.ItemsTotal()
	if in.ClientTotal != nil && !in.ClientTotal.Equal(o.TotalAmount) {
		return Order{}, validationf("total %s does not match items total %s",
			in.ClientTotal.StringFixed(2), o.TotalAmount.StringFixed(2))
	}

	created, err := c.store.Create(ctx, o)
	if err != nil {
		return Order{}, err
	}
	c.publish(ctx, events.TypeOrderCreated, nil, created, Actor{ID: userID}, "")
	return created, nil
}

// ConfirmPayment marks an online order as paid after the gateway callback has been verified.
// Confirming twice is a no-op. A payment that lands after cancellation goes straight to refund.
func (c *Conf) ConfirmPayment(ctx context.Context, id, paymentRef string) (Order, error) {
	before, err := c.store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if before.PaymentMethod != PaymentOnline {
		return Order{}, validationf("order %s is not an online payment", id)
	}
	if before.PaymentStatus == PaymentPaid || before.PaymentStatus == PaymentRefundProcessing ||
		before.PaymentStatus == PaymentRefunded {
		return before, nil
	}

	after := before.Clone()
	after.PaymentStatus = PaymentPaid
	after.PaymentRef = paymentRef
	if after.Status == StatusCancelled {
		startRefund(&after)
	}
	saved, err := c.store.Update(ctx, before.ID, before.Version, after)
	if err != nil {
		return Order{}, err
	}
	c.publish(ctx, events.TypePaymentConfirmed, &before, saved, Actor{ID: "payment-gateway"}, paymentRef)
	return saved, nil
}

// FailPayment records a failed online payment. It never overrides a successful one.
func (c *Conf) FailPayment(ctx context.Context, id, paymentRef string) (Order, error) {
	before, err := c.store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if before.PaymentStatus != PaymentPending {
		return before, nil
	}
	after := before.Clone()
	after.PaymentStatus = PaymentFailed
	after.PaymentRef = paymentRef
	saved, err := c.store.Update(ctx, before.ID, before.Version, after)
	if err != nil {
		return Order{}, err
	}
	c.publish(ctx, events.TypePaymentFailed, &before, saved, Actor{ID: "payment-gateway"}, paymentRef)
	return saved, nil
}
