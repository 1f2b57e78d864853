package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/events"
)

// AdvanceStatus moves an order to status to. Cancelling an already cancelled order is a
// no-op that returns the stored order.
func (c *Conf) AdvanceStatus(ctx context.Context, id string, to Status, actor Actor) (Order, error) {
	if !to.Valid() || to == StatusReturned {
		return Order{}, validationf("cannot set status %q", to)
	}
	before, err := c.store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return c.advance(ctx, before, to, actor, nil)
}

func (c *Conf) advance(ctx context.Context, before Order, to Status, actor Actor, mutate func(*Order)) (Order, error) {
	if before.Status == StatusCancelled && to == StatusCancelled {
		return before, nil
	}
	if before.HasPendingCancellation() && to != StatusCancelled {
		return Order{}, validationf("order %s has a pending cancellation request", before.ID)
	}
	if !CanTransition(before.Status, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, before.Status, to)
	}

	now := c.now()
	after := before.Clone()
	after.Status = to
	after.StatusUpdatedAt = now
	after.StatusUpdatedBy = actor.ID
	if to == StatusCancelled {
		// a direct cancel settles any outstanding request the same way an approval would
		if after.HasPendingCancellation() {
			after.CancellationRequest.Status = CancellationApproved
			after.CancellationRequest.ApprovedAt = &now
			after.CancellationRequest.ResolvedBy = actor.ID
		}
		startRefund(&after)
	}
	if mutate != nil {
		mutate(&after)
	}

	saved, err := c.store.Update(ctx, before.ID, before.Version, after)
	if err != nil {
		return Order{}, err
	}
	c.publish(ctx, events.TypeOrderStatusChanged, &before, saved, actor, "")
	c.runEffects(ctx, before, saved)
	return saved, nil
}

func startRefund(o *Order) {
	if o.PaymentStatus == PaymentPaid {
		o.PaymentStatus = PaymentRefundProcessing
	}
}

// RequestCancellation records a customer's (or an admin's on their behalf) request to cancel.
func (c *Conf) RequestCancellation(ctx context.Context, id, reason string, actor Actor) (Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Order{}, validationf("cancellation reason is required")
	}
	before, err := c.store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !actor.Admin && before.UserID != actor.ID {
		return Order{}, ErrForbidden
	}
	if before.HasPendingCancellation() {
		return Order{}, ErrAlreadyRequested
	}
	if !CanRequestCancellation(before.Status) {
		return Order{}, validationf("orders in status %s cannot be cancelled", before.Status)
	}

	after := before.Clone()
	after.CancellationRequest = &CancellationRequest{
		Status:      CancellationPending,
		Reason:      reason,
		RequestedAt: c.now(),
		RequestedBy: actor.ID,
	}
	saved, err := c.store.Update(ctx, before.ID, before.Version, after)
	if err != nil {
		return Order{}, err
	}
	c.publish(ctx, events.TypeCancellationRequested, &before, saved, actor, reason)
	return saved, nil
}

// ResolveCancellation approves or rejects the pending request. Approval cancels the order and
// starts a refund for paid orders; rejection puts the order back to Accepted.
func (c *Conf) ResolveCancellation(ctx context.Context, id string, decision Decision, actor Actor, rejectionReason string) (Order, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return Order{}, validationf("unknown decision %q", decision)
	}
	rejectionReason = strings.TrimSpace(rejectionReason)
	before, err := c.store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !before.HasPendingCancellation() {
		return Order{}, ErrNoRequestPending
	}

	now := c.now()
	after := before.Clone()
	req := after.CancellationRequest
	req.ResolvedBy = actor.ID
	after.StatusUpdatedAt = now
	after.StatusUpdatedBy = actor.ID
	switch decision {
	case DecisionApprove:
		req.Status = CancellationApproved
		req.ApprovedAt = &now
		after.Status = StatusCancelled
		startRefund(&after)
	case DecisionReject:
		req.Status = CancellationRejected
		req.RejectedAt = &now
		req.RejectionReason = rejectionReason
		after.Status = StatusAccepted
	}

	saved, err := c.store.Update(ctx, before.ID, before.Version, after)
	if err != nil {
		return Order{}, err
	}
	c.publish(ctx, events.TypeCancellationResolved, &before, saved, actor, string(decision))
	if saved.Status != before.Status {
		c.runEffects(ctx, before, saved)
	}
	return saved, nil
}

// BulkResult is the outcome for one id of a bulk operation.
type BulkResult struct {
	ID    string
	Order Order
	Err   error
}

// BulkAdvanceStatus applies AdvanceStatus to every id independently; one failure does not
// stop the rest.
func (c *Conf) BulkAdvanceStatus(ctx context.Context, ids []string, to Status, actor Actor) []BulkResult {
	ids = dedupe(ids)
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		o, err := c.AdvanceStatus(ctx, id, to, actor)
		results = append(results, BulkResult{ID: id, Order: o, Err: err})
	}
	return results
}

// BulkDelete removes orders permanently. There is no soft delete.
func (c *Conf) BulkDelete(ctx context.Context, ids []string, actor Actor) []BulkResult {
	ids = dedupe(ids)
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		o, err := c.store.Get(ctx, id)
		if err == nil {
			err = c.store.Delete(ctx, id)
		}
		if err == nil {
			c.publish(ctx, events.TypeOrderDeleted, nil, o, actor, "")
		}
		results = append(results, BulkResult{ID: id, Err: err})
	}
	return results
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
