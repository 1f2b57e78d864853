package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/events"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/stores/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = orders.Actor{ID: "admin-1", Admin: true}
	customer = orders.Actor{ID: "cust-1"}
	fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type countingEffect struct {
	calls int
	err   error
}

func (e *countingEffect) Name() string { return "counting" }
func (e *countingEffect) Apply(context.Context, orders.Order, orders.Order) error {
	e.calls++
	return e.err
}

func newConf(t *testing.T, opts ...orders.Option) (*orders.Conf, *memory.OrderStore, *recorder) {
	t.Helper()
	store := memory.NewOrderStore()
	rec := &recorder{}
	opts = append([]orders.Option{
		orders.WithPublisher(rec),
		orders.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	c, err := orders.NewConf(store, opts...)
	require.NoError(t, err)
	return c, store, rec
}

func seed(t *testing.T, store *memory.OrderStore, status orders.Status, payment orders.PaymentStatus) orders.Order {
	t.Helper()
	o, err := store.Create(context.Background(), orders.Order{
		UserID: customer.ID,
		Items: []orders.LineItem{
			{ProductID: "p1", Name: "Moringa Powder", Category: "Organic Powder", UnitPrice: decimal.RequireFromString("249.50"), Quantity: 2},
		},
		TotalAmount:   decimal.RequireFromString("499.00"),
		Status:        status,
		PaymentMethod: orders.PaymentOnline,
		PaymentStatus: payment,
		CreatedAt:     fixedNow.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	return o
}

func TestNewConfRequiresStore(t *testing.T) {
	_, err := orders.NewConf(nil)
	assert.Error(t, err)
}

type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, _ events.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStalledBrokerDoesNotHoldWrites(t *testing.T) {
	c, store, _ := newConf(t,
		orders.WithPublisher(stalledPublisher{}),
		orders.WithPublishTimeout(50*time.Millisecond),
	)
	o := seed(t, store, orders.StatusPending, orders.PaymentPending)

	start := time.Now()
	got, err := c.AdvanceStatus(context.Background(), o.ID, orders.StatusAccepted, admin)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAccepted, got.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAdvanceStatusHappyPath(t *testing.T) {
	c, store, rec := newConf(t)
	o := seed(t, store, orders.StatusPending, orders.PaymentPending)
	ctx := context.Background()

	for _, to := range []orders.Status{
		orders.StatusAccepted, orders.StatusProcessing, orders.StatusPacked,
		orders.StatusShipped, orders.StatusDelivered,
	} {
		got, err := c.AdvanceStatus(ctx, o.ID, to, admin)
		require.NoError(t, err, to)
		assert.Equal(t, to, got.Status)
		assert.Equal(t, admin.ID, got.StatusUpdatedBy)
		assert.Equal(t, fixedNow, got.StatusUpdatedAt)
	}

	final, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), final.Version)
	assert.Len(t, rec.types(), 5)
}

func TestAdvanceStatusRejectsIllegalJump(t *testing.T) {
	c, store, _ := newConf(t)
	o := seed(t, store, orders.StatusPending, orders.PaymentPending)

	_, err := c.AdvanceStatus(context.Background(), o.ID, orders.StatusDelivered, admin)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)
	assert.ErrorIs(t, err, orders.ErrValidation)

	_, err = c.AdvanceStatus(context.Background(), o.ID, orders.StatusReturned, admin)
	assert.ErrorIs(t, err, orders.ErrValidation)

	_, err = c.AdvanceStatus(context.Background(), o.ID, orders.Status("Lost"), admin)
	assert.ErrorIs(t, err, orders.ErrValidation)

	got, err := store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestAdvanceStatusUnknownOrder(t *testing.T) {
	c, _, _ := newConf(t)
	_, err := c.AdvanceStatus(context.Background(), "missing", orders.StatusAccepted, admin)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestCancelIsIdempotent(t *testing.T) {
	for _, start := range []orders.Status{
		orders.StatusPending, orders.StatusAccepted, orders.StatusProcessing,
		orders.StatusPacked, orders.StatusShipped,
	} {
		t.Run(string(start), func(t *testing.T) {
			c, store, rec := newConf(t)
			o := seed(t, store, start, orders.PaymentPending)

			first, err := c.AdvanceStatus(context.Background(), o.ID, orders.StatusCancelled, admin)
			require.NoError(t, err)
			second, err := c.AdvanceStatus(context.Background(), o.ID, orders.StatusCancelled, admin)
			require.NoError(t, err)

			assert.Equal(t, orders.StatusCancelled, first.Status)
			assert.Equal(t, first, second)
			assert.Len(t, rec.types(), 1)
		})
	}
}

func TestDirectCancelStartsRefundForPaidOrder(t *testing.T) {
	c, store, _ := newConf(t)
	o := seed(t, store, orders.StatusAccepted, orders.PaymentPaid)

	got, err := c.AdvanceStatus(context.Background(), o.ID, orders.StatusCancelled, admin)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentRefundProcessing, got.PaymentStatus)
}

func TestPendingRequestBlocksAdvance(t *testing.T) {
	c, store, _ := newConf(t)
	o := seed(t, store, orders.StatusAccepted, orders.PaymentPending)
	ctx := context.Background()

	_, err := c.RequestCancellation(ctx, o.ID, "wrong size", customer)
	require.NoError(t, err)

	_, err = c.AdvanceStatus(ctx, o.ID, orders.StatusProcessing, admin)
	assert.ErrorIs(t, err, orders.ErrValidation)

	got, err := c.AdvanceStatus(ctx, o.ID, orders.StatusCancelled, admin)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	require.NotNil(t, got.CancellationRequest)
	assert.Equal(t, orders.CancellationApproved, got.CancellationRequest.Status)
	assert.NotNil(t, got.CancellationRequest.ApprovedAt)
}

func TestRequestCancellationGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("reason required", func(t *testing.T) {
		c, store, _ := newConf(t)
		o := seed(t, store, orders.StatusPending, orders.PaymentPending)
		_, err := c.RequestCancellation(ctx, o.ID, "   ", customer)
		assert.ErrorIs(t, err, orders.ErrValidation)
	})

	t.Run("other customer", func(t *testing.T) {
		c, store, _ := newConf(t)
		o := seed(t, store, orders.StatusPending, orders.PaymentPending)
		_, err := c.RequestCancellation(ctx, o.ID, "changed mind", orders.Actor{ID: "cust-2"})
		assert.ErrorIs(t, err, orders.ErrForbidden)
	})

	t.Run("admin on behalf", func(t *testing.T) {
		c, store, _ := newConf(t)
		o := seed(t, store, orders.StatusPending, orders.PaymentPending)
		got, err := c.RequestCancellation(ctx, o.ID, "customer phoned in", admin)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got.CancellationRequest.RequestedBy)
	})

	t.Run("already requested", func(t *testing.T) {
		c, store, _ := newConf(t)
		o := seed(t, store, orders.StatusPending, orders.PaymentPending)
		_, err := c.RequestCancellation(ctx, o.ID, "changed mind", customer)
		require.NoError(t, err)
		_, err = c.RequestCancellation(ctx, o.ID, "really", customer)
		assert.ErrorIs(t, err, orders.ErrAlreadyRequested)
	})

	for _, s := range []orders.Status{orders.StatusShipped, orders.StatusDelivered, orders.StatusCancelled} {
		t.Run("status "+string(s), func(t *testing.T) {
			c, store, _ := newConf(t)
			o := seed(t, store, s, orders.PaymentPending)
			_, err := c.RequestCancellation(ctx, o.ID, "changed mind", customer)
			assert.ErrorIs(t, err, orders.ErrValidation)
			assert.NotErrorIs(t, err, orders.ErrAlreadyRequested)
		})
	}
}

func TestApproveCancellationOfPaidPendingOrder(t *testing.T) {
	c, store, rec := newConf(t)
	o := seed(t, store, orders.StatusPending, orders.PaymentPaid)
	ctx := context.Background()

	_, err := c.RequestCancellation(ctx, o.ID, "changed mind", customer)
	require.NoError(t, err)
	got, err := c.ResolveCancellation(ctx, o.ID, orders.DecisionApprove, admin, "")
	require.NoError(t, err)

	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, orders.PaymentRefundProcessing, got.PaymentStatus)
	require.NotNil(t, got.CancellationRequest)
	assert.Equal(t, orders.CancellationApproved, got.CancellationRequest.Status)
	assert.Equal(t, fixedNow, *got.CancellationRequest.ApprovedAt)
	assert.Equal(t, admin.ID, got.CancellationRequest.ResolvedBy)
	assert.Equal(t, []string{events.TypeCancellationRequested, events.TypeCancellationResolved}, rec.types())
}

func TestApproveLeavesUnpaidPaymentStatus(t *testing.T) {
	for _, p := range []orders.PaymentStatus{orders.PaymentPending, orders.PaymentFailed} {
		t.Run(string(p), func(t *testing.T) {
			c, store, _ := newConf(t)
			o := seed(t, store, orders.StatusProcessing, p)
			ctx := context.Background()

			_, err := c.RequestCancellation(ctx, o.ID, "too slow", customer)
			require.NoError(t, err)
			got, err := c.ResolveCancellation(ctx, o.ID, orders.DecisionApprove, admin, "")
			require.NoError(t, err)
			assert.Equal(t, orders.StatusCancelled, got.Status)
			assert.Equal(t, p, got.PaymentStatus)
		})
	}
}

func TestRejectCancellation(t *testing.T) {
	c, store, _ := newConf(t)
	o := seed(t, store, orders.StatusPacked, orders.PaymentPaid)
	ctx := context.Background()

	_, err := c.RequestCancellation(ctx, o.ID, "changed mind", customer)
	require.NoError(t, err)

	got, err := c.ResolveCancellation(ctx, o.ID, orders.DecisionReject, admin, "already packed")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAccepted, got.Status)
	assert.Equal(t, orders.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, orders.CancellationRejected, got.CancellationRequest.Status)
	assert.Equal(t, "already packed", got.CancellationRequest.RejectionReason)
	assert.NotNil(t, got.CancellationRequest.RejectedAt)

	// the order can move on once the request is settled
	got, err = c.AdvanceStatus(ctx, o.ID, orders.StatusProcessing, admin)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, got.Status)
}

func TestRejectCancellationWithoutReason(t *testing.T) {
	c, store, _ := newConf(t)
	o := seed(t, store, orders.StatusProcessing, orders.PaymentPending)
	ctx := context.Background()

	_, err := c.RequestCancellation(ctx, o.ID, "changed mind", customer)
	require.NoError(t, err)

	got, err := c.ResolveCancellation(ctx, o.ID, orders.DecisionReject, admin, "")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAccepted, got.Status)
	assert.Equal(t, orders.CancellationRejected, got.CancellationRequest.Status)
	assert.Empty(t, got.CancellationRequest.RejectionReason)
	assert.NotNil(t, got.CancellationRequest.RejectedAt)
}

func TestResolveWithoutPendingRequest(t *testing.T) {
	c, store, _ := newConf(t)
	ctx := context.Background()

	for _, s := range []orders.Status{orders.StatusPending, orders.StatusShipped, orders.StatusCancelled} {
		o := seed(t, store, s, orders.PaymentPaid)
		for _, d := range []orders.Decision{orders.DecisionApprove, orders.DecisionReject} {
			_, err := c.ResolveCancellation(ctx, o.ID, d, admin, "no")
			assert.ErrorIs(t, err, orders.ErrNoRequestPending, "%s/%s", s, d)
		}
	}

	o := seed(t, store, orders.StatusPending, orders.PaymentPaid)
	_, err := c.RequestCancellation(ctx, o.ID, "changed mind", customer)
	require.NoError(t, err)
	_, err = c.ResolveCancellation(ctx, o.ID, orders.DecisionApprove, admin, "")
	require.NoError(t, err)
	_, err = c.ResolveCancellation(ctx, o.ID, orders.DecisionApprove, admin, "")
	assert.ErrorIs(t, err, orders.ErrNoRequestPending)
}

func TestResolveUnknownDecision(t *testing.T) {
	c, store, _ := newConf(t)
	o := seed(t, store, orders.StatusPending, orders.PaymentPaid)
	_, err := c.ResolveCancellation(context.Background(), o.ID, orders.Decision("maybe"), admin, "")
	assert.ErrorIs(t, err, orders.ErrValidation)
}

func TestBulkAdvanceStatusIsBestEffort(t *testing.T) {
	c, store, _ := newConf(t)
	ctx := context.Background()
	a := seed(t, store, orders.StatusPending, orders.PaymentPending)
	b := seed(t, store, orders.StatusDelivered, orders.PaymentPaid)
	d := seed(t, store, orders.StatusPending, orders.PaymentPending)

	results := c.BulkAdvanceStatus(ctx, []string{a.ID, b.ID, "missing", d.ID, a.ID, ""}, orders.StatusAccepted, admin)
	require.Len(t, results, 4)

	byID := map[string]error{}
	for _, r := range results {
		byID[r.ID] = r.Err
	}
	assert.NoError(t, byID[a.ID])
	assert.ErrorIs(t, byID[b.ID], orders.ErrInvalidTransition)
	assert.ErrorIs(t, byID["missing"], orders.ErrNotFound)
	assert.NoError(t, byID[d.ID])

	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAccepted, got.Status)
}

func TestBulkDelete(t *testing.T) {
	c, store, rec := newConf(t)
	ctx := context.Background()
	a := seed(t, store, orders.StatusPending, orders.PaymentPending)

	results := c.BulkDelete(ctx, []string{a.ID, "missing"}, admin)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, orders.ErrNotFound)

	_, err := store.Get(ctx, a.ID)
	assert.ErrorIs(t, err, orders.ErrNotFound)
	assert.Equal(t, []string{events.TypeOrderDeleted}, rec.types())
}

func TestSideEffectsRunOnTargetStatusOnly(t *testing.T) {
	accepted := &countingEffect{}
	failing := &countingEffect{err: errors.New("stock service down")}
	c, store, _ := newConf(t,
		orders.WithEffect(orders.StatusAccepted, accepted),
		orders.WithEffect(orders.StatusProcessing, failing))
	o := seed(t, store, orders.StatusPending, orders.PaymentPending)
	ctx := context.Background()

	_, err := c.AdvanceStatus(ctx, o.ID, orders.StatusAccepted, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, accepted.calls)

	got, err := c.AdvanceStatus(ctx, o.ID, orders.StatusProcessing, admin)
	require.NoError(t, err, "a failed side effect does not undo the status change")
	assert.Equal(t, orders.StatusProcessing, got.Status)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, accepted.calls)
}

func TestRejectionRunsAcceptedEffects(t *testing.T) {
	accepted := &countingEffect{}
	c, store, _ := newConf(t, orders.WithEffect(orders.StatusAccepted, accepted))
	o := seed(t, store, orders.StatusProcessing, orders.PaymentPending)
	ctx := context.Background()

	_, err := c.RequestCancellation(ctx, o.ID, "changed mind", customer)
	require.NoError(t, err)
	_, err = c.ResolveCancellation(ctx, o.ID, orders.DecisionReject, admin, "in production")
	require.NoError(t, err)
	assert.Equal(t, 1, accepted.calls)
}

func TestConcurrentWriteConflicts(t *testing.T) {
	_, store, _ := newConf(t)
	o := seed(t, store, orders.StatusPending, orders.PaymentPending)
	ctx := context.Background()

	stale := o.Clone()
	o.Status = orders.StatusAccepted
	_, err := store.Update(ctx, o.ID, o.Version, o)
	require.NoError(t, err)

	stale.Status = orders.StatusCancelled
	_, err = store.Update(ctx, stale.ID, stale.Version, stale)
	assert.ErrorIs(t, err, orders.ErrConflict)
}
