package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/events"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quote is the catalog's current view of a product at a given pack size.
type Quote struct {
	Name      string
	Category  string
	UnitPrice decimal.Decimal
}

// Pricer resolves authoritative prices at checkout so the client cannot set its own.
type Pricer interface {
	Quote(ctx context.Context, productID, size string) (Quote, error)
}

// Courier issues a consignment note for a packed order.
type Courier interface {
	Ship(ctx context.Context, o Order) (Shipment, error)
}

// SideEffect runs after a status change has been written. Implementations must be
// idempotent: the same (before, after) pair may be applied more than once.
type SideEffect interface {
	Name() string
	Apply(ctx context.Context, before, after Order) error
}

// DefaultPublishTimeout bounds how long a committed write waits on the event broker.
const DefaultPublishTimeout = 5 * time.Second

// Conf is the order lifecycle controller. It owns every write to an order.
type Conf struct {
	store          Store
	publisher      events.Publisher
	publishTimeout time.Duration
	pricer    Pricer
	courier   Courier
	validate  *validator.Validate
	now       func() time.Time
	effects   map[Status][]SideEffect
}

type Option func(*Conf)

func WithPublisher(p events.Publisher) Option { return func(c *Conf) { c.publisher = p } }
func WithPricer(p Pricer) Option              { return func(c *Conf) { c.pricer = p } }
func WithCourier(cr Courier) Option           { return func(c *Conf) { c.courier = cr } }
func WithClock(now func() time.Time) Option   { return func(c *Conf) { c.now = now } }

// WithPublishTimeout bounds each event publish. Non-positive values keep the default.
func WithPublishTimeout(d time.Duration) Option {
	return func(c *Conf) {
		if d > 0 {
			c.publishTimeout = d
		}
	}
}

// WithEffect registers e to run after every transition into status to.
func WithEffect(to Status, e SideEffect) Option {
	return func(c *Conf) { c.effects[to] = append(c.effects[to], e) }
}

func NewConf(store Store, opts ...Option) (*Conf, error) {
	if store == nil {
		return nil, errors.New("order store is nil")
	}
	c := &Conf{
		store:          store,
		publisher:      nopPublisher{},
		publishTimeout: DefaultPublishTimeout,
		validate:       validator.New(),
		now:            time.Now,
		effects:        make(map[Status][]SideEffect),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Store exposes the underlying order store for read paths.
func (c *Conf) Store() Store {
	return c.store
}

func (c *Conf) publish(ctx context.Context, typ string, before *Order, after Order, actor Actor, detail string) {
	e := events.Event{
		ID:            uuid.NewString(),
		Type:          typ,
		OrderID:       after.ID,
		UserID:        after.UserID,
		ToStatus:      string(after.Status),
		PaymentStatus: string(after.PaymentStatus),
		Actor:         actor.ID,
		Detail:        detail,
		OccurredAt:    c.now().UTC(),
	}
	if before != nil {
		e.FromStatus = string(before.Status)
	}
	pctx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(pctx, e); err != nil {
		slog.Error("publishing order event failed",
			slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
			slog.String(logkey.OrderID, after.ID),
			slog.String(logkey.Topic, typ),
			slog.String(logkey.ERROR, err.Error()))
	}
}

// runEffects applies the handlers registered for after.Status. The status change is already
// committed, so failures are logged and do not undo it.
func (c *Conf) runEffects(ctx context.Context, before, after Order) {
	for _, e := range c.effects[after.Status] {
		if err := e.Apply(ctx, before, after); err != nil {
			slog.Error("order side effect failed",
				slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
				slog.String(logkey.OrderID, after.ID),
				slog.String("Effect", e.Name()),
				slog.String(logkey.ERROR, err.Error()))
		}
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Event) error { return nil }
