package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/httpclient"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

const ServiceName = "stripe"

var (
	ErrBadSignature = errors.New("webhook signature verification failed")
	ErrNoOrderRef   = errors.New("payment carries no order reference")
)

// Confirmer records the verified outcome of a payment on its order.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, orderID, paymentRef string) (orders.Order, error)
	FailPayment(ctx context.Context, orderID, paymentRef string) (orders.Order, error)
}

// Webhook verifies gateway callbacks before anything about them is trusted.
type Webhook struct {
	secret    string
	confirmer Confirmer
}

func NewWebhook(secret string, c Confirmer) (*Webhook, error) {
	if secret == "" {
		return nil, errors.New("stripe webhook secret is empty")
	}
	return &Webhook{secret: secret, confirmer: c}, nil
}

// Result says what a callback did. Handled is false for event types that are ignored.
type Result struct {
	EventType string
	OrderID   string
	Handled   bool
}

func (w *Webhook) Handle(ctx context.Context, payload []byte, signature string) (Result, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrBadSignature, err.Error())
	}
	res := Result{EventType: string(event.Type)}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
	default:
		slog.Info("unhandled stripe event",
			slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
			slog.String("EventType", res.EventType))
		return res, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return res, fmt.Errorf("decoding payment intent: %w", err)
	}
	res.OrderID = pi.Metadata["order_id"]
	if res.OrderID == "" {
		return res, fmt.Errorf("%w: payment intent %s", ErrNoOrderRef, pi.ID)
	}

	if event.Type == stripe.EventTypePaymentIntentSucceeded {
		_, err = w.confirmer.ConfirmPayment(ctx, res.OrderID, pi.ID)
	} else {
		_, err = w.confirmer.FailPayment(ctx, res.OrderID, pi.ID)
	}
	if err != nil {
		return res, err
	}
	res.Handled = true
	return res, nil
}

// Gateway opens online payments for placed orders.
type Gateway struct {
	sc *client.API
}

// Backends returns stripe backends whose HTTP calls give up after timeout.
func Backends(timeout time.Duration) *stripe.Backends {
	return stripe.NewBackends(&http.Client{Timeout: timeout})
}

func NewGateway(secretKey string, backends *stripe.Backends) (*Gateway, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is empty")
	}
	return &Gateway{sc: client.New(secretKey, backends)}, nil
}

// Intent is what the storefront needs to open the embedded checkout.
type Intent struct {
	ID           string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	OrderID      string `json:"order_id"`
}

func (g *Gateway) CreateIntent(ctx context.Context, o orders.Order) (Intent, error) {
	amount := AmountInPaise(o.TotalAmount)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(string(stripe.CurrencyINR)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", o.ID)
	params.AddMetadata("user_id", o.UserID)
	params.SetIdempotencyKey("order-" + o.ID)

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, classify(err)
	}
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       amount,
		Currency:     string(stripe.CurrencyINR),
		OrderID:      o.ID,
	}, nil
}

// AmountInPaise converts rupees to the smallest currency unit, rounding half away from zero.
func AmountInPaise(rupees decimal.Decimal) int64 {
	return rupees.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func classify(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &httpclient.ExternalServiceError{
			Service:    ServiceName,
			StatusCode: se.HTTPStatusCode,
			Retryable:  se.HTTPStatusCode == 0 || se.HTTPStatusCode >= 500 || se.HTTPStatusCode == 429,
			Message:    se.Msg,
			Err:        err,
		}
	}
	return &httpclient.ExternalServiceError{Service: ServiceName, Retryable: true, Err: err}
}
