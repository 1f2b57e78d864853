package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/auth"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/payments"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/users"
	"github.com/SakshiC19/Satva-Organic-sub000/middleware"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
)

// maxCheckoutBytes bounds the checkout payload; a basket is a few dozen line items at most.
const maxCheckoutBytes = 64 * 1024

type placeOrderResponse struct {
	Order        orders.Order     `json:"order"`
	Payment      *payments.Intent `json:"payment,omitempty"`
	PaymentError string           `json:"payment_error,omitempty"`
}

type cancellationRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// TrackUser records the caller in the user roster the first time their token is seen.
func (h *Handler) TrackUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
		if !ok || h.users == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		_, err := h.users.Get(ctx, claims.Subject)
		if errors.Is(err, users.ErrNotFound) {
			err = h.users.Upsert(ctx, users.User{
				ID:          claims.Subject,
				Email:       claims.Email,
				DisplayName: claims.DisplayName,
				IsAdmin:     claims.IsAdmin(),
				CreatedAt:   time.Now().UTC(),
			})
		}
		if err != nil {
			slog.Warn("recording user failed",
				slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
				slog.String(logkey.UserID, claims.Subject),
				slog.String(logkey.ERROR, err.Error()))
		}
		c.Next()
	}
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	h.placeOrder(c, claims.Subject)
}

// PlaceGuestOrder accepts a checkout without an account; the order is owned by the guest id.
func (h *Handler) PlaceGuestOrder(c *gin.Context) {
	h.placeOrder(c, "")
}

func (h *Handler) placeOrder(c *gin.Context, userID string) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCheckoutBytes)

	var in orders.NewOrder
	if !h.bindJSON(c, &in) {
		return
	}
	in.UserID = userID

	o, err := h.o.PlaceOrder(c.Request.Context(), in)
	middleware.RecordOrderOperation("place", err == nil)
	if err != nil {
		abortWithError(c, "placing order failed", err)
		return
	}
	slog.Info("order placed", slog.String(logkey.TraceID, traceId), slog.String(logkey.OrderID, o.ID),
		slog.String(logkey.UserID, o.UserID))

	resp := placeOrderResponse{Order: o}
	if o.PaymentMethod == orders.PaymentOnline && h.gateway != nil {
		intent, err := h.gateway.CreateIntent(c.Request.Context(), o)
		if err != nil {
			// the order stands; the storefront retries payment from the order page
			slog.Error("creating payment intent failed", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.OrderID, o.ID), slog.String(logkey.ERROR, err.Error()))
			resp.PaymentError = "payment could not be started, retry from the order page"
		} else {
			resp.Payment = &intent
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) MyOrders(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	list, err := h.o.Store().Query(c.Request.Context(), orders.Filter{UserID: claims.Subject})
	if err != nil {
		abortWithError(c, "listing orders failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

// GetOrder returns one order. Customers only see their own; admins see any.
func (h *Handler) GetOrder(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	o, err := h.o.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, "fetching order failed", err)
		return
	}
	if !claims.IsAdmin() && o.UserID != claims.Subject {
		abortWithError(c, "order access denied", orders.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) RequestCancellation(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	var req cancellationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	o, err := h.o.RequestCancellation(c.Request.Context(), c.Param("id"), req.Reason, actorOf(claims))
	middleware.RecordOrderOperation("request_cancellation", err == nil)
	if err != nil {
		abortWithError(c, "requesting cancellation failed", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) StreamMyOrders(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	h.streamOrders(c, orders.Filter{UserID: claims.Subject})
}

// streamOrders pushes the full filtered order list as a server-sent event whenever it
// changes. A slow client only ever receives the latest snapshot.
func (h *Handler) streamOrders(c *gin.Context, f orders.Filter) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates := make(chan []orders.Order, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- h.o.Store().Subscribe(ctx, f, func(list []orders.Order) {
			select {
			case updates <- list:
			default:
				select {
				case <-updates:
				default:
				}
				updates <- list
			}
		})
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case list := <-updates:
			c.SSEvent("orders", list)
			return true
		case err := <-errc:
			if err != nil {
				slog.Error("order stream ended", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
				c.SSEvent("error", gin.H{"error": "order feed unavailable"})
			}
			return false
		}
	})
}
