package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/payments"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
)

const maxWebhookBytes = int64(65536)

// StripeWebhook verifies and applies a payment callback. The signature covers the raw body,
// so the payload is read as bytes and never re-encoded.
func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.webhook == nil {
		notConfigured(c, "payment webhook")
		return
	}
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("reading webhook body failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}

	res, err := h.webhook.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, payments.ErrNoOrderRef) {
		// not one of our intents; acknowledge so stripe stops retrying
		slog.Warn("payment without order reference", slog.String(logkey.TraceID, traceId),
			slog.String("EventType", res.EventType), slog.String(logkey.ERROR, err.Error()))
		c.JSON(http.StatusOK, gin.H{"received": true, "handled": false})
		return
	}
	if err != nil {
		abortWithError(c, "processing payment webhook failed", err)
		return
	}
	if res.Handled {
		slog.Info("payment webhook applied", slog.String(logkey.TraceID, traceId),
			slog.String("EventType", res.EventType), slog.String(logkey.OrderID, res.OrderID))
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "handled": res.Handled})
}
