package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/analytics"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/catalog"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/httpclient"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/payments"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/postal"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/users"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var ext *httpclient.ExternalServiceError
	switch {
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, users.ErrNotFound), errors.Is(err, postal.ErrUnknownPincode):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, orders.ErrValidation), errors.Is(err, catalog.ErrValidation),
		errors.Is(err, analytics.ErrValidation), errors.Is(err, postal.ErrInvalidPincode),
		errors.Is(err, payments.ErrBadSignature):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrStoreUnavailable), errors.Is(err, orders.ErrNoCourier):
		return http.StatusServiceUnavailable
	case errors.As(err, &ext):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// abortWithError logs err under msg and writes the mapped status. Internal errors are not
// echoed to the caller.
func abortWithError(c *gin.Context, msg string, err error) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	code := statusFor(err)
	slog.Error(msg, slog.String(logkey.TraceID, traceId), slog.Int("Status", code), slog.String(logkey.ERROR, err.Error()))

	body := gin.H{"error": err.Error()}
	if code == http.StatusInternalServerError {
		body["error"] = http.StatusText(code)
	}
	var ext *httpclient.ExternalServiceError
	if errors.As(err, &ext) {
		body["service"] = ext.Service
		body["retryable"] = ext.Retryable
	}
	c.AbortWithStatusJSON(code, body)
}

// bindJSON decodes the body into dst and runs struct validation, aborting with 400 on the
// first problem.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	if err := c.ShouldBindJSON(dst); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload: " + err.Error()})
		return false
	}

	err := h.validate.Struct(dst)
	if err == nil {
		return true
	}
	slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		vErr := vErrs[0]
		switch vErr.Tag() {
		case "required":
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value missing"})
		case "min":
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value is less than " + vErr.Param()})
		case "max":
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value is more than " + vErr.Param()})
		default:
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " is invalid"})
		}
		return false
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
	return false
}
