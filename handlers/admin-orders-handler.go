package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/middleware"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type bulkStatusRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=500,dive,required"`
	Status string   `json:"status" validate:"required"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,required"`
}

type resolveRequest struct {
	Decision        string `json:"decision" validate:"required"`
	RejectionReason string `json:"rejection_reason" validate:"max=500"`
}

type bulkItem struct {
	ID     string        `json:"id"`
	OK     bool          `json:"ok"`
	Status orders.Status `json:"status,omitempty"`
	Error  string        `json:"error,omitempty"`
}

type bulkResponse struct {
	Results   []bulkItem `json:"results"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
}

func toBulkResponse(results []orders.BulkResult) bulkResponse {
	resp := bulkResponse{Results: make([]bulkItem, 0, len(results))}
	for _, r := range results {
		item := bulkItem{ID: r.ID, OK: r.Err == nil, Status: r.Order.Status}
		if r.Err != nil {
			item.Error = r.Err.Error()
			resp.Failed++
		} else {
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}

// orderFilter reads user_id, status, from and to (YYYY-MM-DD, to inclusive) query parameters.
func orderFilter(c *gin.Context) (orders.Filter, error) {
	f := orders.Filter{UserID: c.Query("user_id")}
	if raw := c.Query("status"); raw != "" {
		st, err := orders.ParseStatus(raw)
		if err != nil {
			return orders.Filter{}, err
		}
		f.Status = st
	}
	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return orders.Filter{}, &dateError{param: key, err: err}
		}
		*dst = t
	}
	if !f.To.IsZero() {
		f.To = f.To.AddDate(0, 0, 1)
	}
	return f, nil
}

type dateError struct {
	param string
	err   error
}

func (e *dateError) Error() string { return e.param + " must be YYYY-MM-DD: " + e.err.Error() }
func (e *dateError) Unwrap() error { return orders.ErrValidation }

func (h *Handler) ListOrders(c *gin.Context) {
	f, err := orderFilter(c)
	if err != nil {
		abortWithError(c, "invalid order filter", err)
		return
	}
	list, err := h.o.Store().Query(c.Request.Context(), f)
	if err != nil {
		abortWithError(c, "listing orders failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}

func (h *Handler) StreamOrders(c *gin.Context) {
	f, err := orderFilter(c)
	if err != nil {
		abortWithError(c, "invalid order filter", err)
		return
	}
	h.streamOrders(c, f)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	var req statusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		abortWithError(c, "invalid status", err)
		return
	}
	o, err := h.o.AdvanceStatus(c.Request.Context(), c.Param("id"), to, actorOf(claims))
	middleware.RecordOrderOperation("advance_status", err == nil)
	if err != nil {
		abortWithError(c, "advancing status failed", err)
		return
	}
	slog.Info("order status updated", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
		slog.String(logkey.OrderID, o.ID), slog.String(logkey.Status, string(o.Status)),
		slog.String(logkey.Actor, claims.Subject))
	c.JSON(http.StatusOK, o)
}

func (h *Handler) BulkUpdateStatus(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	var req bulkStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		abortWithError(c, "invalid status", err)
		return
	}
	resp := toBulkResponse(h.o.BulkAdvanceStatus(c.Request.Context(), req.IDs, to, actorOf(claims)))
	middleware.RecordOrderOperation("bulk_advance_status", resp.Failed == 0)
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) BulkDelete(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	var req bulkDeleteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp := toBulkResponse(h.o.BulkDelete(c.Request.Context(), req.IDs, actorOf(claims)))
	middleware.RecordOrderOperation("bulk_delete", resp.Failed == 0)
	slog.Info("orders deleted", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
		slog.Int("Deleted", resp.Succeeded), slog.String(logkey.Actor, claims.Subject))
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ResolveCancellation(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	var req resolveRequest
	if !h.bindJSON(c, &req) {
		return
	}
	decision, err := orders.ParseDecision(req.Decision)
	if err != nil {
		abortWithError(c, "invalid decision", err)
		return
	}
	o, err := h.o.ResolveCancellation(c.Request.Context(), c.Param("id"), decision, actorOf(claims), req.RejectionReason)
	middleware.RecordOrderOperation("resolve_cancellation", err == nil)
	if err != nil {
		abortWithError(c, "resolving cancellation failed", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) Dispatch(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	o, err := h.o.Dispatch(c.Request.Context(), c.Param("id"), actorOf(claims))
	middleware.RecordOrderOperation("dispatch", err == nil)
	if err != nil {
		abortWithError(c, "dispatching order failed", err)
		return
	}
	c.JSON(http.StatusOK, o)
}
