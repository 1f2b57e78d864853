package handlers

import (
	"net/http"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/analytics"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"

	"github.com/gin-gonic/gin"
)

// Analytics builds the dashboard report. Query parameters:
//
//	period          today|week|month|year|all|custom (default month)
//	start, end      YYYY-MM-DD, required for custom, end inclusive
//	category        category name
//	product         product id
//	payment_method  cod|online
//	segment         one-time|repeat|frequent
func (h *Handler) Analytics(c *gin.Context) {
	w, err := analytics.ParseWindow(c.Query("period"), c.Query("start"), c.Query("end"), h.an.Now())
	if err != nil {
		abortWithError(c, "invalid analytics window", err)
		return
	}
	seg, err := analytics.ParseSegment(c.Query("segment"))
	if err != nil {
		abortWithError(c, "invalid analytics segment", err)
		return
	}
	q := analytics.Query{
		Window: w,
		Facets: analytics.Facets{
			Category:  c.Query("category"),
			ProductID: c.Query("product"),
			Segment:   seg,
		},
	}
	if raw := c.Query("payment_method"); raw != "" {
		pm, err := orders.ParsePaymentMethod(raw)
		if err != nil {
			abortWithError(c, "invalid payment method", err)
			return
		}
		q.Facets.PaymentMethod = pm
	}

	report, err := h.an.Report(c.Request.Context(), q)
	if err != nil {
		abortWithError(c, "building analytics report failed", err)
		return
	}
	c.JSON(http.StatusOK, report.Rounded())
}
