package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/analytics"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/auth"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/catalog"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/couriers"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/payments"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/postal"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/users"
	"github.com/SakshiC19/Satva-Organic-sub000/middleware"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services the HTTP API is built on. Orders, Catalog and Analytics are required;
// a nil collaborator disables the routes that need it with 503.
type Deps struct {
	Orders    *orders.Conf
	Catalog   *catalog.Conf
	Analytics *analytics.Aggregator
	Users     users.Store
	Postal    *postal.Client
	Couriers  *couriers.Client
	Webhook   *payments.Webhook
	Gateway   *payments.Gateway
}

type Handler struct {
	o        *orders.Conf
	cat      *catalog.Conf
	an       *analytics.Aggregator
	users    users.Store
	postal   *postal.Client
	couriers *couriers.Client
	webhook  *payments.Webhook
	gateway  *payments.Gateway
	validate *validator.Validate
}

func NewHandler(d Deps) (*Handler, error) {
	if d.Orders == nil || d.Catalog == nil || d.Analytics == nil {
		return nil, errors.New("orders, catalog and analytics are required")
	}
	return &Handler{
		o:        d.Orders,
		cat:      d.Catalog,
		an:       d.Analytics,
		users:    d.Users,
		postal:   d.Postal,
		couriers: d.Couriers,
		webhook:  d.Webhook,
		gateway:  d.Gateway,
		validate: validator.New(),
	}, nil
}

func API(endpointPrefix, ginMode string, k *auth.Keys, d Deps) (*gin.Engine, error) {
	if ginMode == gin.ReleaseMode || ginMode == gin.TestMode {
		gin.SetMode(ginMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	m, err := middleware.NewMid(k)
	if err != nil {
		return nil, err
	}
	h, err := NewHandler(d)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.Logger(), middleware.Prometheus(), gin.Recovery())
	r.GET("/ping", HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group(endpointPrefix)
	{
		v1.GET("/ping", HealthCheck)
		v1.POST("/webhook/stripe", h.StripeWebhook)
		v1.GET("/postal/:pincode", h.PostalLookup)
		v1.GET("/catalog/categories", h.ListCategories)
		v1.GET("/catalog/categories/:id", h.GetCategory)
		v1.GET("/catalog/products", h.ListProducts)
		v1.GET("/catalog/products/:id", h.GetProduct)
		v1.POST("/orders/guest", h.PlaceGuestOrder)
	}

	customer := r.Group(endpointPrefix)
	{
		customer.Use(m.Authentication(), h.TrackUser())
		customer.POST("/orders", h.PlaceOrder)
		customer.GET("/orders/mine", h.MyOrders)
		customer.GET("/orders/mine/stream", h.StreamMyOrders)
		customer.GET("/orders/:id", h.GetOrder)
		customer.POST("/orders/:id/cancellation", h.RequestCancellation)
	}

	admin := r.Group(endpointPrefix + "/admin")
	{
		admin.Use(m.Authentication())
		admin.GET("/orders", m.Authorize(h.ListOrders, auth.RoleAdmin))
		admin.GET("/orders/stream", m.Authorize(h.StreamOrders, auth.RoleAdmin))
		admin.PUT("/orders/:id/status", m.Authorize(h.UpdateStatus, auth.RoleAdmin))
		admin.POST("/orders/bulk-status", m.Authorize(h.BulkUpdateStatus, auth.RoleAdmin))
		admin.POST("/orders/bulk-delete", m.Authorize(h.BulkDelete, auth.RoleAdmin))
		admin.POST("/orders/:id/cancellation/resolve", m.Authorize(h.ResolveCancellation, auth.RoleAdmin))
		admin.POST("/orders/:id/dispatch", m.Authorize(h.Dispatch, auth.RoleAdmin))

		admin.GET("/analytics", m.Authorize(h.Analytics, auth.RoleAdmin))

		admin.POST("/catalog/categories", m.Authorize(h.CreateCategory, auth.RoleAdmin))
		admin.PUT("/catalog/categories/:id", m.Authorize(h.UpdateCategory, auth.RoleAdmin))
		admin.DELETE("/catalog/categories/:id", m.Authorize(h.DeleteCategory, auth.RoleAdmin))
		admin.POST("/catalog/products", m.Authorize(h.CreateProduct, auth.RoleAdmin))
		admin.PUT("/catalog/products/:id", m.Authorize(h.UpdateProduct, auth.RoleAdmin))
		admin.DELETE("/catalog/products/:id", m.Authorize(h.DeleteProduct, auth.RoleAdmin))

		admin.GET("/couriers/pincode/:pincode", m.Authorize(h.CourierPincode, auth.RoleAdmin))
		admin.GET("/couriers/areas", m.Authorize(h.CourierAreas, auth.RoleAdmin))
	}
	return r, nil
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// claimsOf returns the verified caller, aborting with 401 when Authentication did not run.
func claimsOf(c *gin.Context) (auth.Claims, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return auth.Claims{}, false
	}
	return claims, true
}

func actorOf(claims auth.Claims) orders.Actor {
	return orders.Actor{ID: claims.Subject, Admin: claims.IsAdmin()}
}

// notConfigured aborts with 503 for routes whose collaborator is absent in this deployment.
func notConfigured(c *gin.Context, what string) {
	slog.Error(what+" is not configured", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)))
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": what + " is not configured"})
}
