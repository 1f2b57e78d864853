package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/analytics"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/auth"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/catalog"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/httpclient"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/payments"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/postal"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/stores/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
)

const (
	prefix        = "/v1"
	webhookSecret = "whsec_handlers"
)

type testEnv struct {
	router *gin.Engine
	keys   *auth.Keys
	store  *memory.OrderStore
	users  *memory.UserStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	keys, err := auth.NewKeys("handler-test-secret", "")
	require.NoError(t, err)

	store := memory.NewOrderStore()
	cat, err := catalog.NewConf(memory.NewCatalogStore(), memory.NewCache(), time.Minute)
	require.NoError(t, err)
	conf, err := orders.NewConf(store,
		orders.WithPricer(cat),
		orders.WithEffect(orders.StatusAccepted, cat.StockEffect()))
	require.NoError(t, err)
	wh, err := payments.NewWebhook(webhookSecret, conf)
	require.NoError(t, err)
	userStore := memory.NewUserStore()

	r, err := API(prefix, gin.TestMode, keys, Deps{
		Orders:    conf,
		Catalog:   cat,
		Analytics: analytics.NewAggregator(store, userStore, 60*24*time.Hour),
		Users:     userStore,
		Webhook:   wh,
	})
	require.NoError(t, err)
	return &testEnv{router: r, keys: keys, store: store, users: userStore}
}

func (e *testEnv) token(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	tok, err := e.keys.GenerateToken(subject, roles, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, prefix+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seedProduct creates a category and a product priced 200 per kg with 10 in stock.
func (e *testEnv) seedProduct(t *testing.T, admin string) catalog.Product {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/admin/catalog/categories", admin, gin.H{"name": "Organic Powder"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decode[catalog.Category](t, rec)

	rec = e.do(t, http.MethodPost, "/admin/catalog/products", admin, gin.H{
		"name": "Moringa Powder", "category_id": cat.ID, "price": "200", "stock": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[catalog.Product](t, rec)
}

func checkout(productID string, qty int, total string) gin.H {
	body := gin.H{
		"items":          []gin.H{{"product_id": productID, "quantity": qty}},
		"payment_method": "cod",
		"shipping_address": gin.H{
			"name": "Asha", "phone": "9876543210", "line1": "12 MG Road",
			"city": "Pune", "state": "Maharashtra", "pincode": "411001",
		},
	}
	if total != "" {
		body["total_amount"] = total
	}
	return body
}

type placed struct {
	Order orders.Order `json:"order"`
}

func TestPlaceOrderRecomputesTotal(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "admin-1", auth.RoleAdmin)
	customer := env.token(t, "cust-1", auth.RoleUser)
	p := env.seedProduct(t, admin)

	rec := env.do(t, http.MethodPost, "/orders", customer, checkout(p.ID, 2, "399"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/orders", customer, checkout(p.ID, 2, "400"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decode[placed](t, rec).Order
	assert.Equal(t, "cust-1", got.UserID)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Equal(t, "400.00", got.TotalAmount.StringFixed(2))
	assert.Equal(t, "Moringa Powder", got.Items[0].Name)

	_, err := env.users.Get(context.Background(), "cust-1")
	assert.NoError(t, err, "first authenticated call records the user")

	rec = env.do(t, http.MethodPost, "/orders", "", checkout(p.ID, 1, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceGuestOrder(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, env.token(t, "admin-1", auth.RoleAdmin))

	rec := env.do(t, http.MethodPost, "/orders/guest", "", checkout(p.ID, 1, ""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, orders.GuestUserID, decode[placed](t, rec).Order.UserID)

	bad := checkout(p.ID, 1, "")
	bad["shipping_address"].(gin.H)["phone"] = "12"
	rec = env.do(t, http.MethodPost, "/orders/guest", "", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderOwnership(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "admin-1", auth.RoleAdmin)
	p := env.seedProduct(t, admin)

	rec := env.do(t, http.MethodPost, "/orders", env.token(t, "cust-1", auth.RoleUser), checkout(p.ID, 1, ""))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[placed](t, rec).Order.ID

	rec = env.do(t, http.MethodGet, "/orders/"+id, env.token(t, "cust-2", auth.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodGet, "/orders/"+id, admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/orders/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/orders/mine", env.token(t, "cust-2", auth.RoleUser), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct {
		Orders []orders.Order `json:"orders"`
	}](t, rec).Orders)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	customer := env.token(t, "cust-1", auth.RoleUser)

	for _, path := range []string{"/admin/orders", "/admin/analytics"} {
		rec := env.do(t, http.MethodGet, path, customer, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
	rec := env.do(t, http.MethodPut, "/admin/orders/o1/status", customer, gin.H{"status": "Accepted"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStatusFlowAndStock(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "admin-1", auth.RoleAdmin)
	p := env.seedProduct(t, admin)

	rec := env.do(t, http.MethodPost, "/orders", env.token(t, "cust-1", auth.RoleUser), checkout(p.ID, 2, ""))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[placed](t, rec).Order.ID

	rec = env.do(t, http.MethodPut, "/admin/orders/"+id+"/status", admin, gin.H{"status": "Shipped"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "pending cannot jump to shipped")

	rec = env.do(t, http.MethodPut, "/admin/orders/"+id+"/status", admin, gin.H{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orders.StatusAccepted, decode[orders.Order](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/catalog/products/"+p.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, decode[catalog.Product](t, rec).Stock)

	rec = env.do(t, http.MethodPut, "/admin/orders/"+id+"/status", admin, gin.H{"status": "Lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/orders/"+id+"/dispatch", admin, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no courier configured")
}

func TestCancellationFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "admin-1", auth.RoleAdmin)
	customer := env.token(t, "cust-1", auth.RoleUser)
	p := env.seedProduct(t, admin)

	rec := env.do(t, http.MethodPost, "/orders", customer, checkout(p.ID, 1, ""))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[placed](t, rec).Order.ID

	rec = env.do(t, http.MethodPost, "/orders/"+id+"/cancellation", customer, gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "reason is required")

	rec = env.do(t, http.MethodPost, "/orders/"+id+"/cancellation", env.token(t, "cust-2", auth.RoleUser), gin.H{"reason": "mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/orders/"+id+"/cancellation", customer, gin.H{"reason": "ordered twice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[orders.Order](t, rec)
	require.NotNil(t, got.CancellationRequest)
	assert.Equal(t, orders.CancellationPending, got.CancellationRequest.Status)

	rec = env.do(t, http.MethodPost, "/orders/"+id+"/cancellation", customer, gin.H{"reason": "again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/orders/"+id+"/cancellation/resolve", admin, gin.H{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/orders/"+id+"/cancellation/resolve", admin, gin.H{"decision": "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orders.StatusCancelled, decode[orders.Order](t, rec).Status)
}

func TestBulkEndpoints(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "admin-1", auth.RoleAdmin)
	customer := env.token(t, "cust-1", auth.RoleUser)
	p := env.seedProduct(t, admin)

	var ids []string
	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/orders", customer, checkout(p.ID, 1, ""))
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[placed](t, rec).Order.ID)
	}

	rec := env.do(t, http.MethodPost, "/admin/orders/bulk-status", admin, gin.H{"ids": []string{}, "status": "Accepted"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/orders/bulk-status", admin,
		gin.H{"ids": append(ids, "missing"), "status": "Accepted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[bulkResponse](t, rec)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	assert.False(t, resp.Results[2].OK)
	assert.NotEmpty(t, resp.Results[2].Error)

	rec = env.do(t, http.MethodPost, "/admin/orders/bulk-delete", admin, gin.H{"ids": ids[:1]})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[bulkResponse](t, rec).Succeeded)

	rec = env.do(t, http.MethodGet, "/admin/orders?status=Accepted", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Orders []orders.Order `json:"orders"`
	}](t, rec).Orders, 1)

	rec = env.do(t, http.MethodGet, "/admin/orders?from=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "admin-1", auth.RoleAdmin)
	p := env.seedProduct(t, admin)
	rec := env.do(t, http.MethodPost, "/orders", env.token(t, "cust-1", auth.RoleUser), checkout(p.ID, 3, ""))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/admin/analytics?period=all", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[analytics.Report](t, rec)
	assert.Equal(t, 1, report.Revenue.Orders)
	require.Len(t, report.Products, 1)
	assert.Equal(t, 3, report.Products[0].Quantity)

	rec = env.do(t, http.MethodGet, "/admin/analytics?period=all&payment_method=online", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[analytics.Report](t, rec).Revenue.Orders)

	for _, q := range []string{"period=fortnight", "period=custom&start=2024-05-10&end=2024-05-01", "segment=vip", "payment_method=upi"} {
		rec = env.do(t, http.MethodGet, "/admin/analytics?"+q, admin, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestCatalogCRUD(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "admin-1", auth.RoleAdmin)
	p := env.seedProduct(t, admin)

	rec := env.do(t, http.MethodPost, "/admin/catalog/categories", admin, gin.H{"name": " organic  powder"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "duplicate name")

	rec = env.do(t, http.MethodGet, "/catalog/products?category="+p.CategoryID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Products []catalog.Product `json:"products"`
	}](t, rec).Products
	require.Len(t, list, 1)
	assert.Len(t, list[0].Sizes, len(catalog.DefaultPackGrams))

	rec = env.do(t, http.MethodDelete, "/admin/catalog/categories/"+p.CategoryID, admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "category still has products")

	rec = env.do(t, http.MethodDelete, "/admin/catalog/products/"+p.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/catalog/products/"+p.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/admin/catalog/categories/"+p.CategoryID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func stripePayload(typ, orderID string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"api_version":"2024-06-20",
		"data":{"object":{"id":"pi_42","object":"payment_intent","metadata":{"order_id":%q}}}}`, typ, orderID))
}

func (e *testEnv) webhook(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, prefix+"/webhook/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhook(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, env.token(t, "admin-1", auth.RoleAdmin))
	body := checkout(p.ID, 1, "")
	body["payment_method"] = "online"
	rec := env.do(t, http.MethodPost, "/orders", env.token(t, "cust-1", auth.RoleUser), body)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[placed](t, rec).Order.ID

	payload := stripePayload("payment_intent.succeeded", id)
	rec = env.webhook(t, payload, "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload, Secret: webhookSecret, Timestamp: time.Now(),
	})
	rec = env.webhook(t, payload, signed.Header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode[gin.H](t, rec)["handled"])

	o, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, "pi_42", o.PaymentRef)

	payload = stripePayload("payment_intent.succeeded", "")
	signed = webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload, Secret: webhookSecret, Timestamp: time.Now(),
	})
	rec = env.webhook(t, payload, signed.Header)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[gin.H](t, rec)["handled"])
}

func TestUnconfiguredCollaborators(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "admin-1", auth.RoleAdmin)

	rec := env.do(t, http.MethodGet, "/postal/411001", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = env.do(t, http.MethodGet, "/admin/couriers/pincode/411001", admin, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamMyOrders(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.store.Create(context.Background(), orders.Order{
		UserID: "cust-1", Status: orders.StatusPending, PaymentMethod: orders.PaymentCOD,
		PaymentStatus: orders.PaymentPending, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+prefix+"/orders/mine/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "cust-1", auth.RoleUser))

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimPrefix(line, "event:")
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
			break
		}
	}
	assert.Equal(t, "orders", event)
	var list []orders.Order
	require.NoError(t, json.Unmarshal([]byte(data), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "cust-1", list[0].UserID)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"order not found", orders.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("loading: %w", catalog.ErrNotFound), http.StatusNotFound},
		{"forbidden", orders.ErrForbidden, http.StatusForbidden},
		{"conflict", orders.ErrConflict, http.StatusConflict},
		{"invalid transition", orders.ErrInvalidTransition, http.StatusBadRequest},
		{"category in use", catalog.ErrInUse, http.StatusBadRequest},
		{"bad pincode", postal.ErrInvalidPincode, http.StatusBadRequest},
		{"unknown pincode", postal.ErrUnknownPincode, http.StatusNotFound},
		{"store down", orders.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"upstream", &httpclient.ExternalServiceError{Service: "courier", StatusCode: 502}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
