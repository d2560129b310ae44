package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/config"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/product"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryApp(t *testing.T) *App {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("server.http.port", "0")
	viper.Set("storage.driver", "memory")
	viper.Set("bus.driver", "memory")
	viper.Set("outbox.poll_interval", 50*time.Millisecond)
	viper.Set("inbox.poll_interval", 50*time.Millisecond)

	return MustNewApp()
}

func post(t *testing.T, h http.Handler, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("X-User-ID", user)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestApp_CheckoutIsConfirmedByResponder(t *testing.T) {
	a := newMemoryApp(t)
	ctx := context.Background()
	require.NoError(t, a.store.Catalog().UpsertProduct(ctx, product.Product{
		ID: 7, Name: "Kettle", UnitPrice: decimal.RequireFromString("30.00"),
	}))
	require.NoError(t, a.store.Ledger().SetStock(ctx, 7, 5, 1))

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	a.start(runCtx, &wg)
	t.Cleanup(func() { a.shutdown(cancel, &wg) })

	h := a.transport.Handler()
	rec := post(t, h, "/api/cart/items", "u1", map[string]any{"productId": 7, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = post(t, h, "/api/orders", "u1", map[string]any{
		"paymentMethod": "DEBIT_CARD",
		"delivery": map[string]any{
			"recipientName": "Grace Hopper",
			"phone":         "+1 555 0100",
			"addressLine1":  "1 Navy Way",
			"city":          "Arlington",
			"postalCode":    "22202",
			"country":       "US",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		OrderID string `json:"orderId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	orderID := uuid.MustParse(created.OrderID)

	require.Eventually(t, func() bool {
		o, err := a.store.OrderRepository().Get(ctx, orderID)

		return err == nil && o.Status == order.StatusConfirmed && o.PaymentStatus == order.PaymentPaid
	}, 2*time.Second, 10*time.Millisecond)

	o, err := a.store.OrderRepository().Get(ctx, orderID)
	require.NoError(t, err)
	assert.NotEmpty(t, o.PaymentTransactionID)

	available, err := a.store.Ledger().Available(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, available)
}

func TestMustNewApp_SeedsMemoryStore(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("server.http.port", "0")
	viper.Set("storage.driver", "memory")
	viper.Set("bus.driver", "memory")
	viper.Set("seed.products", []map[string]any{
		{"id": 3, "name": "Teapot", "image_url": "teapot.png", "unit_price": "19.90", "stock": 12, "min_threshold": 2},
	})

	a := MustNewApp()
	ctx := context.Background()

	p, err := a.store.Catalog().GetProduct(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Teapot", p.Name)
	assert.Equal(t, "19.90", p.UnitPrice.StringFixed(2))

	available, err := a.store.Ledger().Available(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 12, available)
}

func TestMustNewApp_InvalidSeedPricePanics(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("storage.driver", "memory")
	viper.Set("seed.products", []map[string]any{{"id": 1, "name": "Bad", "unit_price": "abc"}})

	assert.Panics(t, func() { MustNewApp() })
}

func TestMustNewApp_UnknownDriverPanics(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("storage.driver", "sqlite")

	assert.Panics(t, func() { MustNewApp() })
}
