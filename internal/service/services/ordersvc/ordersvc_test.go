package ordersvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	membus "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus/memory"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/config"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/memory"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/cart"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	outboxworker "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/worker/outbox"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc   *OrderService
	store *memory.Store
	bus   *membus.Bus
	clock *clock
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewStore(),
		bus:   membus.New(1, membus.WithCapture()),
		clock: &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	base := []option{
		WithUnitOfWork(f.store),
		WithPublisher(f.bus),
		WithClock(f.clock.Now),
	}
	f.svc = MustNewOrderService(append(base, opts...)...)

	return f
}

func (f *fixture) stock(t *testing.T, productID int64, available int) {
	t.Helper()
	require.NoError(t, f.store.Ledger().SetStock(context.Background(), productID, available, 0))
}

func (f *fixture) available(t *testing.T, productID int64) int {
	t.Helper()
	n, err := f.store.Ledger().Available(context.Background(), productID)
	require.NoError(t, err)

	return n
}

type line struct {
	productID int64
	price     string
	qty       int
}

func (f *fixture) cart(t *testing.T, userID string, lines ...line) *cart.Cart {
	t.Helper()
	now := f.clock.Now()
	c := cart.New(userID, now)
	for _, l := range lines {
		c.Items = append(c.Items, cart.Item{
			ID:          uuid.New(),
			CartID:      c.ID,
			ProductID:   l.productID,
			ProductName: "product",
			UnitPrice:   decimal.RequireFromString(l.price),
			Quantity:    l.qty,
		})
	}
	c.Recalculate(now)
	require.NoError(t, f.store.CartRepository().Save(context.Background(), c))

	return c
}

func (f *fixture) checkout(t *testing.T, userID string) *order.Order {
	t.Helper()
	o, err := f.svc.Checkout(context.Background(), checkoutRequest(userID))
	require.NoError(t, err)

	return o
}

func (f *fixture) published(t *testing.T, topics ...string) []event.OrderEvent {
	t.Helper()
	var out []event.OrderEvent
	for _, m := range f.bus.Published(topics...) {
		e, err := event.DecodeOrderEvent(m.Value)
		require.NoError(t, err)
		out = append(out, e)
	}

	return out
}

func (f *fixture) order(t *testing.T, id uuid.UUID) *order.Order {
	t.Helper()
	o, err := f.store.OrderRepository().Get(context.Background(), id)
	require.NoError(t, err)

	return o
}

func checkoutRequest(userID string) CheckoutRequest {
	return CheckoutRequest{
		UserID:        userID,
		PaymentMethod: order.PaymentMethodCreditCard,
		Delivery: order.DeliveryInfo{
			RecipientName: "Ada",
			Phone:         "+100000000",
			AddressLine1:  "1 Main St",
			City:          "Springfield",
			PostalCode:    "12345",
			Country:       "US",
		},
	}
}

func paymentEvent(o *order.Order, status event.PaymentEventStatus) event.PaymentEvent {
	return event.PaymentEvent{
		EventID:   uuid.NewString(),
		EventType: event.PaymentVerificationCompleted,
		OrderID:   o.ID.String(),
		UserID:    o.UserID,
		Amount:    event.NewAmount(o.Total),
		Status:    status,
		Metadata:  map[string]string{event.MetaTransactionID: "txn-1"},
		Timestamp: time.Now(),
	}
}

func types(events []event.OrderEvent) []event.OrderEventType {
	out := make([]event.OrderEventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}

	return out
}

func TestCheckout_SingleItemTotals(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 1, 5)
	f.cart(t, "u1", line{1, "10.00", 1})

	o := f.checkout(t, "u1")

	assert.Equal(t, "10.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "1.00", o.TaxAmount.StringFixed(2))
	assert.Equal(t, "15.00", o.ShippingAmount.StringFixed(2))
	assert.Equal(t, "26.00", o.Total.StringFixed(2))
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.TaxAmount).Add(o.ShippingAmount)))
	assert.True(t, o.Subtotal.Equal(o.ItemsSubtotal()))
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.Equal(t, 4, f.available(t, 1))

	_, err := f.store.CartRepository().GetActive(context.Background(), "u1")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	stored := f.order(t, o.ID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "product", stored.Items[0].ProductName)

	created := f.published(t, event.TopicOrderEvents)
	require.Len(t, created, 1)
	assert.Equal(t, event.OrderCreated, created[0].EventType)
	assert.Equal(t, o.ID.String(), created[0].OrderID)

	verify := f.published(t, event.TopicPaymentVerification)
	require.Len(t, verify, 1)
	assert.Equal(t, event.PaymentVerificationRequested, verify[0].EventType)
	assert.Equal(t, "26.00", verify[0].Amount.String())
	assert.Equal(t, "CREDIT_CARD", verify[0].Metadata[event.MetaPaymentMethod])
	assert.Equal(t, o.ID.String(), string(f.bus.Published(event.TopicPaymentVerification)[0].Key))
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), checkoutRequest("nobody"))
	assert.ErrorIs(t, err, errs.ErrEmptyCart)

	f.cart(t, "u1")
	_, err = f.svc.Checkout(context.Background(), checkoutRequest("u1"))
	assert.ErrorIs(t, err, errs.ErrEmptyCart)

	orders, err := f.store.OrderRepository().Query(context.Background(), &order.QueryOrdersModel{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.bus.Published())
}

func TestCheckout_InvalidPaymentMethod(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 1, 5)
	f.cart(t, "u1", line{1, "10.00", 1})

	req := checkoutRequest("u1")
	req.PaymentMethod = "BARTER"
	_, err := f.svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, 5, f.available(t, 1))
}

func TestCheckout_LastUnitRace(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 1, 1)
	f.cart(t, "u1", line{1, "10.00", 1})
	f.cart(t, "u2", line{1, "10.00", 1})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, user := range []string{"u1", "u2"} {
		i, user := i, user
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = f.svc.Checkout(context.Background(), checkoutRequest(user))
		}()
	}
	wg.Wait()

	var ok, short int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errs.ErrInsufficientStock):
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 0, f.available(t, 1))
}

func TestCheckout_AllOrNothingReservation(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 1, 5)
	f.stock(t, 2, 1)
	c := f.cart(t, "u1", line{1, "10.00", 2}, line{2, "3.00", 2})

	_, err := f.svc.Checkout(context.Background(), checkoutRequest("u1"))
	assert.ErrorIs(t, err, errs.ErrInsufficientStock)

	assert.Equal(t, 5, f.available(t, 1))
	assert.Equal(t, 1, f.available(t, 2))
	active, err := f.store.CartRepository().GetActive(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, active.ID)
	assert.Len(t, active.Items, 2)
}

func TestCheckout_PersistFailureReleasesStock(t *testing.T) {
	for _, op := range []string{memory.OpOrderInsert, memory.OpCartConvert} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t)
			f.stock(t, 1, 5)
			f.cart(t, "u1", line{1, "10.00", 3})
			f.store.FailNext(op, errors.New("connection reset"))

			_, err := f.svc.Checkout(context.Background(), checkoutRequest("u1"))
			require.Error(t, err)

			assert.Equal(t, 5, f.available(t, 1))
			_, err = f.store.CartRepository().GetActive(context.Background(), "u1")
			assert.NoError(t, err)
			assert.Empty(t, f.bus.Published())
		})
	}
}

func TestCheckout_PublishFailureGoesToOutbox(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 1, 5)
	f.cart(t, "u1", line{1, "10.00", 1})
	f.bus.FailNext(errors.New("broker down"))

	o := f.checkout(t, "u1")
	assert.Equal(t, order.StatusPending, f.order(t, o.ID).Status)
	assert.Empty(t, f.bus.Published())

	msgs, err := f.store.OutboxRepository().GetPendingMessages(context.Background(), f.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	topics := []string{msgs[0].Topic, msgs[1].Topic}
	assert.ElementsMatch(t, []string{event.TopicOrderEvents, event.TopicPaymentVerification}, topics)
	assert.Equal(t, o.ID.String(), msgs[0].PartitionKey)
	assert.Equal(t, "broker down", msgs[0].LastError)
	assert.Equal(t, event.ContentTypeJSON, msgs[0].Headers[event.HeaderContentType])
}

func TestPublish_LaterEventsQueueBehindParkedOnes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stock(t, 1, 5)
	f.cart(t, "u1", line{1, "10.00", 1})
	o := f.checkout(t, "u1")

	f.bus.FailNext(errors.New("broker down"))
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, paymentEvent(o, event.PaymentStatusSuccessful)))

	_, err := f.svc.CancelOrder(ctx, "u1", o.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, []event.OrderEventType{event.OrderCreated}, types(f.published(t, event.TopicOrderEvents)),
		"the cancellation must not overtake the parked confirmation")

	relay := outboxworker.NewWorker(f.store.OutboxRepository(), f.bus, nil, config.WorkerConfig{
		PollInterval: 5 * time.Millisecond,
		BatchSize:    10,
		RetryBase:    time.Millisecond,
	})
	go relay.Start(ctx)
	t.Cleanup(relay.Stop)

	require.Eventually(t, func() bool {
		pending, err := f.store.OutboxRepository().HasPending(ctx, o.ID.String())

		return err == nil && !pending
	}, 2*time.Second, 5*time.Millisecond)

	got := types(f.published(t, event.TopicOrderEvents))
	require.Len(t, got, 4)
	assert.Equal(t, event.OrderCreated, got[0])
	assert.ElementsMatch(t, []event.OrderEventType{event.OrderConfirmed, event.OrderPaid}, got[1:3])
	assert.Equal(t, event.OrderCancelled, got[3])

	stored := f.order(t, o.ID)
	assert.Equal(t, order.StatusCancelled, stored.Status)
}

func TestPricing_Quote(t *testing.T) {
	p := Pricing{
		TaxRate:               decimal.RequireFromString("0.075"),
		FlatShipping:          decimal.RequireFromString("15.00"),
		FreeShippingThreshold: decimal.RequireFromString("100"),
	}

	q := p.Quote(decimal.RequireFromString("33.33"))
	assert.Equal(t, "2.50", q.Tax.StringFixed(2))
	assert.Equal(t, "15.00", q.Shipping.StringFixed(2))
	assert.Equal(t, "50.83", q.Total.StringFixed(2))

	q = p.Quote(decimal.RequireFromString("100"))
	assert.True(t, q.Shipping.IsZero())
	assert.Equal(t, "107.50", q.Total.StringFixed(2))

	q = DefaultPricing().Quote(decimal.RequireFromString("1000"))
	assert.Equal(t, "15.00", q.Shipping.StringFixed(2), "zero threshold never waives shipping")
}
