package ordersvc

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidOrder(t *testing.T, f *fixture) *order.Order {
	t.Helper()
	f.stock(t, 1, 5)
	f.cart(t, "u1", line{1, "10.00", 1})
	o := f.checkout(t, "u1")
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), paymentEvent(o, event.PaymentStatusSuccessful)))

	return o
}

func TestFulfillmentLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := paidOrder(t, f)

	_, err := f.svc.ShipOrder(ctx, o.ID, "TRACK-1")
	assert.ErrorIs(t, err, errs.ErrInvalidTransition, "confirmed orders must be processed first")

	got, err := f.svc.StartProcessing(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, got.Status)

	_, err = f.svc.ShipOrder(ctx, o.ID, "  ")
	assert.ErrorIs(t, err, errs.ErrValidation)

	got, err = f.svc.ShipOrder(ctx, o.ID, "TRACK-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, got.Status)
	assert.Equal(t, "TRACK-1", got.TrackingNumber)

	before := len(f.bus.Published())
	got, err = f.svc.UpdateTracking(ctx, o.ID, "TRACK-2")
	require.NoError(t, err)
	assert.Equal(t, "TRACK-2", got.TrackingNumber)
	tracking := f.published(t)[before:]
	require.Len(t, tracking, 1)
	assert.Equal(t, event.OrderTrackingUpdated, tracking[0].EventType)
	assert.Equal(t, "TRACK-2", tracking[0].Metadata[event.MetaTrackingNumber])
	assert.Equal(t, event.TopicOrderStatusUpdates, tracking[0].Topic())

	got, err = f.svc.DeliverOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, got.Status)

	got, err = f.svc.RefundOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusRefunded, got.Status)
	assert.Equal(t, order.PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, 4, f.available(t, 1), "delivered goods are not restocked")
}

func TestCancelShippedOrderIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := paidOrder(t, f)
	_, err := f.svc.StartProcessing(ctx, o.ID)
	require.NoError(t, err)
	_, err = f.svc.ShipOrder(ctx, o.ID, "TRACK-1")
	require.NoError(t, err)
	before := len(f.bus.Published())

	_, err = f.svc.CancelOrder(ctx, "u1", o.ID, "changed my mind")
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	assert.Equal(t, order.StatusShipped, f.order(t, o.ID).Status)
	assert.Equal(t, 4, f.available(t, 1))
	assert.Len(t, f.bus.Published(), before)
}

func TestCancelPendingOrderRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stock(t, 1, 5)
	f.cart(t, "u1", line{1, "10.00", 3})
	o := f.checkout(t, "u1")
	require.Equal(t, 2, f.available(t, 1))

	_, err := f.svc.CancelOrder(ctx, "u2", o.ID, "")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	before := len(f.bus.Published())
	got, err := f.svc.CancelOrder(ctx, "u1", o.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Equal(t, 5, f.available(t, 1))

	events := f.published(t)[before:]
	assert.Equal(t, []event.OrderEventType{event.OrderCancelled, event.OrderStatusUpdated}, types(events))
	assert.Equal(t, "changed my mind", events[0].Metadata[event.MetaReason])

	// Cancelling again is a no-op and releases nothing.
	_, err = f.svc.CancelOrder(ctx, "u1", o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 5, f.available(t, 1))
	assert.Len(t, f.bus.Published(), before+2)
}

func TestGetAndListOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stock(t, 1, 10)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		f.cart(t, "u1", line{1, "10.00", 1})
		ids = append(ids, f.checkout(t, "u1").ID)
		f.clock.Advance(time.Minute)
	}

	got, err := f.svc.GetOrder(ctx, "u1", ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], got.ID)

	_, err = f.svc.GetOrder(ctx, "u2", ids[0])
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = f.svc.GetOrder(ctx, "u1", uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	page, err := f.svc.ListOrders(ctx, "u1", 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.NotEmpty(t, page[0].Items)

	page, err = f.svc.ListOrders(ctx, "u1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	page, err = f.svc.ListOrders(ctx, "u2", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}
