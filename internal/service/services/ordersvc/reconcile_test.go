package ordersvc

import (
	"context"
	"testing"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_RepublishesThenCancels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithReconcilePolicy(ReconcilePolicy{
		PendingTimeout: 10 * time.Minute,
		MaxAttempts:    2,
		BatchSize:      10,
	}))
	f.stock(t, 1, 5)
	f.cart(t, "u1", line{1, "10.00", 2})
	o := f.checkout(t, "u1")
	require.Equal(t, 3, f.available(t, 1))

	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, report, "fresh orders are left alone")

	for attempt := 1; attempt <= 2; attempt++ {
		f.clock.Advance(11 * time.Minute)
		report, err = f.svc.Reconcile(ctx)
		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{Republished: 1}, report)
		assert.Equal(t, attempt, f.order(t, o.ID).VerificationAttempts)
	}

	requests := f.published(t, event.TopicPaymentVerification)
	require.Len(t, requests, 3)
	assert.Equal(t, "2", requests[2].Metadata[event.MetaAttempt])

	f.clock.Advance(11 * time.Minute)
	report, err = f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Cancelled: 1}, report)

	got := f.order(t, o.ID)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Equal(t, 5, f.available(t, 1))

	cancelled := f.published(t, event.TopicOrderEvents)
	last := cancelled[len(cancelled)-1]
	assert.Equal(t, event.OrderCancelled, last.EventType)
	assert.Equal(t, ReasonVerificationTimeout, last.Metadata[event.MetaReason])
}

func TestReconcile_FailedPaymentAwaitsOperator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithReconcilePolicy(ReconcilePolicy{PendingTimeout: time.Minute, MaxAttempts: 1, BatchSize: 10}))
	f.stock(t, 1, 5)
	f.cart(t, "u1", line{1, "10.00", 1})
	o := f.checkout(t, "u1")
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, paymentEvent(o, event.PaymentStatusFailed)))

	f.clock.Advance(time.Hour)
	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{AwaitingOperator: 1}, report)

	got := f.order(t, o.ID)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, order.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, 4, f.available(t, 1))
}

func TestReconcile_IgnoresSettledOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithReconcilePolicy(ReconcilePolicy{PendingTimeout: time.Minute, MaxAttempts: 0, BatchSize: 10}))
	o := paidOrder(t, f)

	f.clock.Advance(time.Hour)
	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, report)
	assert.Equal(t, order.StatusConfirmed, f.order(t, o.ID).Status)
}
