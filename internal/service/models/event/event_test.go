package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderEventType_Topic(t *testing.T) {
	cases := map[OrderEventType]string{
		OrderCreated:                 TopicOrderEvents,
		OrderConfirmed:               TopicOrderEvents,
		OrderPaid:                    TopicOrderEvents,
		OrderShipped:                 TopicOrderEvents,
		OrderDelivered:               TopicOrderEvents,
		OrderCancelled:               TopicOrderEvents,
		OrderStatusUpdated:           TopicOrderStatusUpdates,
		OrderTrackingUpdated:         TopicOrderStatusUpdates,
		PaymentVerificationRequested: TopicPaymentVerification,
	}
	for typ, topic := range cases {
		assert.Equal(t, topic, typ.Topic(), string(typ))
	}
}

func TestNewOrderEvent_EncodesAmountAsNumber(t *testing.T) {
	o := &order.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20260101-ABCDEF0123",
		UserID:        "u1",
		Total:         decimal.RequireFromString("26"),
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
	}

	e := NewOrderEvent(OrderCreated, o, time.Now(), map[string]string{MetaPaymentMethod: "CREDIT_CARD"})
	b, err := Encode(e)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"amount":26.00`)
	assert.Equal(t, o.ID.String(), e.PartitionKey())

	back, err := DecodeOrderEvent(b)
	require.NoError(t, err)
	assert.Equal(t, e.EventID, back.EventID)
	assert.True(t, back.Amount.Decimal().Equal(decimal.RequireFromString("26")))
	assert.Equal(t, "CREDIT_CARD", back.Metadata[MetaPaymentMethod])
	assert.Equal(t, o.OrderNumber, back.Metadata[MetaOrderNumber])
}

func TestPartitionKey_FallsBackToUser(t *testing.T) {
	e := OrderEvent{UserID: "u9"}
	assert.Equal(t, "u9", e.PartitionKey())
}

func TestDecodePaymentEvent(t *testing.T) {
	orderID := uuid.NewString()

	t.Run("quoted amount accepted", func(t *testing.T) {
		raw := `{"eventId":"e1","eventType":"PAYMENT_SUCCESSFUL","orderId":"` + orderID +
			`","userId":"u1","amount":"26.00","status":"SUCCESSFUL","timestamp":"2026-01-01T00:00:00Z"}`
		e, err := DecodePaymentEvent([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, PaymentSuccessful, e.EventType)
		assert.Equal(t, "26.00", e.Amount.String())
	})

	t.Run("unknown event type", func(t *testing.T) {
		raw := `{"eventId":"e1","eventType":"PAYMENT_EXPLODED","orderId":"` + orderID + `","status":"FAILED"}`
		_, err := DecodePaymentEvent([]byte(raw))
		assert.ErrorIs(t, err, errs.ErrSerialization)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodePaymentEvent([]byte(`{not json`))
		assert.ErrorIs(t, err, errs.ErrSerialization)
	})

	t.Run("bad order id", func(t *testing.T) {
		raw := `{"eventId":"e1","eventType":"PAYMENT_FAILED","orderId":"nope","status":"FAILED"}`
		_, err := DecodePaymentEvent([]byte(raw))
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("missing event id", func(t *testing.T) {
		raw := `{"eventType":"PAYMENT_FAILED","orderId":"` + orderID + `","status":"FAILED"}`
		_, err := DecodePaymentEvent([]byte(raw))
		assert.ErrorIs(t, err, errs.ErrValidation)
	})
}

func TestPaymentEvent_Topic(t *testing.T) {
	assert.Equal(t, TopicPaymentVerificationResponse, PaymentEvent{EventType: PaymentVerificationCompleted}.Topic())
	assert.Equal(t, TopicPaymentStatusUpdates, PaymentEvent{EventType: PaymentSuccessful}.Topic())
}
