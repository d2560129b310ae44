package rabbitmq

import (
	"testing"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

func TestFromDelivery_RestoresKeyAndHeaders(t *testing.T) {
	d := amqp.Delivery{
		Headers: amqp.Table{
			headerPartitionKey: "order-1",
			"event_type":       "PAYMENT_FAILED",
			"ignored":          int32(5),
		},
		Body: []byte("{}"),
	}

	got := fromDelivery("payment-status-updates", d)

	assert.Equal(t, bus.Message{
		Topic:   "payment-status-updates",
		Key:     []byte("order-1"),
		Value:   []byte("{}"),
		Headers: map[string]string{"event_type": "PAYMENT_FAILED"},
	}, got)
}

func TestTopology_LaneIsStablePerKey(t *testing.T) {
	p := NewPublisher(nil, 4)

	assert.Equal(t, p.lane([]byte("order-1")), p.lane([]byte("order-1")))
	assert.Equal(t, "0", NewPublisher(nil, 0).lane([]byte("x")))
}
