package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafka(t *testing.T) []string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}

	ctx := context.Background()
	kafkaContainer, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	return brokers
}

func TestKafka_PublishSubscribe(t *testing.T) {
	brokers := setupKafka(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pub := NewPublisher(brokers)
	defer pub.Close()

	require.Eventually(t, func() bool {
		return pub.Publish(ctx, bus.Message{
			Topic:   "payment-status-updates",
			Key:     []byte("order-1"),
			Value:   []byte("first"),
			Headers: map[string]string{"event_type": "PAYMENT_SUCCESSFUL"},
		}) == nil
	}, 30*time.Second, time.Second)
	require.NoError(t, pub.Publish(ctx, bus.Message{Topic: "payment-status-updates", Key: []byte("order-1"), Value: []byte("second")}))

	var mu sync.Mutex
	var got []bus.Message
	sub := NewSubscriber(brokers, "orders-test")
	defer sub.Close()
	sub.Subscribe("payment-status-updates", func(_ context.Context, m bus.Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m)

		return nil
	})
	go func() { _ = sub.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(got) == 2
	}, 45*time.Second, 200*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "first", string(got[0].Value))
	assert.Equal(t, "second", string(got[1].Value))
	assert.Equal(t, "PAYMENT_SUCCESSFUL", got[0].Headers["event_type"])
}

func TestConvert_HeadersRoundTrip(t *testing.T) {
	in := bus.Message{Topic: "t", Key: []byte("k"), Value: []byte("v"), Headers: map[string]string{"a": "1", "b": "2"}}

	out := fromKafka(toKafka(in))

	assert.Equal(t, in, out)
}
