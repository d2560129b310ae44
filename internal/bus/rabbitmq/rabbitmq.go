// Package rabbitmq implements the bus on RabbitMQ.
// Every topic is a durable direct exchange with one routing key per lane;
// a key always hashes to the same lane, and each lane queue is consumed sequentially.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/rabbitmq"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
)

const headerPartitionKey = "partition_key"

type topology struct {
	client     *rabbitmq.Client
	partitions int
	mu         sync.Mutex
	declared   map[string]bool
}

func (t *topology) ensureExchange(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.declared[topic] {
		return nil
	}
	if err := t.client.DeclareExchange(rabbitmq.DeclareExchangeConfig{
		Name:    topic,
		Kind:    amqp.ExchangeDirect,
		Durable: true,
	}); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", topic, err)
	}
	t.declared[topic] = true

	return nil
}

func (t *topology) lane(key []byte) string {
	return strconv.Itoa(bus.Partition(key, t.partitions))
}

// Publisher publishes through the client's confirm-mode channel.
type Publisher struct {
	topology
}

func NewPublisher(client *rabbitmq.Client, partitions int) *Publisher {
	if partitions < 1 {
		partitions = 1
	}

	return &Publisher{topology{client: client, partitions: partitions, declared: map[string]bool{}}}
}

// Publish returns after the broker confirmed every message.
func (p *Publisher) Publish(ctx context.Context, msgs ...bus.Message) error {
	for _, m := range msgs {
		if err := p.ensureExchange(m.Topic); err != nil {
			return err
		}

		headers := amqp.Table{headerPartitionKey: string(m.Key)}
		for k, v := range m.Headers {
			headers[k] = v
		}

		err := p.client.Publish(ctx, m.Topic, p.lane(m.Key), amqp.Publishing{
			Headers:      headers,
			ContentType:  m.Headers["content_type"],
			MessageId:    m.Headers["event_id"],
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         m.Value,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Close is a no-op; the shared client is closed by its owner.
func (p *Publisher) Close() error {
	return nil
}

// Subscriber consumes lane queues named <group>.<topic>.<lane>.
type Subscriber struct {
	topology
	group    string
	handlers map[string]bus.Handler
}

func NewSubscriber(client *rabbitmq.Client, group string, partitions int) *Subscriber {
	if partitions < 1 {
		partitions = 1
	}

	return &Subscriber{
		topology: topology{client: client, partitions: partitions, declared: map[string]bool{}},
		group:    group,
		handlers: map[string]bus.Handler{},
	}
}

func (s *Subscriber) Subscribe(topic string, h bus.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[topic] = h
}

func (s *Subscriber) Run(ctx context.Context) error {
	s.mu.Lock()
	handlers := make(map[string]bus.Handler, len(s.handlers))
	for k, v := range s.handlers {
		handlers[k] = v
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for topic, h := range handlers {
		topic, h := topic, h
		if err := s.ensureExchange(topic); err != nil {
			return err
		}

		for i := 0; i < s.partitions; i++ {
			deliveries, err := s.bindLane(topic, i)
			if err != nil {
				return err
			}

			g.Go(func() error {
				return consume(gctx, deliveries, topic, h)
			})
		}
	}

	slog.Info("RabbitMQ subscriber started", "group", s.group, "topics", len(handlers), "lanes", s.partitions)

	return g.Wait()
}

func (s *Subscriber) bindLane(topic string, lane int) (<-chan amqp.Delivery, error) {
	name := fmt.Sprintf("%s.%s.%d", s.group, topic, lane)

	queue, err := s.client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    name,
		Durable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	if err := s.client.BindQueue(queue.Name, strconv.Itoa(lane), topic); err != nil {
		return nil, fmt.Errorf("failed to bind queue %s: %w", name, err)
	}

	return s.client.Consume(rabbitmq.ConsumeConfig{
		Queue:    queue.Name,
		Consumer: name,
		Prefetch: 1,
	})
}

func consume(ctx context.Context, deliveries <-chan amqp.Delivery, topic string, h bus.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				slog.Info("Message channel closed", "topic", topic)

				return nil
			}

			_ = bus.Dispatch(ctx, h, fromDelivery(topic, d))

			if err := d.Ack(false); err != nil {
				slog.Error("Failed to ack message", "topic", topic, "delivery_tag", d.DeliveryTag, "error", err)
			}
		}
	}
}

func (s *Subscriber) Close() error {
	return nil
}

func fromDelivery(topic string, d amqp.Delivery) bus.Message {
	headers := make(map[string]string, len(d.Headers))
	var key []byte
	for k, v := range d.Headers {
		str, ok := v.(string)
		if !ok {
			continue
		}
		if k == headerPartitionKey {
			key = []byte(str)

			continue
		}
		headers[k] = str
	}

	return bus.Message{
		Topic:   topic,
		Key:     key,
		Value:   d.Body,
		Headers: headers,
	}
}
