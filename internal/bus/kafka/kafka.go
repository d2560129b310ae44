// Package kafka implements the bus on a Kafka cluster.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// Publisher writes to any topic; the Hash balancer keeps a key on one partition.
type Publisher struct {
	writer *kafkago.Writer
}

func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

// Publish blocks until every message is acknowledged by all in-sync replicas.
func (p *Publisher) Publish(ctx context.Context, msgs ...bus.Message) error {
	out := make([]kafkago.Message, len(msgs))
	for i, m := range msgs {
		out[i] = toKafka(m)
	}

	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		return fmt.Errorf("failed to write kafka messages: %w", err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Subscriber runs one consumer-group reader per topic.
type Subscriber struct {
	brokers  []string
	groupID  string
	mu       sync.Mutex
	handlers map[string]bus.Handler
	readers  []*kafkago.Reader
}

func NewSubscriber(brokers []string, groupID string) *Subscriber {
	return &Subscriber{
		brokers:  brokers,
		groupID:  groupID,
		handlers: map[string]bus.Handler{},
	}
}

func (s *Subscriber) Subscribe(topic string, h bus.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[topic] = h
}

// Run reads each topic until ctx is done. Offsets are committed after the handler returns, whatever it returned.
func (s *Subscriber) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	for topic, h := range s.handlers {
		h := h
		reader := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:        s.brokers,
			Topic:          topic,
			GroupID:        s.groupID,
			MinBytes:       1,
			MaxBytes:       10e6, // 10MB
			CommitInterval: 0,
			StartOffset:    kafkago.FirstOffset,
		})
		s.readers = append(s.readers, reader)

		g.Go(func() error {
			return consume(gctx, reader, h)
		})
	}
	s.mu.Unlock()

	slog.Info("Kafka subscriber started", "group_id", s.groupID, "topics", len(s.handlers))

	return g.Wait()
}

func consume(ctx context.Context, reader *kafkago.Reader, h bus.Handler) error {
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			slog.Error("Failed to fetch kafka message", "topic", reader.Config().Topic, "error", err)
			if errors.Is(err, io.EOF) {
				return nil
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}

			continue
		}

		_ = bus.Dispatch(ctx, h, fromKafka(m))

		if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			slog.Error("Failed to commit kafka message",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
		}
	}
}

func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, r := range s.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.readers = nil

	return errors.Join(errs...)
}

func toKafka(m bus.Message) kafkago.Message {
	headers := make([]kafkago.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}

	return kafkago.Message{
		Topic:   m.Topic,
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
	}
}

func fromKafka(m kafkago.Message) bus.Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}

	return bus.Message{
		Topic:   m.Topic,
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
	}
}
