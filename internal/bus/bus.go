// Package bus is the publish/subscribe abstraction over a partitioned, at-least-once log.
package bus

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Message is one record on a topic. Key selects the partition.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Handler processes one message. Handlers must be idempotent; the error is logged and the message is still acknowledged.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages and returns once the broker acknowledged all of them.
type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
	Close() error
}

// Subscriber delivers messages of subscribed topics until Run's context ends.
// Messages sharing a key are handled in order; different partitions and topics run concurrently.
type Subscriber interface {
	Subscribe(topic string, h Handler)
	Run(ctx context.Context) error
	Close() error
}

// Partition maps a key onto one of n partitions.
func Partition(key []byte, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)

	return int(h.Sum32() % uint32(n))
}

// Dispatch runs h so that neither an error nor a panic escapes into the consumer loop.
func Dispatch(ctx context.Context, h Handler, msg Message) (err error) {
	ctx, span := otel.Tracer("bus").Start(ctx, "bus.Dispatch")
	span.SetAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.String("messaging.key", string(msg.Key)),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			slog.Error("Message handler panicked",
				"topic", msg.Topic,
				"key", string(msg.Key),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	err = h(ctx, msg)
	if err != nil {
		slog.Error("Failed to handle message",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"event_id", msg.Headers["event_id"],
			"error", err,
		)
	}

	return err
}
