// Package memory is an in-process bus with keyed partitions, used for local runs and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("bus is closed")

const laneBuffer = 1024

type subscription struct {
	handler bus.Handler
	lanes   []chan bus.Message
}

// Bus fans subscribed topics out to per-partition lanes.
// With WithCapture it also keeps every published message for inspection.
type Bus struct {
	mu         sync.Mutex
	partitions int
	subs       map[string]*subscription
	capture    bool
	published  []bus.Message
	failures   []error
	closed     bool
}

// option is a function that configures the Bus.
type option func(*Bus)

// WithCapture records published messages so Published can return them.
// Leave it off for long-running processes: the record is never trimmed.
func WithCapture() option {
	return func(b *Bus) {
		b.capture = true
	}
}

func New(partitions int, opts ...option) *Bus {
	if partitions < 1 {
		partitions = 1
	}

	b := &Bus{
		partitions: partitions,
		subs:       map[string]*subscription{},
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// FailNext makes the next Publish call return err without recording anything.
func (b *Bus) FailNext(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, err)
}

func (b *Bus) Publish(ctx context.Context, msgs ...bus.Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()

		return ErrClosed
	}
	if len(b.failures) > 0 {
		err := b.failures[0]
		b.failures = b.failures[1:]
		b.mu.Unlock()

		return err
	}

	type delivery struct {
		lane chan bus.Message
		msg  bus.Message
	}
	var out []delivery
	for _, m := range msgs {
		m = clone(m)
		if b.capture {
			b.published = append(b.published, m)
		}
		if sub, ok := b.subs[m.Topic]; ok {
			out = append(out, delivery{lane: sub.lanes[bus.Partition(m.Key, b.partitions)], msg: m})
		}
	}
	b.mu.Unlock()

	for _, d := range out {
		select {
		case d.lane <- d.msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Published returns a copy of every captured message, optionally limited to topics.
// It is always empty unless the Bus was built with WithCapture.
func (b *Bus) Published(topics ...string) []bus.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []bus.Message{}
	for _, m := range b.published {
		if len(topics) == 0 || contains(topics, m.Topic) {
			out = append(out, clone(m))
		}
	}

	return out
}

func (b *Bus) Subscribe(topic string, h bus.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lanes := make([]chan bus.Message, b.partitions)
	for i := range lanes {
		lanes[i] = make(chan bus.Message, laneBuffer)
	}
	b.subs[topic] = &subscription{handler: h, lanes: lanes}
}

// Run drains every lane sequentially until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	return b.run(ctx, nil)
}

func (b *Bus) run(ctx context.Context, topics []string) error {
	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subs))
	for topic, s := range b.subs {
		if topics == nil || contains(topics, topic) {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range subs {
		s := s
		for _, lane := range s.lanes {
			lane := lane
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case msg := <-lane:
						_ = bus.Dispatch(gctx, s.handler, msg)
					}
				}
			})
		}
	}

	return g.Wait()
}

// Group is a subscriber that runs only the topics subscribed through it.
// Several groups share one Bus the way consumer groups share a broker.
type Group struct {
	b      *Bus
	mu     sync.Mutex
	topics []string
}

// Group returns a new subscriber view on b.
func (b *Bus) Group() *Group {
	return &Group{b: b, topics: []string{}}
}

func (g *Group) Subscribe(topic string, h bus.Handler) {
	g.mu.Lock()
	g.topics = append(g.topics, topic)
	g.mu.Unlock()
	g.b.Subscribe(topic, h)
}

func (g *Group) Run(ctx context.Context) error {
	g.mu.Lock()
	topics := append([]string{}, g.topics...)
	g.mu.Unlock()

	return g.b.run(ctx, topics)
}

// Close leaves the shared Bus open for other groups and publishers.
func (g *Group) Close() error {
	return nil
}

// Deliver hands msg straight to the topic handler on the caller's goroutine.
func (b *Bus) Deliver(ctx context.Context, msg bus.Message) error {
	b.mu.Lock()
	sub, ok := b.subs[msg.Topic]
	b.mu.Unlock()
	if !ok {
		return nil
	}

	return bus.Dispatch(ctx, sub.handler, msg)
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true

	return nil
}

func clone(m bus.Message) bus.Message {
	cp := m
	cp.Key = append([]byte(nil), m.Key...)
	cp.Value = append([]byte(nil), m.Value...)
	if m.Headers != nil {
		cp.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			cp.Headers[k] = v
		}
	}

	return cp
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
