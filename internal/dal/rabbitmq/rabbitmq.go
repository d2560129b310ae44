package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/streadway/amqp"
)

var ErrNotConfirmed = errors.New("publish was not confirmed by the broker")

// Client is one AMQP connection.
// The main channel runs in confirm mode and is used for publishing; consumers get their own channels.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms chan amqp.Confirmation

	mu        sync.Mutex
	consumers []*amqp.Channel
}

// Close closes the channels and connection for graceful shutdown.
func (r *Client) Close() error {
	r.mu.Lock()
	for _, ch := range r.consumers {
		_ = ch.Close()
	}
	r.consumers = nil
	r.mu.Unlock()

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return err
		}
	}
	if r.conn != nil {
		return r.conn.Close()
	}

	return nil
}

// URL builds an AMQP connection string for the default vhost. Credentials are escaped.
func URL(user, password, host string, port int) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(user, password),
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/",
	}

	return u.String()
}

// NewClient dials addr and opens a publishing channel in confirm mode.
func NewClient(addr string) (*Client, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	slog.Info("RabbitMQ connected")

	return &Client{
		conn:     conn,
		channel:  channel,
		confirms: channel.NotifyPublish(make(chan amqp.Confirmation, 1)),
	}, nil
}

func MustNewClient(addr string) *Client {
	client, err := NewClient(addr)
	if err != nil {
		panic(err)
	}

	return client
}

type DeclareQueueConfig struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       amqp.Table
}

// DeclareQueue declares a queue with the given configuration.
func (r *Client) DeclareQueue(cfg DeclareQueueConfig) (amqp.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.channel.QueueDeclare(
		cfg.Name,
		cfg.Durable,
		cfg.AutoDelete,
		cfg.Exclusive,
		cfg.NoWait,
		cfg.Args,
	)
}

type DeclareExchangeConfig struct {
	Name       string
	Kind       string
	Durable    bool
	AutoDelete bool
}

// DeclareExchange declares an exchange with the given configuration.
func (r *Client) DeclareExchange(cfg DeclareExchangeConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := cfg.Kind
	if kind == "" {
		kind = amqp.ExchangeDirect
	}

	return r.channel.ExchangeDeclare(cfg.Name, kind, cfg.Durable, cfg.AutoDelete, false, false, nil)
}

// BindQueue routes messages published to exchange with key into queue.
func (r *Client) BindQueue(queue, key, exchange string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.channel.QueueBind(queue, key, exchange, false, nil)
}

// Publish sends msg and waits for the broker confirmation.
func (r *Client) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.Publish(exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	select {
	case c, ok := <-r.confirms:
		if !ok || !c.Ack {
			return ErrNotConfirmed
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type ConsumeConfig struct {
	Queue     string
	Consumer  string
	Prefetch  int
	Exclusive bool
}

// Consume opens a dedicated channel and starts a manual-ack consumer on it.
func (r *Client) Consume(cfg ConsumeConfig) (<-chan amqp.Delivery, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			_ = ch.Close()

			return nil, fmt.Errorf("failed to set qos: %w", err)
		}
	}

	msgs, err := ch.Consume(cfg.Queue, cfg.Consumer, false, cfg.Exclusive, false, false, nil)
	if err != nil {
		_ = ch.Close()

		return nil, fmt.Errorf("failed to consume queue %s: %w", cfg.Queue, err)
	}

	r.mu.Lock()
	r.consumers = append(r.consumers, ch)
	r.mu.Unlock()

	return msgs, nil
}
