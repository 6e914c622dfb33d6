// Package amqp carries change notifications between processes over a
// RabbitMQ topic exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fundledger/internal/events"
	applog "fundledger/internal/log"
)

const publishTimeout = 5 * time.Second

// ErrConsumerClosed is returned by Consume when the broker closes the
// delivery channel.
var ErrConsumerClosed = errors.New("delivery channel closed")

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *applog.Logger

	// amqp091 channels are not safe for concurrent publishes
	mu sync.Mutex
}

var _ events.Publisher = (*Client)(nil)

// NewClient dials url and declares a durable topic exchange. An empty
// queueName gives this process its own exclusive queue so every instance
// sees every message. The queue is bound once per binding key; no keys
// means all kinds.
func NewClient(url, exchangeName, queueName string, logger *applog.Logger, bindingKeys ...string) (*Client, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(applog.ComponentAMQP),
	}

	if err := client.setup(bindingKeys); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup(bindingKeys []string) error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	durable, exclusive := true, false
	if c.queueName == "" {
		durable, exclusive = false, true
	}
	q, err := c.channel.QueueDeclare(
		c.queueName, // name
		durable,     // durable
		!durable,    // delete when unused
		exclusive,   // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	c.queueName = q.Name

	if len(bindingKeys) == 0 {
		bindingKeys = []string{"#"}
	}
	for _, key := range bindingKeys {
		if err := c.channel.QueueBind(c.queueName, key, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue to %q: %w", key, err)
		}
	}

	return nil
}

// QueueName is the declared queue, including a server-assigned name.
func (c *Client) QueueName() string {
	return c.queueName
}

// Publish implements events.Publisher
func (c *Client) Publish(ctx context.Context, msg events.Message) error {
	key, pub, err := toPublishing(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	err = c.channel.PublishWithContext(ctx, c.exchangeName, key, false, false, pub)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Kind, err)
	}

	c.logger.DebugContext(ctx, "Published message",
		applog.FieldMessageKind, msg.Kind,
		applog.FieldMessageID, msg.ID,
		"exchange", c.exchangeName)
	return nil
}

// Consume delivers messages to handler until ctx is done.
func (c *Client) Consume(ctx context.Context, handler events.Handler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming messages", "queue", c.queueName)
	return consumeLoop(ctx, msgs, handler, c.logger)
}

func consumeLoop(ctx context.Context, msgs <-chan amqp091.Delivery, handler events.Handler, logger *applog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return ErrConsumerClosed
			}
			handleDelivery(ctx, d, handler, logger)
		}
	}
}

// handleDelivery acks handled messages and drops the rest without requeue.
func handleDelivery(ctx context.Context, d amqp091.Delivery, handler events.Handler, logger *applog.Logger) {
	msg, err := fromDelivery(d)
	if err != nil {
		logger.Failure(ctx, "Failed to decode message", err, "delivery_tag", d.DeliveryTag)
		d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		logger.Failure(ctx, "Failed to handle message", err,
			applog.FieldMessageKind, msg.Kind,
			applog.FieldMessageID, msg.ID)
		d.Nack(false, false)
		return
	}

	d.Ack(false)
	logger.DebugContext(ctx, "Handled message",
		applog.FieldMessageKind, msg.Kind,
		applog.FieldMessageID, msg.ID)
}

// IsConnectionError reports whether err looks like a lost broker connection.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, ErrConsumerClosed) {
		return true
	}
	s := err.Error()
	for _, marker := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "use of closed network connection"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
