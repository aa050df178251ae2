// Package rabbitmq publishes committed ledger events to a topic exchange.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Flora-Ebah/kairos-backend/internal/platform/logging"
)

// Client holds one connection and a confirm-mode publishing channel, reconnecting in the background.
type Client struct {
	url      string
	exchange string
	log      *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel

	pubMu       sync.Mutex
	pubConfirms chan amqp.Confirmation

	closeOnce sync.Once
	closed    chan struct{}
	reconnect chan struct{}
}

// Connect dials url, declares exchange and starts the reconnect watcher.
func Connect(url, exchange string, log *slog.Logger) (*Client, error) {
	if url == "" {
		return nil, errors.New("AMQP_URL is required")
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		url:       url,
		exchange:  exchange,
		log:       log,
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}
	if err := c.connectOnce(); err != nil {
		return nil, err
	}
	go c.watch()
	return c, nil
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })

	c.mu.Lock()
	if c.pubChan != nil {
		_ = c.pubChan.Close()
		c.pubChan = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Client) connectOnce() (err error) {
	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}
	if err = ch.ExchangeDeclare(c.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: failed to declare exchange %s: %w", c.exchange, err)
	}
	if err = ch.Confirm(false); err != nil {
		return fmt.Errorf("rabbitmq: failed to enable confirms: %w", err)
	}

	c.pubMu.Lock()
	c.pubConfirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	c.pubMu.Unlock()

	c.mu.Lock()
	if c.pubChan != nil && !c.pubChan.IsClosed() {
		_ = c.pubChan.Close()
	}
	c.conn = conn
	c.pubChan = ch
	c.mu.Unlock()

	go func() {
		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-c.closed:
			return
		case <-connClosed:
		case <-chClosed:
		}
		select {
		case c.reconnect <- struct{}{}:
		default:
		}
	}()

	c.log.Info("rabbitmq_connected", "exchange", c.exchange)
	return nil
}

func (c *Client) watch() {
	backoff := time.Second
	for {
		select {
		case <-c.closed:
			return
		case <-c.reconnect:
		}
		for {
			select {
			case <-c.closed:
				return
			default:
			}
			err := c.connectOnce()
			if err == nil {
				backoff = time.Second
				break
			}
			c.log.Error("rabbitmq_reconnect_failed", logging.Err(err), "retry_in", backoff.String())
			select {
			case <-c.closed:
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 30*time.Second)
		}
	}
}

// publish sends body under routingKey and waits for the broker confirm.
func (c *Client) publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	c.mu.RLock()
	ch, conn := c.pubChan, c.conn
	c.mu.RUnlock()
	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}
	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq: publish channel is not open")
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	confirms := c.pubConfirms

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := ch.PublishWithContext(ctx, c.exchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}); err != nil {
		return err
	}

	select {
	case conf, ok := <-confirms:
		if !ok {
			return errors.New("rabbitmq: confirm stream closed")
		}
		if !conf.Ack {
			return errors.New("rabbitmq: publish not acknowledged")
		}
		return nil
	case <-ctx.Done():
		// Drain one confirm so the stream stays aligned with publishes.
		select {
		case <-confirms:
		case <-time.After(2 * time.Second):
		}
		return ctx.Err()
	}
}
