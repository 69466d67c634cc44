// Package messaging provides the NATS client wrapper the service uses for
// its request subjects and per-participant outbound channels. Transport
// adapters publish pairing and chat commands here; the service subscribes
// and pushes deliveries and lifecycle events back out.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Inbound command subjects.
const (
	SubjectPairRequest = "pair.request"
	SubjectPairCancel  = "pair.cancel"
	SubjectChatSend    = "chat.send"
	SubjectChatEnd     = "chat.end"
	SubjectChatRate    = "chat.rate"
	SubjectReportFile  = "report.file"
)

// Outbound subject prefixes, completed with ".<participant_id>".
const (
	SubjectDeliver = "chat.deliver"
	SubjectNotify  = "notify"
)

// DeliverSubject returns the chat delivery subject for a participant.
func DeliverSubject(participantID string) string {
	return SubjectDeliver + "." + participantID
}

// NotifySubject returns the lifecycle event subject for a participant.
func NotifySubject(participantID string) string {
	return SubjectNotify + "." + participantID
}

// Client wraps the NATS connection with subscription bookkeeping.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int // -1 for infinite
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "rouletka",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Connect dials NATS and returns a ready client. The connection reconnects
// forever by default; handlers log the lifecycle.
func Connect(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the subject and keeps the subscription
// for cleanup on Close.
func (c *Client) Subscribe(subject string, handler func(data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()
	return nil
}

// Unsubscribe drops the subject's subscription.
func (c *Client) Unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}

// Close drains all subscriptions and the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}
	log.Printf("[nats] client closed")
}
