// Package client provides a reusable load test client for the Rouletka
// pairing engine. Each client simulates one participant: it connects to NATS
// using the same library the engine uses, subscribes to the participant's
// delivery and notify subjects, and publishes the engine's command subjects.
// Per-client performance metrics are tracked for the stats collector.
package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ---------------------------------------------------------------------------
// Wire subjects and message types (local equivalents of internal/messaging
// and internal/gateway constants)
// ---------------------------------------------------------------------------

// Client -> engine command subjects.
const (
	SubjectPairRequest = "pair.request"
	SubjectPairCancel  = "pair.cancel"
	SubjectChatSend    = "chat.send"
	SubjectChatEnd     = "chat.end"
	SubjectChatRate    = "chat.rate"
	SubjectReportFile  = "report.file"
)

// Engine -> client notify event types.
const (
	EventMatchFound   = "match_found"
	EventSessionEnded = "session_ended"
	EventNoMatch      = "no_match"
	EventWarning      = "warning"
	EventBanned       = "banned"
)

// Event is the engine's lifecycle notification as it appears on the wire.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	PartnerID string `json:"partner_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Delivery is a relayed chat message as it appears on chat.deliver.<id>.
type Delivery struct {
	Text string `json:"text"`
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// Metrics tracks per-client performance data.
type Metrics struct {
	ConnectLatency   time.Duration
	MessagesReceived int
	MessagesSent     int
	Errors           int
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client represents a single simulated participant. It manages the NATS
// connection lifecycle, dispatches notify events to registered handlers, and
// exposes the engine's commands as methods.
type Client struct {
	id   string
	conn *nats.Conn

	mu       sync.Mutex
	metrics  Metrics
	handlers map[string]func(Event)
	deliver  func(Delivery)

	subs      []*nats.Subscription
	closeOnce sync.Once
}

// New connects a simulated participant to the given NATS URL and subscribes
// to its delivery and notify subjects. The participant's profile must already
// exist in the engine's store; use the seed subcommand to provision profiles.
func New(url, participantID string) (*Client, error) {
	start := time.Now()
	conn, err := nats.Connect(url, nats.Name("loadtest-"+participantID))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	c := &Client{
		id:       participantID,
		conn:     conn,
		handlers: make(map[string]func(Event)),
	}
	c.metrics.ConnectLatency = time.Since(start)

	notifySub, err := conn.Subscribe("notify."+participantID, c.onNotify)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe notify: %w", err)
	}
	deliverSub, err := conn.Subscribe("chat.deliver."+participantID, c.onDeliver)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe deliver: %w", err)
	}
	c.subs = append(c.subs, notifySub, deliverSub)

	return c, nil
}

// ID returns the simulated participant's id.
func (c *Client) ID() string { return c.id }

// On registers a handler for a notify event type. Handlers run on the NATS
// callback goroutine, so they should not block. Only one handler per event
// type is supported; registering a second replaces the first.
func (c *Client) On(eventType string, handler func(Event)) {
	c.mu.Lock()
	c.handlers[eventType] = handler
	c.mu.Unlock()
}

// OnDeliver registers the handler for relayed chat messages.
func (c *Client) OnDeliver(handler func(Delivery)) {
	c.mu.Lock()
	c.deliver = handler
	c.mu.Unlock()
}

// RequestPairing publishes a pair.request for this participant.
func (c *Client) RequestPairing(language string, ageGroups []string) error {
	return c.publish(SubjectPairRequest, map[string]interface{}{
		"participant_id": c.id,
		"language":       language,
		"age_groups":     ageGroups,
	})
}

// CancelPairing publishes a pair.cancel for this participant.
func (c *Client) CancelPairing() error {
	return c.publish(SubjectPairCancel, map[string]string{
		"participant_id": c.id,
	})
}

// SendText publishes a chat.send into the given session.
func (c *Client) SendText(sessionID, text string) error {
	return c.publish(SubjectChatSend, map[string]string{
		"session_id": sessionID,
		"sender_id":  c.id,
		"text":       text,
	})
}

// EndChat publishes a chat.end for the given session.
func (c *Client) EndChat(sessionID string) error {
	return c.publish(SubjectChatEnd, map[string]string{
		"session_id":     sessionID,
		"participant_id": c.id,
	})
}

// Rate publishes a chat.rate for the given session.
func (c *Client) Rate(sessionID string, rating int) error {
	return c.publish(SubjectChatRate, map[string]interface{}{
		"session_id": sessionID,
		"rater_id":   c.id,
		"rating":     rating,
	})
}

// Report publishes a report.file against a partner in the given session.
func (c *Client) Report(sessionID, reportedID, reason string) error {
	return c.publish(SubjectReportFile, map[string]string{
		"session_id":  sessionID,
		"reporter_id": c.id,
		"reported_id": reportedID,
		"reason":      reason,
	})
}

// Flush blocks until all published commands have reached the server.
func (c *Client) Flush() error {
	return c.conn.Flush()
}

// Close unsubscribes and closes the connection. Safe to call multiple times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		for _, sub := range c.subs {
			_ = sub.Unsubscribe()
		}
		c.conn.Close()
	})
}

// GetMetrics returns a copy of the client's metrics.
func (c *Client) GetMetrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func (c *Client) publish(subject string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		c.mu.Lock()
		c.metrics.Errors++
		c.mu.Unlock()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	c.mu.Lock()
	c.metrics.MessagesSent++
	c.mu.Unlock()
	return nil
}

func (c *Client) onNotify(msg *nats.Msg) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.mu.Lock()
		c.metrics.Errors++
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.metrics.MessagesReceived++
	handler := c.handlers[event.Type]
	c.mu.Unlock()

	if handler != nil {
		handler(event)
	}
}

func (c *Client) onDeliver(msg *nats.Msg) {
	var d Delivery
	if err := json.Unmarshal(msg.Data, &d); err != nil {
		c.mu.Lock()
		c.metrics.Errors++
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.metrics.MessagesReceived++
	handler := c.deliver
	c.mu.Unlock()

	if handler != nil {
		handler(d)
	}
}
