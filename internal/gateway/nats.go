package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rouletka/roulette/internal/messaging"
)

// delivery is the wire form of a relayed message on chat.deliver.<id>.
type delivery struct {
	Text string `json:"text"`
}

// NATSGateway pushes deliveries and events onto per-participant NATS
// subjects. Whatever edge process serves the participant subscribes to
// their subjects and forwards to the actual transport.
type NATSGateway struct {
	client *messaging.Client
}

// NewNATSGateway wraps a connected messaging client.
func NewNATSGateway(client *messaging.Client) *NATSGateway {
	return &NATSGateway{client: client}
}

func (g *NATSGateway) Deliver(ctx context.Context, participantID, text string) error {
	data, err := json.Marshal(delivery{Text: text})
	if err != nil {
		return fmt.Errorf("gateway: marshal delivery: %w", err)
	}
	if err := g.client.Publish(messaging.DeliverSubject(participantID), data); err != nil {
		return fmt.Errorf("gateway: deliver to %s: %w", participantID, err)
	}
	return nil
}

func (g *NATSGateway) Notify(ctx context.Context, participantID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("gateway: marshal event: %w", err)
	}
	if err := g.client.Publish(messaging.NotifySubject(participantID), data); err != nil {
		return fmt.Errorf("gateway: notify %s: %w", participantID, err)
	}
	return nil
}
