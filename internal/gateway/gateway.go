// Package gateway defines the boundary to the user-facing transport. The
// core never talks to end users directly: relayed text and lifecycle events
// go through a Gateway, and a delivery failure is how the core learns a
// partner became unreachable.
package gateway

import "context"

// Notification event types.
const (
	EventMatchFound   = "match_found"
	EventSessionEnded = "session_ended"
	EventNoMatch      = "no_match"
	EventWarning      = "warning"
	EventBanned       = "banned"
)

// Event is a lifecycle notification pushed to a participant.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	PartnerID string `json:"partner_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Gateway is the outbound transport boundary.
//
// Deliver sends chat text to a participant; an error means the participant
// is unreachable or has blocked the transport, and the caller reacts by
// ending the session. Notify pushes lifecycle events and is best-effort.
type Gateway interface {
	Deliver(ctx context.Context, participantID, text string) error
	Notify(ctx context.Context, participantID string, event Event) error
}
