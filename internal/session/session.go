// Package session owns the conversation state machine: creation of a session
// from a committed match, message relay through the moderation pipeline,
// rating, and termination. A session is the only structure that ties two
// participants together, and its lifecycle is Active -> Ended, terminal.
package session

import "time"

// Status of a session.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// End reasons recorded on the session and sent with the session-ended event.
const (
	ReasonUser            = "user"
	ReasonAbuse           = "abuse"
	ReasonDeliveryFailure = "delivery_failure"
)

// Session is one ephemeral conversation between two participants. Ended
// sessions are retained as history records; ratings and the no-repeat
// filter read them back.
type Session struct {
	ID           string
	ParticipantA string
	ParticipantB string
	StartedAt    time.Time
	EndedAt      time.Time // zero while active
	EndedBy      string
	EndReason    string
	MessageCount int
	RatingA      int // rating given by A (0 = none/skip)
	RatingB      int // rating given by B
	Status       Status
}

// Partner returns the other participant's id, or "" if id is not a member.
func (s *Session) Partner(id string) string {
	switch id {
	case s.ParticipantA:
		return s.ParticipantB
	case s.ParticipantB:
		return s.ParticipantA
	}
	return ""
}

// IsParticipant reports whether id belongs to this session.
func (s *Session) IsParticipant(id string) bool {
	return id == s.ParticipantA || id == s.ParticipantB
}

// Duration returns the session length, or the zero duration while active.
func (s *Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
