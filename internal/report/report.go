// Package report records abuse reports and enforces the report-driven
// sanctions: enough reports inside a sliding window shadow-bans the
// reported participant, more make the ban permanent. Each report carries a
// snapshot of the session's last messages for moderator review.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/rouletka/roulette/internal/session"
)

// Report reasons accepted by the ledger.
const (
	ReasonHarassment = "harassment"
	ReasonSpam       = "spam"
	ReasonExplicit   = "explicit"
	ReasonOther      = "other"
)

var validReasons = map[string]bool{
	ReasonHarassment: true,
	ReasonSpam:       true,
	ReasonExplicit:   true,
	ReasonOther:      true,
}

// ValidReason reports whether reason is one of the accepted report types.
func ValidReason(reason string) bool { return validReasons[reason] }

// Validation errors surfaced by the ledger.
var (
	ErrInvalidReason  = errors.New("report: invalid reason")
	ErrSelfReport     = errors.New("report: cannot report yourself")
	ErrNotParticipant = errors.New("report: reporter is not a session participant")
)

// Report is one filed abuse report.
type Report struct {
	ID         string
	SessionID  string
	ReporterID string
	ReportedID string
	Reason     string
	Messages   []session.LoggedMessage // conversation snapshot at filing time
	CreatedAt  time.Time
}

// Store persists reports. CountSince is the sliding-window query the
// enforcement thresholds are computed from; the window never resets on
// write, it is evaluated at read time.
type Store interface {
	Add(ctx context.Context, r Report) error
	CountSince(ctx context.Context, reportedID string, since time.Time) (int, error)
}
