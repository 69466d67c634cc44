// Package participant defines the profile model shared by the pairing and
// moderation core, and the repository boundary behind which the actual
// profile store lives. The core only reads match-relevant attributes and
// writes the status field and rolling counters.
package participant

// Status is a participant's position in the pairing lifecycle.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusQueued       Status = "queued"
	StatusInSession    Status = "in_session"
	StatusBanned       Status = "banned"
	StatusShadowBanned Status = "shadow_banned"
)

// Premium tiers. Anything other than TierFree counts as paying.
const (
	TierFree  = "free"
	TierBasic = "basic"
	TierPro   = "pro"
	TierVIP   = "vip"
)

// Counter field names accepted by Repository.IncrementCounter.
const (
	CounterTotalChats    = "total_chats"
	CounterTotalMessages = "total_messages"
	CounterLikesReceived = "likes_received"
)

// Filters are the match preferences a participant submits when requesting
// a pairing. All fields are optional; zero values mean "no preference".
type Filters struct {
	Language  string   // require the partner's language to equal this
	AgeGroups []string // acceptable partner age groups
	Countries []string // preferred partner countries (soft)
	OnlyNew   bool     // reject partners chatted with in the repeat window
}

// Participant is the profile projection the core operates on.
type Participant struct {
	ID          string
	Status      Status
	Language    string
	AgeGroup    string
	Country     string
	Interests   []string
	PremiumTier string

	TotalChats    int
	TotalMessages int
	LikesReceived int
	Reputation    float64
	Experience    int
	Level         int
}

// IsPaying reports whether the participant is on any paid tier.
func (p *Participant) IsPaying() bool {
	return p.PremiumTier != "" && p.PremiumTier != TierFree
}

// Priority returns the queue scan priority for a premium tier.
// Paying participants are evaluated ahead of free ones.
func Priority(tier string, free, premium int) int {
	if tier != "" && tier != TierFree {
		return premium
	}
	return free
}

// LevelFor computes the gamification level for an experience total.
func LevelFor(experience int) int {
	return experience/100 + 1
}

// SharedInterests returns the tags present in both interest sets,
// preserving a's order.
func SharedInterests(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, tag := range b {
		set[tag] = true
	}
	var shared []string
	for _, tag := range a {
		if set[tag] {
			shared = append(shared, tag)
		}
	}
	return shared
}
