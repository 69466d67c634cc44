// Package config holds every tunable policy constant of the pairing and
// moderation core in one place. The various historical deployments of this
// system drifted apart on thresholds (ban limits, timeouts, scoring weights);
// this package is the single source of truth, with defaults that match the
// documented behavior and env-var overrides for operators.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Matching controls the queue and the match engine.
type Matching struct {
	TickInterval time.Duration // how often the engine scans the queue
	WaitTimeout  time.Duration // max time a participant waits before "no match"
	BestFit      bool          // pick the highest-scoring candidate instead of first-fit

	// Scoring weights. Hard filters are evaluated before any of these apply.
	BaseScore            int
	MatchThreshold       int // minimum score for a pair to be committed
	LanguageFilterBonus  int
	LanguageNaturalBonus int
	AgeGroupBonus        int
	CountryFilterBonus   int
	CountryNaturalBonus  int
	InterestBonus        int // per shared interest tag
	ReputationBonus      int
	ReputationCutoff     float64 // average reputation required for the bonus
	PremiumBonus         int

	// Queue priorities by premium tier.
	FreePriority    int
	PremiumPriority int

	RepeatWindow time.Duration // "no repeat" lookback for the only-new filter
}

// Moderation controls the layered content pipeline.
type Moderation struct {
	BlockLevel   int     // toxicity at or above this level blocks relay
	WarnLevel    int     // toxicity at or above this level attaches a warning
	CapsRatio    float64 // caps ratio above which a message counts as spam
	CapsMinLen   int     // minimum length before the caps check applies
	DigitRunLen  int     // consecutive digits treated as a phone number
	CharFloodLen int     // consecutive identical chars treated as flooding

	// Optional out-of-process toxicity scorer. Disabled when URL is empty.
	ExternalURL     string
	ExternalKey     string
	ExternalTimeout time.Duration
	ExternalCutoff  float64 // confidence above which the scorer raises to High
}

// Enforcement controls report-driven bans.
type Enforcement struct {
	ReportWindow    time.Duration // sliding window for counting reports
	ShadowThreshold int           // reports in window that trigger a shadow-ban
	BanThreshold    int           // reports in window that trigger a permanent ban
	ShadowDropRate  float64       // probability a shadow-banned message is dropped
}

// Session controls message relay limits.
type Session struct {
	MaxMessageBytes int
	MaxMessageChars int
	FloodLimit      int           // messages allowed per FloodWindow per sender
	FloodWindow     time.Duration
	ChatExperience  int // experience awarded to each participant on session end
}

// Config is the root configuration for the roulette core and its adapters.
type Config struct {
	Matching    Matching
	Moderation  Moderation
	Enforcement Enforcement
	Session     Session

	RedisAddr     string
	NATSURL       string
	PostgresDSN   string
	TelegramToken string
	MetricsAddr   string
}

// Default returns the documented baseline configuration.
func Default() Config {
	return Config{
		Matching: Matching{
			TickInterval:         2 * time.Second,
			WaitTimeout:          60 * time.Second,
			BestFit:              false,
			BaseScore:            100,
			MatchThreshold:       100,
			LanguageFilterBonus:  20,
			LanguageNaturalBonus: 10,
			AgeGroupBonus:        15,
			CountryFilterBonus:   10,
			CountryNaturalBonus:  5,
			InterestBonus:        5,
			ReputationBonus:      10,
			ReputationCutoff:     50,
			PremiumBonus:         15,
			FreePriority:         2,
			PremiumPriority:      4,
			RepeatWindow:         24 * time.Hour,
		},
		Moderation: Moderation{
			BlockLevel:      3, // High
			WarnLevel:       1, // Low
			CapsRatio:       0.7,
			CapsMinLen:      10,
			DigitRunLen:     10,
			CharFloodLen:    6,
			ExternalTimeout: 5 * time.Second,
			ExternalCutoff:  0.7,
		},
		Enforcement: Enforcement{
			ReportWindow:    24 * time.Hour,
			ShadowThreshold: 3,
			BanThreshold:    5,
			ShadowDropRate:  0.5,
		},
		Session: Session{
			MaxMessageBytes: 4096,
			MaxMessageChars: 2000,
			FloodLimit:      5,
			FloodWindow:     10 * time.Second,
			ChatExperience:  10,
		},
		RedisAddr:   "localhost:6379",
		NATSURL:     "nats://localhost:4222",
		MetricsAddr: ":9090",
	}
}

// Load returns the default configuration with overrides applied from the
// environment. A .env file in the working directory is honored when present.
func Load() Config {
	_ = godotenv.Load()

	cfg := Default()

	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.NATSURL, "NATS_URL")
	setString(&cfg.PostgresDSN, "POSTGRES_DSN")
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")

	setDuration(&cfg.Matching.TickInterval, "MATCH_TICK_INTERVAL")
	setDuration(&cfg.Matching.WaitTimeout, "MATCH_WAIT_TIMEOUT")
	setBool(&cfg.Matching.BestFit, "MATCH_BEST_FIT")
	setInt(&cfg.Matching.MatchThreshold, "MATCH_THRESHOLD")

	setInt(&cfg.Moderation.BlockLevel, "MODERATION_BLOCK_LEVEL")
	setInt(&cfg.Moderation.WarnLevel, "MODERATION_WARN_LEVEL")
	setString(&cfg.Moderation.ExternalURL, "MODERATION_EXTERNAL_URL")
	setString(&cfg.Moderation.ExternalKey, "MODERATION_EXTERNAL_KEY")
	setDuration(&cfg.Moderation.ExternalTimeout, "MODERATION_EXTERNAL_TIMEOUT")

	setDuration(&cfg.Enforcement.ReportWindow, "REPORT_WINDOW")
	setInt(&cfg.Enforcement.ShadowThreshold, "SHADOW_BAN_THRESHOLD")
	setInt(&cfg.Enforcement.BanThreshold, "BAN_THRESHOLD")
	setFloat(&cfg.Enforcement.ShadowDropRate, "SHADOW_DROP_RATE")

	setInt(&cfg.Session.FloodLimit, "FLOOD_LIMIT")
	setDuration(&cfg.Session.FloodWindow, "FLOOD_WINDOW")

	return cfg
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
