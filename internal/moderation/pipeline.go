// Package moderation classifies message content before relay. The pipeline
// layers cheap pattern checks, a language lexicon, a statistical classifier,
// and an optional external scorer into a single verdict; the toxicity level
// is monotonically non-decreasing across layers.
package moderation

import (
	"context"
	"log"

	"github.com/rouletka/roulette/internal/config"
)

// Level is an ordinal toxicity severity.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Verdict is the per-message moderation result. It is ephemeral: computed
// for each relay and never persisted beyond the message log.
type Verdict struct {
	Toxicity Level
	IsSpam   bool
	IsToxic  bool
	Flags    []string
}

// Pipeline evaluates message content. Layers 1-3 are pure functions of
// (text, lang); layer 4 is a best-effort network call with its own timeout
// and must never be invoked while holding locks.
type Pipeline struct {
	cfg        config.Moderation
	detector   *spamDetector
	lexicon    *Lexicon
	classifier Classifier
	external   ExternalClassifier
}

// NewPipeline builds a pipeline with the default lexicon and the built-in
// naive-Bayes classifier. external may be nil to disable layer 4.
func NewPipeline(cfg config.Moderation, external ExternalClassifier) *Pipeline {
	return &Pipeline{
		cfg: cfg,
		detector: &spamDetector{
			digitRunLen:  cfg.DigitRunLen,
			charFloodLen: cfg.CharFloodLen,
			capsRatio:    cfg.CapsRatio,
			capsMinLen:   cfg.CapsMinLen,
		},
		lexicon:    NewDefaultLexicon(),
		classifier: DefaultClassifier(),
		external:   external,
	}
}

// SetClassifier swaps the statistical layer. Intended for wiring a better
// model; not safe to call concurrently with Evaluate.
func (p *Pipeline) SetClassifier(c Classifier) { p.classifier = c }

// SetLexicon swaps the lexicon layer.
func (p *Pipeline) SetLexicon(l *Lexicon) { p.lexicon = l }

// Evaluate runs every layer over the message and combines the results.
func (p *Pipeline) Evaluate(ctx context.Context, text, lang string) Verdict {
	var v Verdict

	// Layer 1: spam patterns.
	if flags := p.detector.detect(text); len(flags) > 0 {
		v.IsSpam = true
		v.Flags = append(v.Flags, flags...)
		v.Toxicity = maxLevel(v.Toxicity, LevelMedium)
	}

	// Layer 2: language lexicon.
	if matches := p.lexicon.Matches(text, lang); matches > 0 {
		v.IsToxic = true
		v.Flags = append(v.Flags, "toxic_words")
		v.Toxicity = maxLevel(v.Toxicity, lexiconLevel(matches))
	}

	// Layer 3: statistical classifier.
	switch p.classifier.Classify(text) {
	case LabelToxic:
		v.IsToxic = true
		v.Flags = append(v.Flags, "ml_toxic")
		v.Toxicity = maxLevel(v.Toxicity, LevelMedium)
	case LabelSpam:
		v.IsSpam = true
		v.Flags = append(v.Flags, "ml_spam")
	}

	// Layer 4: optional external scorer, best-effort only.
	if p.external != nil {
		if score, err := p.external.Score(ctx, text); err != nil {
			log.Printf("[moderation] external scorer unavailable: %v", err)
		} else if score > p.cfg.ExternalCutoff {
			v.IsToxic = true
			v.Flags = append(v.Flags, "api_toxic")
			v.Toxicity = maxLevel(v.Toxicity, LevelHigh)
		}
	}

	return v
}

// Blocks reports whether the verdict forbids relaying the message.
// Spam always blocks, regardless of toxicity level.
func (p *Pipeline) Blocks(v Verdict) bool {
	return v.IsSpam || v.Toxicity >= Level(p.cfg.BlockLevel)
}

// Warns reports whether the message may relay but the sender should be
// warned about its tone.
func (p *Pipeline) Warns(v Verdict) bool {
	return !p.Blocks(v) && v.Toxicity >= Level(p.cfg.WarnLevel)
}

func maxLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}
