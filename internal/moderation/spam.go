package moderation

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// Compiled regex patterns for spam detection.
// These are compiled once at package init and reused for every call,
// making them safe and efficient for concurrent use.
var (
	// urlPattern matches http/https URLs, www. URLs, messenger invite links,
	// and bare domains with a path. The bare-domain variant requires a
	// trailing "/" to avoid false positives on version strings like "v2.0".
	urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|t\.me/\S+|telegram\.me/\S+|\S+\.(com|net|org|io|co|xyz|info|biz|ru|cn|tk|ml|ga|cf)/\S*)`)

	// mentionPattern matches @handle mentions used to lure partners off-platform.
	mentionPattern = regexp.MustCompile(`@\w+`)

	// digitRunPattern finds digit runs; the run length is checked separately
	// so the phone-number threshold stays configurable.
	digitRunPattern = regexp.MustCompile(`\d+`)
)

// spamCheck pairs a detection function with the flag it raises.
type spamCheck struct {
	flag  string
	match func(*spamDetector, string) bool
}

// spamChecks is the ordered list of checks applied by detect. Every check
// runs so the verdict carries all matching flags.
var spamChecks = []spamCheck{
	{flag: "url", match: func(d *spamDetector, text string) bool {
		return urlPattern.MatchString(text)
	}},
	{flag: "mention", match: func(d *spamDetector, text string) bool {
		return mentionPattern.MatchString(text)
	}},
	{flag: "digit_run", match: func(d *spamDetector, text string) bool {
		return hasDigitRun(text, d.digitRunLen)
	}},
	{flag: "char_flood", match: func(d *spamDetector, text string) bool {
		return hasCharFlood(text, d.charFloodLen)
	}},
	{flag: "caps", match: func(d *spamDetector, text string) bool {
		return hasExcessiveCaps(text, d.capsRatio, d.capsMinLen)
	}},
}

// spamDetector holds the tunable pattern thresholds.
type spamDetector struct {
	digitRunLen  int
	charFloodLen int
	capsRatio    float64
	capsMinLen   int
}

// detect runs every spam check against text and returns the flags raised.
// An empty result means the text passed all checks.
func (d *spamDetector) detect(text string) []string {
	var flags []string
	for _, sc := range spamChecks {
		if sc.match(d, text) {
			flags = append(flags, sc.flag)
		}
	}
	return flags
}

// hasDigitRun returns true if text contains a run of at least n digits.
func hasDigitRun(text string, n int) bool {
	for _, run := range digitRunPattern.FindAllString(text, -1) {
		if len(run) >= n {
			return true
		}
	}
	return false
}

// hasCharFlood returns true if text contains n or more consecutive identical
// characters. Go's regexp package (RE2) does not support backreferences, so
// this is a simple linear scan.
func hasCharFlood(text string, n int) bool {
	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= n {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// hasExcessiveCaps returns true if the share of uppercase runes exceeds
// ratio and the text is longer than minLen runes. Works for both Latin
// and Cyrillic scripts.
func hasExcessiveCaps(text string, ratio float64, minLen int) bool {
	total := utf8.RuneCountInString(text)
	if total <= minLen {
		return false
	}
	upper := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper)/float64(total) > ratio
}
