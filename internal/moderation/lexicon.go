package moderation

import (
	"strings"
	"unicode"
)

// defaultLexicons holds the built-in language-specific toxic word lists.
// These are the curated base lists; deployments extend them via NewLexicon.
var defaultLexicons = map[string][]string{
	"ru": {
		"дурак", "идиот", "тупой", "урод", "мразь",
		"ничтожество", "убожество", "дебил",
	},
	"en": {
		"stupid", "idiot", "dumb", "hate", "kill",
		"loser", "ugly", "trash",
	},
}

// lexiconFallback is the list used when no list exists for a language.
const lexiconFallback = "en"

// Lexicon matches message tokens against per-language toxic word lists.
// Matching is substring-based per token, so inflected forms still hit
// ("idiots" matches "idiot").
type Lexicon struct {
	words map[string][]string
}

// NewDefaultLexicon returns a Lexicon with the built-in lists.
func NewDefaultLexicon() *Lexicon {
	return NewLexicon(defaultLexicons)
}

// NewLexicon builds a Lexicon from the given per-language lists.
// Words are lowercased.
func NewLexicon(lists map[string][]string) *Lexicon {
	words := make(map[string][]string, len(lists))
	for lang, list := range lists {
		lowered := make([]string, 0, len(list))
		for _, w := range list {
			lowered = append(lowered, strings.ToLower(w))
		}
		words[lang] = lowered
	}
	return &Lexicon{words: words}
}

// Matches counts how many tokens of text contain a toxic word from the
// list for lang. Unknown languages fall back to the English list.
func (l *Lexicon) Matches(text, lang string) int {
	list, ok := l.words[lang]
	if !ok {
		list = l.words[lexiconFallback]
	}
	if len(list) == 0 {
		return 0
	}

	count := 0
	for _, token := range tokenize(text) {
		for _, w := range list {
			if strings.Contains(token, w) {
				count++
				break
			}
		}
	}
	return count
}

// tokenize lowercases text and splits it on whitespace and punctuation.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// lexiconLevel maps a toxic-token count to a toxicity level:
// 0 matches -> None, 1 -> Low, 2 -> Medium, 3 or more -> High.
func lexiconLevel(matches int) Level {
	switch {
	case matches <= 0:
		return LevelNone
	case matches == 1:
		return LevelLow
	case matches == 2:
		return LevelMedium
	default:
		return LevelHigh
	}
}
