package moderation

import (
	"math"
	"sort"
)

// Classification labels produced by the statistical layer.
const (
	LabelSafe  = "safe"
	LabelToxic = "toxic"
	LabelSpam  = "spam"
)

// Classifier is the pluggable statistical text classifier. Implementations
// must be deterministic for a given input and safe for concurrent use after
// training.
type Classifier interface {
	Classify(text string) string
}

// NaiveBayes is a multinomial naive-Bayes classifier with Laplace smoothing,
// trained on a small labeled corpus at construction time. It is intentionally
// tiny; swap it out through the Classifier interface for anything better.
type NaiveBayes struct {
	docsPerLabel  map[string]int
	wordsPerLabel map[string]map[string]int
	totalPerLabel map[string]int
	vocab         map[string]bool
	totalDocs     int
	labels        []string
}

// NewNaiveBayes returns an untrained classifier.
func NewNaiveBayes() *NaiveBayes {
	return &NaiveBayes{
		docsPerLabel:  make(map[string]int),
		wordsPerLabel: make(map[string]map[string]int),
		totalPerLabel: make(map[string]int),
		vocab:         make(map[string]bool),
	}
}

// Train adds a labeled document to the corpus.
func (nb *NaiveBayes) Train(text, label string) {
	if nb.wordsPerLabel[label] == nil {
		nb.wordsPerLabel[label] = make(map[string]int)
		nb.labels = append(nb.labels, label)
		sort.Strings(nb.labels)
	}
	nb.docsPerLabel[label]++
	nb.totalDocs++
	for _, token := range tokenize(text) {
		nb.wordsPerLabel[label][token]++
		nb.totalPerLabel[label]++
		nb.vocab[token] = true
	}
}

// Classify returns the most likely label for text. Ties break toward the
// lexicographically smallest label so the result is deterministic. An
// untrained classifier always answers LabelSafe.
func (nb *NaiveBayes) Classify(text string) string {
	if nb.totalDocs == 0 {
		return LabelSafe
	}

	tokens := tokenize(text)
	vocabSize := float64(len(nb.vocab))

	best := ""
	bestScore := math.Inf(-1)
	for _, label := range nb.labels {
		// log P(label) + sum log P(token|label), Laplace-smoothed.
		score := math.Log(float64(nb.docsPerLabel[label]) / float64(nb.totalDocs))
		denom := float64(nb.totalPerLabel[label]) + vocabSize
		for _, token := range tokens {
			count := float64(nb.wordsPerLabel[label][token]) + 1
			score += math.Log(count / denom)
		}
		if score > bestScore {
			bestScore = score
			best = label
		}
	}
	return best
}

// trainingCorpus is the inline corpus the default classifier learns from.
// Kept deliberately small: the statistical layer only has to catch what the
// pattern and lexicon layers miss.
var trainingCorpus = []struct {
	text  string
	label string
}{
	{"привет как дела", LabelSafe},
	{"отлично спасибо а у тебя", LabelSafe},
	{"чем занимаешься вечером", LabelSafe},
	{"люблю музыку и кино", LabelSafe},
	{"hello how are you", LabelSafe},
	{"nice to meet you what are your hobbies", LabelSafe},
	{"i love music and movies", LabelSafe},
	{"what do you do for fun", LabelSafe},

	{"ты дурак идиот", LabelToxic},
	{"какой же ты тупой урод", LabelToxic},
	{"ненавижу тебя мразь", LabelToxic},
	{"you are so stupid idiot", LabelToxic},
	{"i hate you ugly loser", LabelToxic},
	{"shut up dumb trash", LabelToxic},

	{"купи подписку переходи по ссылке", LabelSpam},
	{"заработок без вложений пиши в личку", LabelSpam},
	{"скидки только сегодня успей купить", LabelSpam},
	{"buy cheap followers click the link", LabelSpam},
	{"earn money fast join my channel", LabelSpam},
	{"free bitcoin giveaway register now", LabelSpam},
}

// DefaultClassifier returns a NaiveBayes trained on the inline corpus.
func DefaultClassifier() *NaiveBayes {
	nb := NewNaiveBayes()
	for _, doc := range trainingCorpus {
		nb.Train(doc.text, doc.label)
	}
	return nb
}
