// Package language provides n-gram language models for shallow fusion during
// CTC beam search: ARPA and compiled loaders, a Witten-Bell builder and a
// word scorer with a shared cache.
package language

import (
	"encoding/binary"
	"math"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ieee0824/ctcdecode-go/internal/mathutil"
)

// Special tokens.
const (
	SentenceStart = "<s>"
	SentenceEnd   = "</s>"
	Unknown       = "<unk>"
)

// NGramModel represents a backoff n-gram language model of any order.
// Probabilities are natural log.
type NGramModel struct {
	Order int
	// Grams[k] holds the (k+1)-grams keyed by their space-joined words.
	Grams []map[string]Entry
}

// Entry is a single n-gram line.
type Entry struct {
	LogProb    float64 `msgpack:"p"`
	LogBackoff float64 `msgpack:"b"`
}

// NewNGramModel creates an empty n-gram model.
func NewNGramModel(order int) *NGramModel {
	m := &NGramModel{}
	m.grow(order)
	return m
}

func (m *NGramModel) grow(order int) {
	for len(m.Grams) < order {
		m.Grams = append(m.Grams, make(map[string]Entry))
	}
	if order > m.Order {
		m.Order = order
	}
}

// Unigrams returns the 1-gram table.
func (m *NGramModel) Unigrams() map[string]Entry {
	if len(m.Grams) == 0 {
		return nil
	}
	return m.Grams[0]
}

// Set stores an n-gram.
func (m *NGramModel) Set(words []string, e Entry) {
	m.grow(len(words))
	m.Grams[len(words)-1][strings.Join(words, " ")] = e
}

// Lookup returns the entry for an n-gram.
func (m *NGramModel) Lookup(words []string) (Entry, bool) {
	if len(words) == 0 || len(words) > len(m.Grams) {
		return Entry{}, false
	}
	e, ok := m.Grams[len(words)-1][strings.Join(words, " ")]
	return e, ok
}

// Contains reports whether word is in the unigram vocabulary.
func (m *NGramModel) Contains(word string) bool {
	_, ok := m.Unigrams()[word]
	return ok
}

// LogProb returns the log probability of a word given its history.
// Backs off recursively when the exact n-gram is not found. Words outside the
// vocabulary get the <unk> probability, or LogZero when the model has none.
func (m *NGramModel) LogProb(history []string, word string) float64 {
	if n := m.Order - 1; len(history) > n {
		history = history[len(history)-n:]
	}
	return m.backoff(history, word)
}

func (m *NGramModel) backoff(history []string, word string) float64 {
	gram := make([]string, 0, len(history)+1)
	gram = append(gram, history...)
	gram = append(gram, word)
	if e, ok := m.Lookup(gram); ok {
		return e.LogProb
	}
	if len(history) == 0 {
		if e, ok := m.Unigrams()[Unknown]; ok {
			return e.LogProb
		}
		return mathutil.LogZero
	}
	var bo float64
	if e, ok := m.Lookup(history); ok {
		bo = e.LogBackoff
	}
	return bo + m.backoff(history[1:], word)
}

// SentenceLogProb returns the total log probability of a sentence (word sequence).
// Automatically adds <s> at the beginning and </s> at the end.
func (m *NGramModel) SentenceLogProb(words []string) float64 {
	total := 0.0
	history := []string{SentenceStart}
	for _, w := range words {
		total += m.LogProb(history, w)
		history = append(history, w)
	}
	total += m.LogProb(history, SentenceEnd)
	return total
}

// Vocab returns all words in the unigram vocabulary, sorted.
func (m *NGramModel) Vocab() []string {
	words := make([]string, 0, len(m.Unigrams()))
	for w := range m.Unigrams() {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Size returns the number of n-grams of each order.
func (m *NGramModel) Size() []int {
	out := make([]int, len(m.Grams))
	for i, g := range m.Grams {
		out[i] = len(g)
	}
	return out
}

// Fingerprint hashes the model content. Equal models hash equally regardless
// of how they were loaded.
func (m *NGramModel) Fingerprint() uint64 {
	sum := uint64(m.Order)
	var buf [16]byte
	for k, g := range m.Grams {
		for key, e := range g {
			h := xxhash.New()
			binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(e.LogProb))
			binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(e.LogBackoff))
			h.Write(buf[:])
			h.WriteString(key)
			sum += h.Sum64() * uint64(2*k+1)
		}
	}
	return sum
}
