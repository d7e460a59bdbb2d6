// Package hotword boosts hypotheses that contain user-supplied phrases. Phrases
// are compiled into an Aho-Corasick automaton over vocabulary symbol indices and
// matched as the beam search completes words.
package hotword

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
	"github.com/ieee0824/ctcdecode-go/vocab"
)

var (
	ErrEmptyPhrase   = fmt.Errorf("%w: empty hotword phrase", ctcerr.ErrInput)
	ErrUnknownSymbol = fmt.Errorf("%w: hotword symbol not in vocabulary", ctcerr.ErrInput)
	ErrWeight        = fmt.Errorf("%w: hotword weight must be finite", ctcerr.ErrConfiguration)
	ErrDestroyed     = fmt.Errorf("%w: hotword booster already destroyed", ctcerr.ErrState)
)

// State is a position in the automaton. States are only meaningful for the
// Booster that produced them.
type State int32

type acNode struct {
	next map[int]State
	fail State
	out  int // patterns ending here, including through fail links
}

// Booster scores completed words against a fixed phrase set. It is immutable
// apart from its release flag and may be shared by concurrent decodes.
type Booster struct {
	weight    float64
	sep       int
	vocab     uint64
	nodes     []acNode
	patterns  int
	hash      uint64
	destroyed atomic.Bool
}

// Prepare compiles phrases given as symbol sequences. A separator inside a phrase
// marks a word boundary; separators at either end are ignored. With a separator the
// phrases match whole words only.
func Prepare(v *vocab.Vocabulary, phrases [][]string, weight float64) (*Booster, error) {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return nil, fmt.Errorf("%w: %v", ErrWeight, weight)
	}
	sep, hasSep := v.Separator()
	if !hasSep {
		sep = -1
	}

	var patterns [][]int
	seen := make(map[string]bool)
	for i, phrase := range phrases {
		labels, err := v.Lookup(phrase)
		if err != nil {
			return nil, fmt.Errorf("%w: phrase %d: %v", ErrUnknownSymbol, i, err)
		}
		labels, err = normalize(labels, v.Blank(), sep)
		if err != nil {
			return nil, fmt.Errorf("phrase %d: %w", i, err)
		}
		if sep >= 0 {
			p := make([]int, 0, len(labels)+2)
			p = append(p, sep)
			p = append(p, labels...)
			p = append(p, sep)
			labels = p
		}
		key := fmt.Sprint(labels)
		if seen[key] {
			continue
		}
		seen[key] = true
		patterns = append(patterns, labels)
	}

	b := &Booster{weight: weight, sep: sep, vocab: v.Fingerprint()}
	b.build(patterns)
	b.hash = fingerprint(b.vocab, weight, patterns)
	return b, nil
}

// normalize drops leading, trailing and doubled separators.
func normalize(labels []int, blank, sep int) ([]int, error) {
	out := make([]int, 0, len(labels))
	for _, l := range labels {
		if l == blank {
			return nil, fmt.Errorf("%w: blank inside phrase", ErrUnknownSymbol)
		}
		if l == sep && (len(out) == 0 || out[len(out)-1] == sep) {
			continue
		}
		out = append(out, l)
	}
	if len(out) > 0 && out[len(out)-1] == sep {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil, ErrEmptyPhrase
	}
	return out, nil
}

func (b *Booster) build(patterns [][]int) {
	b.nodes = []acNode{{next: make(map[int]State)}}
	for _, p := range patterns {
		s := State(0)
		for _, l := range p {
			n, ok := b.nodes[s].next[l]
			if !ok {
				n = State(len(b.nodes))
				b.nodes = append(b.nodes, acNode{next: make(map[int]State)})
				b.nodes[s].next[l] = n
			}
			s = n
		}
		b.nodes[s].out++
	}
	b.patterns = len(patterns)

	// Breadth-first fail links. Children are visited in symbol order so the
	// construction is deterministic.
	queue := make([]State, 0, len(b.nodes))
	for _, l := range sortedKeys(b.nodes[0].next) {
		queue = append(queue, b.nodes[0].next[l])
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, l := range sortedKeys(b.nodes[s].next) {
			child := b.nodes[s].next[l]
			f := b.nodes[s].fail
			for f != 0 {
				if _, ok := b.nodes[f].next[l]; ok {
					break
				}
				f = b.nodes[f].fail
			}
			if n, ok := b.nodes[f].next[l]; ok && n != child {
				b.nodes[child].fail = n
			}
			b.nodes[child].out += b.nodes[b.nodes[child].fail].out
			queue = append(queue, child)
		}
	}
}

func sortedKeys(m map[int]State) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (b *Booster) step(s State, l int) (State, int) {
	for {
		if n, ok := b.nodes[s].next[l]; ok {
			return n, b.nodes[n].out
		}
		if s == 0 {
			return 0, 0
		}
		s = b.nodes[s].fail
	}
}

// Start returns the state at the beginning of an utterance.
func (b *Booster) Start() State {
	if b.sep < 0 {
		return 0
	}
	s, _ := b.step(0, b.sep)
	return s
}

// Bonus feeds a completed word and returns weight times the number of phrase
// occurrences it completes, with the state that follows the word.
func (b *Booster) Bonus(s State, word []int) (float64, State) {
	matches := 0
	var n int
	for _, l := range word {
		s, n = b.step(s, l)
		matches += n
	}
	if b.sep >= 0 {
		s, n = b.step(s, b.sep)
		matches += n
	}
	return b.weight * float64(matches), s
}

// Weight returns the per-occurrence bonus.
func (b *Booster) Weight() float64 { return b.weight }

// Len returns the number of distinct phrases.
func (b *Booster) Len() int { return b.patterns }

// Fingerprint identifies the phrase set, the weight and the vocabulary.
func (b *Booster) Fingerprint() uint64 { return b.hash }

// VocabularyFingerprint identifies the vocabulary the phrases were compiled for.
func (b *Booster) VocabularyFingerprint() uint64 { return b.vocab }

// Destroy releases the booster. Decoding with a released booster fails.
func (b *Booster) Destroy() error {
	if !b.destroyed.CompareAndSwap(false, true) {
		return ErrDestroyed
	}
	return nil
}

// Released reports whether Destroy has been called.
func (b *Booster) Released() bool { return b.destroyed.Load() }

func fingerprint(vocabHash uint64, weight float64, patterns [][]int) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], vocabHash)
	d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(weight))
	d.Write(buf[:])
	for _, p := range patterns {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(p)))
		d.Write(buf[:])
		for _, l := range p {
			binary.LittleEndian.PutUint64(buf[:], uint64(l))
			d.Write(buf[:])
		}
	}
	return d.Sum64()
}
