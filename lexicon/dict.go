// Package lexicon restricts beam expansion to a fixed word list. Words are stored
// as a trie over vocabulary symbol indices.
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
	"github.com/ieee0824/ctcdecode-go/vocab"
)

// State is a position in the lexicon trie. The zero value is the word start.
type State int32

// Start is the state before the first symbol of a word.
const Start State = 0

type node struct {
	children map[int]State
	word     bool
}

// Dictionary holds the allowed words. It is immutable after construction and
// safe for concurrent use.
type Dictionary struct {
	nodes   []node
	words   int
	skipped []string
	vocab   uint64
	hash    uint64 // sum of per-word hashes, independent of insertion order
}

func newDictionary(v *vocab.Vocabulary) *Dictionary {
	return &Dictionary{
		nodes: []node{{children: make(map[int]State)}},
		vocab: v.Fingerprint(),
	}
}

// FromWords builds a dictionary from words tokenized over v. Words that cannot be
// spelled with v or that contain the separator are skipped.
func FromWords(v *vocab.Vocabulary, words []string) *Dictionary {
	d := newDictionary(v)
	for _, w := range words {
		d.add(v, w)
	}
	return d
}

func (d *Dictionary) add(v *vocab.Vocabulary, word string) {
	labels, err := v.Tokenize(word)
	if err != nil || len(labels) == 0 {
		d.skipped = append(d.skipped, word)
		return
	}
	for _, l := range labels {
		if v.IsSeparator(l) {
			d.skipped = append(d.skipped, word)
			return
		}
	}

	s := Start
	h := xxhash.New()
	for _, l := range labels {
		fmt.Fprintf(h, "%d,", l)
		next, ok := d.nodes[s].children[l]
		if !ok {
			next = State(len(d.nodes))
			d.nodes = append(d.nodes, node{children: make(map[int]State)})
			d.nodes[s].children[l] = next
		}
		s = next
	}
	if !d.nodes[s].word {
		d.nodes[s].word = true
		d.words++
		d.hash += h.Sum64()
	}
}

// Load reads one word per line. Only the first whitespace-separated field is
// used, so pronunciation dictionaries with extra columns load as well.
func Load(r io.Reader, v *vocab.Vocabulary) (*Dictionary, error) {
	d := newDictionary(v)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d.add(v, strings.Fields(line)[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read lexicon: %v", ctcerr.ErrResource, err)
	}
	return d, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string, v *vocab.Vocabulary) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ctcerr.ErrResource, err)
	}
	defer f.Close()
	return Load(f, v)
}

// Next follows symbol from s.
func (d *Dictionary) Next(s State, symbol int) (State, bool) {
	next, ok := d.nodes[s].children[symbol]
	return next, ok
}

// IsWord reports whether s ends a complete word.
func (d *Dictionary) IsWord(s State) bool { return d.nodes[s].word }

// Contains reports whether labels spell a word.
func (d *Dictionary) Contains(labels []int) bool {
	s := Start
	for _, l := range labels {
		var ok bool
		if s, ok = d.Next(s, l); !ok {
			return false
		}
	}
	return d.IsWord(s)
}

// Len returns the number of distinct words.
func (d *Dictionary) Len() int { return d.words }

// Skipped returns the input words that could not be added.
func (d *Dictionary) Skipped() []string { return d.skipped }

// Fingerprint identifies the word set.
func (d *Dictionary) Fingerprint() uint64 { return d.hash ^ d.vocab }

// VocabularyFingerprint identifies the vocabulary the words were tokenized with.
func (d *Dictionary) VocabularyFingerprint() uint64 { return d.vocab }
