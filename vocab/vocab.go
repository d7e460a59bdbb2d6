// Package vocab describes the output alphabet of a CTC classifier: its symbols,
// the blank index and the optional word separator.
package vocab

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
)

// DefaultSeparator is picked as the word separator when present in the symbol list.
const DefaultSeparator = " "

var (
	ErrBlankRange    = fmt.Errorf("%w: blank index out of range", ctcerr.ErrConfiguration)
	ErrDuplicate     = fmt.Errorf("%w: duplicate symbol", ctcerr.ErrConfiguration)
	ErrEmptySymbol   = fmt.Errorf("%w: empty symbol", ctcerr.ErrConfiguration)
	ErrSeparator     = fmt.Errorf("%w: invalid separator", ctcerr.ErrConfiguration)
	ErrUnknownSymbol = fmt.Errorf("%w: unknown symbol", ctcerr.ErrInput)
	ErrUntokenizable = fmt.Errorf("%w: text cannot be tokenized", ctcerr.ErrInput)
	errEmptyAlphabet = errors.New("vocabulary has no symbols")
)

// Vocabulary is an immutable ordered list of symbols. It is safe for concurrent use.
type Vocabulary struct {
	symbols   []string
	index     map[string]int
	blank     int
	separator int // -1 in character-based mode
	maxLen    int // longest non-blank symbol in bytes
	hash      uint64
}

type options struct {
	separator    string
	hasSeparator bool
	disable      bool
}

// Option configures a Vocabulary.
type Option func(*options)

// WithSeparator marks sym as the word separator.
func WithSeparator(sym string) Option {
	return func(o *options) {
		o.separator = sym
		o.hasSeparator = true
		o.disable = false
	}
}

// WithoutSeparator forces character-based mode: every symbol is a word.
func WithoutSeparator() Option {
	return func(o *options) {
		o.disable = true
		o.hasSeparator = false
	}
}

// New builds a vocabulary. The blank may have any display string, including "".
func New(symbols []string, blank int, opts ...Option) (*Vocabulary, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: %v", ctcerr.ErrConfiguration, errEmptyAlphabet)
	}
	if blank < 0 || blank >= len(symbols) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrBlankRange, blank, len(symbols))
	}

	v := &Vocabulary{
		symbols:   append([]string(nil), symbols...),
		index:     make(map[string]int, len(symbols)),
		blank:     blank,
		separator: -1,
	}
	for i, s := range v.symbols {
		if s == "" && i != blank {
			return nil, fmt.Errorf("%w: index %d", ErrEmptySymbol, i)
		}
		if _, ok := v.index[s]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, s)
		}
		v.index[s] = i
		if i != blank && len(s) > v.maxLen {
			v.maxLen = len(s)
		}
	}

	switch {
	case o.disable:
	case o.hasSeparator:
		i, ok := v.index[o.separator]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a symbol", ErrSeparator, o.separator)
		}
		if i == blank {
			return nil, fmt.Errorf("%w: separator cannot be the blank", ErrSeparator)
		}
		v.separator = i
	default:
		if i, ok := v.index[DefaultSeparator]; ok && i != blank {
			v.separator = i
		}
	}

	v.hash = v.computeHash()
	return v, nil
}

func (v *Vocabulary) computeHash() uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, s := range v.symbols {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		d.Write(buf[:])
		d.WriteString(s)
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(v.blank))
	d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(v.separator)))
	d.Write(buf[:])
	return d.Sum64()
}

// Size returns the number of symbols including the blank.
func (v *Vocabulary) Size() int { return len(v.symbols) }

// Blank returns the blank index.
func (v *Vocabulary) Blank() int { return v.blank }

// Separator returns the separator index, or false in character-based mode.
func (v *Vocabulary) Separator() (int, bool) { return v.separator, v.separator >= 0 }

// IsSeparator reports whether i is the word separator.
func (v *Vocabulary) IsSeparator(i int) bool { return v.separator >= 0 && i == v.separator }

// CharacterBased reports whether every symbol counts as a word.
func (v *Vocabulary) CharacterBased() bool { return v.separator < 0 }

// Symbol returns the display string of symbol i.
func (v *Vocabulary) Symbol(i int) string { return v.symbols[i] }

// Symbols returns a copy of the symbol list.
func (v *Vocabulary) Symbols() []string { return append([]string(nil), v.symbols...) }

// Index returns the index of sym.
func (v *Vocabulary) Index(sym string) (int, bool) {
	i, ok := v.index[sym]
	return i, ok
}

// Valid reports whether i is a symbol index.
func (v *Vocabulary) Valid(i int) bool { return i >= 0 && i < len(v.symbols) }

// Text concatenates the display strings of labels.
func (v *Vocabulary) Text(labels []int) string {
	var sb strings.Builder
	for _, l := range labels {
		sb.WriteString(v.symbols[l])
	}
	return sb.String()
}

// Lookup maps symbol strings to indices.
func (v *Vocabulary) Lookup(symbols []string) ([]int, error) {
	out := make([]int, len(symbols))
	for i, s := range symbols {
		idx, ok := v.index[s]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, s)
		}
		out[i] = idx
	}
	return out, nil
}

// Tokenize splits text into symbols by greedy longest match. The blank never matches.
func (v *Vocabulary) Tokenize(text string) ([]int, error) {
	var out []int
	for pos := 0; pos < len(text); {
		n := v.maxLen
		if rest := len(text) - pos; n > rest {
			n = rest
		}
		matched := false
		for ; n > 0; n-- {
			if i, ok := v.index[text[pos:pos+n]]; ok && i != v.blank {
				out = append(out, i)
				pos += n
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: at byte %d of %q", ErrUntokenizable, pos, text)
		}
	}
	return out, nil
}

// Words splits labels into words at the separator. Empty words are dropped.
// In character-based mode each non-blank label is its own word.
func (v *Vocabulary) Words(labels []int) [][]int {
	var words [][]int
	if v.separator < 0 {
		for i := range labels {
			words = append(words, labels[i:i+1])
		}
		return words
	}
	start := 0
	for i, l := range labels {
		if l == v.separator {
			if i > start {
				words = append(words, labels[start:i])
			}
			start = i + 1
		}
	}
	if start < len(labels) {
		words = append(words, labels[start:])
	}
	return words
}

// Fingerprint identifies the symbols, the blank and the separator.
func (v *Vocabulary) Fingerprint() uint64 { return v.hash }
