package language

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ieee0824/ctcdecode-go/scorer"
)

const (
	// DefaultOOVLogProb is the score of a word outside the model vocabulary.
	DefaultOOVLogProb = -1000.0
	// DefaultCacheSize is the number of (context, word) scores kept in memory.
	DefaultCacheSize = 65536
)

type cacheKey struct {
	ctx  scorer.Context
	word string
}

type cacheEntry struct {
	score float64
	next  scorer.Context
}

// Scorer adapts an NGramModel to scorer.Oracle. A context holds the last
// Order-1 words joined by spaces.
type Scorer struct {
	model *NGramModel
	oov   float64
	eos   bool
	cache *lru.Cache[cacheKey, cacheEntry]
	hash  uint64
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithOOVLogProb sets the score of unknown words.
func WithOOVLogProb(lp float64) ScorerOption {
	return func(s *Scorer) { s.oov = lp }
}

// WithEndOfSentence adds log P(</s> | context) to the final score.
func WithEndOfSentence(on bool) ScorerOption {
	return func(s *Scorer) { s.eos = on }
}

// WithCacheSize sets the LRU size; 0 disables caching.
func WithCacheSize(n int) ScorerOption {
	return func(s *Scorer) {
		if n <= 0 {
			s.cache = nil
			return
		}
		s.cache, _ = lru.New[cacheKey, cacheEntry](n)
	}
}

// NewScorer wraps m. m must not be modified afterwards.
func NewScorer(m *NGramModel, opts ...ScorerOption) *Scorer {
	s := &Scorer{model: m, oov: DefaultOOVLogProb}
	s.cache, _ = lru.New[cacheKey, cacheEntry](DefaultCacheSize)
	for _, opt := range opts {
		opt(s)
	}
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], m.Fingerprint())
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s.oov))
	h.Write(buf[:])
	if s.eos {
		h.Write([]byte{1})
	}
	s.hash = h.Sum64()
	return s
}

// Fingerprint identifies the model and scoring options.
func (s *Scorer) Fingerprint() uint64 { return s.hash }

// Model returns the underlying model.
func (s *Scorer) Model() *NGramModel { return s.model }

// NewContext returns the sentence-start context.
func (s *Scorer) NewContext() scorer.Context {
	return s.trim([]string{SentenceStart})
}

// ScoreWord returns ln P(word | ctx) and the context that follows word.
// Unknown words score the OOV penalty and enter the history as <unk>.
func (s *Scorer) ScoreWord(ctx scorer.Context, word string) (float64, scorer.Context) {
	key := cacheKey{ctx, word}
	if s.cache != nil {
		if e, ok := s.cache.Get(key); ok {
			return e.score, e.next
		}
	}

	hist := splitContext(ctx)
	var score float64
	if s.model.Contains(word) {
		score = s.model.LogProb(hist, word)
	} else {
		score = s.oov
		word = Unknown
	}
	next := s.trim(append(hist, word))

	if s.cache != nil {
		s.cache.Add(key, cacheEntry{score, next})
	}
	return score, next
}

// FinalScore returns ln P(</s> | ctx) when end-of-sentence scoring is on.
func (s *Scorer) FinalScore(ctx scorer.Context) float64 {
	if !s.eos {
		return 0
	}
	return s.model.LogProb(splitContext(ctx), SentenceEnd)
}

// Words returns the model vocabulary without sentence markers and <unk>.
func (s *Scorer) Words() []string {
	var out []string
	for _, w := range s.model.Vocab() {
		switch w {
		case SentenceStart, SentenceEnd, Unknown:
			continue
		}
		out = append(out, w)
	}
	return out
}

func (s *Scorer) trim(hist []string) scorer.Context {
	if n := s.model.Order - 1; len(hist) > n {
		hist = hist[len(hist)-n:]
	}
	return scorer.Context(strings.Join(hist, " "))
}

func splitContext(ctx scorer.Context) []string {
	return strings.Fields(string(ctx))
}
