// Package decoder implements CTC prefix beam search over a trie of label
// prefixes, with optional language model fusion, hotword biasing and a lexicon
// constraint. Offline decoding and chunked online decoding share one engine;
// online calls carry a State between chunks.
package decoder

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
	"github.com/ieee0824/ctcdecode-go/hotword"
	"github.com/ieee0824/ctcdecode-go/internal/mathutil"
	"github.com/ieee0824/ctcdecode-go/lexicon"
	"github.com/ieee0824/ctcdecode-go/scorer"
	"github.com/ieee0824/ctcdecode-go/vocab"
)

var (
	ErrDimension       = fmt.Errorf("%w: probability row width does not match vocabulary size", ctcerr.ErrConfiguration)
	ErrRagged          = fmt.Errorf("%w: probability rows have different widths", ctcerr.ErrInput)
	ErrNonFinite       = fmt.Errorf("%w: probability is not finite", ctcerr.ErrInput)
	ErrNegative        = fmt.Errorf("%w: negative probability", ctcerr.ErrInput)
	ErrVocabulary      = fmt.Errorf("%w: resource built for a different vocabulary", ctcerr.ErrConfiguration)
	ErrBoosterReleased = fmt.Errorf("%w: hotword booster is destroyed", ctcerr.ErrState)
)

// Decoder is immutable after New and safe for concurrent use; each call works
// on its own State.
type Decoder struct {
	vocab       *vocab.Vocabulary
	cfg         Config
	oracle      scorer.Oracle
	lexicon     *lexicon.Dictionary
	meter       metric.MeterProvider
	metrics     *metrics
	fingerprint uint64
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithScorer fuses o into the search. Scores are weighted by Config.Alpha.
func WithScorer(o scorer.Oracle) Option {
	return func(d *Decoder) { d.oracle = o }
}

// WithLexicon restricts completed words to the dictionary.
func WithLexicon(l *lexicon.Dictionary) Option {
	return func(d *Decoder) { d.lexicon = l }
}

// WithMeterProvider sets where metrics are reported. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Decoder) { d.meter = mp }
}

// New creates a decoder for vocabulary v.
func New(v *vocab.Vocabulary, cfg Config, opts ...Option) (*Decoder, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil vocabulary", ctcerr.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Decoder{vocab: v, cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.oracle == nil {
		d.oracle = scorer.Noop{}
	}
	if d.lexicon != nil && d.lexicon.VocabularyFingerprint() != v.Fingerprint() {
		return nil, fmt.Errorf("lexicon: %w", ErrVocabulary)
	}
	m, err := newMetrics(d.meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	d.metrics = m
	d.fingerprint = d.computeFingerprint()
	return d, nil
}

func (d *Decoder) computeFingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put(d.vocab.Fingerprint())
	d.cfg.hash(h)
	if f, ok := d.oracle.(scorer.Fingerprinter); ok {
		fmt.Fprintf(h, "%T", d.oracle)
		put(f.Fingerprint())
	} else {
		// unknown content: states only fit this decoder
		id := uuid.New()
		h.Write(id[:])
	}
	if d.lexicon != nil {
		put(d.lexicon.Fingerprint())
	}
	return h.Sum64()
}

// Vocabulary returns the decoder's vocabulary.
func (d *Decoder) Vocabulary() *vocab.Vocabulary { return d.vocab }

// Config returns the decoder's parameters.
func (d *Decoder) Config() Config { return d.cfg }

// Fingerprint identifies the configuration a State is tied to.
func (d *Decoder) Fingerprint() uint64 { return d.fingerprint }

// NewState creates a Fresh online state for this decoder.
func (d *Decoder) NewState() *State { return newState(d.fingerprint) }

type callOptions struct {
	booster *hotword.Booster
	topN    int
}

// DecodeOption configures one decode call.
type DecodeOption func(*callOptions)

// WithBooster biases the call toward the booster's phrases.
func WithBooster(b *hotword.Booster) DecodeOption {
	return func(o *callOptions) { o.booster = b }
}

// WithTopN sets the number of hypotheses returned, capped at the beam width.
func WithTopN(n int) DecodeOption {
	return func(o *callOptions) { o.topN = n }
}

// Decode runs an offline decode over a whole utterance, probs[t][symbol].
func (d *Decoder) Decode(ctx context.Context, probs [][]float64, opts ...DecodeOption) ([]Hypothesis, error) {
	st := d.NewState()
	defer st.Destroy()
	return d.DecodeStream(ctx, st, probs, true, opts...)
}

// DecodeStream feeds the next chunk of an utterance through st. When eos is
// false the state stays open and the current N-best is returned; when eos is
// true the trailing word is scored and the state becomes Finalized.
//
// On an input error the state is left untouched. On cancellation the timesteps
// processed before ctx was done are kept and the state remains usable.
func (d *Decoder) DecodeStream(ctx context.Context, st *State, probs [][]float64, eos bool, opts ...DecodeOption) ([]Hypothesis, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := st.acquire(); err != nil {
		return nil, err
	}
	defer st.release()

	if st.config != d.fingerprint {
		return nil, ErrMismatch
	}
	var boosterHash uint64
	if b := o.booster; b != nil {
		if b.Released() {
			return nil, ErrBoosterReleased
		}
		if b.VocabularyFingerprint() != d.vocab.Fingerprint() {
			return nil, fmt.Errorf("hotword booster: %w", ErrVocabulary)
		}
		boosterHash = b.Fingerprint()
	}
	if st.Status() == Active && st.booster != boosterHash {
		return nil, ErrBoosterChanged
	}

	rows, err := d.logRows(probs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if st.Status() == Fresh {
		var hs hotword.State
		if o.booster != nil {
			hs = o.booster.Start()
		}
		st.trie.reset(d.oracle.NewContext(), hs)
		st.beam = append(st.beam[:0], root)
		st.booster = boosterHash
		st.publish()
		st.status.Store(int32(Active))
	}

	s := d.newSearch(st, o.booster)
	var cancelErr error
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		s.step(row)
	}
	if cancelErr != nil {
		d.metrics.record(ctx, s.steps, s.pruned, false, time.Since(start))
		return nil, cancelErr
	}

	hyps := s.finalize(d.cfg.topN(o.topN), eos)
	if eos {
		st.status.Store(int32(Finalized))
	}
	d.metrics.record(ctx, s.steps, s.pruned, eos, time.Since(start))
	return hyps, nil
}

// logRows validates probs and converts them to natural-log rows.
func (d *Decoder) logRows(probs [][]float64) ([][]float64, error) {
	rows := make([][]float64, len(probs))
	for t, p := range probs {
		if len(p) != d.vocab.Size() {
			if t == 0 {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(p), d.vocab.Size())
			}
			return nil, fmt.Errorf("%w: timestep %d has %d symbols, want %d", ErrRagged, t, len(p), d.vocab.Size())
		}
		row := make([]float64, len(p))
		for i, x := range p {
			if math.IsNaN(x) || math.IsInf(x, 1) {
				return nil, fmt.Errorf("%w: timestep %d symbol %d: %v", ErrNonFinite, t, i, x)
			}
			if d.cfg.LogProbs {
				if math.IsInf(x, -1) {
					x = mathutil.LogFloor
				}
				row[i] = x
				continue
			}
			if x < 0 {
				return nil, fmt.Errorf("%w: timestep %d symbol %d: %v", ErrNegative, t, i, x)
			}
			row[i] = mathutil.SafeLog(x)
		}
		rows[t] = row
	}
	return rows, nil
}
