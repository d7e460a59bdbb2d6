// Package ctcdecode decodes batches of CTC classifier output into ranked text
// hypotheses. A BatchDecoder fans independent utterances out over a bounded
// worker pool; each utterance is decoded offline, or online through a
// decoder.State carried between calls.
package ctcdecode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/metric"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
	"github.com/ieee0824/ctcdecode-go/decoder"
	"github.com/ieee0824/ctcdecode-go/hotword"
	"github.com/ieee0824/ctcdecode-go/internal/workpool"
	"github.com/ieee0824/ctcdecode-go/language"
	"github.com/ieee0824/ctcdecode-go/lexicon"
	"github.com/ieee0824/ctcdecode-go/scorer"
	"github.com/ieee0824/ctcdecode-go/vocab"
)

var (
	ErrLength          = fmt.Errorf("%w: sequence length exceeds the probability matrix", ctcerr.ErrInput)
	ErrBatchShape      = fmt.Errorf("%w: per-utterance arrays do not match the batch size", ctcerr.ErrInput)
	ErrHotwordConflict = fmt.Errorf("%w: both hotword phrases and a prepared booster given", ctcerr.ErrInput)
	ErrNoLanguageModel = fmt.Errorf("%w: vocabulary constraint needs a language model", ctcerr.ErrConfiguration)
)

// BatchDecoder is safe for concurrent use.
type BatchDecoder struct {
	vocab   *vocab.Vocabulary
	dec     *decoder.Decoder
	workers int
	logger  *log.Logger
}

type settings struct {
	blank     int
	vocabOpts []vocab.Option
	cfg       decoder.Config
	workers   int
	lmPath    string
	lmOpts    []language.ScorerOption
	oracle    scorer.Oracle
	lexicon   *lexicon.Dictionary
	restrict  bool
	logger    *log.Logger
	meter     metric.MeterProvider
}

// Option configures a BatchDecoder.
type Option func(*settings)

// WithBlank sets the blank symbol index. Defaults to the last symbol.
func WithBlank(i int) Option {
	return func(s *settings) { s.blank = i }
}

// WithSeparator sets the word separator symbol. Defaults to " " when present.
func WithSeparator(sym string) Option {
	return func(s *settings) { s.vocabOpts = append(s.vocabOpts, vocab.WithSeparator(sym)) }
}

// WithCharacterBased treats every symbol as a word.
func WithCharacterBased() Option {
	return func(s *settings) { s.vocabOpts = append(s.vocabOpts, vocab.WithoutSeparator()) }
}

// WithConfig replaces all beam search parameters.
func WithConfig(cfg decoder.Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithBeamWidth sets the number of prefixes kept per timestep.
func WithBeamWidth(w int) Option {
	return func(s *settings) { s.cfg.BeamWidth = w }
}

// WithTopN sets the default number of hypotheses per utterance.
func WithTopN(n int) Option {
	return func(s *settings) { s.cfg.TopN = n }
}

// WithAlpha sets the language model weight.
func WithAlpha(a float64) Option {
	return func(s *settings) { s.cfg.Alpha = a }
}

// WithBeta sets the per-word bonus.
func WithBeta(b float64) Option {
	return func(s *settings) { s.cfg.Beta = b }
}

// WithCutoff limits the symbols expanded per timestep.
func WithCutoff(topN int, prob float64) Option {
	return func(s *settings) {
		s.cfg.CutoffTopN = topN
		s.cfg.CutoffProb = prob
	}
}

// WithLogProbs declares that input rows are natural-log probabilities.
func WithLogProbs(on bool) Option {
	return func(s *settings) { s.cfg.LogProbs = on }
}

// WithEarlyCutoff skips extensions that cannot enter a full beam.
func WithEarlyCutoff(on bool) Option {
	return func(s *settings) { s.cfg.EarlyCutoff = on }
}

// WithWorkers bounds the number of utterances decoded at once. 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithLanguageModel loads an ARPA or compiled model from path and fuses it
// with weight alpha.
func WithLanguageModel(path string, opts ...language.ScorerOption) Option {
	return func(s *settings) {
		s.lmPath = path
		s.lmOpts = opts
	}
}

// WithScorer fuses a caller-provided scorer. It takes precedence over
// WithLanguageModel.
func WithScorer(o scorer.Oracle) Option {
	return func(s *settings) { s.oracle = o }
}

// WithLexicon restricts completed words to a dictionary.
func WithLexicon(d *lexicon.Dictionary) Option {
	return func(s *settings) { s.lexicon = d }
}

// WithLMVocabularyConstraint restricts completed words to the language model's
// vocabulary.
func WithLMVocabularyConstraint() Option {
	return func(s *settings) { s.restrict = true }
}

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMeterProvider sets where decoder metrics are reported.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *settings) { s.meter = mp }
}

// New creates a batch decoder over the symbol strings labels.
func New(labels []string, opts ...Option) (*BatchDecoder, error) {
	s := settings{
		blank: len(labels) - 1,
		cfg:   decoder.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}

	v, err := vocab.New(labels, s.blank, s.vocabOpts...)
	if err != nil {
		return nil, fmt.Errorf("vocabulary: %w", err)
	}

	oracle := s.oracle
	if oracle == nil && s.lmPath != "" {
		m, err := language.Load(s.lmPath)
		if err != nil {
			return nil, err
		}
		oracle = language.NewScorer(m, s.lmOpts...)
		s.logger.Debug("language model loaded", "path", s.lmPath, "order", m.Order, "size", m.Size())
	}

	lex := s.lexicon
	if s.restrict && lex == nil {
		lm, ok := oracle.(*language.Scorer)
		if !ok {
			return nil, ErrNoLanguageModel
		}
		lex = lexicon.FromWords(v, lm.Words())
		if skipped := lex.Skipped(); len(skipped) > 0 {
			s.logger.Warn("language model words not representable", "count", len(skipped))
		}
	}

	dopts := []decoder.Option{decoder.WithMeterProvider(s.meter)}
	if oracle != nil {
		dopts = append(dopts, decoder.WithScorer(oracle))
	}
	if lex != nil {
		dopts = append(dopts, decoder.WithLexicon(lex))
	}
	dec, err := decoder.New(v, s.cfg, dopts...)
	if err != nil {
		return nil, err
	}
	return &BatchDecoder{vocab: v, dec: dec, workers: s.workers, logger: s.logger}, nil
}

// Vocabulary returns the decoder's vocabulary.
func (b *BatchDecoder) Vocabulary() *vocab.Vocabulary { return b.vocab }

// Decoder returns the underlying single-utterance decoder.
func (b *BatchDecoder) Decoder() *decoder.Decoder { return b.dec }

// NewState creates an online state for one utterance.
func (b *BatchDecoder) NewState() *decoder.State { return b.dec.NewState() }

// PrepareHotwords compiles text phrases into a booster. The caller owns the
// booster and must Destroy it.
func (b *BatchDecoder) PrepareHotwords(phrases []string, weight float64) (*hotword.Booster, error) {
	seqs := make([][]string, len(phrases))
	for i, p := range phrases {
		labels, err := b.vocab.Tokenize(p)
		if err != nil {
			return nil, fmt.Errorf("hotword %q: %w", p, err)
		}
		seqs[i] = make([]string, len(labels))
		for k, l := range labels {
			seqs[i][k] = b.vocab.Symbol(l)
		}
	}
	return hotword.Prepare(b.vocab, seqs, weight)
}

// Request is one batch. Probs is [utterance][timestep][symbol].
type Request struct {
	Probs [][][]float64

	// Lengths, when set, gives the number of valid timesteps per utterance.
	Lengths []int

	// States switches to online mode. EndOfStream is then required.
	States      []*decoder.State
	EndOfStream []bool

	// Hotwords are text phrases compiled for this request only. A phrase that
	// cannot be spelled with the vocabulary fails the whole request with an
	// input error, since it would fail every utterance alike.
	Hotwords      []string
	HotwordWeight float64

	// Booster is a prepared phrase set owned by the caller.
	Booster *hotword.Booster
	TopN    int
}

// Utterance holds the N-best of one utterance, or the error that rejected it.
type Utterance struct {
	Hypotheses []decoder.Hypothesis
	Err        error
}

// Result holds one Utterance per request entry, in request order.
type Result struct {
	Utterances []Utterance
	MaxLength  int // longest hypothesis in the batch
}

func (r *Request) validate() error {
	n := len(r.Probs)
	if r.Lengths != nil && len(r.Lengths) != n {
		return fmt.Errorf("%w: %d lengths for %d utterances", ErrBatchShape, len(r.Lengths), n)
	}
	if r.States != nil {
		if len(r.States) != n {
			return fmt.Errorf("%w: %d states for %d utterances", ErrBatchShape, len(r.States), n)
		}
		if len(r.EndOfStream) != n {
			return fmt.Errorf("%w: %d end-of-stream flags for %d states", ErrBatchShape, len(r.EndOfStream), n)
		}
	}
	if len(r.Hotwords) > 0 && r.Booster != nil {
		return ErrHotwordConflict
	}
	return nil
}

// Decode decodes every utterance of req. Malformed requests fail as a whole;
// an utterance that cannot be decoded reports its error in Utterance.Err and
// does not affect the others.
func (b *BatchDecoder) Decode(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	booster := req.Booster
	if len(req.Hotwords) > 0 {
		var err error
		booster, err = b.PrepareHotwords(req.Hotwords, req.HotwordWeight)
		if err != nil {
			return nil, err
		}
		defer booster.Destroy()
	}
	var opts []decoder.DecodeOption
	if booster != nil {
		opts = append(opts, decoder.WithBooster(booster))
	}
	if req.TopN > 0 {
		opts = append(opts, decoder.WithTopN(req.TopN))
	}

	start := time.Now()
	utts, err := workpool.Map(ctx, b.workers, len(req.Probs), func(ctx context.Context, i int) (Utterance, error) {
		hyps, err := b.decodeOne(ctx, &req, i, opts)
		if err != nil {
			b.logFailure(&req, i, err)
		}
		return Utterance{Hypotheses: hyps, Err: err}, nil
	})

	res := &Result{Utterances: utts}
	failed := 0
	for i := range res.Utterances {
		u := &res.Utterances[i]
		if u.Err == nil && u.Hypotheses == nil && err != nil {
			u.Err = err
		}
		if u.Err != nil {
			failed++
		}
		for _, h := range u.Hypotheses {
			res.MaxLength = max(res.MaxLength, h.Len())
		}
	}
	b.logger.Debug("batch decoded", "utterances", len(utts), "failed", failed, "elapsed", time.Since(start))
	return res, err
}

func (b *BatchDecoder) decodeOne(ctx context.Context, req *Request, i int, opts []decoder.DecodeOption) ([]decoder.Hypothesis, error) {
	probs := req.Probs[i]
	if req.Lengths != nil {
		n := req.Lengths[i]
		if n < 0 || n > len(probs) {
			return nil, fmt.Errorf("%w: length %d, %d timesteps", ErrLength, n, len(probs))
		}
		probs = probs[:n]
	}
	if req.States == nil {
		return b.dec.Decode(ctx, probs, opts...)
	}
	return b.dec.DecodeStream(ctx, req.States[i], probs, req.EndOfStream[i], opts...)
}

func (b *BatchDecoder) logFailure(req *Request, i int, err error) {
	kv := []any{"utterance", i, "err", err}
	if req.States != nil && req.States[i] != nil {
		kv = append(kv, "state", req.States[i].ID())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		b.logger.Debug("decode cancelled", kv...)
		return
	}
	b.logger.Warn("decode failed", kv...)
}

// Padded is a Result laid out as fixed-shape arrays.
type Padded struct {
	Labels    [][][]int   // [utterance][n][MaxLength]
	Timesteps [][][]int   // [utterance][n][MaxLength]
	Scores    [][]float64 // [utterance][n], -Inf where no hypothesis exists
	Lengths   [][]int     // [utterance][n], true label count
}

// Padded fills labels and timesteps past each hypothesis with pad. Every
// utterance gets as many rows as the largest N-best in the batch.
func (r *Result) Padded(pad int) Padded {
	rows := 0
	for _, u := range r.Utterances {
		rows = max(rows, len(u.Hypotheses))
	}
	p := Padded{
		Labels:    make([][][]int, len(r.Utterances)),
		Timesteps: make([][][]int, len(r.Utterances)),
		Scores:    make([][]float64, len(r.Utterances)),
		Lengths:   make([][]int, len(r.Utterances)),
	}
	for i, u := range r.Utterances {
		p.Labels[i] = make([][]int, rows)
		p.Timesteps[i] = make([][]int, rows)
		p.Scores[i] = make([]float64, rows)
		p.Lengths[i] = make([]int, rows)
		for k := 0; k < rows; k++ {
			labels := make([]int, r.MaxLength)
			timesteps := make([]int, r.MaxLength)
			for j := range labels {
				labels[j], timesteps[j] = pad, pad
			}
			p.Scores[i][k] = math.Inf(-1)
			if k < len(u.Hypotheses) {
				h := u.Hypotheses[k]
				copy(labels, h.Labels)
				copy(timesteps, h.Timesteps)
				p.Scores[i][k] = h.Score
				p.Lengths[i][k] = h.Len()
			}
			p.Labels[i][k] = labels
			p.Timesteps[i][k] = timesteps
		}
	}
	return p
}
