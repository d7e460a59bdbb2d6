// Package scorer defines the contract between the beam search and an external
// word-level scorer such as an n-gram language model.
package scorer

// Context is an opaque, comparable scorer state. The decoder stores it on trie
// nodes and hands it back unchanged.
type Context string

// Oracle scores words given a context. Implementations must be deterministic and
// safe for concurrent use.
type Oracle interface {
	// NewContext returns the sentence-start context.
	NewContext() Context
	// ScoreWord returns the natural-log score of word after ctx and the context
	// that follows it.
	ScoreWord(ctx Context, word string) (float64, Context)
	// FinalScore returns the end-of-sentence score after ctx.
	FinalScore(ctx Context) float64
}

// Fingerprinter is implemented by oracles whose scores are fully determined by
// their content. Decoders with equal fingerprints may share online states.
// Oracles without a fingerprint tie states to the decoder that created them.
type Fingerprinter interface {
	Fingerprint() uint64
}

// Noop is an Oracle that scores everything as 0.
type Noop struct{}

func (Noop) Fingerprint() uint64 { return 0 }

func (Noop) NewContext() Context { return "" }

func (Noop) ScoreWord(ctx Context, _ string) (float64, Context) { return 0, ctx }

func (Noop) FinalScore(Context) float64 { return 0 }

// Func adapts a plain word scoring function without context to an Oracle.
type Func func(word string) float64

func (f Func) NewContext() Context { return "" }

func (f Func) ScoreWord(ctx Context, word string) (float64, Context) { return f(word), ctx }

func (f Func) FinalScore(Context) float64 { return 0 }
