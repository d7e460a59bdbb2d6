package decoder

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
)

// Config holds beam search parameters.
type Config struct {
	BeamWidth   int     // maximum number of live prefixes kept per timestep
	TopN        int     // hypotheses returned per utterance; 0 means BeamWidth
	CutoffTopN  int     // symbols considered per timestep, most likely first
	CutoffProb  float64 // cumulative probability at which the symbol list is cut
	Alpha       float64 // language model weight
	Beta        float64 // word insertion bonus
	LogProbs    bool    // input rows are natural-log probabilities
	EarlyCutoff bool    // skip extensions that cannot enter a full beam
}

// DefaultConfig returns reasonable default parameters.
func DefaultConfig() Config {
	return Config{
		BeamWidth:  100,
		CutoffTopN: 40,
		CutoffProb: 1.0,
	}
}

var (
	ErrBeamWidth = fmt.Errorf("%w: beam width must be positive", ctcerr.ErrConfiguration)
	ErrTopN      = fmt.Errorf("%w: top-n must not be negative", ctcerr.ErrConfiguration)
	ErrCutoff    = fmt.Errorf("%w: invalid symbol cutoff", ctcerr.ErrConfiguration)
	ErrWeight    = fmt.Errorf("%w: alpha and beta must be finite", ctcerr.ErrConfiguration)
)

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.BeamWidth <= 0 {
		return fmt.Errorf("%w: %d", ErrBeamWidth, c.BeamWidth)
	}
	if c.TopN < 0 {
		return fmt.Errorf("%w: %d", ErrTopN, c.TopN)
	}
	if c.CutoffTopN <= 0 {
		return fmt.Errorf("%w: cutoff top-n %d", ErrCutoff, c.CutoffTopN)
	}
	if !(c.CutoffProb > 0 && c.CutoffProb <= 1) {
		return fmt.Errorf("%w: cutoff prob %v not in (0,1]", ErrCutoff, c.CutoffProb)
	}
	if !finite(c.Alpha) || !finite(c.Beta) {
		return fmt.Errorf("%w: alpha=%v beta=%v", ErrWeight, c.Alpha, c.Beta)
	}
	return nil
}

// topN resolves the number of hypotheses to return for a requested n.
func (c Config) topN(n int) int {
	if n <= 0 {
		n = c.TopN
	}
	if n <= 0 || n > c.BeamWidth {
		n = c.BeamWidth
	}
	return n
}

func (c Config) hash(d *xxhash.Digest) {
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		d.Write(buf[:])
	}
	put(uint64(c.BeamWidth))
	put(uint64(c.CutoffTopN))
	put(math.Float64bits(c.CutoffProb))
	put(math.Float64bits(c.Alpha))
	put(math.Float64bits(c.Beta))
	var flags uint64
	if c.LogProbs {
		flags |= 1
	}
	if c.EarlyCutoff {
		flags |= 2
	}
	put(flags)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
