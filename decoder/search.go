package decoder

import (
	"math"
	"sort"

	"github.com/ieee0824/ctcdecode-go/hotword"
	"github.com/ieee0824/ctcdecode-go/internal/mathutil"
	"github.com/ieee0824/ctcdecode-go/lexicon"
	"github.com/ieee0824/ctcdecode-go/scorer"
)

type candidate struct {
	symbol int32
	logP   float64
}

// search expands one State for the duration of a decode call.
type search struct {
	d       *Decoder
	st      *State
	t       *trie
	booster *hotword.Booster
	merge   func(a, b float64) float64
	blank   int32
	sep     int32 // -1 in character-based mode
	cands   []candidate

	steps  int
	pruned int
}

func (d *Decoder) newSearch(st *State, b *hotword.Booster) *search {
	s := &search{
		d:       d,
		st:      st,
		t:       st.trie,
		booster: b,
		merge:   mathutil.LogAdd,
		blank:   int32(d.vocab.Blank()),
		sep:     -1,
	}
	// A single hypothesis keeps only its best alignment so that width 1 is
	// exactly best-path decoding.
	if d.cfg.BeamWidth == 1 {
		s.merge = mathutil.LogMax
	}
	if sep, ok := d.vocab.Separator(); ok {
		s.sep = int32(sep)
	}
	return s
}

// candidates returns the symbols of row worth expanding, most likely first.
func (s *search) candidates(row []float64) []candidate {
	c := s.cands[:0]
	for i, lp := range row {
		c = append(c, candidate{int32(i), lp})
	}
	sort.SliceStable(c, func(a, b int) bool { return c[a].logP > c[b].logP })

	n := len(c)
	if p := s.d.cfg.CutoffProb; p < 1 {
		cum := 0.0
		for i := range c {
			cum += math.Exp(c[i].logP)
			if cum >= p {
				n = i + 1
				break
			}
		}
	}
	if n > s.d.cfg.CutoffTopN {
		n = s.d.cfg.CutoffTopN
	}
	s.cands = c
	return c[:n]
}

// step consumes one timestep.
func (s *search) step(row []float64) {
	t := s.t
	ts := s.st.timestep
	beam := s.st.beam
	width := s.d.cfg.BeamWidth

	minCutoff := math.Inf(-1)
	if s.d.cfg.EarlyCutoff && len(beam) == width {
		// the beam is sorted after a full prune; an extension can still gain
		// the word bonus and a hotword bonus
		margin := math.Max(0, s.d.cfg.Beta)
		if s.booster != nil {
			margin += math.Max(0, s.booster.Weight())
		}
		minCutoff = t.nodes[beam[width-1]].total() + row[s.blank] - margin
	}

	for _, c := range s.candidates(row) {
		for _, i := range beam {
			n := &t.nodes[i]
			if c.logP+n.total() < minCutoff {
				break
			}
			if c.symbol == s.blank {
				n.bCur = s.merge(n.bCur, c.logP+n.acoustic)
				continue
			}
			var logP float64
			if c.symbol == n.symbol {
				// collapse into the same label sequence
				n.nbCur = s.merge(n.nbCur, c.logP+n.nbPrev)
				if math.IsInf(n.bPrev, -1) {
					continue
				}
				// blank-separated repeat appends a new label
				logP = c.logP + n.bPrev
			} else {
				logP = c.logP + n.acoustic
			}
			lex, ok := s.allowed(i, c.symbol)
			if !ok {
				continue
			}
			child, created := t.extend(i, c.symbol, ts, c.logP)
			if created {
				s.scoreChild(i, child, lex)
			}
			ch := &t.nodes[child]
			ch.nbCur = s.merge(ch.nbCur, logP)
		}
	}

	beam = t.commit(beam[:0], s.merge)
	s.st.beam = s.prune(beam)
	s.st.timestep++
	s.st.publish()
	s.steps++
}

// allowed applies the lexicon constraint to extending parent with symbol and
// returns the child's lexicon state.
func (s *search) allowed(parent, symbol int32) (lexicon.State, bool) {
	lex := s.d.lexicon
	if lex == nil {
		return lexicon.Start, true
	}
	if s.sep < 0 {
		next, ok := lex.Next(lexicon.Start, int(symbol))
		return lexicon.Start, ok && lex.IsWord(next)
	}
	p := s.t.nodes[parent].lexState
	if symbol == s.sep {
		return lexicon.Start, lex.IsWord(p)
	}
	return lex.Next(p, int(symbol))
}

// scoreChild initializes the label-dependent score components of a new node,
// scoring the word it completes, if any.
func (s *search) scoreChild(parent, child int32, lex lexicon.State) {
	p := s.t.nodes[parent]
	ch := &s.t.nodes[child]
	ch.lm, ch.hot = p.lm, p.hot
	ch.ctx, ch.hotState = p.ctx, p.hotState
	ch.lexState = lex

	var word []int
	switch {
	case s.sep < 0:
		word = []int{int(ch.symbol)}
	case ch.symbol == s.sep:
		word = s.t.word(parent, s.sep)
	}
	if len(word) == 0 {
		return
	}
	lm, ctx, hot, hs := s.scoreWord(&p, word)
	ch.lm += lm
	ch.ctx = ctx
	ch.hot += hot
	ch.hotState = hs
}

// scoreWord scores a completed word following the context stored on n.
func (s *search) scoreWord(n *node, word []int) (lm float64, ctx scorer.Context, hot float64, hs hotword.State) {
	lp, ctx := s.d.oracle.ScoreWord(n.ctx, s.d.vocab.Text(word))
	lm = s.d.cfg.Alpha*lp + s.d.cfg.Beta
	hs = n.hotState
	if s.booster != nil {
		hot, hs = s.booster.Bonus(n.hotState, word)
	}
	return lm, ctx, hot, hs
}

// prune drops nodes with a non-finite score and keeps the best width nodes.
// A full beam is left sorted best first.
func (s *search) prune(beam []int32) []int32 {
	t := s.t
	kept := beam[:0]
	for _, i := range beam {
		if total := t.nodes[i].total(); math.IsNaN(total) || math.IsInf(total, 0) {
			t.remove(i)
			s.pruned++
			continue
		}
		kept = append(kept, i)
	}
	width := s.d.cfg.BeamWidth
	if len(kept) >= width {
		sort.Slice(kept, func(a, b int) bool { return t.better(kept[a], kept[b]) })
		for _, i := range kept[width:] {
			t.remove(i)
			s.pruned++
		}
		kept = kept[:width]
	}
	return kept
}

// better orders nodes by combined score, then acoustic score, then creation.
func (t *trie) better(a, b int32) bool {
	na, nb := &t.nodes[a], &t.nodes[b]
	if sa, sb := na.total(), nb.total(); sa != sb {
		return sa > sb
	}
	if na.acoustic != nb.acoustic {
		return na.acoustic > nb.acoustic
	}
	return na.seq < nb.seq
}
