package decoder

import (
	"sort"

	"github.com/ieee0824/ctcdecode-go/vocab"
)

// Hypothesis is one ranked decoding result.
type Hypothesis struct {
	Labels        []int   // symbol indices, blanks removed and repeats collapsed
	Timesteps     []int   // timestep at which each label was emitted
	Text          string  // concatenated display strings of Labels
	Score         float64 // combined log score used for ranking
	AcousticScore float64 // classifier log probability of the label sequence
	LMScore       float64 // weighted language model score with word bonuses
	HotwordScore  float64
}

// Len returns the number of labels.
func (h Hypothesis) Len() int { return len(h.Labels) }

// Word holds per-word timing information.
type Word struct {
	Text       string
	Labels     []int
	StartFrame int
	EndFrame   int
}

// Words splits the hypothesis at the separator of v. In character-based mode
// each label is a word.
func (h Hypothesis) Words(v *vocab.Vocabulary) []Word {
	var words []Word
	add := func(from, to int) {
		if from >= to {
			return
		}
		words = append(words, Word{
			Text:       v.Text(h.Labels[from:to]),
			Labels:     h.Labels[from:to],
			StartFrame: h.Timesteps[from],
			EndFrame:   h.Timesteps[to-1],
		})
	}
	start := 0
	for i, l := range h.Labels {
		switch {
		case v.CharacterBased():
			add(i, i+1)
		case v.IsSeparator(l):
			add(start, i)
			start = i + 1
		}
	}
	if !v.CharacterBased() {
		add(start, len(h.Labels))
	}
	return words
}

type ranked struct {
	node       int32
	score      float64
	lm, hot    float64
	incomplete bool // trailing word is not in the lexicon
}

// finalize ranks the live beam without modifying it. The trailing word of each
// prefix is scored as if the utterance ended here.
func (s *search) finalize(topN int, eos bool) []Hypothesis {
	t := s.t
	cands := make([]ranked, 0, len(s.st.beam))
	complete := 0
	for _, i := range s.st.beam {
		n := &t.nodes[i]
		r := ranked{node: i, lm: n.lm, hot: n.hot}
		ctx := n.ctx
		if s.sep >= 0 && i != root && n.symbol != s.sep {
			lm, next, hot, _ := s.scoreWord(n, t.word(i, s.sep))
			r.lm += lm
			r.hot += hot
			ctx = next
			r.incomplete = s.d.lexicon != nil && !s.d.lexicon.IsWord(n.lexState)
		}
		r.lm += s.d.cfg.Alpha * s.d.oracle.FinalScore(ctx)
		r.score = n.acoustic + r.lm + r.hot
		if !r.incomplete {
			complete++
		}
		cands = append(cands, r)
	}

	// At the end of the utterance a partial lexicon word only ranks when no
	// hypothesis ends on a complete word.
	if eos && complete > 0 && complete < len(cands) {
		kept := cands[:0]
		for _, r := range cands {
			if !r.incomplete {
				kept = append(kept, r)
			}
		}
		cands = kept
	}

	sort.Slice(cands, func(a, b int) bool {
		if cands[a].score != cands[b].score {
			return cands[a].score > cands[b].score
		}
		na, nb := &t.nodes[cands[a].node], &t.nodes[cands[b].node]
		if na.acoustic != nb.acoustic {
			return na.acoustic > nb.acoustic
		}
		return na.seq < nb.seq
	})
	if len(cands) > topN {
		cands = cands[:topN]
	}

	hyps := make([]Hypothesis, len(cands))
	for k, r := range cands {
		labels, timesteps := t.path(r.node)
		hyps[k] = Hypothesis{
			Labels:        labels,
			Timesteps:     timesteps,
			Text:          s.d.vocab.Text(labels),
			Score:         r.score,
			AcousticScore: t.nodes[r.node].acoustic,
			LMScore:       r.lm,
			HotwordScore:  r.hot,
		}
	}
	return hyps
}
