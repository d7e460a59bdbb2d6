package language

import (
	"io"
	"math"
	"strings"
)

// Builder accumulates sentences and builds an N-gram language model.
type Builder struct {
	order  int
	counts []map[string]int // counts[k] holds (k+1)-gram counts
}

// NewBuilder creates a new N-gram builder. Orders below 2 are raised to 2.
func NewBuilder(order int) *Builder {
	if order < 2 {
		order = 2
	}
	b := &Builder{order: order}
	for k := 0; k < order; k++ {
		b.counts = append(b.counts, make(map[string]int))
	}
	return b
}

// Order returns the model order.
func (b *Builder) Order() int { return b.order }

// AddSentence adds a tokenized sentence. <s> and </s> are added automatically.
func (b *Builder) AddSentence(words []string) {
	if len(words) == 0 {
		return
	}
	seq := make([]string, 0, len(words)+2)
	seq = append(seq, SentenceStart)
	seq = append(seq, words...)
	seq = append(seq, SentenceEnd)

	for i := range seq {
		for k := 0; k < b.order && k <= i; k++ {
			b.counts[k][strings.Join(seq[i-k:i+1], " ")]++
		}
	}
}

// Model computes a Witten-Bell smoothed backoff model from the counts.
func (b *Builder) Model() *NGramModel {
	m := NewNGramModel(b.order)

	uniTotal := 0
	for _, c := range b.counts[0] {
		uniTotal += c
	}
	for w, c := range b.counts[0] {
		m.Grams[0][w] = Entry{LogProb: math.Log(float64(c) / float64(uniTotal))}
	}

	// followers[k][h] lists the words seen after the k+1 word history h.
	followers := make([]map[string][]string, b.order)
	for k := 1; k < b.order; k++ {
		total := make(map[string]int) // N(h)
		types := make(map[string]int) // T(h)
		followers[k-1] = make(map[string][]string)
		for key, c := range b.counts[k] {
			h, w := splitLast(key)
			total[h] += c
			types[h]++
			followers[k-1][h] = append(followers[k-1][h], w)
		}
		// P_wb(w|h) = C(h,w) / (N(h) + T(h))
		for key, c := range b.counts[k] {
			h, _ := splitLast(key)
			m.Grams[k][key] = Entry{LogProb: math.Log(float64(c) / float64(total[h]+types[h]))}
		}
	}

	// Backoff weights, lowest order first so lower-order probabilities are final.
	for k := 0; k < b.order-1; k++ {
		for h, ws := range followers[k] {
			e, ok := m.Grams[k][h]
			if !ok {
				continue
			}
			hist := strings.Fields(h)
			sumHigh, sumLow := 0.0, 0.0
			for _, w := range ws {
				sumHigh += math.Exp(m.Grams[k+1][h+" "+w].LogProb)
				sumLow += math.Exp(m.LogProb(hist[1:], w))
			}
			if sumLow < 1.0 && sumHigh < 1.0 {
				e.LogBackoff = math.Log((1.0 - sumHigh) / (1.0 - sumLow))
				m.Grams[k][h] = e
			}
		}
	}
	return m
}

// WriteARPA writes the model in ARPA format (log10 probabilities) to w.
// Uses Witten-Bell smoothing.
func (b *Builder) WriteARPA(w io.Writer) error {
	return b.Model().WriteARPA(w)
}

func splitLast(key string) (history, word string) {
	i := strings.LastIndexByte(key, ' ')
	return key[:i], key[i+1:]
}
