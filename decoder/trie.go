package decoder

import (
	"github.com/ieee0824/ctcdecode-go/hotword"
	"github.com/ieee0824/ctcdecode-go/internal/mathutil"
	"github.com/ieee0824/ctcdecode-go/lexicon"
	"github.com/ieee0824/ctcdecode-go/scorer"
)

const (
	root   int32 = 0
	noNode int32 = -1
)

// node is one prefix in the trie. Score components that depend only on the
// label sequence (lm, hot) are kept apart from the acoustic probabilities.
type node struct {
	parent   int32
	symbol   int32 // -1 for the root
	first    int32 // first child in insertion order
	last     int32
	next     int32 // next sibling
	children int32 // attached children, live or dead
	live     bool
	seq      uint64
	timestep int
	symLogP  float64 // best log p(symbol) seen when extending the parent with symbol
	bPrev    float64
	nbPrev   float64
	bCur     float64
	nbCur    float64
	acoustic float64 // merged bPrev and nbPrev after commit
	lm       float64 // alpha * word log-probs + beta per word
	hot      float64
	ctx      scorer.Context
	hotState hotword.State
	lexState lexicon.State
}

func (n *node) total() float64 { return n.acoustic + n.lm + n.hot }

// trie is an arena of nodes addressed by index. Released slots are recycled.
type trie struct {
	nodes []node
	free  []int32
	stack []int32
	seq   uint64
}

func newTrie() *trie {
	t := &trie{}
	t.reset(scorer.Noop{}.NewContext(), 0)
	return t
}

// reset clears the arena, keeping its capacity, and installs a fresh root.
func (t *trie) reset(ctx scorer.Context, hs hotword.State) {
	t.nodes = t.nodes[:0]
	t.free = t.free[:0]
	t.seq = 0
	t.alloc(noNode, -1)
	r := &t.nodes[root]
	r.bPrev = 0
	r.acoustic = 0
	r.ctx = ctx
	r.hotState = hs
	r.lexState = lexicon.Start
}

func (t *trie) alloc(parent, symbol int32) int32 {
	n := node{
		parent:   parent,
		symbol:   symbol,
		first:    noNode,
		last:     noNode,
		next:     noNode,
		live:     true,
		seq:      t.seq,
		symLogP:  mathutil.LogZero,
		bPrev:    mathutil.LogZero,
		nbPrev:   mathutil.LogZero,
		bCur:     mathutil.LogZero,
		nbCur:    mathutil.LogZero,
		acoustic: mathutil.LogZero,
	}
	t.seq++
	var i int32
	if k := len(t.free); k > 0 {
		i = t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[i] = n
	} else {
		i = int32(len(t.nodes))
		t.nodes = append(t.nodes, n)
	}
	if parent != noNode {
		p := &t.nodes[parent]
		if p.last == noNode {
			p.first = i
		} else {
			t.nodes[p.last].next = i
		}
		p.last = i
		p.children++
	}
	return i
}

// child returns the child of parent reached by symbol, or noNode.
func (t *trie) child(parent, symbol int32) int32 {
	for c := t.nodes[parent].first; c != noNode; c = t.nodes[c].next {
		if t.nodes[c].symbol == symbol {
			return c
		}
	}
	return noNode
}

// extend returns the child of parent for symbol and whether it was created.
// A dead child is revived with cleared probabilities. The child's timestep
// moves to ts when logP beats the best symbol probability seen so far.
func (t *trie) extend(parent, symbol int32, ts int, logP float64) (int32, bool) {
	c := t.child(parent, symbol)
	created := false
	if c == noNode {
		c = t.alloc(parent, symbol)
		created = true
	}
	n := &t.nodes[c]
	if !n.live {
		n.live = true
		n.bPrev, n.nbPrev = mathutil.LogZero, mathutil.LogZero
		n.bCur, n.nbCur = mathutil.LogZero, mathutil.LogZero
		n.acoustic = mathutil.LogZero
	}
	if logP > n.symLogP {
		n.symLogP = logP
		n.timestep = ts
	}
	return c, created
}

// remove marks i dead and releases it when it has no children, cascading to
// dead ancestors. It returns the number of released slots.
func (t *trie) remove(i int32) int {
	t.nodes[i].live = false
	released := 0
	for i != root && !t.nodes[i].live && t.nodes[i].children == 0 {
		parent := t.nodes[i].parent
		t.detach(parent, i)
		t.free = append(t.free, i)
		released++
		i = parent
	}
	return released
}

func (t *trie) detach(parent, i int32) {
	p := &t.nodes[parent]
	prev := noNode
	for c := p.first; c != noNode; c = t.nodes[c].next {
		if c == i {
			break
		}
		prev = c
	}
	next := t.nodes[i].next
	if prev == noNode {
		p.first = next
	} else {
		t.nodes[prev].next = next
	}
	if p.last == i {
		p.last = prev
	}
	p.children--
	t.nodes[i].parent = noNode
	t.nodes[i].next = noNode
}

// commit moves current-timestep probabilities into the previous slot for every
// live node and appends the live nodes to dst in depth-first pre-order.
func (t *trie) commit(dst []int32, merge func(a, b float64) float64) []int32 {
	stack := append(t.stack[:0], root)
	defer func() { t.stack = stack[:0] }()
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[i]
		if n.live {
			n.bPrev, n.nbPrev = n.bCur, n.nbCur
			n.bCur, n.nbCur = mathutil.LogZero, mathutil.LogZero
			n.acoustic = merge(n.bPrev, n.nbPrev)
			dst = append(dst, i)
		}
		// push children in reverse so the first child is visited first
		k := len(stack)
		for c := n.first; c != noNode; c = t.nodes[c].next {
			stack = append(stack, c)
		}
		for a, b := k, len(stack)-1; a < b; a, b = a+1, b-1 {
			stack[a], stack[b] = stack[b], stack[a]
		}
	}
	return dst
}

// path backtracks i to the root, filling labels and timesteps.
func (t *trie) path(i int32) (labels, timesteps []int) {
	for j := i; j != root && j != noNode; j = t.nodes[j].parent {
		labels = append(labels, int(t.nodes[j].symbol))
		timesteps = append(timesteps, t.nodes[j].timestep)
	}
	for a, b := 0, len(labels)-1; a < b; a, b = a+1, b-1 {
		labels[a], labels[b] = labels[b], labels[a]
		timesteps[a], timesteps[b] = timesteps[b], timesteps[a]
	}
	return labels, timesteps
}

// word returns the symbols appended since the last separator up to and
// including i, excluding the separator itself.
func (t *trie) word(i int32, sep int32) []int {
	var w []int
	for j := i; j != root && t.nodes[j].symbol != sep; j = t.nodes[j].parent {
		w = append(w, int(t.nodes[j].symbol))
	}
	for a, b := 0, len(w)-1; a < b; a, b = a+1, b-1 {
		w[a], w[b] = w[b], w[a]
	}
	return w
}

// live returns the number of live nodes. Used by tests.
func (t *trie) live() int {
	n := 0
	for i := range t.nodes {
		if t.nodes[i].live {
			n++
		}
	}
	return n
}

// allocated returns the number of slots in use.
func (t *trie) allocated() int { return len(t.nodes) - len(t.free) }
