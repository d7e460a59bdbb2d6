package decoder

import (
	"math"
	"testing"

	"github.com/ieee0824/ctcdecode-go/internal/mathutil"
)

func TestTrieExtend(t *testing.T) {
	tr := newTrie()
	a, created := tr.extend(root, 2, 0, -1)
	if !created {
		t.Fatal("first extend should create the child")
	}
	again, created := tr.extend(root, 2, 3, -0.5)
	if created || again != a {
		t.Fatalf("extend = %d, %v; want existing %d", again, created, a)
	}
	if tr.nodes[a].timestep != 3 {
		t.Errorf("timestep = %d, want 3 after a more likely frame", tr.nodes[a].timestep)
	}
	tr.extend(root, 2, 5, -2)
	if tr.nodes[a].timestep != 3 {
		t.Errorf("timestep = %d, want 3 after a less likely frame", tr.nodes[a].timestep)
	}
	if got := tr.child(root, 2); got != a {
		t.Errorf("child = %d, want %d", got, a)
	}
	if got := tr.child(root, 4); got != noNode {
		t.Errorf("child of missing symbol = %d, want noNode", got)
	}
}

func TestTrieRemoveCascades(t *testing.T) {
	tr := newTrie()
	a, _ := tr.extend(root, 1, 0, 0)
	b, _ := tr.extend(a, 2, 1, 0)
	c, _ := tr.extend(root, 3, 0, 0)

	if n := tr.remove(a); n != 0 {
		t.Fatalf("remove with a child released %d, want 0", n)
	}
	if tr.nodes[a].live {
		t.Error("removed node still live")
	}
	if n := tr.remove(b); n != 2 {
		t.Fatalf("remove(b) released %d, want 2", n)
	}
	if tr.allocated() != 2 {
		t.Errorf("allocated = %d, want 2", tr.allocated())
	}
	if got := tr.child(root, 1); got != noNode {
		t.Errorf("released child still reachable: %d", got)
	}
	if got := tr.child(root, 3); got != c {
		t.Errorf("sibling lost: child = %d, want %d", got, c)
	}

	// freed slots are reused
	d, _ := tr.extend(c, 1, 2, 0)
	if d != b && d != a {
		t.Errorf("new node %d did not reuse a released slot", d)
	}
	if len(tr.nodes) != 4 {
		t.Errorf("arena grew to %d, want 4", len(tr.nodes))
	}
}

func TestTrieReviveDead(t *testing.T) {
	tr := newTrie()
	a, _ := tr.extend(root, 1, 0, 0)
	b, _ := tr.extend(a, 2, 1, 0)
	tr.nodes[a].nbCur = -3
	tr.remove(a)

	again, created := tr.extend(root, 1, 2, -1)
	if created || again != a {
		t.Fatalf("extend dead = %d, %v; want revived %d", again, created, a)
	}
	n := tr.nodes[a]
	if !n.live || !math.IsInf(n.nbCur, -1) {
		t.Errorf("revived node: live=%v nbCur=%f", n.live, n.nbCur)
	}
	if tr.child(a, 2) != b {
		t.Error("revived node lost its child")
	}
}

func TestTrieCommitOrder(t *testing.T) {
	tr := newTrie()
	a, _ := tr.extend(root, 1, 0, 0)
	c, _ := tr.extend(root, 3, 0, 0)
	b, _ := tr.extend(a, 2, 0, 0)
	d, _ := tr.extend(c, 1, 0, 0)
	tr.nodes[root].bCur = -1
	tr.nodes[a].nbCur = -2
	tr.nodes[b].bCur, tr.nodes[b].nbCur = -1, -1
	tr.nodes[c].nbCur = -3
	tr.remove(d)

	got := tr.commit(nil, mathutil.LogAdd)
	want := []int32{root, a, b, c}
	if len(got) != len(want) {
		t.Fatalf("commit = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("commit = %v, want %v", got, want)
		}
	}
	if n := tr.nodes[b]; math.Abs(n.acoustic-(-1+math.Log(2))) > 1e-12 || !math.IsInf(n.bCur, -1) {
		t.Errorf("b after commit: acoustic=%f bCur=%f", n.acoustic, n.bCur)
	}
	if n := tr.nodes[a]; n.nbPrev != -2 || n.acoustic != -2 {
		t.Errorf("a after commit: nbPrev=%f acoustic=%f", n.nbPrev, n.acoustic)
	}
}

func TestTriePathAndWord(t *testing.T) {
	const sep = 0
	tr := newTrie()
	i := root
	for ts, sym := range []int32{1, 2, sep, 3, 4} {
		i, _ = tr.extend(i, sym, ts, 0)
	}
	labels, timesteps := tr.path(i)
	if !labelsEqual(labels, []int{1, 2, 0, 3, 4}) || !labelsEqual(timesteps, []int{0, 1, 2, 3, 4}) {
		t.Errorf("path = %v %v", labels, timesteps)
	}
	if w := tr.word(i, sep); !labelsEqual(w, []int{3, 4}) {
		t.Errorf("word = %v, want [3 4]", w)
	}
	if w := tr.word(tr.nodes[tr.nodes[i].parent].parent, sep); len(w) != 0 {
		t.Errorf("word at separator = %v, want empty", w)
	}
	if l, _ := tr.path(root); len(l) != 0 {
		t.Errorf("root path = %v", l)
	}
}

func TestTrieReset(t *testing.T) {
	tr := newTrie()
	for s := int32(1); s < 10; s++ {
		tr.extend(root, s, 0, 0)
	}
	capacity := cap(tr.nodes)
	tr.reset("ctx", 7)
	if tr.allocated() != 1 || tr.live() != 1 {
		t.Errorf("after reset: allocated=%d live=%d", tr.allocated(), tr.live())
	}
	if cap(tr.nodes) != capacity {
		t.Errorf("reset dropped capacity: %d, want %d", cap(tr.nodes), capacity)
	}
	r := tr.nodes[root]
	if r.ctx != "ctx" || r.hotState != 7 || r.bPrev != 0 || r.acoustic != 0 {
		t.Errorf("root = %+v", r)
	}
}

func TestPruneKeepsBest(t *testing.T) {
	d := newDecoder(t, letterVocab(t), widthConfig(2))
	st := d.NewState()
	s := d.newSearch(st, nil)
	tr := st.trie
	var beam []int32
	for sym, score := range []float64{-3, -1, math.Inf(-1), -2, math.NaN()} {
		i, _ := tr.extend(root, int32(sym), 0, 0)
		tr.nodes[i].acoustic = score
		beam = append(beam, i)
	}
	got := s.prune(beam)
	if len(got) != 2 {
		t.Fatalf("len(prune) = %d, want 2", len(got))
	}
	if tr.nodes[got[0]].acoustic != -1 || tr.nodes[got[1]].acoustic != -2 {
		t.Errorf("kept %f, %f; want -1, -2", tr.nodes[got[0]].acoustic, tr.nodes[got[1]].acoustic)
	}
	if s.pruned != 3 {
		t.Errorf("pruned = %d, want 3", s.pruned)
	}
	if tr.live() != 3 {
		t.Errorf("live = %d, want root plus two", tr.live())
	}
}

func TestBetterTieBreak(t *testing.T) {
	tr := newTrie()
	a, _ := tr.extend(root, 1, 0, 0)
	b, _ := tr.extend(root, 2, 0, 0)
	tr.nodes[a].acoustic, tr.nodes[a].lm = -2, -1
	tr.nodes[b].acoustic, tr.nodes[b].lm = -1, -2
	if !tr.better(b, a) || tr.better(a, b) {
		t.Error("equal totals should prefer the better acoustic score")
	}
	tr.nodes[b].acoustic, tr.nodes[b].lm = -2, -1
	if !tr.better(a, b) {
		t.Error("full ties should prefer the older node")
	}
}
