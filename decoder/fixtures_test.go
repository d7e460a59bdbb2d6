package decoder

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/ieee0824/ctcdecode-go/internal/mathutil"
	"github.com/ieee0824/ctcdecode-go/vocab"
)

var letterSymbols = []string{"'", " ", "a", "b", "c", "d", "_"}

var probsSeq1 = [][]float64{
	{0.06390443, 0.21124858, 0.27323887, 0.06870235, 0.0361254, 0.18184413, 0.16493624},
	{0.03309247, 0.22866108, 0.24390638, 0.09699597, 0.31895462, 0.0094893, 0.06890021},
	{0.218104, 0.19992557, 0.18245131, 0.08503348, 0.14903535, 0.08424043, 0.08120984},
	{0.12094152, 0.19162472, 0.01473646, 0.28045061, 0.24246305, 0.05206269, 0.09772094},
	{0.1333387, 0.00550838, 0.00301669, 0.21745861, 0.20803985, 0.41317442, 0.01946335},
	{0.16468227, 0.1980699, 0.1906545, 0.18963251, 0.19860937, 0.04377724, 0.01457421},
}

var probsSeq2 = [][]float64{
	{0.08034842, 0.22671944, 0.05799633, 0.36814645, 0.11307441, 0.04468023, 0.10903471},
	{0.09742457, 0.12959763, 0.09435383, 0.21889204, 0.15113123, 0.10219457, 0.20640612},
	{0.45033529, 0.09091417, 0.15333208, 0.07939558, 0.08649316, 0.12298585, 0.01654384},
	{0.02512238, 0.22079203, 0.19664364, 0.11906379, 0.07816055, 0.22538587, 0.13483174},
	{0.17928453, 0.06065261, 0.41153005, 0.1172041, 0.11880313, 0.07113197, 0.04139363},
	{0.15882358, 0.1235788, 0.23376776, 0.20510435, 0.00279306, 0.05294827, 0.22298418},
}

func letterVocab(t testing.TB) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.New(letterSymbols, 6)
	if err != nil {
		t.Fatalf("vocab.New error: %v", err)
	}
	return v
}

var bunnySymbols = []string{" ", "b", "g", "n", "s", "u", "y", "<blank>"}

func bunnyVocab(t testing.TB) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.New(bunnySymbols, 7)
	if err != nil {
		t.Fatalf("vocab.New error: %v", err)
	}
	return v
}

// oneHot spells symbols, one timestep each; "" is the blank.
func oneHot(symbols ...string) [][]float64 {
	rows := make([][]float64, len(symbols))
	for t, s := range symbols {
		rows[t] = make([]float64, len(bunnySymbols))
		idx := 7
		for i, sym := range bunnySymbols[:7] {
			if sym == s {
				idx = i
			}
		}
		rows[t][idx] = 1
	}
	return rows
}

// bunnyProbs is ambiguous between "bugs bunny" and "bunny bunny", leaning
// slightly toward the former.
func bunnyProbs() [][]float64 {
	bugs := oneHot("b", "u", "g", "s", "", "")
	bunny := oneHot("b", "u", "n", "", "n", "y")
	var rows [][]float64
	for t := range bugs {
		row := make([]float64, len(bunnySymbols))
		for i := range row {
			row[i] = 0.51*bugs[t][i] + 0.49*bunny[t][i]
		}
		rows = append(rows, row)
	}
	rows = append(rows, oneHot(" ")...)
	return append(rows, bunny...)
}

// smallProbs is the four-symbol hotword fixture, timesteps by symbol.
func smallProbs() (*vocab.Vocabulary, [][]float64) {
	v, _ := vocab.New([]string{"_", "a", "b", " "}, 0)
	bySymbol := [][]float64{
		{0.1, 0.2, 0.2, 0.1},
		{0.4, 0.4, 0.1, 0.3},
		{0.2, 0.3, 0.1, 0.4},
		{0.3, 0.1, 0.6, 0.2},
	}
	return v, mathutil.Transpose(bySymbol)
}

func logOf(probs [][]float64) [][]float64 {
	out := make([][]float64, len(probs))
	for t, row := range probs {
		out[t] = make([]float64, len(row))
		for i, p := range row {
			out[t][i] = math.Log(p)
		}
	}
	return out
}

// randomProbs returns T normalized rows over V symbols.
func randomProbs(rng *rand.Rand, T, V int) [][]float64 {
	rows := make([][]float64, T)
	for t := range rows {
		rows[t] = make([]float64, V)
		sum := 0.0
		for i := range rows[t] {
			rows[t][i] = rng.Float64()
			sum += rows[t][i]
		}
		for i := range rows[t] {
			rows[t][i] /= sum
		}
	}
	return rows
}

func digitVocab(t testing.TB, V, blank int) *vocab.Vocabulary {
	t.Helper()
	syms := make([]string, V)
	for i := range syms {
		syms[i] = string(rune('a' + i))
	}
	v, err := vocab.New(syms, blank)
	if err != nil {
		t.Fatalf("vocab.New error: %v", err)
	}
	return v
}

func labelsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func texts(hyps []Hypothesis) string {
	out := make([]string, len(hyps))
	for i, h := range hyps {
		out[i] = h.Text
	}
	return strings.Join(out, "|")
}
