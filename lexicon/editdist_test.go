package lexicon

import (
	"math"
	"testing"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "ka", "ka", 0},
		{"empty_both", "", "", 0},
		{"empty_a", "", "ai", 2},
		{"empty_b", "a", "", 1},
		{"substitution", "ka", "ga", 1},
		{"insertion", "ka", "kai", 1},
		{"deletion", "kai", "ka", 1},
		{"kasa_vs_asa", "kasa", "asa", 1},
		{"kitten_vs_sitting", "kitten", "sitting", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EditDistance([]rune(tt.a), []rune(tt.b))
			if got != tt.want {
				t.Errorf("EditDistance() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEditDistanceWords(t *testing.T) {
	ref := []string{"bugs", "bunny"}
	hyp := []string{"bunny", "bunny"}
	if got := EditDistance(ref, hyp); got != 1 {
		t.Errorf("EditDistance() = %d, want 1", got)
	}
}

func TestErrorRate(t *testing.T) {
	if got := ErrorRate([]rune("abcd"), []rune("abed")); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("ErrorRate = %f, want 0.25", got)
	}
	if got := ErrorRate[rune](nil, nil); got != 0 {
		t.Errorf("ErrorRate(empty, empty) = %f, want 0", got)
	}
	if got := ErrorRate(nil, []rune("a")); got != 1 {
		t.Errorf("ErrorRate(empty, a) = %f, want 1", got)
	}
}
