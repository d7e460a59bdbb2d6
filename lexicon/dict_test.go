package lexicon

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
	"github.com/ieee0824/ctcdecode-go/vocab"
)

func testVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.New([]string{"_", " ", "a", "b", "c", "'"}, 0)
	if err != nil {
		t.Fatalf("vocab.New error: %v", err)
	}
	return v
}

const testDict = `# word list
ab
abc	extra columns are ignored
b'a
ab
xyz
`

func TestLoadDict(t *testing.T) {
	v := testVocab(t)
	d, err := Load(strings.NewReader(testDict), v)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if d.Len() != 3 {
		t.Errorf("Len = %d, want 3", d.Len())
	}
	if skipped := d.Skipped(); len(skipped) != 1 || skipped[0] != "xyz" {
		t.Errorf("Skipped = %v, want [xyz]", skipped)
	}

	for _, tt := range []struct {
		word string
		want bool
	}{
		{"ab", true},
		{"abc", true},
		{"b'a", true},
		{"a", false},
		{"abca", false},
	} {
		labels, err := v.Tokenize(tt.word)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", tt.word, err)
		}
		if got := d.Contains(labels); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.word, got, tt.want)
		}
	}
}

func TestNextIsWord(t *testing.T) {
	v := testVocab(t)
	d := FromWords(v, []string{"ab", "abc"})

	s, ok := d.Next(Start, 2)
	if !ok {
		t.Fatal("a should be a prefix")
	}
	if d.IsWord(s) {
		t.Error("a is not a word")
	}
	s, ok = d.Next(s, 3)
	if !ok || !d.IsWord(s) {
		t.Error("ab should be a word")
	}
	if _, ok := d.Next(s, 3); ok {
		t.Error("abb should not be a prefix")
	}
	if d.IsWord(Start) {
		t.Error("empty word should not be a word")
	}
}

func TestFromWordsSkipsSeparator(t *testing.T) {
	v := testVocab(t)
	d := FromWords(v, []string{"a b", "", "c"})
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
	if len(d.Skipped()) != 2 {
		t.Errorf("Skipped = %v, want 2 entries", d.Skipped())
	}
	if d.VocabularyFingerprint() != v.Fingerprint() {
		t.Error("fingerprint mismatch")
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.txt"), testVocab(t))
	if !errors.Is(err, ctcerr.ErrResource) {
		t.Errorf("err = %v, want resource error", err)
	}
}

func TestFingerprint(t *testing.T) {
	v := testVocab(t)
	ab := FromWords(v, []string{"ab", "b'a"})
	if got := FromWords(v, []string{"b'a", "ab", "ab"}); got.Fingerprint() != ab.Fingerprint() {
		t.Error("same word set in another order has a different fingerprint")
	}
	if got := FromWords(v, []string{"ab", "abc"}); got.Fingerprint() == ab.Fingerprint() {
		t.Error("different word sets of the same size share a fingerprint")
	}
	other, err := vocab.New([]string{"_", " ", "a", "b", "c", "'", "d"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if FromWords(other, []string{"ab", "b'a"}).Fingerprint() == ab.Fingerprint() {
		t.Error("dictionaries over different vocabularies share a fingerprint")
	}
}
