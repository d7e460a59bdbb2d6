package language

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
)

// Magic prefixes compiled model files.
const Magic = "CTCLM"

const binaryVersion = 1

var (
	ErrCorrupt  = fmt.Errorf("%w: corrupt language model", ctcerr.ErrResource)
	ErrOpen     = fmt.Errorf("%w: cannot read language model", ctcerr.ErrResource)
	errBadMagic = errors.New("bad magic")
)

type binaryModel struct {
	Version int                `msgpack:"version"`
	Order   int                `msgpack:"order"`
	Grams   []map[string]Entry `msgpack:"grams"`
}

// WriteBinary writes the model in the compiled format: Magic followed by a
// msgpack payload.
func (m *NGramModel) WriteBinary(w io.Writer) error {
	if _, err := io.WriteString(w, Magic); err != nil {
		return err
	}
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return enc.Encode(&binaryModel{Version: binaryVersion, Order: m.Order, Grams: m.Grams})
}

// LoadBinary reads a model written by WriteBinary.
func LoadBinary(r io.Reader) (*NGramModel, error) {
	head := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(head) != Magic {
		return nil, errBadMagic
	}
	var bm binaryModel
	if err := msgpack.NewDecoder(r).Decode(&bm); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if bm.Version != binaryVersion {
		return nil, fmt.Errorf("unsupported version %d", bm.Version)
	}
	if bm.Order < 1 || len(bm.Grams) != bm.Order || len(bm.Grams[0]) == 0 {
		return nil, fmt.Errorf("invalid model of order %d with %d tables", bm.Order, len(bm.Grams))
	}
	m := &NGramModel{Order: bm.Order, Grams: bm.Grams}
	for k := range m.Grams {
		if m.Grams[k] == nil {
			m.Grams[k] = make(map[string]Entry)
		}
	}
	return m, nil
}

// Load opens a language model file, compiled or ARPA, and detects the format
// from its first bytes. All failures are resource errors.
func Load(path string) (*NGramModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(len(Magic))
	var m *NGramModel
	if bytes.Equal(head, []byte(Magic)) {
		m, err = LoadBinary(br)
	} else {
		m, err = LoadARPA(br)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return m, nil
}
