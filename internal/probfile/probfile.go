// Package probfile reads and writes batches of classifier output as JSON or
// msgpack. Files ending in .msgpack or .mp are msgpack; anything else is JSON.
package probfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
)

var ErrEmpty = fmt.Errorf("%w: probability file has no utterances", ctcerr.ErrInput)

// Utterance is one probability matrix, [timestep][symbol].
type Utterance struct {
	ID        string      `json:"id" msgpack:"id"`
	Probs     [][]float64 `json:"probs" msgpack:"probs"`
	Reference string      `json:"reference,omitempty" msgpack:"reference,omitempty"`
}

// Batch is the file layout.
type Batch struct {
	Labels     []string    `json:"labels,omitempty" msgpack:"labels,omitempty"`
	LogProbs   bool        `json:"log_probs,omitempty" msgpack:"log_probs,omitempty"`
	Utterances []Utterance `json:"utterances" msgpack:"utterances"`
}

// Probs returns the matrices in file order.
func (b *Batch) Probs() [][][]float64 {
	out := make([][][]float64, len(b.Utterances))
	for i, u := range b.Utterances {
		out[i] = u.Probs
	}
	return out
}

func isMsgpack(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mp":
		return true
	}
	return false
}

// Read loads a batch from path.
func Read(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ctcerr.ErrResource, path, err)
	}
	var b Batch
	if isMsgpack(path) {
		err = msgpack.Unmarshal(data, &b)
	} else {
		err = json.Unmarshal(data, &b)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ctcerr.ErrInput, path, err)
	}
	if len(b.Utterances) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	for i := range b.Utterances {
		if b.Utterances[i].ID == "" {
			b.Utterances[i].ID = fmt.Sprintf("utt%d", i)
		}
	}
	return &b, nil
}

// Write stores b at path in the format its extension selects.
func Write(path string, b *Batch) error {
	var (
		data []byte
		err  error
	)
	if isMsgpack(path) {
		data, err = msgpack.Marshal(b)
	} else {
		data, err = json.MarshalIndent(b, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ctcerr.ErrResource, path, err)
	}
	return nil
}
