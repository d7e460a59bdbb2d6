package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode-go"
	"github.com/ieee0824/ctcdecode-go/internal/probfile"
)

type hypothesisOut struct {
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	Acoustic  float64 `json:"acoustic"`
	Labels    []int   `json:"labels"`
	Timesteps []int   `json:"timesteps"`
}

type utteranceOut struct {
	ID         string          `json:"id"`
	Hypotheses []hypothesisOut `json:"hypotheses,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func newDecodeCmd(g *globalFlags) *cobra.Command {
	var (
		asJSON bool
		nbest  bool
	)
	cmd := &cobra.Command{
		Use:   "decode <probs-file>",
		Short: "Batch decode a probability file",
		Long: `Decode every utterance of a probability file in one batch.

Examples:
  ctcdecode decode probs.json
  ctcdecode decode --lm lm.bin --alpha 0.8 --beta 1.5 probs.msgpack
  ctcdecode decode --hotword "bugs bunny" --hotword-weight 5 --json probs.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			batch, dec, _, err := openBatch(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			res, err := dec.Decode(cmd.Context(), ctcdecode.Request{
				Probs:         batch.Probs(),
				Hotwords:      cfg.Hotwords.Phrases,
				HotwordWeight: cfg.Hotwords.Weight,
				TopN:          cfg.TopN,
			})
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), batch, res, asJSON, nbest)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&nbest, "nbest", false, "print every hypothesis, not only the best")
	return cmd
}

func toOutput(batch *probfile.Batch, res *ctcdecode.Result, nbest bool) []utteranceOut {
	out := make([]utteranceOut, len(res.Utterances))
	for i, u := range res.Utterances {
		out[i].ID = batch.Utterances[i].ID
		if u.Err != nil {
			out[i].Error = u.Err.Error()
			continue
		}
		hyps := u.Hypotheses
		if !nbest && len(hyps) > 1 {
			hyps = hyps[:1]
		}
		for _, h := range hyps {
			out[i].Hypotheses = append(out[i].Hypotheses, hypothesisOut{
				Text:      h.Text,
				Score:     h.Score,
				Acoustic:  h.AcousticScore,
				Labels:    h.Labels,
				Timesteps: h.Timesteps,
			})
		}
	}
	return out
}

func writeResults(w io.Writer, batch *probfile.Batch, res *ctcdecode.Result, asJSON, nbest bool) error {
	out := toOutput(batch, res, nbest)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, u := range out {
		if u.Error != "" {
			fmt.Fprintf(w, "%s\terror: %s\n", u.ID, u.Error)
			continue
		}
		for _, h := range u.Hypotheses {
			fmt.Fprintf(w, "%s\t%s\t%.4f\n", u.ID, h.Text, h.Score)
		}
	}
	return nil
}
