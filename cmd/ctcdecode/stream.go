package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode-go"
	"github.com/ieee0824/ctcdecode-go/decoder"
	"github.com/ieee0824/ctcdecode-go/hotword"
)

func newStreamCmd(g *globalFlags) *cobra.Command {
	var (
		chunk  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stream <probs-file>",
		Short: "Decode a probability file chunk by chunk",
		Long: `Feed each utterance through an online decoder state, chunk timesteps
at a time, as a streaming client would. Partial results are logged at debug
level; final results are printed like decode.

Example:
  ctcdecode stream --chunk 16 --log-level debug probs.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			batch, dec, logger, err := openBatch(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			if chunk <= 0 {
				return fmt.Errorf("--chunk must be positive, got %d", chunk)
			}
			var booster *hotword.Booster
			if len(cfg.Hotwords.Phrases) > 0 {
				booster, err = dec.PrepareHotwords(cfg.Hotwords.Phrases, cfg.Hotwords.Weight)
				if err != nil {
					return err
				}
				defer booster.Destroy()
			}

			n := len(batch.Utterances)
			states := make([]*decoder.State, n)
			for i := range states {
				states[i] = dec.NewState()
				defer states[i].Destroy()
			}
			done := make([]bool, n)
			final := &ctcdecode.Result{Utterances: make([]ctcdecode.Utterance, n)}

			for start := 0; ; start += chunk {
				req := ctcdecode.Request{Booster: booster, TopN: cfg.TopN}
				var idx []int
				for i, u := range batch.Utterances {
					if done[i] {
						continue
					}
					end := min(start+chunk, len(u.Probs))
					idx = append(idx, i)
					req.Probs = append(req.Probs, u.Probs[start:end])
					req.States = append(req.States, states[i])
					req.EndOfStream = append(req.EndOfStream, end == len(u.Probs))
				}
				if len(idx) == 0 {
					break
				}
				res, err := dec.Decode(cmd.Context(), req)
				if err != nil {
					return err
				}
				for k, i := range idx {
					u := res.Utterances[k]
					if req.EndOfStream[k] || u.Err != nil {
						done[i] = true
						final.Utterances[i] = u
						for _, h := range u.Hypotheses {
							final.MaxLength = max(final.MaxLength, h.Len())
						}
						continue
					}
					if len(u.Hypotheses) > 0 {
						logger.Debug("partial", "utterance", batch.Utterances[i].ID,
							"state", states[i].ID(), "timestep", states[i].Timestep(), "text", u.Hypotheses[0].Text)
					}
				}
			}
			return writeResults(cmd.OutOrStdout(), batch, final, asJSON, false)
		},
	}
	cmd.Flags().IntVar(&chunk, "chunk", 16, "timesteps per call")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
