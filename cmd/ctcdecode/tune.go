package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode-go"
	"github.com/ieee0824/ctcdecode-go/internal/probfile"
	"github.com/ieee0824/ctcdecode-go/internal/workpool"
	"github.com/ieee0824/ctcdecode-go/lexicon"
)

type paramSet struct {
	Alpha float64
	Beta  float64
}

type tuneResult struct {
	params   paramSet
	charErrs int
	chars    int
	wordErrs int
	words    int
	exact    int
	total    int
}

func (r tuneResult) cer() float64 { return rate(r.charErrs, r.chars) }
func (r tuneResult) wer() float64 { return rate(r.wordErrs, r.words) }

func rate(errs, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(errs) / float64(n)
}

func newTuneCmd(g *globalFlags) *cobra.Command {
	var (
		alphasStr string
		betasStr  string
		parallel  int
	)
	cmd := &cobra.Command{
		Use:   "tune <probs-file>",
		Short: "Grid search alpha and beta against reference transcripts",
		Long: `Decode a probability file whose utterances carry a "reference" transcript
once per (alpha, beta) pair and rank the pairs by character error rate.

Example:
  ctcdecode tune --lm lm.bin --alphas 0,0.5,1,2 --betas 0,1,2 dev.msgpack`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			alphas, err := parseFloats(alphasStr)
			if err != nil {
				return err
			}
			betas, err := parseFloats(betasStr)
			if err != nil {
				return err
			}

			var grid []paramSet
			for _, a := range alphas {
				for _, b := range betas {
					grid = append(grid, paramSet{Alpha: a, Beta: b})
				}
			}
			if len(grid) == 0 {
				return fmt.Errorf("empty grid")
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Grid: %d alpha × %d beta = %d combos\n", len(alphas), len(betas), len(grid))

			ctx := cmd.Context()
			results, err := workpool.Map(ctx, parallel, len(grid), func(_ context.Context, gi int) (tuneResult, error) {
				ps := grid[gi]
				batch, dec, _, err := openBatch(cmd, cfg, args[0],
					ctcdecode.WithAlpha(ps.Alpha), ctcdecode.WithBeta(ps.Beta), ctcdecode.WithWorkers(1))
				if err != nil {
					return tuneResult{}, err
				}
				res, err := dec.Decode(ctx, ctcdecode.Request{
					Probs:         batch.Probs(),
					Hotwords:      cfg.Hotwords.Phrases,
					HotwordWeight: cfg.Hotwords.Weight,
					TopN:          1,
				})
				if err != nil {
					return tuneResult{}, err
				}
				return score(ps, batch.Utterances, res), nil
			})
			if err != nil {
				return err
			}

			sort.Slice(results, func(i, j int) bool {
				if results[i].charErrs != results[j].charErrs {
					return results[i].charErrs < results[j].charErrs
				}
				if results[i].params.Alpha != results[j].params.Alpha {
					return results[i].params.Alpha < results[j].params.Alpha
				}
				return results[i].params.Beta < results[j].params.Beta
			})

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-8s %-8s %8s %8s %8s %6s\n", "Alpha", "Beta", "CER", "WER", "Exact", "Total")
			fmt.Fprintln(w, strings.Repeat("-", 52))
			for _, r := range results {
				fmt.Fprintf(w, "%-8.2f %-8.2f %7.2f%% %7.2f%% %8d %6d\n",
					r.params.Alpha, r.params.Beta, r.cer()*100, r.wer()*100, r.exact, r.total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&alphasStr, "alphas", "0,0.5,1,1.5,2", "comma-separated LM weights")
	cmd.Flags().StringVar(&betasStr, "betas", "0,1,2", "comma-separated word bonuses")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "grid points decoded at once (default: GOMAXPROCS)")
	return cmd
}

func score(ps paramSet, utts []probfile.Utterance, res *ctcdecode.Result) tuneResult {
	r := tuneResult{params: ps}
	for i, u := range res.Utterances {
		ref := utts[i].Reference
		hyp := ""
		if u.Err == nil && len(u.Hypotheses) > 0 {
			hyp = u.Hypotheses[0].Text
		}
		refChars, hypChars := []rune(ref), []rune(hyp)
		refWords, hypWords := strings.Fields(ref), strings.Fields(hyp)
		r.charErrs += lexicon.EditDistance(refChars, hypChars)
		r.chars += len(refChars)
		r.wordErrs += lexicon.EditDistance(refWords, hypWords)
		r.words += len(refWords)
		if hyp == ref {
			r.exact++
		}
		r.total++
	}
	return r
}

func parseFloats(s string) ([]float64, error) {
	var vals []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", part, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}
