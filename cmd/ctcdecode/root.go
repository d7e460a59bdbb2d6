package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode-go"
	"github.com/ieee0824/ctcdecode-go/internal/config"
	"github.com/ieee0824/ctcdecode-go/internal/probfile"
)

// globalFlags override the configuration file when set.
type globalFlags struct {
	configPath    string
	logLevel      string
	beamWidth     int
	topN          int
	alpha         float64
	beta          float64
	lmPath        string
	workers       int
	hotwords      []string
	hotwordWeight float64
	logProbs      bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "ctcdecode",
		Short: "CTC beam search decoder",
		Long: `ctcdecode - decode per-timestep symbol probabilities into ranked text.

Probability files are JSON or msgpack (.msgpack, .mp):
  {"labels": ["_", " ", "a", ...], "log_probs": false,
   "utterances": [{"id": "u1", "probs": [[...], ...], "reference": "..."}]}

Settings come from --config (YAML), CTCDECODE_* environment variables and
flags, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.IntVar(&g.beamWidth, "beam-width", 0, "prefixes kept per timestep")
	pf.IntVar(&g.topN, "top-n", 0, "hypotheses printed per utterance")
	pf.Float64Var(&g.alpha, "alpha", 0, "language model weight")
	pf.Float64Var(&g.beta, "beta", 0, "word insertion bonus")
	pf.StringVar(&g.lmPath, "lm", "", "language model (ARPA or compiled)")
	pf.IntVar(&g.workers, "workers", 0, "parallel utterances (default: GOMAXPROCS)")
	pf.StringSliceVar(&g.hotwords, "hotword", nil, "hotword phrase (repeatable)")
	pf.Float64Var(&g.hotwordWeight, "hotword-weight", 0, "bonus per hotword occurrence")
	pf.BoolVar(&g.logProbs, "log-probs", false, "input holds natural-log probabilities")

	root.AddCommand(
		newDecodeCmd(g),
		newStreamCmd(g),
		newLMCmd(),
		newTuneCmd(g),
	)
	return root
}

// load resolves the configuration for cmd.
func (g *globalFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if f.Changed("beam-width") {
		cfg.BeamWidth = g.beamWidth
	}
	if f.Changed("top-n") {
		cfg.TopN = g.topN
	}
	if f.Changed("alpha") {
		cfg.Alpha = g.alpha
	}
	if f.Changed("beta") {
		cfg.Beta = g.beta
	}
	if f.Changed("lm") {
		cfg.LM.Path = g.lmPath
	}
	if f.Changed("workers") {
		cfg.Workers = g.workers
	}
	if f.Changed("hotword") {
		cfg.Hotwords.Phrases = g.hotwords
	}
	if f.Changed("hotword-weight") {
		cfg.Hotwords.Weight = g.hotwordWeight
	}
	if f.Changed("log-probs") {
		cfg.LogProbsInput = g.logProbs
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) *log.Logger {
	return log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		ReportTimestamp: true,
		Level:           cfg.Level(),
		Prefix:          "ctcdecode",
	})
}

// openBatch reads a probability file and builds a decoder for it. Labels in
// the file take precedence over configured labels.
func openBatch(cmd *cobra.Command, cfg config.Config, path string, extra ...ctcdecode.Option) (*probfile.Batch, *ctcdecode.BatchDecoder, *log.Logger, error) {
	logger := newLogger(cmd, cfg)
	batch, err := probfile.Read(path)
	if err != nil {
		return nil, nil, nil, err
	}
	labels := batch.Labels
	if len(labels) == 0 {
		labels = cfg.Labels
	}
	if len(labels) == 0 {
		return nil, nil, nil, fmt.Errorf("no labels: set labels in %s or in the configuration", path)
	}
	opts := append(cfg.Options(), ctcdecode.WithLogger(logger))
	if batch.LogProbs {
		opts = append(opts, ctcdecode.WithLogProbs(true))
	}
	opts = append(opts, extra...)
	dec, err := ctcdecode.New(labels, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Debug("decoder ready", "labels", len(labels), "utterances", len(batch.Utterances),
		"beam_width", dec.Decoder().Config().BeamWidth)
	return batch, dec, logger, nil
}
