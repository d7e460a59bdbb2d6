// Package config loads decoder settings from YAML with CTCDECODE_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/ieee0824/ctcdecode-go"
	"github.com/ieee0824/ctcdecode-go/ctcerr"
	"github.com/ieee0824/ctcdecode-go/language"
)

type LMConfig struct {
	Path               string  `yaml:"path"`
	OOVLogProb         float64 `yaml:"oov_log_prob"`
	EndOfSentence      bool    `yaml:"end_of_sentence"`
	CacheSize          int     `yaml:"cache_size"`
	RestrictVocabulary bool    `yaml:"restrict_vocabulary"`
}

type HotwordConfig struct {
	Phrases []string `yaml:"phrases"`
	Weight  float64  `yaml:"weight"`
}

type Config struct {
	Labels         []string      `yaml:"labels"`
	Blank          int           `yaml:"blank"` // -1 selects the last label
	Separator      string        `yaml:"separator"`
	CharacterBased bool          `yaml:"character_based"`
	BeamWidth      int           `yaml:"beam_width"`
	TopN           int           `yaml:"top_n"`
	CutoffTopN     int           `yaml:"cutoff_top_n"`
	CutoffProb     float64       `yaml:"cutoff_prob"`
	Alpha          float64       `yaml:"alpha"`
	Beta           float64       `yaml:"beta"`
	LogProbsInput  bool          `yaml:"log_probs_input"`
	Workers        int           `yaml:"workers"`
	EarlyCutoff    bool          `yaml:"early_cutoff"`
	LogLevel       string        `yaml:"log_level"`
	LM             LMConfig      `yaml:"lm"`
	Hotwords       HotwordConfig `yaml:"hotwords"`
}

func Default() Config {
	return Config{
		Blank:      -1,
		BeamWidth:  100,
		CutoffTopN: 40,
		CutoffProb: 1.0,
		LogLevel:   "info",
		LM: LMConfig{
			OOVLogProb: language.DefaultOOVLogProb,
			CacheSize:  language.DefaultCacheSize,
		},
		Hotwords: HotwordConfig{
			Weight: 10,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("%w: config file not found: %w", ctcerr.ErrResource, err)
			}
			return cfg, fmt.Errorf("%w: failed to read config file: %w", ctcerr.ErrResource, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: failed to parse config file: %w", ctcerr.ErrConfiguration, err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ctcerr.ErrConfiguration, err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideInt(&cfg.Blank, "CTCDECODE_BLANK")
	overrideString(&cfg.Separator, "CTCDECODE_SEPARATOR")
	overrideBool(&cfg.CharacterBased, "CTCDECODE_CHARACTER_BASED")
	overrideInt(&cfg.BeamWidth, "CTCDECODE_BEAM_WIDTH")
	overrideInt(&cfg.TopN, "CTCDECODE_TOP_N")
	overrideInt(&cfg.CutoffTopN, "CTCDECODE_CUTOFF_TOP_N")
	overrideFloat(&cfg.CutoffProb, "CTCDECODE_CUTOFF_PROB")
	overrideFloat(&cfg.Alpha, "CTCDECODE_ALPHA")
	overrideFloat(&cfg.Beta, "CTCDECODE_BETA")
	overrideBool(&cfg.LogProbsInput, "CTCDECODE_LOG_PROBS_INPUT")
	overrideInt(&cfg.Workers, "CTCDECODE_WORKERS")
	overrideBool(&cfg.EarlyCutoff, "CTCDECODE_EARLY_CUTOFF")
	overrideString(&cfg.LogLevel, "CTCDECODE_LOG_LEVEL")
	overrideString(&cfg.LM.Path, "CTCDECODE_LM_PATH")
	overrideFloat(&cfg.LM.OOVLogProb, "CTCDECODE_LM_OOV_LOG_PROB")
	overrideBool(&cfg.LM.EndOfSentence, "CTCDECODE_LM_END_OF_SENTENCE")
	overrideInt(&cfg.LM.CacheSize, "CTCDECODE_LM_CACHE_SIZE")
	overrideBool(&cfg.LM.RestrictVocabulary, "CTCDECODE_LM_RESTRICT_VOCABULARY")
	overrideStringSlice(&cfg.Hotwords.Phrases, "CTCDECODE_HOTWORDS")
	overrideFloat(&cfg.Hotwords.Weight, "CTCDECODE_HOTWORD_WEIGHT")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && value != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.BeamWidth <= 0 {
		return errors.New("beam_width must be positive")
	}
	if cfg.TopN < 0 {
		return errors.New("top_n must be >= 0")
	}
	if cfg.CutoffTopN <= 0 {
		return errors.New("cutoff_top_n must be positive")
	}
	if cfg.CutoffProb <= 0 || cfg.CutoffProb > 1 {
		return errors.New("cutoff_prob must be in (0, 1]")
	}
	if cfg.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	if cfg.Blank < -1 || (len(cfg.Labels) > 0 && cfg.Blank >= len(cfg.Labels)) {
		return errors.New("blank must index labels, or be -1 for the last label")
	}
	if cfg.CharacterBased && cfg.Separator != "" {
		return errors.New("separator must be empty when character_based is set")
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if cfg.LM.Path == "" && cfg.LM.RestrictVocabulary {
		return errors.New("lm.restrict_vocabulary needs lm.path")
	}
	if cfg.LM.CacheSize < 0 {
		return errors.New("lm.cache_size must be >= 0")
	}
	if len(cfg.Hotwords.Phrases) > 0 && cfg.Hotwords.Weight <= 0 {
		return errors.New("hotwords.weight must be positive")
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() log.Level {
	l, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return l
}

// Options converts the settings into batch decoder options.
func (c Config) Options() []ctcdecode.Option {
	opts := []ctcdecode.Option{
		ctcdecode.WithBeamWidth(c.BeamWidth),
		ctcdecode.WithTopN(c.TopN),
		ctcdecode.WithCutoff(c.CutoffTopN, c.CutoffProb),
		ctcdecode.WithAlpha(c.Alpha),
		ctcdecode.WithBeta(c.Beta),
		ctcdecode.WithLogProbs(c.LogProbsInput),
		ctcdecode.WithWorkers(c.Workers),
		ctcdecode.WithEarlyCutoff(c.EarlyCutoff),
	}
	if c.Blank >= 0 {
		opts = append(opts, ctcdecode.WithBlank(c.Blank))
	}
	switch {
	case c.CharacterBased:
		opts = append(opts, ctcdecode.WithCharacterBased())
	case c.Separator != "":
		opts = append(opts, ctcdecode.WithSeparator(c.Separator))
	}
	if c.LM.Path != "" {
		opts = append(opts, ctcdecode.WithLanguageModel(c.LM.Path,
			language.WithOOVLogProb(c.LM.OOVLogProb),
			language.WithEndOfSentence(c.LM.EndOfSentence),
			language.WithCacheSize(c.LM.CacheSize),
		))
		if c.LM.RestrictVocabulary {
			opts = append(opts, ctcdecode.WithLMVocabularyConstraint())
		}
	}
	return opts
}
