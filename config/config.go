// Package config loads runtime settings for the duel engine from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nathoo/duelcore/engine"
	"github.com/nathoo/duelcore/engine/unit"
)

// Config holds every setting the command-line tools read.
type Config struct {
	Rules  string       `yaml:"rules"` // rule table directory
	Battle BattleConfig `yaml:"battle"`
	Tuning TuningConfig `yaml:"tuning"`
	Log    LogConfig    `yaml:"log"`
}

// BattleConfig holds fight defaults.
type BattleConfig struct {
	MaxTurns           int            `yaml:"max_turns" validate:"min=1"`
	MaxEventsPerAction int            `yaml:"max_events_per_action" validate:"min=1"`
	Policy             string         `yaml:"policy"`  // alternate, initiative, list
	Timeout            string         `yaml:"timeout"` // draw, highest_hp
	Verbosity          string         `yaml:"verbosity"`
	Regen              map[string]int `yaml:"regen" validate:"dive,min=0"` // resource per round
	Seed               int64          `yaml:"seed"`                        // 0 picks one per fight
}

// TuningConfig holds the combat constants.
type TuningConfig struct {
	DefenseK         float64 `yaml:"defense_k" validate:"gt=0"`
	NegativeDefenseK float64 `yaml:"negative_defense_k" validate:"gt=0"`
	DodgeC           float64 `yaml:"dodge_c" validate:"gt=0"`
	MinDodge         float64 `yaml:"min_dodge" validate:"gte=0,lte=1"`
	MaxDodge         float64 `yaml:"max_dodge" validate:"gte=0,lte=1"`
	CritMin          float64 `yaml:"crit_min" validate:"gte=1"`
	CritMax          float64 `yaml:"crit_max" validate:"gte=1"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns Config with sensible defaults.
func Default() Config {
	t := unit.DefaultTuning()
	return Config{
		Rules: "content",
		Battle: BattleConfig{
			MaxTurns:           engine.DefaultMaxTurns,
			MaxEventsPerAction: engine.DefaultMaxEventsPerAction,
			Policy:             string(engine.PolicyAlternate),
			Timeout:            string(engine.TimeoutDraw),
			Verbosity:          string(engine.VerbositySummary),
		},
		Tuning: TuningConfig{
			DefenseK:         t.DefenseK,
			NegativeDefenseK: t.NegativeDefenseK,
			DodgeC:           t.DodgeC,
			MinDodge:         t.MinDodge,
			MaxDodge:         t.MaxDodge,
			CritMin:          t.CritMin,
			CritMax:          t.CritMax,
		},
		Log: LogConfig{Level: "warn", Format: "text"},
	}
}

// Load loads config from a YAML file. If the file doesn't exist, returns
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated settings and numeric bounds.
func (c Config) Validate() error {
	switch engine.Policy(c.Battle.Policy) {
	case engine.PolicyAlternate, engine.PolicyInitiative, engine.PolicyList:
	default:
		return fmt.Errorf("unknown policy %q", c.Battle.Policy)
	}
	switch engine.TimeoutRule(c.Battle.Timeout) {
	case engine.TimeoutDraw, engine.TimeoutHighestHP:
	default:
		return fmt.Errorf("unknown timeout rule %q", c.Battle.Timeout)
	}
	if _, err := engine.ParseVerbosity(c.Battle.Verbosity); err != nil {
		return err
	}
	if err := bounds.Struct(c); err != nil {
		return describe(err)
	}
	if c.Tuning.MinDodge > c.Tuning.MaxDodge {
		return fmt.Errorf("min_dodge %.2f exceeds max_dodge %.2f", c.Tuning.MinDodge, c.Tuning.MaxDodge)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// UnitTuning returns the combat constants with physical mitigation.
func (c Config) UnitTuning() unit.Tuning {
	t := unit.DefaultTuning()
	t.DefenseK = c.Tuning.DefenseK
	t.NegativeDefenseK = c.Tuning.NegativeDefenseK
	t.DodgeC = c.Tuning.DodgeC
	t.MinDodge = c.Tuning.MinDodge
	t.MaxDodge = c.Tuning.MaxDodge
	t.CritMin = c.Tuning.CritMin
	t.CritMax = c.Tuning.CritMax
	return t
}

// BattleOptions converts the fight defaults into engine options.
func (c Config) BattleOptions(seed int64, logger *slog.Logger) engine.Options {
	tuning := c.UnitTuning()
	v, _ := engine.ParseVerbosity(c.Battle.Verbosity)
	return engine.Options{
		MaxTurns:           c.Battle.MaxTurns,
		MaxEventsPerAction: c.Battle.MaxEventsPerAction,
		Seed:               seed,
		Verbosity:          v,
		Policy:             engine.Policy(c.Battle.Policy),
		Timeout:            engine.TimeoutRule(c.Battle.Timeout),
		Regen:              c.Battle.Regen,
		Tuning:             &tuning,
		Logger:             logger,
	}
}

// bounds checks the numeric ranges in the validate tags, reporting fields
// by their yaml names.
var bounds = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
	return v
}()

func describe(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	fe := fields[0]
	switch fe.Tag() {
	case "min", "gte":
		return fmt.Errorf("%s must be at least %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "gt":
		return fmt.Errorf("%s must be above %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "lte":
		return fmt.Errorf("%s must be at most %s, got %v", fe.Field(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("%s is invalid: %s", fe.Field(), fe.Tag())
}

// NewLogger builds a structured logger writing to w.
func NewLogger(w io.Writer, lc LogConfig) (*slog.Logger, error) {
	level, err := parseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(lc.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (text, json)", lc.Format)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
