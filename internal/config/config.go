// Package config is the generic Params map plus the THTS-specific flag
// set and ingredient factory built on top of it, adapted from the
// original parameters package's generic GetParamOr/PopParamOr parsing
// (kept verbatim: it already does exactly what an -ingredients style
// configuration string needs) to select among the action-selection,
// outcome-selection, backup, initializer and recommendation ingredients
// named in the specification's §4.6.
package config

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/arborplan/thts/internal/ingredients"
)

// Params represent generic configuration parameters, e.g. parsed out of
// a comma-separated "-ingredients" flag value such as "cp=1.5,uf=0.1".
type Params map[string]string

// NewFromConfigString parses a comma-separated key=value configuration
// string. A bare key with no '=' is recorded with an empty value, which
// GetParamOr's bool case treats as true.
func NewFromConfigString(config string) Params {
	params := make(Params)
	if config == "" {
		return params
	}
	for _, part := range strings.Split(config, ",") {
		subParts := strings.SplitN(part, "=", 2)
		if len(subParts) == 1 {
			params[subParts[0]] = ""
		} else {
			params[subParts[0]] = subParts[1]
		}
	}
	return params
}

// PopParamOr is like GetParamOr, but also deletes the retrieved key, so
// that after every expected key has been popped, leftover entries in
// params indicate a typo in the configuration string.
func PopParamOr[T interface {
	bool | int | float32 | float64 | string
}](params Params, key string, defaultValue T) (T, error) {
	value, err := GetParamOr(params, key, defaultValue)
	if err != nil {
		return value, err
	}
	delete(params, key)
	return value, nil
}

// GetParamOr attempts to parse a parameter to the given type if the key
// is present, or returns defaultValue if not. For bool types, a key with
// no value is interpreted as true.
func GetParamOr[T interface {
	bool | int | float32 | float64 | string
}](params Params, key string, defaultValue T) (T, error) {
	vAny := (any)(defaultValue)
	var t T
	toT := func(v any) T { return v.(T) }
	switch vAny.(type) {
	case string:
		if value, exists := params[key]; exists {
			return toT(value), nil
		}
	case int:
		if value, exists := params[key]; exists && value != "" {
			parsedValue, err := strconv.Atoi(value)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to int", key, value)
			}
			return toT(parsedValue), nil
		}
	case float32:
		if value, exists := params[key]; exists && value != "" {
			parsedValue, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to float", key, value)
			}
			return toT(float32(parsedValue)), nil
		}
	case float64:
		if value, exists := params[key]; exists && value != "" {
			parsedValue, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to float", key, value)
			}
			return toT(parsedValue), nil
		}
	case bool:
		if value, exists := params[key]; exists {
			if value == "" || strings.ToLower(value) == "true" || value == "1" {
				return toT(true), nil
			}
			if strings.ToLower(value) == "false" || value == "0" {
				return toT(false), nil
			}
			return defaultValue, errors.New("failed to parse bool")
		}
	}
	return defaultValue, nil
}

// IDSParams carries the IDS-related flags the specification's Non-goals
// exclude from having any effect (-t, -st, -tra, -minsd, -hw): parsed and
// stored on Settings so the CLI surface matches the original planner's,
// but never consulted by the driver.
type IDSParams struct {
	T     string
	ST    string
	Tra   string
	MinSD string
	HW    string
}

// TerminationMethod picks which of the driver's two budgets (elapsed
// time, trial count) gate the trial loop, mirroring THTS::TerminationMethod.
// Lives here, not in package engine, because it's parsed out of the -T
// flag (§4.6); package engine imports config, so the reverse would cycle.
type TerminationMethod int

const (
	TerminationTime TerminationMethod = iota
	TerminationNumberOfTrials
	TerminationTimeAndNumberOfTrials
)

// ParseTerminationMethod resolves the -T flag's token to a TerminationMethod.
func ParseTerminationMethod(value string) (TerminationMethod, error) {
	switch strings.ToUpper(value) {
	case "", "TIME":
		return TerminationTime, nil
	case "TRIALS", "NUMBER_OF_TRIALS":
		return TerminationNumberOfTrials, nil
	case "TIME_AND_TRIALS":
		return TerminationTimeAndNumberOfTrials, nil
	default:
		return 0, errors.Errorf("unknown termination method %q", value)
	}
}

// horizonSentinel is NewDecisionNodesPerTrial's value when -ndn is "H"
// ("H means horizon", §4.6): a trial can never initialize more new
// decision nodes than the horizon has steps, so "H" is just "don't cap
// this below what the horizon already caps it at" — i.e. unlimited.
const horizonSentinel = -1

// Settings is the fully-parsed configuration for one THTS run, built
// from a "-ingredients" style configuration string via NewSettings.
type Settings struct {
	ActionSelection string
	OutcomeSelection string
	BackupFunction   string
	Initializer      string
	Recommendation   string

	Cp            float64
	Exploration   string
	UniformAtRoot bool

	// Termination and MaxTrials are the -T/-r flags (§4.6): which budget
	// gates the trial loop, and the trial count for TerminationNumberOfTrials
	// and TerminationTimeAndNumberOfTrials.
	Termination string
	MaxTrials   int

	// NewDecisionNodesPerTrial is the -ndn flag: the tip-of-trial cap on
	// how many previously-uninitialized decision nodes one trial may
	// expand (§4.3). horizonSentinel means "H" (unlimited).
	NewDecisionNodesPerTrial int

	// RebuildIntervalSeconds is the -uf flag: how often, in seconds of
	// search time, the equivalence-class abstraction is rebuilt (§4.4).
	RebuildIntervalSeconds float64

	MaxNodes int

	IDS IDSParams
}

// DefaultSettings matches the original planner's historical defaults.
func DefaultSettings() Settings {
	return Settings{
		ActionSelection:          "ucb1",
		OutcomeSelection:         "mc",
		BackupFunction:           "mc",
		Initializer:              "optimistic",
		Recommendation:           "expected",
		Cp:                       1.0,
		Exploration:              "log",
		UniformAtRoot:            false,
		Termination:              "TIME",
		MaxTrials:                100_000,
		NewDecisionNodesPerTrial: horizonSentinel,
		RebuildIntervalSeconds:   0.1,
		MaxNodes:                 5_000_000,
	}
}

// NewSettings parses a comma-separated configuration string (the
// "-ingredients" flag in cmd/thts-demo) over DefaultSettings, popping
// every recognized key. Unrecognized keys are reported as an error so
// typos in a configuration string fail fast rather than silently using
// defaults.
func NewSettings(config string) (Settings, error) {
	s := DefaultSettings()
	params := NewFromConfigString(config)

	var err error
	if s.ActionSelection, err = PopParamOr(params, "act", s.ActionSelection); err != nil {
		return s, err
	}
	if s.OutcomeSelection, err = PopParamOr(params, "out", s.OutcomeSelection); err != nil {
		return s, err
	}
	if s.BackupFunction, err = PopParamOr(params, "backup", s.BackupFunction); err != nil {
		return s, err
	}
	if s.Initializer, err = PopParamOr(params, "init", s.Initializer); err != nil {
		return s, err
	}
	if s.Recommendation, err = PopParamOr(params, "rec", s.Recommendation); err != nil {
		return s, err
	}
	if s.Cp, err = PopParamOr(params, "cp", s.Cp); err != nil {
		return s, err
	}
	if s.Exploration, err = PopParamOr(params, "er", s.Exploration); err != nil {
		return s, err
	}
	if s.UniformAtRoot, err = PopParamOr(params, "uniform-root", s.UniformAtRoot); err != nil {
		return s, err
	}
	if s.Termination, err = PopParamOr(params, "T", s.Termination); err != nil {
		return s, err
	}
	if _, err = ParseTerminationMethod(s.Termination); err != nil {
		return s, err
	}
	if s.MaxTrials, err = PopParamOr(params, "r", s.MaxTrials); err != nil {
		return s, err
	}
	if raw, ok := params["ndn"]; ok {
		delete(params, "ndn")
		if strings.EqualFold(raw, "H") {
			s.NewDecisionNodesPerTrial = horizonSentinel
		} else {
			n, parseErr := strconv.Atoi(raw)
			if parseErr != nil {
				return s, errors.Wrapf(parseErr, "failed to parse configuration ndn=%q", raw)
			}
			s.NewDecisionNodesPerTrial = n
		}
	}
	if s.RebuildIntervalSeconds, err = PopParamOr(params, "uf", s.RebuildIntervalSeconds); err != nil {
		return s, err
	}
	if s.MaxNodes, err = PopParamOr(params, "node-limit", s.MaxNodes); err != nil {
		return s, err
	}
	if s.IDS.T, err = PopParamOr(params, "t", s.IDS.T); err != nil {
		return s, err
	}
	if s.IDS.ST, err = PopParamOr(params, "st", s.IDS.ST); err != nil {
		return s, err
	}
	if s.IDS.Tra, err = PopParamOr(params, "tra", s.IDS.Tra); err != nil {
		return s, err
	}
	if s.IDS.MinSD, err = PopParamOr(params, "minsd", s.IDS.MinSD); err != nil {
		return s, err
	}
	if s.IDS.HW, err = PopParamOr(params, "hw", s.IDS.HW); err != nil {
		return s, err
	}

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		return s, errors.Errorf("unrecognized ingredient configuration keys: %s", strings.Join(keys, ", "))
	}
	return s, nil
}

// BuildActionSelection resolves the configured action-selection ingredient.
func (s Settings) BuildActionSelection() (ingredients.ActionSelection, error) {
	rate := map[string]ingredients.ExplorationRate{
		"log":    ingredients.ExplorationLog,
		"sqrt":   ingredients.ExplorationSqrt,
		"lin":    ingredients.ExplorationLin,
		"lnquad": ingredients.ExplorationLnQuad,
	}[s.Exploration]
	if rate == nil {
		return nil, errors.Errorf("unknown exploration rate %q", s.Exploration)
	}

	switch s.ActionSelection {
	case "ucb1":
		return &ingredients.UCB1{Cp: s.Cp, Exploration: rate, UniformAtRoot: s.UniformAtRoot}, nil
	case "uniform":
		return ingredients.Uniform{}, nil
	case "round-robin":
		return ingredients.RoundRobin{}, nil
	default:
		return nil, errors.Errorf("unknown action selection %q", s.ActionSelection)
	}
}

// BuildOutcomeSelection resolves the configured outcome-selection ingredient.
func (s Settings) BuildOutcomeSelection() (ingredients.OutcomeSelection, error) {
	switch s.OutcomeSelection {
	case "mc":
		return ingredients.MonteCarloOutcome{}, nil
	case "prefer-unvisited":
		return ingredients.PreferUnvisited{}, nil
	default:
		return nil, errors.Errorf("unknown outcome selection %q", s.OutcomeSelection)
	}
}

// BuildBackupFunction resolves the configured backup ingredient.
func (s Settings) BuildBackupFunction() (ingredients.BackupFunction, error) {
	switch s.BackupFunction {
	case "mc":
		return ingredients.MonteCarloBackup{}, nil
	case "max":
		return ingredients.MaxBackup{}, nil
	default:
		return nil, errors.Errorf("unknown backup function %q", s.BackupFunction)
	}
}

// BuildInitializer resolves the configured initializer ingredient.
func (s Settings) BuildInitializer() (ingredients.Initializer, error) {
	switch s.Initializer {
	case "zero":
		return ingredients.ZeroInitializer{}, nil
	case "optimistic":
		return ingredients.OptimisticInitializer{}, nil
	default:
		return nil, errors.Errorf("unknown initializer %q", s.Initializer)
	}
}

// BuildRecommendation resolves the configured recommendation ingredient.
func (s Settings) BuildRecommendation() (ingredients.RecommendationFunction, error) {
	switch s.Recommendation {
	case "expected":
		return ingredients.ExpectedBestArm{}, nil
	case "most-visited":
		return ingredients.MostVisited{}, nil
	default:
		return nil, errors.Errorf("unknown recommendation function %q", s.Recommendation)
	}
}

// NewRand returns a random source seeded with seed, of the kind
// NewDriver takes.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
