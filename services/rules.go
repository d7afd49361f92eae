// services/rules.go
package services

import (
	"fmt"
	"os"

	"activity-reward-system/models"

	"gopkg.in/yaml.v2"
)

// Signal is the raw telemetry a game's base reward is computed from.
type Signal string

const (
	SignalScore    Signal = "score"
	SignalDistance Signal = "distance"
)

// GameRules are the static fairness parameters for one game.
type GameRules struct {
	MinDurationMs     int64   `yaml:"min_duration_ms" json:"minDurationMs"`
	PerRunCap         int64   `yaml:"per_run_cap" json:"perRunCap"`
	DailyCap          int64   `yaml:"daily_cap" json:"dailyCap"`
	PerMinuteCap      float64 `yaml:"per_minute_cap" json:"perMinuteCap"`
	RewardPerUnit     float64 `yaml:"reward_per_unit" json:"rewardPerUnit"`
	IdlePerMinute     float64 `yaml:"idle_per_minute" json:"idlePerMinute"` // distance games with no distance reported
	ScorePerMinuteCap float64 `yaml:"score_per_minute_cap" json:"scorePerMinuteCap"`
	MaxScore          int64   `yaml:"max_score" json:"maxScore"`       // 0 = unbounded
	MaxDistance       float64 `yaml:"max_distance" json:"maxDistance"` // per session; 0 = DefaultMaxDistance
	Signal            Signal  `yaml:"signal" json:"signal"`
}

// RulesTable maps every enumerated game to its rules. It is built once at
// startup and never mutated.
type RulesTable map[models.Game]GameRules

// DefaultRules is the built-in table. GameUnknown is the tightest entry and
// doubles as the fail-closed fallback.
func DefaultRules() RulesTable {
	return RulesTable{
		models.GameRunner: {
			MinDurationMs: 12000, PerRunCap: 260, DailyCap: 1600, PerMinuteCap: 220,
			RewardPerUnit: 110, IdlePerMinute: 20, MaxDistance: 60, Signal: SignalDistance,
		},
		models.GameSnake: {
			MinDurationMs: 15000, PerRunCap: 200, DailyCap: 1200, PerMinuteCap: 150,
			RewardPerUnit: 2, ScorePerMinuteCap: 120, Signal: SignalScore,
		},
		models.GameBlocks: {
			MinDurationMs: 20000, PerRunCap: 240, DailyCap: 1400, PerMinuteCap: 160,
			RewardPerUnit: 0.05, ScorePerMinuteCap: 6000, MaxScore: 200000, Signal: SignalScore,
		},
		models.GameFlappy: {
			MinDurationMs: 5000, PerRunCap: 120, DailyCap: 800, PerMinuteCap: 120,
			RewardPerUnit: 4, ScorePerMinuteCap: 60, Signal: SignalScore,
		},
		models.GameUnknown: {
			MinDurationMs: 30000, PerRunCap: 50, DailyCap: 300, PerMinuteCap: 30,
			RewardPerUnit: 1, ScorePerMinuteCap: 30, Signal: SignalScore,
		},
	}
}

// For returns the rules for g, falling back to the unknown entry (and, if
// even that is missing, to the built-in unknown entry).
func (t RulesTable) For(g models.Game) GameRules {
	if r, ok := t[g]; ok {
		return r
	}
	if r, ok := t[models.GameUnknown]; ok {
		return r
	}
	return DefaultRules()[models.GameUnknown]
}

func (r GameRules) validate() error {
	switch {
	case r.MinDurationMs < 0, r.PerRunCap < 0, r.DailyCap < 0, r.PerMinuteCap < 0,
		r.RewardPerUnit < 0, r.IdlePerMinute < 0, r.ScorePerMinuteCap < 0, r.MaxScore < 0, r.MaxDistance < 0:
		return fmt.Errorf("negative value")
	case r.PerRunCap > r.DailyCap:
		return fmt.Errorf("per_run_cap %d exceeds daily_cap %d", r.PerRunCap, r.DailyCap)
	case r.Signal != SignalScore && r.Signal != SignalDistance:
		return fmt.Errorf("unknown signal %q", r.Signal)
	}
	return nil
}

// LoadRules returns DefaultRules with the entries from a YAML file merged
// over it. An empty path yields the defaults.
//
//	runner:
//	  min_duration_ms: 12000
//	  per_run_cap: 260
//	  ...
func LoadRules(path string) (RulesTable, error) {
	table := DefaultRules()
	if path == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var overrides map[string]GameRules
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	for name, rules := range overrides {
		game, ok := models.LookupGame(name)
		if !ok {
			return nil, fmt.Errorf("rules file: unknown game %q", name)
		}
		if rules.Signal == "" {
			rules.Signal = table.For(game).Signal
		}
		if err := rules.validate(); err != nil {
			return nil, fmt.Errorf("rules file: game %s: %w", game, err)
		}
		table[game] = rules
	}
	return table, nil
}
