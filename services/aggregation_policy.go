package services

import (
	"fmt"
	"strings"

	"activity-reward-system/models"
)

// Metric is a leaderboard ranking metric.
type Metric string

const (
	MetricReward   Metric = "reward"
	MetricScore    Metric = "score"
	MetricDistance Metric = "distance"
	MetricDuration Metric = "duration"
	MetricStreak   Metric = "streak"
)

var AllMetrics = []Metric{MetricReward, MetricScore, MetricDistance, MetricDuration, MetricStreak}

var metricAliases = map[string]Metric{
	"reward":   MetricReward,
	"rewards":  MetricReward,
	"calories": MetricReward,
	"score":    MetricScore,
	"distance": MetricDistance,
	"duration": MetricDuration,
	"time":     MetricDuration,
	"streak":   MetricStreak,
}

// ParseMetric normalizes a metric name. Empty means reward.
func ParseMetric(raw string) (Metric, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return MetricReward, nil
	}
	if m, ok := metricAliases[raw]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown metric %q", ErrValidation, raw)
}

type Aggregation string

const (
	AggSum Aggregation = "SUM"
	AggMax Aggregation = "MAX"
)

// Column is a ledger column reported on a leaderboard row.
type Column string

const (
	ColReward   Column = "reward_amount"
	ColScore    Column = "score"
	ColDistance Column = "distance"
	ColDuration Column = "duration_ms"
	ColStreak   Column = "streak"
)

var reportedColumns = []Column{ColReward, ColScore, ColDistance, ColDuration, ColStreak}

// metricColumn is the column a board ranks by.
var metricColumn = map[Metric]Column{
	MetricReward:   ColReward,
	MetricScore:    ColScore,
	MetricDistance: ColDistance,
	MetricDuration: ColDuration,
	MetricStreak:   ColStreak,
}

// boardPolicy: board metric -> column -> aggregation. Summing boards report
// secondary columns as grind totals; best-of boards report bests.
var boardPolicy = map[Metric]map[Column]Aggregation{
	MetricReward: {
		ColReward: AggSum, ColScore: AggSum, ColDistance: AggSum, ColDuration: AggSum, ColStreak: AggMax,
	},
	MetricDistance: {
		ColReward: AggSum, ColScore: AggSum, ColDistance: AggSum, ColDuration: AggSum, ColStreak: AggMax,
	},
	MetricDuration: {
		ColReward: AggSum, ColScore: AggSum, ColDistance: AggSum, ColDuration: AggSum, ColStreak: AggMax,
	},
	MetricScore: {
		ColReward: AggSum, ColScore: AggMax, ColDistance: AggSum, ColDuration: AggSum, ColStreak: AggMax,
	},
	MetricStreak: {
		ColReward: AggSum, ColScore: AggMax, ColDistance: AggSum, ColDuration: AggSum, ColStreak: AggMax,
	},
}

// gameOverrides win over boardPolicy for a filtered game. Score in these
// games is a high score, never a total.
var gameOverrides = map[models.Game]map[Column]Aggregation{
	models.GameFlappy: {ColScore: AggMax},
	models.GameBlocks: {ColScore: AggMax},
}

// AggregationFor is total over (metric, column, game). A nil game means the
// board spans all games and no override applies.
func AggregationFor(metric Metric, col Column, game *models.Game) Aggregation {
	if game != nil {
		if agg, ok := gameOverrides[*game][col]; ok {
			return agg
		}
	}
	if agg, ok := boardPolicy[metric][col]; ok {
		return agg
	}
	return AggSum
}

// MetricColumn returns the ranking column for m.
func MetricColumn(m Metric) Column {
	if col, ok := metricColumn[m]; ok {
		return col
	}
	return ColReward
}
