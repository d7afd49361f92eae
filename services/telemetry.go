package services

import "math"

// Per-session ceilings on stored telemetry. They keep ledger aggregates and
// lifetime rollups finite and inside BIGINT no matter what a client reports.
const (
	MaxSessionScore      = math.MaxInt32
	MaxSessionStreak     = math.MaxInt32
	MaxSessionDurationMs = 6 * 60 * 60 * 1000
	// DefaultMaxDistance applies when a game's rules set no max_distance.
	DefaultMaxDistance = 100.0
)

// SessionTelemetry is the bounded form of a claim, as written to a receipt.
type SessionTelemetry struct {
	Score        int64
	Streak       int64
	Distance     float64
	BestDuration float64 // seconds
	DurationMs   int64
}

// BoundTelemetry floors counters to whole units and clamps every value to
// [0, ceiling]. Best duration can never exceed the session ceiling.
func BoundTelemetry(rules GameRules, score, streak, distance, bestDurationSeconds, durationMs float64) SessionTelemetry {
	maxDistance := rules.MaxDistance
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return SessionTelemetry{
		Score:        clampUnits(score, MaxSessionScore),
		Streak:       clampUnits(streak, MaxSessionStreak),
		Distance:     math.Min(nonNegative(distance), maxDistance),
		BestDuration: math.Min(nonNegative(bestDurationSeconds), MaxSessionDurationMs/1000),
		DurationMs:   clampUnits(durationMs, MaxSessionDurationMs),
	}
}

func clampUnits(v float64, ceiling int64) int64 {
	v = math.Floor(nonNegative(v))
	if v > float64(ceiling) {
		return ceiling
	}
	return int64(v)
}
