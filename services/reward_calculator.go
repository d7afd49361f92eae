package services

import (
	"math"

	"activity-reward-system/models"
)

// RewardResult is the provisional (pre daily cap) outcome for one session.
type RewardResult struct {
	Amount int64         `json:"amount"`
	Reason models.Reason `json:"reason"`
}

// ComputeReward maps a raw session claim to a provisional reward. It is pure.
func ComputeReward(rules GameRules, rawScore, rawDistance, rawDurationMs float64) RewardResult {
	score := nonNegative(rawScore)
	distance := nonNegative(rawDistance)
	durationMs := math.Floor(nonNegative(rawDurationMs))

	if durationMs < float64(rules.MinDurationMs) {
		return RewardResult{Amount: 0, Reason: models.ReasonTooShort}
	}

	minutes := durationMs / 60000

	if rules.Signal != SignalDistance {
		rate := score
		if math.Round(minutes) > 0 {
			rate = score / minutes
		}
		if rules.ScorePerMinuteCap > 0 && rate > rules.ScorePerMinuteCap {
			return RewardResult{Amount: 0, Reason: models.ReasonScoreTooHigh}
		}
		if rules.MaxScore > 0 && score > float64(rules.MaxScore) {
			return RewardResult{Amount: 0, Reason: models.ReasonScoreTooHigh}
		}
	}

	var base float64
	switch {
	case rules.Signal == SignalDistance && distance > 0:
		base = distance * rules.RewardPerUnit
	case rules.Signal == SignalDistance:
		base = minutes * rules.IdlePerMinute
	default:
		base = score * rules.RewardPerUnit
	}

	limit := math.Min(minutes*rules.PerMinuteCap, float64(rules.PerRunCap))
	amount := math.Floor(math.Min(base, limit))
	if amount < 0 || math.IsNaN(amount) {
		amount = 0
	}
	return RewardResult{Amount: int64(amount), Reason: models.ReasonOK}
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
