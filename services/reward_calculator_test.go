package services

import (
	"math"
	"testing"

	"activity-reward-system/models"

	"github.com/stretchr/testify/assert"
)

func TestComputeReward(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name       string
		game       models.Game
		score      float64
		distance   float64
		durationMs float64
		want       RewardResult
	}{
		{"runner below minimum duration", models.GameRunner, 0, 50, 10000, RewardResult{0, models.ReasonTooShort}},
		{"runner one minute two km", models.GameRunner, 0, 2.0, 60000, RewardResult{220, models.ReasonOK}},
		{"runner long grind hits per-run cap", models.GameRunner, 0, 20, 600000, RewardResult{260, models.ReasonOK}},
		{"runner without distance earns idle rate", models.GameRunner, 0, 0, 60000, RewardResult{20, models.ReasonOK}},
		{"runner ignores score rate", models.GameRunner, 1e9, 1, 60000, RewardResult{110, models.ReasonOK}},
		{"snake capped by per-minute ceiling", models.GameSnake, 100, 0, 60000, RewardResult{150, models.ReasonOK}},
		{"snake score rate too high", models.GameSnake, 200, 0, 60000, RewardResult{0, models.ReasonScoreTooHigh}},
		{"snake sub-minute uses raw score as rate", models.GameSnake, 50, 0, 15000, RewardResult{37, models.ReasonOK}},
		{"snake sub-minute raw score above rate cap", models.GameSnake, 121, 0, 20000, RewardResult{0, models.ReasonScoreTooHigh}},
		{"blocks above max score", models.GameBlocks, 250000, 0, 3600000, RewardResult{0, models.ReasonScoreTooHigh}},
		{"blocks ordinary run", models.GameBlocks, 2000, 0, 60000, RewardResult{100, models.ReasonOK}},
		{"flappy half minute rounds to one", models.GameFlappy, 30, 0, 30000, RewardResult{60, models.ReasonOK}},
		{"unknown game long run", models.GameUnknown, 40, 0, 120000, RewardResult{40, models.ReasonOK}},
		{"duration floored before minimum check", models.GameRunner, 0, 1, 11999.9, RewardResult{0, models.ReasonTooShort}},
		{"negative duration is too short", models.GameFlappy, 10, 0, -60000, RewardResult{0, models.ReasonTooShort}},
		{"non-finite inputs clamp to zero", models.GameRunner, math.NaN(), math.Inf(1), 60000, RewardResult{20, models.ReasonOK}},
		{"negative score clamps to zero", models.GameSnake, -500, 0, 60000, RewardResult{0, models.ReasonOK}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeReward(rules.For(tt.game), tt.score, tt.distance, tt.durationMs)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeRewardNeverExceedsRunCeilings(t *testing.T) {
	rules := DefaultRules()
	for _, game := range models.AllGames {
		r := rules.For(game)
		for _, durationMs := range []float64{1000, 5000, 12000, 30000, 61000, 300000, 3600000} {
			for _, signal := range []float64{0, 1, 10, 100, 1000, 100000} {
				got := ComputeReward(r, signal, signal, durationMs)
				limit := math.Min(float64(r.PerRunCap), durationMs/60000*r.PerMinuteCap)
				assert.LessOrEqual(t, float64(got.Amount), limit, "game=%s duration=%v signal=%v", game, durationMs, signal)
				assert.GreaterOrEqual(t, got.Amount, int64(0))
				if durationMs < float64(r.MinDurationMs) {
					assert.Equal(t, models.ReasonTooShort, got.Reason)
					assert.Zero(t, got.Amount)
				}
			}
		}
	}
}

func TestRulesForFailsClosed(t *testing.T) {
	unknown := DefaultRules()[models.GameUnknown]

	assert.Equal(t, unknown, RulesTable{}.For(models.GameRunner))
	assert.Equal(t, unknown, DefaultRules().For(models.Game("pinball")))

	partial := RulesTable{models.GameUnknown: {MinDurationMs: 1, PerRunCap: 1, DailyCap: 1, Signal: SignalScore}}
	assert.Equal(t, int64(1), partial.For(models.GameSnake).DailyCap)
}
