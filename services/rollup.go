package services

import (
	"fmt"
	"time"

	"activity-reward-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RollupAggregator folds accepted sessions into the users table. All writes
// are single-statement upserts, so concurrent applies for one address never
// lose updates.
type RollupAggregator struct {
	DB *gorm.DB
}

func NewRollupAggregator(db *gorm.DB) *RollupAggregator {
	return &RollupAggregator{DB: db}
}

// Ensure creates the user row on first sight (idempotent).
func (r *RollupAggregator) Ensure(tx *gorm.DB, address string, now time.Time) (*models.User, error) {
	user := models.User{Address: address, CreatedAt: now, UpdatedAt: now}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return r.load(tx, address)
}

// Apply adds rewardDelta and distanceDelta and raises BestDuration to
// durationCandidate if it is larger. Deltas are clamped to >= 0.
func (r *RollupAggregator) Apply(tx *gorm.DB, address string, rewardDelta int64, distanceDelta, durationCandidate float64, now time.Time) (*models.User, error) {
	if rewardDelta < 0 {
		rewardDelta = 0
	}
	distanceDelta = nonNegative(distanceDelta)
	durationCandidate = nonNegative(durationCandidate)

	user := models.User{
		Address:       address,
		RewardTotal:   rewardDelta,
		DistanceTotal: distanceDelta,
		BestDuration:  durationCandidate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"reward_total":   gorm.Expr("users.reward_total + ?", rewardDelta),
			"distance_total": gorm.Expr("users.distance_total + ?", distanceDelta),
			"best_duration":  gorm.Expr("CASE WHEN users.best_duration < ? THEN ? ELSE users.best_duration END", durationCandidate, durationCandidate),
			"updated_at":     now,
		}),
	}).Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to apply rollup: %w", err)
	}
	return r.load(tx, address)
}

func (r *RollupAggregator) load(tx *gorm.DB, address string) (*models.User, error) {
	var user models.User
	if err := tx.Where("address = ?", address).Take(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to load user rollup: %w", err)
	}
	return &user, nil
}
