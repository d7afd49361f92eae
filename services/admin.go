package services

import (
	"context"
	"fmt"

	"activity-reward-system/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AdminService struct {
	DB *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{DB: db}
}

type ResetSummary struct {
	SessionsDeleted int64 `json:"sessionsDeleted"`
	CountersDeleted int64 `json:"countersDeleted"`
	UsersReset      int64 `json:"usersReset"`
}

// Reset zeroes every rollup and empties the ledger and cap counters in one
// transaction. Display names are kept.
func (s *AdminService) Reset(ctx context.Context) (*ResetSummary, error) {
	var summary ResetSummary
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.GameSession{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete sessions: %w", res.Error)
		}
		summary.SessionsDeleted = res.RowsAffected

		res = tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.DailyCapCounter{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete cap counters: %w", res.Error)
		}
		summary.CountersDeleted = res.RowsAffected

		res = tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Model(&models.User{}).
			UpdateColumns(map[string]interface{}{
				"reward_total":   0,
				"distance_total": 0,
				"best_duration":  0,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to reset rollups: %w", res.Error)
		}
		summary.UsersReset = res.RowsAffected
		return nil
	})
	if err != nil {
		zap.L().Error("[ADMIN] reset failed", zap.Error(err))
		return nil, err
	}
	zap.L().Warn("[ADMIN] ledger and rollups reset",
		zap.Int64("sessions", summary.SessionsDeleted),
		zap.Int64("counters", summary.CountersDeleted),
		zap.Int64("users", summary.UsersReset),
	)
	return &summary, nil
}
