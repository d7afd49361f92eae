package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"activity-reward-system/models"

	"gorm.io/gorm"
)

// SessionLedger is the append-only receipt store.
type SessionLedger struct {
	DB *gorm.DB
}

func NewSessionLedger(db *gorm.DB) *SessionLedger {
	return &SessionLedger{DB: db}
}

// Append writes one receipt through tx. CreatedAt must already be set by the
// caller's clock; it is what the receipt is bucketed by.
func (l *SessionLedger) Append(tx *gorm.DB, receipt *models.GameSession) error {
	if receipt.ID != 0 {
		return fmt.Errorf("receipt already persisted (id=%d)", receipt.ID)
	}
	if receipt.Address == "" {
		return fmt.Errorf("%w: receipt without address", ErrValidation)
	}
	if receipt.RewardAmount < 0 {
		return fmt.Errorf("%w: negative reward on receipt", ErrValidation)
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}
	if err := tx.Create(receipt).Error; err != nil {
		return fmt.Errorf("failed to append session receipt: %w", err)
	}
	return nil
}

// SumRewardSince is the receipt-backed part of the daily cap state.
func (l *SessionLedger) SumRewardSince(tx *gorm.DB, address string, game models.Game, since time.Time) (int64, error) {
	var total int64
	err := tx.Model(&models.GameSession{}).
		Where("address = ? AND game = ? AND created_at >= ?", address, game, since).
		Select("COALESCE(SUM(reward_amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum today's rewards: %w", err)
	}
	return total, nil
}

// FindByClientRef returns nil, nil when no receipt carries ref.
func (l *SessionLedger) FindByClientRef(tx *gorm.DB, address, ref string) (*models.GameSession, error) {
	var receipt models.GameSession
	err := tx.Where("address = ? AND client_ref = ?", address, ref).Take(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// DayAggregate is what the user has on the ledger for one game since the
// start of the current day.
type DayAggregate struct {
	Game      models.Game `json:"game"`
	Reward    int64       `json:"reward"`
	Distance  float64     `json:"distance"`
	BestScore int64       `json:"score"`
	Sessions  int64       `json:"sessions"`
}

func (l *SessionLedger) AggregateSince(tx *gorm.DB, address string, since time.Time) ([]DayAggregate, error) {
	var rows []DayAggregate
	err := tx.Model(&models.GameSession{}).
		Select("game, COALESCE(SUM(reward_amount), 0) AS reward, COALESCE(SUM(distance), 0) AS distance, COALESCE(MAX(score), 0) AS best_score, COUNT(*) AS sessions").
		Where("address = ? AND created_at >= ?", address, since).
		Group("game").
		Scan(&rows).Error
	return rows, err
}

func (l *SessionLedger) GameAggregateSince(tx *gorm.DB, address string, game models.Game, since time.Time) (DayAggregate, error) {
	agg := DayAggregate{Game: game}
	err := tx.Model(&models.GameSession{}).
		Select("COALESCE(SUM(reward_amount), 0) AS reward, COALESCE(SUM(distance), 0) AS distance, COALESCE(MAX(score), 0) AS best_score, COUNT(*) AS sessions").
		Where("address = ? AND game = ? AND created_at >= ?", address, game, since).
		Scan(&agg).Error
	agg.Game = game
	return agg, err
}

// Recent returns the newest receipts first.
func (l *SessionLedger) Recent(ctx context.Context, address string, limit int) ([]models.GameSession, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var receipts []models.GameSession
	err := l.DB.WithContext(ctx).
		Where("address = ?", address).
		Order("id DESC").
		Limit(limit).
		Find(&receipts).Error
	return receipts, err
}

// After returns receipts with id > afterID in ledger order.
func (l *SessionLedger) After(ctx context.Context, address string, afterID uint64) ([]models.GameSession, error) {
	var receipts []models.GameSession
	err := l.DB.WithContext(ctx).
		Where("address = ? AND id > ?", address, afterID).
		Order("id ASC").
		Find(&receipts).Error
	return receipts, err
}

func (l *SessionLedger) LatestID(ctx context.Context, address string) (uint64, error) {
	var id uint64
	err := l.DB.WithContext(ctx).Model(&models.GameSession{}).
		Where("address = ?", address).
		Select("COALESCE(MAX(id), 0)").
		Scan(&id).Error
	return id, err
}
