package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// GameSession is an immutable receipt for one accepted play session.
// RewardAmount is always the post-cap value.
type GameSession struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Address      string    `json:"address" gorm:"type:varchar(128);not null;index:idx_sessions_address_created,priority:1;uniqueIndex:ux_sessions_address_client_ref,priority:1"`
	Game         Game      `json:"game" gorm:"type:varchar(32);not null;default:'unknown';index:idx_sessions_game_created,priority:1"`
	RewardAmount int64     `json:"reward_amount" gorm:"not null;default:0"`
	Distance     float64   `json:"distance" gorm:"not null;default:0"`
	BestDuration float64   `json:"best_duration" gorm:"not null;default:0"`
	Score        int64     `json:"score" gorm:"not null;default:0"`
	Streak       int64     `json:"streak" gorm:"not null;default:0"`
	DurationMs   int64     `json:"duration_ms" gorm:"not null;default:0"`
	Reason       Reason    `json:"reason" gorm:"type:varchar(32);not null;default:'ok'"`
	ClientRef    *string   `json:"client_ref,omitempty" gorm:"type:varchar(128);uniqueIndex:ux_sessions_address_client_ref,priority:2"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null;index:idx_sessions_address_created,priority:2;index:idx_sessions_game_created,priority:2"`
}

func (GameSession) TableName() string { return "sessions" }

// Reason is the machine-readable outcome of a reward computation.
type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonTooShort     Reason = "too_short"
	ReasonScoreTooHigh Reason = "score_too_high"
)

// Rejected reports a fairness rejection. Cap exhaustion is not a rejection.
func (r Reason) Rejected() bool {
	return r == ReasonTooShort || r == ReasonScoreTooHigh
}

// BeforeUpdate keeps receipts immutable. Bulk administrative resets delete
// rows instead of updating them.
func (s *GameSession) BeforeUpdate(tx *gorm.DB) error {
	return ErrReceiptImmutable
}

var ErrReceiptImmutable = errors.New("session receipts are immutable")
