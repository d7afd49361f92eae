package models

import (
	"time"
)

// User is the lifetime rollup for one address. Address is a wallet public key
// or a synthetic "tg:<id>" identity; both come from the gateway already verified.
type User struct {
	Address       string    `json:"address" gorm:"primaryKey;type:varchar(128);index:idx_users_address_created,priority:1"`
	DisplayName   *string   `json:"display_name,omitempty" gorm:"uniqueIndex;type:varchar(64)"`
	NameKey       *string   `json:"-" gorm:"uniqueIndex;type:varchar(64)"` // slug of DisplayName
	RewardTotal   int64     `json:"reward_total" gorm:"not null;default:0"`
	DistanceTotal float64   `json:"distance_total" gorm:"not null;default:0"`
	BestDuration  float64   `json:"best_duration" gorm:"not null;default:0"` // seconds, monotonic max
	CreatedAt     time.Time `json:"created_at" gorm:"index:idx_users_address_created,priority:2"`
	UpdatedAt     time.Time `json:"updated_at"`

	Sessions []GameSession `json:"-" gorm:"foreignKey:Address;references:Address;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string { return "users" }

// LifetimeTotals is the public view of a rollup row.
type LifetimeTotals struct {
	RewardTotal   int64   `json:"rewardTotal"`
	DistanceTotal float64 `json:"distanceTotal"`
	BestDuration  float64 `json:"bestDuration"`
}

func (u *User) Totals() LifetimeTotals {
	return LifetimeTotals{
		RewardTotal:   u.RewardTotal,
		DistanceTotal: u.DistanceTotal,
		BestDuration:  u.BestDuration,
	}
}
