package models

import "time"

// DailyCapCounter is the row-lock anchor for one (address, game, day).
// Receipt-backed credits are always summed from sessions; this row only
// records credits that have no receipt (legacy submissions whose receipt
// could not be written).
type DailyCapCounter struct {
	Address             string    `gorm:"primaryKey;type:varchar(128)"`
	Game                Game      `gorm:"primaryKey;type:varchar(32)"`
	Day                 string    `gorm:"primaryKey;type:varchar(10)"` // YYYY-MM-DD in the reward time zone
	ReceiptlessCredited int64     `gorm:"not null;default:0"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

func (DailyCapCounter) TableName() string { return "daily_cap_counters" }
