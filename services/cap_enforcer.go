package services

import (
	"fmt"
	"time"

	"activity-reward-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CapEnforcer owns the per-(address, game, day) ceiling. Every credit that
// counts against a daily cap goes through Reserve inside the caller's
// transaction, so concurrent submissions for the same pair serialize on the
// counter row lock and always see each other's receipts.
type CapEnforcer struct {
	Rules  RulesTable
	Loc    *time.Location
	Ledger *SessionLedger
}

func NewCapEnforcer(rules RulesTable, loc *time.Location, ledger *SessionLedger) *CapEnforcer {
	if loc == nil {
		loc = time.UTC
	}
	return &CapEnforcer{Rules: rules, Loc: loc, Ledger: ledger}
}

// CapReservation is the outcome of one reservation.
type CapReservation struct {
	Day            string `json:"day"`
	Provisional    int64  `json:"provisional"`
	Amount         int64  `json:"amount"`
	DailyCap       int64  `json:"dailyCap"`
	TodayBefore    int64  `json:"todayBefore"`
	RemainingAfter int64  `json:"remainingAfter"`
}

// Clamped reports that the daily cap reduced the provisional amount.
func (r CapReservation) Clamped() bool { return r.Amount < r.Provisional }

// Lock creates the counter row if needed and takes a row lock on it for the
// rest of tx. Locking twice in the same transaction is harmless.
func (c *CapEnforcer) Lock(tx *gorm.DB, address string, game models.Game, now time.Time) (*models.DailyCapCounter, error) {
	counter := models.DailyCapCounter{Address: address, Game: game, Day: DayKey(now, c.Loc)}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
		return nil, fmt.Errorf("failed to create cap counter: %w", err)
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ? AND game = ? AND day = ?", counter.Address, counter.Game, counter.Day).
		Take(&counter).Error; err != nil {
		return nil, fmt.Errorf("failed to lock cap counter: %w", err)
	}
	return &counter, nil
}

// todayTotal reads the authoritative credited amount. The caller holds the lock.
func (c *CapEnforcer) todayTotal(tx *gorm.DB, counter *models.DailyCapCounter, now time.Time) (int64, error) {
	since := WindowDay.Since(now, c.Loc)
	sum, err := c.Ledger.SumRewardSince(tx, counter.Address, counter.Game, since)
	if err != nil {
		return 0, err
	}
	return sum + counter.ReceiptlessCredited, nil
}

// Reserve clamps provisional to the remaining headroom:
// max(0, min(provisional, dailyCap - todayTotal)). The returned amount is
// final only if the caller records it (receipt or RecordReceiptless) before
// committing tx.
func (c *CapEnforcer) Reserve(tx *gorm.DB, address string, game models.Game, provisional int64, now time.Time) (CapReservation, error) {
	counter, err := c.Lock(tx, address, game, now)
	if err != nil {
		return CapReservation{}, err
	}
	total, err := c.todayTotal(tx, counter, now)
	if err != nil {
		return CapReservation{}, err
	}

	dailyCap := c.Rules.For(game).DailyCap
	remaining := dailyCap - total
	if remaining < 0 {
		remaining = 0
	}
	if provisional < 0 {
		provisional = 0
	}
	amount := provisional
	if amount > remaining {
		amount = remaining
	}

	return CapReservation{
		Day:            counter.Day,
		Provisional:    provisional,
		Amount:         amount,
		DailyCap:       dailyCap,
		TodayBefore:    total,
		RemainingAfter: remaining - amount,
	}, nil
}

// RecordReceiptless books a reserved amount that has no ledger receipt.
func (c *CapEnforcer) RecordReceiptless(tx *gorm.DB, address string, game models.Game, now time.Time, amount int64) error {
	if amount <= 0 {
		return nil
	}
	return tx.Model(&models.DailyCapCounter{}).
		Where("address = ? AND game = ? AND day = ?", address, game, DayKey(now, c.Loc)).
		UpdateColumn("receiptless_credited", gorm.Expr("receiptless_credited + ?", amount)).Error
}

// Headroom is an unlocked read for display purposes only.
func (c *CapEnforcer) Headroom(db *gorm.DB, address string, game models.Game, now time.Time) (used, remaining int64, err error) {
	var stored []models.DailyCapCounter
	if err := db.Where("address = ? AND game = ? AND day = ?", address, game, DayKey(now, c.Loc)).
		Limit(1).Find(&stored).Error; err != nil {
		return 0, 0, err
	}
	counter := models.DailyCapCounter{Address: address, Game: game}
	if len(stored) > 0 {
		counter = stored[0]
	}
	used, err = c.todayTotal(db, &counter, now)
	if err != nil {
		return 0, 0, err
	}
	remaining = c.Rules.For(game).DailyCap - used
	if remaining < 0 {
		remaining = 0
	}
	return used, remaining, nil
}
