package services

import (
	"context"
	"testing"
	"time"

	"activity-reward-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedReceipt(t *testing.T, l *SessionLedger, address string, game models.Game, reward int64, at time.Time) *models.GameSession {
	t.Helper()
	r := &models.GameSession{Address: address, Game: game, RewardAmount: reward, Score: reward, Distance: 1, CreatedAt: at}
	require.NoError(t, l.Append(l.DB, r))
	return r
}

func TestLedgerAppendValidates(t *testing.T) {
	db := newTestDB(t)
	ledger := NewSessionLedger(db)

	assert.ErrorIs(t, ledger.Append(db, &models.GameSession{Game: models.GameRunner}), ErrValidation)
	assert.ErrorIs(t, ledger.Append(db, &models.GameSession{Address: player, RewardAmount: -1}), ErrValidation)

	r := seedReceipt(t, ledger, player, models.GameRunner, 10, testNow)
	assert.NotZero(t, r.ID)
	assert.Error(t, ledger.Append(db, r), "a persisted receipt cannot be appended twice")
}

func TestLedgerSumRewardSinceBucketsByDay(t *testing.T) {
	db := newTestDB(t)
	ledger := NewSessionLedger(db)
	dayStart := WindowDay.Since(testNow, time.UTC)

	seedReceipt(t, ledger, player, models.GameRunner, 100, dayStart.Add(-time.Second))
	seedReceipt(t, ledger, player, models.GameRunner, 40, dayStart)
	seedReceipt(t, ledger, player, models.GameRunner, 60, testNow)
	seedReceipt(t, ledger, player, models.GameSnake, 500, testNow)
	seedReceipt(t, ledger, "tg:1", models.GameRunner, 500, testNow)

	sum, err := ledger.SumRewardSince(db, player, models.GameRunner, dayStart)
	require.NoError(t, err)
	assert.Equal(t, int64(100), sum)
}

func TestLedgerAggregatesAndCursor(t *testing.T) {
	db := newTestDB(t)
	ledger := NewSessionLedger(db)
	ctx := context.Background()

	first := seedReceipt(t, ledger, player, models.GameFlappy, 20, testNow)
	seedReceipt(t, ledger, player, models.GameFlappy, 50, testNow.Add(time.Minute))
	seedReceipt(t, ledger, player, models.GameRunner, 200, testNow.Add(2*time.Minute))

	agg, err := ledger.GameAggregateSince(db, player, models.GameFlappy, WindowDay.Since(testNow, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, DayAggregate{Game: models.GameFlappy, Reward: 70, Distance: 2, BestScore: 50, Sessions: 2}, agg)

	all, err := ledger.AggregateSince(db, player, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	latest, err := ledger.LatestID(ctx, player)
	require.NoError(t, err)
	after, err := ledger.After(ctx, player, first.ID)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, latest, after[1].ID)

	none, err := ledger.LatestID(ctx, "tg:ghost")
	require.NoError(t, err)
	assert.Zero(t, none)
}
