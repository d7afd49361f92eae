package services

import (
	"context"
	"testing"

	"activity-reward-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminResetClearsLedgerAndKeepsNames(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock(testNow)
	svc := newTestActivityService(t, db, clock)
	ctx := context.Background()

	_, err := svc.Submit(ctx, player, runnerClaim(60000, 2))
	require.NoError(t, err)
	_, err = svc.AddLegacy(ctx, "tg:9", LegacyPayload{AddReward: 30})
	require.NoError(t, err)
	_, err = NewUserService(db).SetDisplayName(ctx, player, "Runner One")
	require.NoError(t, err)

	summary, err := NewAdminService(db).Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.SessionsDeleted, "unstructured legacy adds write no receipt")
	assert.Equal(t, int64(2), summary.CountersDeleted)
	assert.Equal(t, int64(2), summary.UsersReset)

	assert.Zero(t, countSessions(t, db, player))
	var u models.User
	require.NoError(t, db.Where("address = ?", player).Take(&u).Error)
	assert.Zero(t, u.RewardTotal)
	assert.Zero(t, u.DistanceTotal)
	assert.Zero(t, u.BestDuration)
	require.NotNil(t, u.DisplayName)
	assert.Equal(t, "Runner One", *u.DisplayName)

	// caps start over after a reset
	res, err := svc.Submit(ctx, player, runnerClaim(60000, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(1380), res.RemainingAfter)
}
