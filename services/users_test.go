package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDisplayName(t *testing.T) {
	name, key, err := NormalizeDisplayName("  José   Runner ")
	require.NoError(t, err)
	assert.Equal(t, "José Runner", name, "NFC and collapsed spaces")
	assert.Equal(t, "jose-runner", key)

	for _, bad := range []string{"ab", "   ", "this name is far too long to be accepted here", "!!!", "bad\x07bell"} {
		_, _, err := NormalizeDisplayName(bad)
		assert.ErrorIs(t, err, ErrInvalidName, "%q", bad)
	}
}

func TestSetDisplayNameUniqueBySlug(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)
	ctx := context.Background()

	u, err := users.SetDisplayName(ctx, player, "Speed Demon")
	require.NoError(t, err)
	require.NotNil(t, u.DisplayName)
	assert.Equal(t, "Speed Demon", *u.DisplayName)

	_, err = users.SetDisplayName(ctx, "tg:2", "speed-demon")
	assert.ErrorIs(t, err, ErrNameTaken)

	// renaming yourself to the same key is fine
	u, err = users.SetDisplayName(ctx, player, "SPEED DEMON")
	require.NoError(t, err)
	assert.Equal(t, "SPEED DEMON", *u.DisplayName)

	found, err := users.SearchUsers(ctx, "demon", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, player, found[0].Address)
}

func TestSetDisplayNameKeepsRollup(t *testing.T) {
	db := newTestDB(t)
	_, err := NewRollupAggregator(db).Apply(db, player, 120, 3, 40, testNow)
	require.NoError(t, err)

	users := NewUserService(db)
	_, err = users.SetDisplayName(context.Background(), player, "Ana")
	require.NoError(t, err)

	u, err := users.GetUser(context.Background(), player)
	require.NoError(t, err)
	assert.Equal(t, int64(120), u.RewardTotal)
	assert.Equal(t, "Ana", *u.DisplayName)

	_, err = users.GetUser(context.Background(), "tg:none")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
