package service

import (
	"context"
	"testing"
	"time"

	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLeaderboardRanksAndAwards(t *testing.T) {
	db := testutil.NewDB(t)
	userRepo := repository.NewUserRepository(db)
	badges := NewBadgeService(userRepo, repository.NewCommunityRepository(db), nil, 5)
	svc := NewLeaderboardService(userRepo, badges, nil, 10, 0)
	ctx := context.Background()

	testutil.SeedUser(t, db, "carol", 100)
	testutil.SeedUser(t, db, "alice", 300)
	testutil.SeedUser(t, db, "dave", 50)
	testutil.SeedUser(t, db, "bob", 200)

	entries, err := svc.GetLeaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, want := range []string{"alice", "bob", "carol", "dave"} {
		assert.Equal(t, want, entries[i].Username)
		assert.Equal(t, i+1, entries[i].Rank)
	}
	assert.Equal(t, 300, entries[0].Points)

	assert.Equal(t, []string{"1st Place"}, badgeNames(badges.GetUserBadges(ctx, "alice")))
	assert.Equal(t, []string{"2nd Place"}, badgeNames(badges.GetUserBadges(ctx, "bob")))
	assert.Equal(t, []string{"3rd Place"}, badgeNames(badges.GetUserBadges(ctx, "carol")))
	assert.Empty(t, badges.GetUserBadges(ctx, "dave"))

	entries, err = svc.GetLeaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestGetLeaderboardClampsLimit(t *testing.T) {
	svc := &LeaderboardService{DefaultLimit: 10}

	assert.Equal(t, 10, svc.clampLimit(0))
	assert.Equal(t, 10, svc.clampLimit(-5))
	assert.Equal(t, 7, svc.clampLimit(7))
	assert.Equal(t, 100, svc.clampLimit(1000))
}

func TestGetLeaderboardServesCachedSnapshot(t *testing.T) {
	db := testutil.NewDB(t)
	rdb, mr := testutil.NewRedis(t)
	userRepo := repository.NewUserRepository(db)
	svc := NewLeaderboardService(userRepo, nil, rdb, 10, 30*time.Second)
	ctx := context.Background()

	testutil.SeedUser(t, db, "alice", 300)
	bob := testutil.SeedUser(t, db, "bob", 200)

	entries, err := svc.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, "alice", entries[0].Username)

	require.NoError(t, db.Model(&model.User{}).Where("id = ?", bob.ID).Update("points", 999).Error)

	entries, err = svc.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "alice", entries[0].Username)

	mr.FastForward(31 * time.Second)
	entries, err = svc.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "bob", entries[0].Username)
	assert.Equal(t, 999, entries[0].Points)
}
