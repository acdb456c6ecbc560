package service

import (
	"context"
	"testing"
	"time"

	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/testutil"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newVisitService(t *testing.T, rdb *redis.Client) (*VisitStreakService, *gorm.DB, *fakeClock) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewVisitStreakService(repository.NewCommunityRepository(db), rdb)
	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	return svc, db, clock
}

func TestDaysBetweenUsesCalendarDates(t *testing.T) {
	cst := time.FixedZone("CST", 8*3600)
	late := time.Date(2024, 3, 1, 23, 30, 0, 0, cst)
	early := time.Date(2024, 3, 2, 0, 10, 0, 0, cst)

	assert.Equal(t, 1, daysBetween(late, early))
	assert.Equal(t, 0, daysBetween(early, late))
	assert.Equal(t, 0, daysBetween(late, late.Add(20*time.Minute)))
	assert.Equal(t, 31, daysBetween(late, late.AddDate(0, 1, 0)))
}

func TestRecordVisitTransitions(t *testing.T) {
	svc, db, clock := newVisitService(t, nil)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0)
	community := testutil.SeedCommunity(t, db, "Gophers", "alice")

	day := func(d, hour int) time.Time { return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC) }
	steps := []struct {
		at               time.Time
		transition       VisitTransition
		current, longest int
	}{
		{day(1, 10), VisitFirst, 1, 1},
		{day(1, 23), VisitSameDay, 1, 1},
		{day(2, 0), VisitContinued, 2, 2},
		{day(3, 18), VisitContinued, 3, 3},
		{day(6, 9), VisitBroken, 1, 3},
		{day(7, 9), VisitContinued, 2, 3},
	}

	for _, step := range steps {
		clock.t = step.at
		transition, err := svc.recordVisit(ctx, community.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, step.transition, transition, "visit at %s", step.at)

		streak, err := svc.GetStreak(ctx, community.ID, "alice")
		require.NoError(t, err)
		require.NotNil(t, streak)
		assert.Equal(t, step.current, streak.CurrentStreak, "current at %s", step.at)
		assert.Equal(t, step.longest, streak.LongestStreak, "longest at %s", step.at)
	}
}

func TestRecordVisitSameDayDoesNotWrite(t *testing.T) {
	svc, db, clock := newVisitService(t, nil)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0)
	community := testutil.SeedCommunity(t, db, "Gophers", "alice")

	svc.RecordVisit(ctx, community.ID, "alice")
	before, err := svc.GetStreak(ctx, community.ID, "alice")
	require.NoError(t, err)

	clock.t = clock.t.Add(5 * time.Hour)
	svc.RecordVisit(ctx, community.ID, "alice")

	after, err := svc.GetStreak(ctx, community.ID, "alice")
	require.NoError(t, err)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
	assert.Equal(t, 1, after.CurrentStreak)
}

func TestRecordVisitClockSkewCountsAsSameDay(t *testing.T) {
	svc, db, clock := newVisitService(t, nil)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0)
	community := testutil.SeedCommunity(t, db, "Gophers", "alice")

	svc.RecordVisit(ctx, community.ID, "alice")
	clock.t = clock.t.AddDate(0, 0, -2)

	transition, err := svc.recordVisit(ctx, community.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, VisitSameDay, transition)
}

func TestRecordVisitMissingCommunityIsSilent(t *testing.T) {
	svc, db, _ := newVisitService(t, nil)
	ctx := context.Background()

	svc.RecordVisit(ctx, "missing", "alice")
	svc.RecordVisit(ctx, "", "alice")

	var count int64
	require.NoError(t, db.Model(&model.CommunityVisitStreak{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordVisitRedisShortCircuitsRepeatVisits(t *testing.T) {
	rdb, mr := testutil.NewRedis(t)
	svc, db, clock := newVisitService(t, rdb)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0)
	community := testutil.SeedCommunity(t, db, "Gophers", "alice")

	transition, err := svc.recordVisit(ctx, community.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, VisitFirst, transition)
	assert.True(t, mr.Exists(visitKey(community.ID, "alice", calendarDay(clock.t))))

	// 删除社区后同日访问仍由 Redis 标记拦截，不会触达数据库
	require.NoError(t, db.Delete(&model.Community{}, "id = ?", community.ID).Error)
	transition, err = svc.recordVisit(ctx, community.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, VisitSameDay, transition)

	clock.t = clock.t.AddDate(0, 0, 1)
	transition, err = svc.recordVisit(ctx, community.ID, "alice")
	require.NoError(t, err)
	assert.Empty(t, transition)
}

func TestGetStreakWithoutVisits(t *testing.T) {
	svc, db, _ := newVisitService(t, nil)
	testutil.SeedUser(t, db, "alice", 0)
	community := testutil.SeedCommunity(t, db, "Gophers", "alice")

	streak, err := svc.GetStreak(context.Background(), community.ID, "alice")
	require.NoError(t, err)
	assert.Nil(t, streak)
}

func TestRecordVisitFallsBackToDatabaseWhenRedisIsDown(t *testing.T) {
	rdb, mr := testutil.NewRedis(t)
	svc, db, clock := newVisitService(t, rdb)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0)
	community := testutil.SeedCommunity(t, db, "Gophers", "alice")
	mr.Close()

	svc.RecordVisit(ctx, community.ID, "alice")
	streak, err := svc.GetStreak(ctx, community.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, streak)
	assert.Equal(t, 1, streak.CurrentStreak)

	// 同一天的重复访问由数据库状态机判定，不会重复累加
	svc.RecordVisit(ctx, community.ID, "alice")
	clock.t = clock.t.AddDate(0, 0, 1)
	svc.RecordVisit(ctx, community.ID, "alice")
	streak, err = svc.GetStreak(ctx, community.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, streak.CurrentStreak)
	assert.Equal(t, 2, streak.LongestStreak)
}

func TestRecordVisitSilentWhenDatabaseFails(t *testing.T) {
	svc, db, _ := newVisitService(t, nil)
	testutil.SeedUser(t, db, "alice", 0)
	community := testutil.SeedCommunity(t, db, "Gophers", "alice")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.NotPanics(t, func() { svc.RecordVisit(context.Background(), community.ID, "alice") })
}
