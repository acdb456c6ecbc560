package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newBadgeService(t *testing.T) (*BadgeService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewBadgeService(
		repository.NewUserRepository(db),
		repository.NewCommunityRepository(db),
		DefaultMilestoneTable(),
		5,
	)
	return svc, db
}

func badgeNames(badges []model.Badge) []string {
	names := make([]string, len(badges))
	for i, b := range badges {
		names[i] = b.Name
	}
	return names
}

func TestAwardBadgeIsIdempotent(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0)

	badge := model.Badge{Kind: model.BadgeMilestone, Name: "50 Questions"}
	assert.True(t, svc.AwardBadge(ctx, "alice", badge))
	assert.False(t, svc.AwardBadge(ctx, "alice", badge))

	assert.Equal(t, []string{"50 Questions"}, badgeNames(svc.GetUserBadges(ctx, "alice")))
	assert.True(t, svc.HasBadge(ctx, "alice", "50 Questions"))
	assert.False(t, svc.HasBadge(ctx, "alice", "100 Questions"))
}

func TestAwardBadgeConcurrentCallersProduceOneBadge(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0)

	const callers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if svc.AwardBadge(ctx, "alice", model.Badge{Kind: model.BadgeLeaderboard, Name: "1st Place"}) {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.Equal(t, []string{"1st Place"}, badgeNames(svc.GetUserBadges(ctx, "alice")))
}

func TestAwardBadgeKeepsInsertionOrderAndStampsTime(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	testutil.SeedUser(t, db, "alice", 0)

	require.True(t, svc.AwardBadge(ctx, "alice", model.Badge{Kind: model.BadgeMilestone, Name: "50 Answers"}))
	require.True(t, svc.AwardBadge(ctx, "alice", model.Badge{Kind: model.BadgeCommunity, Name: "Community Member: Go"}))

	badges := svc.GetUserBadges(ctx, "alice")
	assert.Equal(t, []string{"50 Answers", "Community Member: Go"}, badgeNames(badges))
	assert.True(t, badges[0].EarnedAt.Equal(fixed))
}

func TestAwardBadgeUnknownUser(t *testing.T) {
	svc, _ := newBadgeService(t)
	ctx := context.Background()

	assert.False(t, svc.AwardBadge(ctx, "ghost", model.Badge{Kind: model.BadgeMilestone, Name: "50 Questions"}))
	assert.False(t, svc.HasBadge(ctx, "ghost", "50 Questions"))
	assert.NotNil(t, svc.GetUserBadges(ctx, "ghost"))
	assert.Empty(t, svc.GetUserBadges(ctx, "ghost"))
}

func TestAwardBadgeLeavesProfileAndPointsUntouched(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, db, "alice", 42)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", u.ID).Update("bio", "gopher").Error)

	require.True(t, svc.AwardBadge(ctx, "alice", model.Badge{Kind: model.BadgeMilestone, Name: "50 Questions"}))

	var got model.User
	require.NoError(t, db.First(&got, u.ID).Error)
	assert.Equal(t, 42, got.PointsValue())
	assert.Equal(t, "gopher", got.Bio)
	assert.Equal(t, 1, got.BadgeVersion)
}

func TestCheckAndAwardMilestoneExactThresholds(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0)

	for _, count := range []int{1, 49, 51, 99, 101} {
		assert.False(t, svc.CheckAndAwardMilestone(ctx, "alice", ActivityQuestion, count), "count %d", count)
	}
	assert.Empty(t, svc.GetUserBadges(ctx, "alice"))

	assert.True(t, svc.CheckAndAwardMilestone(ctx, "alice", ActivityQuestion, 50))
	assert.False(t, svc.CheckAndAwardMilestone(ctx, "alice", ActivityQuestion, 50))
	assert.True(t, svc.CheckAndAwardMilestone(ctx, "alice", ActivityAnswer, 100))

	assert.Equal(t, []string{"50 Questions", "100 Answers"}, badgeNames(svc.GetUserBadges(ctx, "alice")))
}

func TestCheckAndAwardMilestoneUsesInjectedTable(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0)

	svc.SetMilestones(MilestoneTable{
		ActivityAnswer: {{Threshold: 1, BadgeName: "First Answer"}},
	})

	assert.False(t, svc.CheckAndAwardMilestone(ctx, "alice", ActivityQuestion, 50))
	assert.True(t, svc.CheckAndAwardMilestone(ctx, "alice", ActivityAnswer, 1))
	assert.Equal(t, []string{"First Answer"}, badgeNames(svc.GetUserBadges(ctx, "alice")))
}

func TestCheckAndAwardCommunityBadge(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0)
	community := testutil.SeedCommunity(t, db, "Gophers", "alice")

	assert.True(t, svc.CheckAndAwardCommunityBadge(ctx, "alice", community.ID))
	assert.False(t, svc.CheckAndAwardCommunityBadge(ctx, "alice", community.ID))
	assert.False(t, svc.CheckAndAwardCommunityBadge(ctx, "alice", "missing-community"))

	badges := svc.GetUserBadges(ctx, "alice")
	require.Len(t, badges, 1)
	assert.Equal(t, "Community Member: Gophers", badges[0].Name)
	assert.Equal(t, model.BadgeCommunity, badges[0].Kind)
}

func TestCheckAndAwardLeaderboardBadges(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 300)
	testutil.SeedUser(t, db, "bob", 200, model.Badge{Kind: model.BadgeLeaderboard, Name: "2nd Place"})
	testutil.SeedUser(t, db, "carol", 100)
	testutil.SeedUser(t, db, "dave", 50)

	board := []model.User{{Username: "alice"}, {Username: "bob"}, {Username: "carol"}, {Username: "dave"}}
	svc.CheckAndAwardLeaderboardBadges(ctx, board)

	assert.Equal(t, []string{"1st Place"}, badgeNames(svc.GetUserBadges(ctx, "alice")))
	assert.Equal(t, []string{"2nd Place"}, badgeNames(svc.GetUserBadges(ctx, "bob")))
	assert.Equal(t, []string{"3rd Place"}, badgeNames(svc.GetUserBadges(ctx, "carol")))
	assert.Empty(t, svc.GetUserBadges(ctx, "dave"))

	// 名次变化后不回收旧徽章
	svc.CheckAndAwardLeaderboardBadges(ctx, []model.User{{Username: "bob"}, {Username: "alice"}})
	assert.Equal(t, []string{"1st Place", "2nd Place"}, badgeNames(svc.GetUserBadges(ctx, "alice")))
	assert.Equal(t, []string{"2nd Place", "1st Place"}, badgeNames(svc.GetUserBadges(ctx, "bob")))
}

func TestCheckAndAwardLeaderboardBadgesToleratesShortAndBlankEntries(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "bob", 10)

	svc.CheckAndAwardLeaderboardBadges(ctx, nil)
	svc.CheckAndAwardLeaderboardBadges(ctx, []model.User{{Username: ""}, {Username: "bob"}})

	assert.Equal(t, []string{"2nd Place"}, badgeNames(svc.GetUserBadges(ctx, "bob")))
}

func TestDeduplicateBadgesKeepsFirstOccurrence(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)
	testutil.SeedUser(t, db, "alice", 0,
		model.Badge{Kind: model.BadgeLeaderboard, Name: "1st Place", EarnedAt: first},
		model.Badge{Kind: model.BadgeMilestone, Name: "50 Questions", EarnedAt: first},
		model.Badge{Kind: model.BadgeLeaderboard, Name: "1st Place", EarnedAt: later},
	)

	svc.DeduplicateBadges(ctx, "alice")

	got := svc.GetUserBadges(ctx, "alice")
	want := []model.Badge{
		{Kind: model.BadgeLeaderboard, Name: "1st Place", EarnedAt: first},
		{Kind: model.BadgeMilestone, Name: "50 Questions", EarnedAt: first},
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("badges mismatch (-want +got):\n%s", diff)
	}
}

func TestDeduplicateBadgesNoopForSmallCollections(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0, model.Badge{Kind: model.BadgeMilestone, Name: "50 Questions"})

	svc.DeduplicateBadges(ctx, "alice")
	svc.DeduplicateBadges(ctx, "ghost")

	var got model.User
	require.NoError(t, db.Where("username = ?", "alice").First(&got).Error)
	assert.Zero(t, got.BadgeVersion)
	assert.Len(t, got.Badges, 1)
}

func TestBadgeOperationsReturnSentinelsWhenDatabaseFails(t *testing.T) {
	svc, db := newBadgeService(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "alice", 0, model.Badge{Kind: model.BadgeMilestone, Name: "1st Place"})
	community := testutil.SeedCommunity(t, db, "Gophers", "alice")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.False(t, svc.HasBadge(ctx, "alice", "1st Place"))
	assert.False(t, svc.AwardBadge(ctx, "alice", model.Badge{Kind: model.BadgeMilestone, Name: "50 Answers"}))
	assert.Empty(t, svc.GetUserBadges(ctx, "alice"))
	assert.NotNil(t, svc.GetUserBadges(ctx, "alice"))
	assert.False(t, svc.CheckAndAwardMilestone(ctx, "alice", ActivityAnswer, 50))
	assert.False(t, svc.CheckAndAwardCommunityBadge(ctx, "alice", community.ID))
	assert.NotPanics(t, func() {
		svc.DeduplicateBadges(ctx, "alice")
		svc.CheckAndAwardLeaderboardBadges(ctx, []model.User{{Username: "alice"}})
	})
}
