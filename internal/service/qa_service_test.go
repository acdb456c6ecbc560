package service

import (
	"context"
	"testing"

	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/testutil"
	"stackcommunity_backend/internal/util"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type gamificationFixture struct {
	db          *gorm.DB
	points      *PointsService
	badges      *BadgeService
	visits      *VisitStreakService
	qa          *QAService
	communities *CommunityService
}

func newGamificationFixture(t *testing.T, rdb *redis.Client) *gamificationFixture {
	t.Helper()
	db := testutil.NewDB(t)
	userRepo := repository.NewUserRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	questionRepo := repository.NewQuestionRepository(db)

	points := NewPointsService(userRepo, testPoints)
	badges := NewBadgeService(userRepo, communityRepo, DefaultMilestoneTable(), 5)
	visits := NewVisitStreakService(communityRepo, rdb)
	rewards := InlineDispatcher{}
	storage := &StorageService{Provider: &LocalStorageProvider{Root: t.TempDir()}}

	return &gamificationFixture{
		db:          db,
		points:      points,
		badges:      badges,
		visits:      visits,
		qa:          NewQAService(questionRepo, communityRepo, points, badges, rewards, rdb),
		communities: NewCommunityService(communityRepo, points, badges, visits, rewards, storage),
	}
}

func actorFor(u *model.User) Actor {
	return Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func TestCreateQuestionAwardsPointsAndMilestone(t *testing.T) {
	f := newGamificationFixture(t, nil)
	ctx := context.Background()
	alice := actorFor(testutil.SeedUser(t, f.db, "alice", 0))
	f.badges.SetMilestones(MilestoneTable{
		ActivityQuestion: {{Threshold: 2, BadgeName: "2 Questions"}},
	})

	_, err := f.qa.CreateQuestion(ctx, alice, QuestionRequest{Title: "first", Content: "body", Tags: []string{"Go", "go", " gorm "}})
	require.NoError(t, err)
	assert.Equal(t, 10, f.points.GetPoints(ctx, "alice"))
	assert.Empty(t, f.badges.GetUserBadges(ctx, "alice"))

	q, err := f.qa.CreateQuestion(ctx, alice, QuestionRequest{Title: "second", Content: "body"})
	require.NoError(t, err)
	assert.Equal(t, "alice", q.Author)
	assert.Equal(t, 20, f.points.GetPoints(ctx, "alice"))
	assert.Equal(t, []string{"2 Questions"}, badgeNames(f.badges.GetUserBadges(ctx, "alice")))

	list, total, err := f.qa.GetQuestions(1, 10, repository.QuestionFilter{Tag: "gorm"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"go", "gorm"}, list[0].Tags)
}

func TestCreateAnswerAwardsPoints(t *testing.T) {
	f := newGamificationFixture(t, nil)
	ctx := context.Background()
	alice := actorFor(testutil.SeedUser(t, f.db, "alice", 0))
	bob := actorFor(testutil.SeedUser(t, f.db, "bob", 0))

	q, err := f.qa.CreateQuestion(ctx, alice, QuestionRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	_, err = f.qa.CreateAnswer(ctx, bob, q.ID, AnswerRequest{Content: "answer"})
	require.NoError(t, err)
	assert.Equal(t, 15, f.points.GetPoints(ctx, "bob"))

	_, err = f.qa.CreateAnswer(ctx, bob, "missing", AnswerRequest{Content: "answer"})
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestCreateQuestionInCommunityRequiresMembership(t *testing.T) {
	f := newGamificationFixture(t, nil)
	ctx := context.Background()
	alice := actorFor(testutil.SeedUser(t, f.db, "alice", 0))
	bob := actorFor(testutil.SeedUser(t, f.db, "bob", 0))
	community := testutil.SeedCommunity(t, f.db, "Gophers", "alice")

	_, err := f.qa.CreateQuestion(ctx, bob, QuestionRequest{Title: "t", Content: "c", CommunityID: community.ID})
	assert.ErrorIs(t, err, util.ErrNotParticipant)
	assert.Zero(t, f.points.GetPoints(ctx, "bob"))

	_, err = f.qa.CreateQuestion(ctx, alice, QuestionRequest{Title: "t", Content: "c", CommunityID: "missing"})
	assert.ErrorIs(t, err, util.ErrCommunityNotFound)

	q, err := f.qa.CreateQuestion(ctx, alice, QuestionRequest{Title: "t", Content: "c", CommunityID: community.ID})
	require.NoError(t, err)
	require.NotNil(t, q.CommunityID)
	assert.Equal(t, community.ID, *q.CommunityID)
}

func TestQuestionDetailCountsViewsOncePerViewer(t *testing.T) {
	rdb, _ := testutil.NewRedis(t)
	f := newGamificationFixture(t, rdb)
	ctx := context.Background()
	alice := actorFor(testutil.SeedUser(t, f.db, "alice", 0))

	q, err := f.qa.CreateQuestion(ctx, alice, QuestionRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	d, err := f.qa.GetQuestionDetail(ctx, q.ID, "bob", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Views)

	d, err = f.qa.GetQuestionDetail(ctx, q.ID, "bob", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Views)

	d, err = f.qa.GetQuestionDetail(ctx, q.ID, "", "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Views)

	_, err = f.qa.GetQuestionDetail(ctx, "missing", "", "10.0.0.2")
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestAcceptAnswerOnlyByQuestionAuthor(t *testing.T) {
	f := newGamificationFixture(t, nil)
	ctx := context.Background()
	alice := actorFor(testutil.SeedUser(t, f.db, "alice", 0))
	bob := actorFor(testutil.SeedUser(t, f.db, "bob", 0))

	q, err := f.qa.CreateQuestion(ctx, alice, QuestionRequest{Title: "t", Content: "c"})
	require.NoError(t, err)
	a, err := f.qa.CreateAnswer(ctx, bob, q.ID, AnswerRequest{Content: "answer"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.qa.AcceptAnswer(ctx, bob, a.ID), util.ErrPermissionDenied)
	assert.ErrorIs(t, f.qa.AcceptAnswer(ctx, alice, "missing"), util.ErrAnswerNotFound)
	require.NoError(t, f.qa.AcceptAnswer(ctx, alice, a.ID))

	d, err := f.qa.GetQuestionDetail(ctx, q.ID, "alice", "")
	require.NoError(t, err)
	assert.True(t, d.Solved)
	require.Len(t, d.Answers, 1)
	assert.True(t, d.Answers[0].IsAccepted)
}

func TestVoteToggles(t *testing.T) {
	f := newGamificationFixture(t, nil)
	ctx := context.Background()
	alice := actorFor(testutil.SeedUser(t, f.db, "alice", 0))
	bob := actorFor(testutil.SeedUser(t, f.db, "bob", 0))

	q, err := f.qa.CreateQuestion(ctx, alice, QuestionRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	current, err := f.qa.Vote(ctx, bob, "questions", q.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, current)

	current, err = f.qa.Vote(ctx, bob, "questions", q.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, current)

	var stored model.Question
	require.NoError(t, f.db.First(&stored, "id = ?", q.ID).Error)
	assert.Equal(t, -1, stored.Score)

	current, err = f.qa.Vote(ctx, bob, "questions", q.ID, -1)
	require.NoError(t, err)
	assert.Zero(t, current)

	_, err = f.qa.Vote(ctx, bob, "questions", q.ID, 2)
	assert.ErrorIs(t, err, util.ErrInvalidVoteValue)
	_, err = f.qa.Vote(ctx, bob, "comments", q.ID, 1)
	assert.ErrorIs(t, err, util.ErrInvalidVoteTarget)
	_, err = f.qa.Vote(ctx, bob, "answers", "missing", 1)
	assert.ErrorIs(t, err, util.ErrAnswerNotFound)
}

func TestQuestionDetailCountsViewsWhenRedisIsDown(t *testing.T) {
	rdb, mr := testutil.NewRedis(t)
	f := newGamificationFixture(t, rdb)
	ctx := context.Background()
	alice := actorFor(testutil.SeedUser(t, f.db, "alice", 0))

	q, err := f.qa.CreateQuestion(ctx, alice, QuestionRequest{Title: "t", Content: "c"})
	require.NoError(t, err)
	mr.Close()

	d, err := f.qa.GetQuestionDetail(ctx, q.ID, "bob", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Views)

	d, err = f.qa.GetQuestionDetail(ctx, q.ID, "bob", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Views)
}
