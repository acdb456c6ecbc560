package repository_test

import (
	"testing"

	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleVoteCycle(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewQuestionRepository(db)
	author := testutil.SeedUser(t, db, "author", 0)
	voter := testutil.SeedUser(t, db, "voter", 0)

	q := &model.Question{Title: "t", Content: "c", AuthorID: author.ID}
	require.NoError(t, repo.Create(q))

	score := func() int {
		got, err := repo.FindByID(q.ID)
		require.NoError(t, err)
		return got.Score
	}

	v, err := repo.ToggleVote(voter.ID, model.VoteQuestion, q.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, score())

	v, err = repo.ToggleVote(voter.ID, model.VoteQuestion, q.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, v)
	assert.Equal(t, -1, score())

	v, err = repo.ToggleVote(voter.ID, model.VoteQuestion, q.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.Equal(t, 0, score())

	_, err = repo.ToggleVote(voter.ID, model.VoteTarget("post"), q.ID, 1)
	assert.ErrorIs(t, err, repository.ErrUnknownVoteTarget)
}
