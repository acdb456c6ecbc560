package repository_test

import (
	"context"
	"sync"
	"testing"

	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddParticipantIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewCommunityRepository(db)
	ctx := context.Background()
	c := testutil.SeedCommunity(t, db, "golang", "admin")

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			added, err := repo.AddParticipant(ctx, c.ID, "dave")
			assert.NoError(t, err)
			results[i] = added
		}(i)
	}
	wg.Wait()

	addedCount := 0
	for _, added := range results {
		if added {
			addedCount++
		}
	}
	assert.Equal(t, 1, addedCount)

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ParticipantCount)
}
