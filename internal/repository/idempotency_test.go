package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuspay/backend/internal/repository"
	"github.com/campuspay/backend/internal/testutil"
)

func TestIdempotencyRepository_SaveAndFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "replay_sf", "0.00")

	rec := &repository.ReplayRecord{
		Key:          "key-1",
		UserID:       user.ID,
		RequestHash:  "hash-1",
		StatusCode:   200,
		ResponseBody: []byte(`{"success":true}`),
	}
	require.NoError(t, repo.Save(ctx, rec))
	assert.False(t, rec.ExpiresAt.IsZero())
	assert.True(t, rec.ExpiresAt.After(rec.CreatedAt))

	found, err := repo.Find(ctx, "key-1", user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "hash-1", found.RequestHash)
	assert.Equal(t, 200, found.StatusCode)
	assert.Equal(t, []byte(`{"success":true}`), found.ResponseBody)

	missing, err := repo.Find(ctx, "other-key", user.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIdempotencyRepository_FirstWriteWins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "replay_fw", "0.00")

	first := &repository.ReplayRecord{
		Key:          "key-1",
		UserID:       user.ID,
		RequestHash:  "hash-1",
		StatusCode:   200,
		ResponseBody: []byte(`first`),
	}
	require.NoError(t, repo.Save(ctx, first))

	dup := &repository.ReplayRecord{
		Key:          "key-1",
		UserID:       user.ID,
		RequestHash:  "hash-1",
		StatusCode:   200,
		ResponseBody: []byte(`second`),
	}
	require.NoError(t, repo.Save(ctx, dup))

	found, err := repo.Find(ctx, "key-1", user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, []byte(`first`), found.ResponseBody)
}

func TestIdempotencyRepository_ExpiredRecordsAreInvisible(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "replay_ex", "0.00")

	_, err := db.Exec(
		`INSERT INTO idempotency_cache (idempotency_key, user_id, request_hash, status_code, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, now() - interval '2 days', now() - interval '1 day')`,
		"stale-key", user.ID, "hash-1", 200, []byte(`{}`),
	)
	require.NoError(t, err)

	found, err := repo.Find(ctx, "stale-key", user.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	n, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM idempotency_cache`).Scan(&count))
	assert.Equal(t, 0, count)
}
