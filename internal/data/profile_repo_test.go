package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	apperrors "github.com/scolay/storefront/internal/errors"
	"github.com/scolay/storefront/internal/testutil"
)

func TestProfileRepo_Upsert_Get_SetRole(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		repo := NewProfileRepoWithClock(db, FixedClock(now))
		id := uuid.NewString()

		created, err := repo.Upsert(ctx, UpsertProfileRequest{
			ID:       id,
			Role:     domainauth.RoleSchoolAdmin,
			FullName: testutil.StringPtr("Ada School"),
		})
		require.NoError(t, err)
		assert.Equal(t, id, created.ID)
		assert.Equal(t, domainauth.RoleSchoolAdmin, created.Role)
		require.NotNil(t, created.FullName)
		assert.Equal(t, "Ada School", *created.FullName)
		assert.Nil(t, created.SchoolID)

		got, err := repo.GetByUserID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.WithinDuration(t, now, got.CreatedAt, time.Second)

		updated, err := repo.SetRole(ctx, id, domainauth.RoleNone)
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleNone, updated.Role)

		page, err := repo.List(ctx, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
		require.Len(t, page.Profiles, 1)
		assert.Equal(t, id, page.Profiles[0].ID)
	})
}

func TestProfileRepo_NotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewProfileRepo(db)

		_, err := repo.GetByUserID(ctx, uuid.NewString())
		require.ErrorIs(t, err, ErrProfileNotFound)

		// Non-uuid ids never match.
		_, err = repo.GetByUserID(ctx, "not-a-uuid")
		require.ErrorIs(t, err, ErrProfileNotFound)

		_, err = repo.SetRole(ctx, uuid.NewString(), domainauth.RoleAdmin)
		require.ErrorIs(t, err, ErrProfileNotFound)
	})
}

func TestProfileRepo_UpsertRejectsInvalidID(t *testing.T) {
	repo := NewProfileRepo(nil)

	_, err := repo.Upsert(context.Background(), UpsertProfileRequest{ID: "nope"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "id", apperrors.GetField(err))
}

func TestProfileRepo_EmptyIDIsNotFound(t *testing.T) {
	repo := NewProfileRepo(nil)

	_, err := repo.GetByUserID(context.Background(), "")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestStoredRole(t *testing.T) {
	assert.Equal(t, "customer", storedRole(domainauth.RoleNone))
	assert.Equal(t, "admin", storedRole(domainauth.RoleAdmin))
}

func TestProfileRepo_ListPagesFromOneSnapshot(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		ids := make([]string, 3)
		for i := range ids {
			ids[i] = uuid.NewString()
			repo := NewProfileRepoWithClock(db, FixedClock(base.Add(time.Duration(i)*time.Minute)))
			_, err := repo.Upsert(ctx, UpsertProfileRequest{ID: ids[i], Role: domainauth.RoleNone})
			require.NoError(t, err)
		}

		page, err := NewProfileRepo(db).List(ctx, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Profiles, 2)
		assert.Equal(t, ids[1], page.Profiles[0].ID)
		assert.Equal(t, ids[2], page.Profiles[1].ID)
	})
}

func TestProfileRepo_NilDB(t *testing.T) {
	_, err := NewProfileRepo(nil).GetByUserID(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil database handle")
}

func TestFixedClock(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, now, FixedClock(now).Now())
	assert.Equal(t, time.UTC, systemClock{}.Now().Location())
}
