package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("create user", func(t *testing.T) {
		created, err := repo.Create(ctx, &model.User{Email: "Alice@Example.com", Name: "Alice"})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, "alice@example.com", created.Email)
		assert.False(t, created.CreatedAt.IsZero())
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.User{Email: "alice@example.com", Name: "Other"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})
}

func TestUserRepository_Get(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.User{Email: "bob@example.com", Name: "Bob"})
	require.NoError(t, err)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", byID.Name)

	byEmail, err := repo.GetByEmail(ctx, "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
