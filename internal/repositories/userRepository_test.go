package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folios/internal/models"
)

func TestUserRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	userRepo := NewUserRepository(testDB)
	ctx := context.Background()

	t.Run("Upsert creates then refreshes", func(t *testing.T) {
		created, err := userRepo.UpsertByEmail(ctx, &models.User{
			Email:       "test@example.com",
			DisplayName: "Test User",
			Provider:    "google",
		})
		require.NoError(t, err)
		require.False(t, created.ID.IsZero())
		assert.Equal(t, "Test User", created.DisplayName)

		time.Sleep(5 * time.Millisecond)
		updated, err := userRepo.UpsertByEmail(ctx, &models.User{
			Email:       "test@example.com",
			DisplayName: "Renamed",
			AvatarURL:   "https://example.com/a.png",
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID, "same email keeps the same identity")
		assert.Equal(t, "Renamed", updated.DisplayName)
		assert.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())

		found, err := userRepo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a.png", found.AvatarURL)
	})
}
