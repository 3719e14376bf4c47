package repositories

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"folios/internal/database"
	"folios/internal/models"
)

var testDB database.Service

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		log.Fatal().Err(err).Msg("Could not start mongodb container")
	}
	uri, err := container.ConnectionString(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read mongodb connection string")
	}
	testDB, err = database.New(ctx, uri, "folios_repo_test")
	if err != nil {
		log.Fatal().Err(err).Msg("Could not connect to mongodb container")
	}
	if err := testDB.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not create indexes")
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	if err := container.Terminate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not teardown mongodb container")
	}
	os.Exit(code)
}

func newBookmark(owner primitive.ObjectID, title string, at time.Time) *models.Bookmark {
	return &models.Bookmark{
		ID:        primitive.NewObjectID(),
		URL:       "https://example.com/" + title,
		Title:     title,
		UserID:    owner,
		CreatedAt: at,
	}
}

func TestBookmarkRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	repo := NewBookmarkRepository(testDB)
	ctx := context.Background()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	base := time.Now().UTC().Truncate(time.Millisecond)

	a, err := repo.Create(ctx, newBookmark(alice, "a", base))
	require.NoError(t, err)
	b, err := repo.Create(ctx, newBookmark(alice, "b", base.Add(time.Second)))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newBookmark(bob, "bob", base))
	require.NoError(t, err)

	t.Run("FindByOwner lists newest first and only the owner's rows", func(t *testing.T) {
		got, err := repo.FindByOwner(ctx, alice)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, b.ID, got[0].ID)
		assert.Equal(t, a.ID, got[1].ID)
	})

	t.Run("FindByOwner returns an empty slice for a new user", func(t *testing.T) {
		got, err := repo.FindByOwner(ctx, primitive.NewObjectID())
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("DeleteByIDAndOwner ignores foreign owners", func(t *testing.T) {
		deleted, err := repo.DeleteByIDAndOwner(ctx, a.ID, bob)
		require.NoError(t, err)
		assert.Nil(t, deleted)

		got, err := repo.FindByOwner(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("DeleteByIDAndOwner returns the removed row once", func(t *testing.T) {
		deleted, err := repo.DeleteByIDAndOwner(ctx, a.ID, alice)
		require.NoError(t, err)
		require.NotNil(t, deleted)
		assert.Equal(t, "a", deleted.Title)

		again, err := repo.DeleteByIDAndOwner(ctx, a.ID, alice)
		require.NoError(t, err)
		assert.Nil(t, again)
	})
}
