package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"folios/internal/database"
	"folios/internal/models"
	"folios/internal/utils"
)

type BookmarkRepository interface {
	Create(ctx context.Context, bm *models.Bookmark) (*models.Bookmark, error)
	FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Bookmark, error)
	// DeleteByIDAndOwner returns the removed bookmark, or nil when no row
	// matched both id and owner.
	DeleteByIDAndOwner(ctx context.Context, id, ownerID primitive.ObjectID) (*models.Bookmark, error)
}

type bookmarkRepository struct {
	db database.Service
}

func NewBookmarkRepository(db database.Service) BookmarkRepository {
	return &bookmarkRepository{db: db}
}

func (r *bookmarkRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.BookmarksCollection)
}

func (r *bookmarkRepository) Create(ctx context.Context, bm *models.Bookmark) (created *models.Bookmark, err error) {
	done := utils.ObserveQuery("create", "bookmark")
	defer func() { done(err) }()

	result, err := r.collection().InsertOne(ctx, bm)
	if err != nil {
		return nil, fmt.Errorf("failed to add bookmark: %w", err)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		bm.ID = id
	}
	return bm, nil
}

func (r *bookmarkRepository) FindByOwner(ctx context.Context, ownerID primitive.ObjectID) (bookmarks []models.Bookmark, err error) {
	done := utils.ObserveQuery("findByOwner", "bookmark")
	defer func() { done(err) }()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection().Find(ctx, bson.M{"user_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve bookmarks: %w", err)
	}
	defer cursor.Close(ctx)

	bookmarks = []models.Bookmark{}
	if err = cursor.All(ctx, &bookmarks); err != nil {
		return nil, fmt.Errorf("error decoding bookmarks: %w", err)
	}
	return bookmarks, nil
}

func (r *bookmarkRepository) DeleteByIDAndOwner(ctx context.Context, id, ownerID primitive.ObjectID) (deleted *models.Bookmark, err error) {
	done := utils.ObserveQuery("deleteOne", "bookmark")
	defer func() { done(err) }()

	var bm models.Bookmark
	err = r.collection().FindOneAndDelete(ctx, bson.M{"_id": id, "user_id": ownerID}).Decode(&bm)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return &bm, nil
}
