package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"folios/internal/database"
	"folios/internal/models"
	"folios/internal/utils"
)

type UserRepository interface {
	UpsertByEmail(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
}

type userRepository struct {
	db database.Service
}

func NewUserRepository(db database.Service) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.UsersCollection)
}

// UpsertByEmail refreshes the profile fields of the user with the same email,
// creating the user on first sign-in (the email comes from the filter).
// The stored document is returned.
func (r *userRepository) UpsertByEmail(ctx context.Context, user *models.User) (stored *models.User, err error) {
	done := utils.ObserveQuery("upsertByEmail", "user")
	defer func() { done(err) }()

	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"display_name": user.DisplayName,
			"avatar_url":   user.AvatarURL,
			"provider":     user.Provider,
			"updated_at":   now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out models.User
	err = r.collection().FindOneAndUpdate(ctx, bson.M{"email": user.Email}, update, opts).Decode(&out)
	if err != nil {
		log.Error().Err(err).Str("email", user.Email).Msg("Failed to upsert user")
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &out, nil
}

func (r *userRepository) FindByID(ctx context.Context, userID primitive.ObjectID) (user *models.User, err error) {
	done := utils.ObserveQuery("findById", "user")
	defer func() { done(err) }()

	var u models.User
	err = r.collection().FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if err != nil {
		return nil, err // Can be mongo.ErrNoDocuments
	}
	return &u, nil
}
