package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"folios/internal/models"
	"folios/internal/repositories"
)

type UserService interface {
	GetProfile(ctx context.Context, session *models.Session) (*models.Profile, error)
}

type userService struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// GetProfile returns the stored projection of the session user. When the
// user row no longer exists the token's own claims are returned.
func (s *userService) GetProfile(ctx context.Context, session *models.Session) (*models.Profile, error) {
	if session == nil {
		return nil, models.ErrUnauthenticated
	}

	current := session
	user, err := s.userRepo.FindByID(ctx, session.UserID)
	switch {
	case err == nil:
		current = user.Session()
	case errors.Is(err, mongo.ErrNoDocuments):
		log.Warn().Str("userID", session.UserID.Hex()).Msg("User not found, serving session claims")
	default:
		log.Error().Err(err).Str("userID", session.UserID.Hex()).Msg("Failed to fetch user profile")
		return nil, &models.StorageError{Op: "fetch profile", Err: err}
	}

	return &models.Profile{Session: current, Initials: current.Initials()}, nil
}
