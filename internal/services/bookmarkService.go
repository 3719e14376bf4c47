package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"folios/internal/feed"
	"folios/internal/metrics"
	"folios/internal/models"
	"folios/internal/repositories"
)

type BookmarkService interface {
	ListBookmarks(ctx context.Context, session *models.Session) ([]models.Bookmark, error)
	CreateBookmark(ctx context.Context, session *models.Session, reqBody models.AddBookmarkRequestBody) (*models.Bookmark, error)
	// DeleteBookmark succeeds when no bookmark with id belongs to the session
	// user, including ids that are already gone or malformed.
	DeleteBookmark(ctx context.Context, session *models.Session, id string) error
	// Subscribe streams the session user's change feed until ctx is done.
	Subscribe(ctx context.Context, session *models.Session) (<-chan models.ChangeEvent, error)
}

type bookmarkServiceImpl struct {
	bookmarkRepo repositories.BookmarkRepository
	broker       feed.Broker
	validate     *validator.Validate
	now          func() time.Time
}

func NewBookmarkService(bookmarkRepo repositories.BookmarkRepository, broker feed.Broker) BookmarkService {
	return &bookmarkServiceImpl{
		bookmarkRepo: bookmarkRepo,
		broker:       broker,
		validate:     newValidator(),
		now:          time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

func (s *bookmarkServiceImpl) ListBookmarks(ctx context.Context, session *models.Session) ([]models.Bookmark, error) {
	if session == nil {
		return nil, models.ErrUnauthenticated
	}
	userID := session.UserID
	log.Debug().Str("userID", userID.Hex()).Msg("Attempting to retrieve bookmarks")

	bookmarks, err := s.bookmarkRepo.FindByOwner(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("userID", userID.Hex()).Msg("Error finding bookmarks")
		return nil, &models.StorageError{Op: "list bookmarks", Err: err}
	}
	if bookmarks == nil {
		bookmarks = []models.Bookmark{}
	}

	log.Debug().Str("userID", userID.Hex()).Int("count", len(bookmarks)).Msg("Successfully retrieved bookmarks")
	return bookmarks, nil
}

func (s *bookmarkServiceImpl) CreateBookmark(ctx context.Context, session *models.Session, reqBody models.AddBookmarkRequestBody) (*models.Bookmark, error) {
	if session == nil {
		return nil, models.ErrUnauthenticated
	}
	userID := session.UserID
	log.Debug().Str("userID", userID.Hex()).Interface("reqBody", reqBody).Msg("Attempting to add bookmark")

	input, err := s.validateInput(reqBody)
	if err != nil {
		log.Warn().Err(err).Str("userID", userID.Hex()).Msg("Rejected bookmark input")
		return nil, err
	}

	bm := &models.Bookmark{
		ID:        primitive.NewObjectID(),
		URL:       input.URL,
		Title:     input.Title,
		UserID:    userID,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	created, err := s.bookmarkRepo.Create(ctx, bm)
	if err != nil {
		log.Error().Err(err).Str("userID", userID.Hex()).Msg("Error inserting bookmark")
		return nil, &models.StorageError{Op: "create bookmark", Err: err}
	}
	metrics.BookmarkCreatedTotal.Inc()

	s.publish(ctx, userID, models.ChangeEvent{Kind: models.ChangeInsert, Bookmark: *created})

	log.Info().Str("userID", userID.Hex()).Str("bookmarkID", created.ID.Hex()).Msg("Bookmark added successfully")
	return created, nil
}

func (s *bookmarkServiceImpl) DeleteBookmark(ctx context.Context, session *models.Session, id string) error {
	if session == nil {
		return models.ErrUnauthenticated
	}
	userID := session.UserID
	log.Debug().Str("userID", userID.Hex()).Str("bookmarkID", id).Msg("Attempting to delete bookmark")

	bookmarkID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// No stored bookmark can carry a malformed id.
		log.Debug().Str("userID", userID.Hex()).Str("bookmarkID", id).Msg("Malformed bookmark ID, nothing to delete")
		return nil
	}

	deleted, err := s.bookmarkRepo.DeleteByIDAndOwner(ctx, bookmarkID, userID)
	if err != nil {
		log.Error().Err(err).Str("userID", userID.Hex()).Str("bookmarkID", id).Msg("Error deleting bookmark")
		return &models.StorageError{Op: "delete bookmark", Err: err}
	}
	if deleted == nil {
		log.Debug().Str("userID", userID.Hex()).Str("bookmarkID", id).Msg("Bookmark already gone or not owned, treating delete as done")
		return nil
	}
	metrics.BookmarkDeletedTotal.Inc()

	s.publish(ctx, userID, models.ChangeEvent{Kind: models.ChangeDelete, Bookmark: *deleted})

	log.Info().Str("userID", userID.Hex()).Str("bookmarkID", id).Msg("Bookmark deleted successfully")
	return nil
}

func (s *bookmarkServiceImpl) Subscribe(ctx context.Context, session *models.Session) (<-chan models.ChangeEvent, error) {
	if session == nil {
		return nil, models.ErrUnauthenticated
	}
	ch, subID := s.broker.Subscribe(ctx, session.UserID.Hex())
	log.Debug().Str("userID", session.UserID.Hex()).Str("subID", subID).Msg("Change feed subscribed")
	return ch, nil
}

// publish never fails the request: the mutation is already stored and
// sessions converge on their next list.
func (s *bookmarkServiceImpl) publish(ctx context.Context, userID primitive.ObjectID, ev models.ChangeEvent) {
	if err := s.broker.Publish(context.WithoutCancel(ctx), userID.Hex(), ev); err != nil {
		log.Warn().Err(err).Str("userID", userID.Hex()).Str("bookmarkID", ev.Bookmark.ID.Hex()).Str("kind", string(ev.Kind)).Msg("Failed to publish change event")
		return
	}
	metrics.FeedEventsPublishedTotal.WithLabelValues(string(ev.Kind)).Inc()
}

func (s *bookmarkServiceImpl) validateInput(reqBody models.AddBookmarkRequestBody) (models.AddBookmarkRequestBody, error) {
	input := models.AddBookmarkRequestBody{
		URL:   strings.TrimSpace(reqBody.URL),
		Title: strings.TrimSpace(reqBody.Title),
	}

	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return input, fieldError(verrs[0])
		}
		return input, &models.InvalidInputError{Message: err.Error()}
	}

	// The url tag also admits opaque URIs such as "mailto:x"; bookmarks need a host.
	u, err := url.Parse(input.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return input, &models.InvalidInputError{Field: "url", Message: "must be an absolute URL with scheme and host"}
	}
	return input, nil
}

func fieldError(fe validator.FieldError) *models.InvalidInputError {
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "url":
		msg = "must be an absolute URL with scheme and host"
	default:
		msg = "is invalid"
	}
	return &models.InvalidInputError{Field: fe.Field(), Message: msg}
}
