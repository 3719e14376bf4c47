package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"folios/internal/models"
	"folios/internal/services"
	"folios/internal/utils"
)

const maxBookmarkBodyBytes = 16 << 10

type BookmarkHandler struct {
	service services.BookmarkService
}

func NewBookmarksHandler(service services.BookmarkService) *BookmarkHandler {
	return &BookmarkHandler{service: service}
}

func (h *BookmarkHandler) GetBookmarks(w http.ResponseWriter, r *http.Request) {
	session, ok := utils.GetSessionFromContext(w, r)
	if !ok {
		return
	}

	bookmarks, err := h.service.ListBookmarks(r.Context(), session)
	if err != nil {
		log.Error().Err(err).Msg("Error getting bookmarks from service")
		sendServiceError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.BookmarksResponse{Bookmarks: bookmarks})
}

func (h *BookmarkHandler) AddBookmark(w http.ResponseWriter, r *http.Request) {
	session, ok := utils.GetSessionFromContext(w, r)
	if !ok {
		return
	}

	var reqBody models.AddBookmarkRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBookmarkBodyBytes)).Decode(&reqBody); err != nil {
		log.Warn().Err(err).Msg("Error decoding request body for AddBookmark")
		utils.SendJSONError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	bm, err := h.service.CreateBookmark(r.Context(), session, reqBody)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	log.Info().Str("bookmark_id", bm.ID.Hex()).Msg("Successfully created bookmark")
	utils.RespondWithJSON(w, http.StatusCreated, models.BookmarkResponse{Bookmark: bm})
}

func (h *BookmarkHandler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	session, ok := utils.GetSessionFromContext(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.service.DeleteBookmark(r.Context(), session, id); err != nil {
		log.Error().Err(err).Str("bookmark_id", id).Msg("Error deleting bookmark via service")
		sendServiceError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.DeleteResponse{Success: true})
}

// sendServiceError maps the service error taxonomy onto HTTP statuses.
func sendServiceError(w http.ResponseWriter, err error) {
	var invalid *models.InvalidInputError
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
	case errors.As(err, &invalid):
		utils.SendFieldError(w, invalid.Field, invalid.Error())
	default:
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}
