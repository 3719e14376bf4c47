package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"folios/internal/services"
	"folios/internal/utils"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (u *UserHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := utils.GetSessionFromContext(w, r)
	if !ok {
		return
	}

	profile, err := u.userService.GetProfile(r.Context(), session)
	if err != nil {
		log.Error().Err(err).Str("userID", session.UserID.Hex()).Msg("Error getting user profile")
		sendServiceError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, profile)
}
