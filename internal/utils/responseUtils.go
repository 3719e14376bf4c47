package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"folios/internal/models"
)

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Error encoding JSON response")
	}
}

func SendJSONError(w http.ResponseWriter, message string, code int) {
	RespondWithJSON(w, code, models.ErrorResponse{Error: message})
}

func SendFieldError(w http.ResponseWriter, field, message string) {
	RespondWithJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: message, Field: field})
}
