package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"folios/internal/services"
	"folios/internal/utils"
)

// FeedHandler streams a user's bookmark changes as server-sent events.
type FeedHandler struct {
	service   services.BookmarkService
	heartbeat time.Duration
}

func NewFeedHandler(service services.BookmarkService, heartbeat time.Duration) *FeedHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &FeedHandler{service: service, heartbeat: heartbeat}
}

// StreamChanges writes "ready" once subscribed, then one "insert" or
// "delete" event per change with the bookmark as data. Comment lines keep
// idle connections open.
func (h *FeedHandler) StreamChanges(w http.ResponseWriter, r *http.Request) {
	session, ok := utils.GetSessionFromContext(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	events, err := h.service.Subscribe(ctx, session)
	if err != nil {
		log.Error().Err(err).Msg("Error subscribing to change feed")
		sendServiceError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Warn().Err(err).Msg("Could not clear write deadline for change feed")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "ready", []byte("{}")); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Error().Err(err).Msg("Change feed requires a flushable response writer")
		return
	}

	userID := session.UserID.Hex()
	log.Info().Str("userID", userID).Msg("Change feed stream opened")
	defer log.Info().Str("userID", userID).Msg("Change feed stream closed")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Bookmark)
			if err != nil {
				log.Error().Err(err).Str("userID", userID).Msg("Error encoding change event")
				continue
			}
			if err := writeSSE(w, string(ev.Kind), data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w io.Writer, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

