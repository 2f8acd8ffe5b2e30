package handler

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"socialnet/internal/httputil"
	"socialnet/internal/service"
)

type FeedHandler struct {
	feedService *service.FeedService
	log         zerolog.Logger
}

func NewFeedHandler(feedService *service.FeedService, log zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		log:         log,
	}
}

// GetFeed handles GET /feed
// Returns paginated feed for the authenticated user.
//
// Query params:
//   - cursor: optional, compound cursor for pagination (format: "postID:score")
//   - limit: optional, number of posts per page (default 10, max 50)
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	limit, ok := queryInt(w, r, "limit", service.FeedDefaultLimit)
	if !ok {
		return
	}

	feed, err := h.feedService.GetFeed(r.Context(), userID, cursor, limit)
	if err != nil {
		writeServiceError(w, r, h.log, err, "get feed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, feed)
}

// queryInt reads a positive integer query parameter, writing 400 when it is
// malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		httputil.WriteBadRequest(w, "Invalid "+name+" parameter")
		return 0, false
	}
	return parsed, true
}
