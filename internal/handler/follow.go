package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"socialnet/internal/httputil"
	"socialnet/internal/service"
)

type FollowHandler struct {
	followService *service.FollowService
	log           zerolog.Logger
}

func NewFollowHandler(followService *service.FollowService, log zerolog.Logger) *FollowHandler {
	return &FollowHandler{
		followService: followService,
		log:           log,
	}
}

// Follow handles POST /users/{id}/follow
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.followService.Follow(r.Context(), followerID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.log, err, "follow user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Successfully followed user",
	})
}

// Unfollow handles DELETE /users/{id}/follow
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.followService.Unfollow(r.Context(), followerID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.log, err, "unfollow user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Successfully unfollowed user",
	})
}

// GetFollowers handles GET /users/{id}/followers
func (h *FollowHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.followService.GetFollowers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err, "get followers")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// GetFollowing handles GET /users/{id}/following
func (h *FollowHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	resp, err := h.followService.GetFollowing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err, "get following")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
