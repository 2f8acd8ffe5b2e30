package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"socialnet/internal/httputil"
	"socialnet/internal/model"
	"socialnet/internal/service"
)

type UserHandler struct {
	userService   *service.UserService
	followService *service.FollowService
	authService   *service.AuthService
	log           zerolog.Logger
}

func NewUserHandler(
	userService *service.UserService,
	followService *service.FollowService,
	authService *service.AuthService,
	log zerolog.Logger,
) *UserHandler {
	return &UserHandler{
		userService:   userService,
		followService: followService,
		authService:   authService,
		log:           log,
	}
}

// List handles GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, err, "list users")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// GetProfile handles GET /users/{id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err, "get profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// UpdateMe handles PATCH /me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "update profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// DeleteMe handles DELETE /users/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.userService.Delete(r.Context(), userID); err != nil {
		writeServiceError(w, r, h.log, err, "delete account")
		return
	}

	clearTokenCookie(w, h.authService.SecureCookies())
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Account deleted",
		"id":      userID,
	})
}

// WhoToFollow handles GET /users/{id}/who-to-follow. Only the user
// themselves may ask.
func (h *UserHandler) WhoToFollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if chi.URLParam(r, "id") != userID {
		httputil.WriteForbidden(w, "You can only view your own suggestions")
		return
	}

	resp, err := h.followService.WhoToFollow(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "get suggestions")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
