package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"socialnet/internal/httputil"
	"socialnet/internal/model"
	"socialnet/internal/service"
	"socialnet/internal/transport/http/middleware"
)

// AuthHandler groups auth-related HTTP endpoints and their dependencies.
type AuthHandler struct {
	userService *service.UserService
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAuthHandler wires dependencies for authentication endpoints.
func NewAuthHandler(userService *service.UserService, authService *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
		log:         log,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "register")
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user)
}

// SignIn handles POST /auth/sign-in
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req model.SignInRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "Email and password are required")
		return
	}

	user, err := h.userService.SignIn(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "sign in")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

// SignOut handles POST /auth/sign-out. Header-token clients just drop their
// token; this clears the browser cookie.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	clearTokenCookie(w, h.authService.SecureCookies())
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

// Me handles GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "get current user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	token, err := h.authService.GenerateAccessToken(user.ID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "issue token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   h.authService.ExpiresIn(),
		HttpOnly: true,
		Secure:   h.authService.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})

	httputil.WriteJSON(w, status, model.AuthResponse{
		User:        user,
		AccessToken: token,
		ExpiresIn:   h.authService.ExpiresIn(),
	})
}

func clearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
