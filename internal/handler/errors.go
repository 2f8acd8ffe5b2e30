package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"socialnet/internal/httputil"
	"socialnet/internal/model"
	"socialnet/internal/transport/http/middleware"
)

// writeServiceError maps a service error onto the error envelope. Only
// internal failures are logged; their cause never reaches the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error, op string) {
	switch {
	case model.IsNotFound(err):
		httputil.WriteNotFound(w, err.Error())
	case model.IsForbidden(err):
		httputil.WriteForbidden(w, err.Error())
	case model.IsBadRequest(err):
		httputil.WriteBadRequest(w, err.Error())
	case model.IsConflict(err):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, model.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, "Invalid email or password")
	default:
		userID, _ := middleware.GetUserIDFromContext(r.Context())
		log.Error().Err(err).Str("op", op).Str("user_id", userID).Msg("request failed")
		httputil.WriteInternalError(w, "Failed to "+op)
	}
}

// requireUser returns the authenticated user id or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
	}
	return userID, ok
}
