package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"socialnet/internal/httputil"
	"socialnet/internal/model"
	"socialnet/internal/realtime"
	"socialnet/internal/transport/http/middleware"
)

// LiveHandler upgrades GET /live to a websocket bound to the caller's own
// user id. Authentication happens here rather than in the middleware chain
// because browsers can only pass the token in the query string.
type LiveHandler struct {
	hub       *realtime.Hub
	jwtSecret string
	upgrader  websocket.Upgrader
	base      context.Context
	log       zerolog.Logger
}

// NewLiveHandler builds the handler. Connections are closed when base is
// cancelled, since the HTTP server does not track hijacked connections.
func NewLiveHandler(base context.Context, hub *realtime.Hub, jwtSecret string, allowedOrigins []string, log zerolog.Logger) *LiveHandler {
	return &LiveHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		base: base,
		log:  log,
	}
}

func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		httputil.WriteUnauthorized(w, "Missing authentication token")
		return
	}
	userID, err := middleware.ParseToken(token, h.jwtSecret)
	if err != nil {
		httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.log.Debug().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.base, cancel)
	defer stop()

	h.hub.Serve(ctx, conn, userID)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
