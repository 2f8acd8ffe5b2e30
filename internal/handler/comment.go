package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"socialnet/internal/httputil"
	"socialnet/internal/model"
	"socialnet/internal/service"
)

// CommentHandler serves comments and replies. Every endpoint answers with
// the whole rebuilt post.
type CommentHandler struct {
	commentService *service.CommentService
	log            zerolog.Logger
}

func NewCommentHandler(commentService *service.CommentService, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		log:            log,
	}
}

type withContent func(ctx context.Context, userID, id string, req model.CommentRequest) (model.PostView, error)

type withoutContent func(ctx context.Context, userID, id string) (model.PostView, error)

// CreateComment handles POST /posts/{id}/comments
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	h.serveContent(w, r, http.StatusCreated, "create comment", h.commentService.CreateComment)
}

// CreateReply handles POST /comments/{id}/replies
func (h *CommentHandler) CreateReply(w http.ResponseWriter, r *http.Request) {
	h.serveContent(w, r, http.StatusCreated, "create reply", h.commentService.CreateReply)
}

// Edit handles PUT /comments/{id}
func (h *CommentHandler) Edit(w http.ResponseWriter, r *http.Request) {
	h.serveContent(w, r, http.StatusOK, "edit comment", h.commentService.EditComment)
}

// DeleteComment handles DELETE /comments/{id}
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "delete comment", h.commentService.DeleteComment)
}

// DeleteReply handles DELETE /replies/{id}
func (h *CommentHandler) DeleteReply(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "delete reply", h.commentService.DeleteReply)
}

// ToggleLike handles PUT /comments/{id}/like
func (h *CommentHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "like comment", h.commentService.ToggleLike)
}

func (h *CommentHandler) serveContent(w http.ResponseWriter, r *http.Request, status int, op string, fn withContent) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CommentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	view, err := fn(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, h.log, err, op)
		return
	}

	httputil.WriteJSON(w, status, view)
}

func (h *CommentHandler) serve(w http.ResponseWriter, r *http.Request, op string, fn withoutContent) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	view, err := fn(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err, op)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}
