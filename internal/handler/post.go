package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"socialnet/internal/httputil"
	"socialnet/internal/model"
	"socialnet/internal/service"
)

type PostHandler struct {
	postService *service.PostService
	log         zerolog.Logger
}

func NewPostHandler(postService *service.PostService, log zerolog.Logger) *PostHandler {
	return &PostHandler{
		postService: postService,
		log:         log,
	}
}

// Create handles POST /posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CreatePostRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	post, err := h.postService.Create(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "create post")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, post)
}

// GetByID handles GET /posts/{id}
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	post, err := h.postService.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err, "get post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// Update handles PUT /posts/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.UpdatePostRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	post, err := h.postService.Update(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "update post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}
// Removes the post with all of its comments (only owner can delete).
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	postID := chi.URLParam(r, "id")
	if err := h.postService.Delete(r.Context(), userID, postID); err != nil {
		writeServiceError(w, r, h.log, err, "delete post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Post deleted",
		"id":      postID,
	})
}

// ToggleLike handles PUT /posts/{id}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	post, err := h.postService.ToggleLike(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err, "like post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// GetUserPosts handles GET /users/{id}/posts
//
// Query params:
//   - page: optional, 1-based (default 1)
//   - limit: optional, posts per page (default 10, max 50)
func (h *PostHandler) GetUserPosts(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, ok := queryInt(w, r, "page", 1)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", service.PostsDefaultLimit)
	if !ok {
		return
	}

	posts, err := h.postService.ListByUser(r.Context(), chi.URLParam(r, "id"), viewerID, page, limit)
	if err != nil {
		writeServiceError(w, r, h.log, err, "get user posts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, posts)
}
