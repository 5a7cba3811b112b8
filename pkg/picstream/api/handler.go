package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/kavichu/picstream/pkg/picstream"
)

// Handler exposes the picstream service and moderation pipeline over HTTP.
type Handler struct {
	service  picstream.Service
	pipeline *picstream.Pipeline
	auth     *jwtauth.JWTAuth
	validate *validator.Validate
}

// NewHandler creates a new HTTP handler.
func NewHandler(service picstream.Service, pipeline *picstream.Pipeline, auth *jwtauth.JWTAuth) *Handler {
	return &Handler{
		service:  service,
		pipeline: pipeline,
		auth:     auth,
		validate: validator.New(),
	}
}

// Routes returns the routes for the content API. Owner-scoped operations
// require a verified token; the hook endpoints are called by the identity
// provider and the object-store notification fanout, whose authentication
// is wired at the deployment edge.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.auth))
		r.Use(jwtauth.Authenticator)
		r.Use(ClaimsExtractor)

		r.Post("/posts", h.CreatePost)
		r.Get("/posts", h.ListOwnedPosts)
		r.Post("/images", h.CreateUploadIntent)
		r.Get("/images", h.ListOwnedImages)
	})

	r.Get("/public/images", h.ListPublicImages)
	r.Get("/images/{id}", h.GetImage)

	r.Post("/hooks/confirmation", h.ConfirmUser)
	r.Post("/hooks/upload-completed", h.UploadCompleted)

	return r
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Text string `json:"text" validate:"required"`
}

// CreateUploadIntentRequest is the request body for registering an image
// upload.
type CreateUploadIntentRequest struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
}

// ConfirmUserRequest is the identity provider's confirmation callback body.
type ConfirmUserRequest struct {
	Subject string `json:"sub" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// UploadCompletedRequest is the object-store completion webhook body.
type UploadCompletedRequest struct {
	Key       string    `json:"key" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
}

// CreatePost creates a new text post owned by the caller.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	claims, ok := picstream.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req CreatePostRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := h.service.CreatePost(r.Context(), claims, picstream.CreatePostRequest{Text: req.Text})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, record)
}

// CreateUploadIntent registers an image upload and returns the grant.
func (h *Handler) CreateUploadIntent(w http.ResponseWriter, r *http.Request) {
	claims, ok := picstream.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req CreateUploadIntentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	intent, err := h.service.CreateUploadIntent(r.Context(), claims, picstream.CreateUploadIntentRequest{
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, intent)
}

// ListOwnedPosts lists the caller's posts.
func (h *Handler) ListOwnedPosts(w http.ResponseWriter, r *http.Request) {
	h.listOwned(w, r, h.service.ListOwnedPosts)
}

// ListOwnedImages lists the caller's images in every lifecycle state.
func (h *Handler) ListOwnedImages(w http.ResponseWriter, r *http.Request) {
	h.listOwned(w, r, h.service.ListOwnedImages)
}

func (h *Handler) listOwned(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, claims picstream.Claims, req picstream.ListRequest) (*picstream.Page, error)) {
	claims, ok := picstream.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	listReq, err := parseListRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := list(r.Context(), claims, listReq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, page)
}

// ListPublicImages lists published images.
func (h *Handler) ListPublicImages(w http.ResponseWriter, r *http.Request) {
	listReq, err := parseListRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.service.ListPublicImages(r.Context(), listReq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, page)
}

// GetImage fetches one image record by id.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, record)
}

// ConfirmUser handles the identity provider's confirmation callback.
func (h *Handler) ConfirmUser(w http.ResponseWriter, r *http.Request) {
	var req ConfirmUserRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.ConfirmUser(r.Context(), picstream.ConfirmUserRequest{
		Subject: req.Subject,
		Email:   req.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, user)
}

// UploadCompleted feeds an object-store completion notification into the
// moderation pipeline. Replays are absorbed by the pipeline, so redelivery
// by the webhook sender is harmless.
func (h *Handler) UploadCompleted(w http.ResponseWriter, r *http.Request) {
	var req UploadCompletedRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.pipeline.HandleUploadCompleted(r.Context(), picstream.CompletionEvent{
		Key:       req.Key,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "accepted"})
}

// decode unmarshals and validates a JSON request body.
func (h *Handler) decode(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", picstream.ErrInvalidInput, err)
	}
	if err := h.validate.Struct(dest); err != nil {
		return fmt.Errorf("%w: %v", picstream.ErrInvalidInput, err)
	}
	return nil
}

// parseListRequest reads pagination parameters. Order defaults to
// ascending, matching creation order.
func parseListRequest(r *http.Request) (picstream.ListRequest, error) {
	req := picstream.ListRequest{
		Cursor:    r.URL.Query().Get("cursor"),
		Ascending: true,
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%w: limit must be an integer", picstream.ErrInvalidInput)
		}
		req.Limit = limit
	}

	if order := r.URL.Query().Get("order"); order != "" {
		switch order {
		case "asc":
			req.Ascending = true
		case "desc":
			req.Ascending = false
		default:
			return req, fmt.Errorf("%w: order must be 'asc' or 'desc'", picstream.ErrInvalidInput)
		}
	}

	return req, nil
}
