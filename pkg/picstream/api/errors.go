package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/kavichu/picstream/pkg/picstream"
)

// ErrorResponse is the JSON body returned on failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError maps the service error taxonomy onto HTTP statuses. Client
// errors surface their message; everything else gets a generic body so
// internals stay internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case picstream.IsClientError(err):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
	case errors.Is(err, picstream.ErrUnauthorized):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, ErrorResponse{Error: "forbidden"})
	case errors.Is(err, picstream.ErrNotFound), errors.Is(err, picstream.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Error: "not found"})
	case picstream.IsTransient(err):
		slog.Error("transient backend failure", "path", r.URL.Path, "error", err)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{Error: "temporarily unavailable"})
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "internal error"})
	}
}
