package handlers

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/apperr"
)

// ErrorBody is the client-visible part of every failed response.
type ErrorBody struct {
	Code    apperr.Kind `json:"code"`
	Message string      `json:"message"`
}

type ErrorResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	Body ErrorBody `json:"error"`
}

func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// ErrResponse maps any error onto the envelope. Internal detail stays in
// the log.
func ErrResponse(err error) render.Renderer {
	return &ErrorResponse{
		Err:            err,
		HTTPStatusCode: apperr.Status(err),
		Body:           ErrorBody{Code: apperr.KindOf(err), Message: apperr.PublicMessage(err)},
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if d := apperr.RetryAfter(err); d > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
	}
	if apperr.Status(err) >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	}
	render.Render(w, r, ErrResponse(err))
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	render.JSON(w, r, v)
}

func writeCreated(w http.ResponseWriter, r *http.Request, v any) {
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, v)
}

func writeNoContent(w http.ResponseWriter, r *http.Request) {
	render.NoContent(w, r)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// idParam parses a uuid path parameter for a mutation. A malformed id
// cannot name any entity, so it reads as not found.
func idParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.NotFound("not found")
	}
	return id, nil
}

// queryID parses a uuid path parameter for a read. A malformed id names
// nothing, so the caller answers null or [] as for an id it cannot see.
func queryID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

var emptyList = []struct{}{}

// Query handlers answer null or an empty list for anything the caller may
// not see; these keep the JSON shape stable.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
