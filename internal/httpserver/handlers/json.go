package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/hilite/internal/anchor"
	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/page"
	"github.com/MrSnakeDoc/hilite/internal/paint"
	"github.com/MrSnakeDoc/hilite/internal/selection"
	"github.com/MrSnakeDoc/hilite/internal/store"
)

const defaultMaxBody = 5 << 20

// errBadRequest marks malformed input detected by the handlers themselves.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and logs server-side failures.
func writeError(w http.ResponseWriter, d deps.Deps, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		d.Logger.Error("request failed", logger.Error(err))
	} else {
		d.Logger.Debug("request rejected",
			logger.Int("status", status),
			logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, selection.ErrEmptySelection),
		errors.Is(err, domain.ErrUnknownColor),
		errors.Is(err, anchor.ErrUnresolvable),
		errors.Is(err, anchor.ErrCollapsed),
		errors.Is(err, paint.ErrEmptyRange):
		return http.StatusBadRequest
	case errors.Is(err, paint.ErrRestrictedBoundary),
		errors.Is(err, anchor.ErrTextNotFound),
		errors.Is(err, anchor.ErrNoPage),
		errors.Is(err, page.ErrPageNotRendered):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func limitBody(w http.ResponseWriter, r *http.Request, d deps.Deps) io.Reader {
	n := d.MaxBodyBytes
	if n <= 0 {
		n = defaultMaxBody
	}
	return http.MaxBytesReader(w, r.Body, n)
}

// decodeJSON reads one JSON value from the capped request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, d deps.Deps, v any) error {
	dec := json.NewDecoder(limitBody(w, r, d))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest("invalid json: %v", err)
	}
	return nil
}

// pageURL returns the required url query parameter.
func pageURL(r *http.Request) (string, error) {
	u := r.URL.Query().Get("url")
	if domain.NormalizeURL(u) == "" {
		return "", badRequest("url query parameter is required")
	}
	return u, nil
}
