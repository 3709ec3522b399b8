package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"chatapp-gateway/internal/apperror"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.sugar.Error(err)
	}
}

// fail writes err as a {kind, message} body with the status of its kind.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		h.sugar.Error(err)
	} else {
		h.sugar.Debug(err)
	}
	h.writeJSON(w, status, apperror.Payload(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return apperror.BadRequest("Request body is empty")
	}
	if err != nil {
		return apperror.Wrap(apperror.KindBadRequest, "Request body is not valid JSON", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.BadRequest("Invalid " + name)
	}
	return id, nil
}

// queryInt64 reads an optional integer query parameter; absent means 0.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.BadRequest("Invalid " + name)
	}
	return v, nil
}

// pageParams are the query parameters of a paginated list.
type pageParams struct {
	limit    int
	cursor   int64
	cursorID int64
}

// pageQuery reads the limit, cursor and cursorId parameters of a paginated
// list.
func pageQuery(r *http.Request) (pageParams, error) {
	limit, err := queryInt64(r, "limit")
	if err != nil {
		return pageParams{}, err
	}
	if limit < 0 {
		return pageParams{}, apperror.BadRequest("Invalid limit")
	}
	cursor, err := queryInt64(r, "cursor")
	if err != nil {
		return pageParams{}, err
	}
	cursorID, err := queryInt64(r, "cursorId")
	if err != nil {
		return pageParams{}, err
	}
	return pageParams{limit: int(limit), cursor: cursor, cursorID: cursorID}, nil
}
