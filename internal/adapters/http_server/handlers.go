// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"rentcrunch/internal/app"
	"rentcrunch/internal/domain"
)

const maxBody = 1 << 20

// Handlers serves the search session over HTTP. Journal may be nil.
type Handlers struct {
	S       *app.Session
	Journal domain.SearchJournal
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	// streams are long-lived and must not sit behind the request timeout
	s.mux.Get("/v1/search/events", h.searchEvents)

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(RequestTimeout))

		r.Post("/v1/search", h.startSearch)
		r.Delete("/v1/search", h.abortSearch)
		r.Get("/v1/search", h.searchStatus)

		r.Get("/v1/properties", h.listProperties)
		r.Get("/v1/properties/{id}/analysis", h.propertyAnalysis)

		r.Put("/v1/sort", h.setSort)
		r.Delete("/v1/sort", h.clearSort)
		r.Get("/v1/settings", h.getSettings)
		r.Put("/v1/settings", h.putSettings)

		r.Get("/v1/overrides", h.listOverrides)
		r.Put("/v1/overrides/{id}/price", h.setPriceOverride)
		r.Delete("/v1/overrides/{id}/price", h.clearPriceOverride)
		r.Put("/v1/overrides/{id}/rent", h.setRentOverride)
		r.Delete("/v1/overrides/{id}/rent", h.clearRentOverride)

		r.Get("/v1/history", h.history)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeCached writes v with a weak ETag, answering 304 when the client
// already holds this version.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write cached body")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalid("malformed JSON body: " + err.Error())
	}
	return nil
}

func invalid(detail string) error { return &inputError{detail} }

type inputError struct{ detail string }

func (e *inputError) Error() string { return e.detail }
func (e *inputError) Unwrap() error { return domain.ErrInvalidInput }

func parseLimit(r *http.Request, def, max int) (int, error) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return def, nil
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > max {
		return 0, invalid("limit must be an integer between 1 and " + strconv.Itoa(max))
	}
	return l, nil
}
