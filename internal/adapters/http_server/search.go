package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"rentcrunch/internal/app"
	"rentcrunch/internal/domain"
)

// amount accepts either a JSON number or user-typed text like "$300,000".
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = amount(n.String())
	return nil
}

type searchRequest struct {
	Location  string   `json:"location"`
	MinPrice  amount   `json:"min_price"`
	MaxPrice  amount   `json:"max_price"`
	MinBeds   amount   `json:"min_beds"`
	MinBaths  amount   `json:"min_baths"`
	HomeTypes []string `json:"home_types"`
}

type statusView struct {
	RunID        string              `json:"run_id,omitempty"`
	Generation   domain.Generation   `json:"generation"`
	State        domain.SessionState `json:"state"`
	Degraded     bool                `json:"degraded"`
	Query        domain.SearchQuery  `json:"query"`
	Total        int                 `json:"total"`
	Received     int                 `json:"received"`
	Pages        int                 `json:"pages"`
	PagesSettled int                 `json:"pages_settled"`
	PagesFailed  int                 `json:"pages_failed"`
	Sort         *domain.SortConfig  `json:"sort,omitempty"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func statusOf(s domain.Snapshot) statusView {
	return statusView{
		RunID:        s.RunID,
		Generation:   s.Generation,
		State:        s.State,
		Degraded:     s.Degraded,
		Query:        s.Query,
		Total:        s.Total,
		Received:     len(s.Properties),
		Pages:        s.Pages,
		PagesSettled: s.PagesSettled,
		PagesFailed:  s.PagesFailed,
		Sort:         s.Sort,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (h *Handlers) startSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	f, err := app.ParseFilters(string(req.MinPrice), string(req.MaxPrice), string(req.MinBeds), string(req.MinBaths), req.HomeTypes)
	if err != nil {
		writeError(w, err)
		return
	}
	gen, err := h.S.StartSearch(req.Location, f)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/search")
	writeJSON(w, http.StatusAccepted, map[string]any{"generation": gen})
}

func (h *Handlers) abortSearch(w http.ResponseWriter, r *http.Request) {
	h.S.Abort()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) searchStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusOf(h.S.Snapshot()))
}

// searchEvents streams status changes as server-sent events until the client
// goes away or the session closes.
func (h *Handlers) searchEvents(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "")
		return
	}
	ch, cancel := h.S.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	var last []byte
	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(statusOf(snap))
			if err != nil {
				log.Error().Err(err).Msg("marshal status event failed")
				return
			}
			if bytes.Equal(b, last) {
				continue
			}
			last = b
			if _, err := fmt.Fprintf(w, "id: %s\nevent: status\ndata: %s\n\n", strconv.FormatUint(uint64(snap.Generation), 10), b); err != nil {
				return
			}
			fl.Flush()
		}
	}
}
