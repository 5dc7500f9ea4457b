package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rentcrunch/internal/app"
	"rentcrunch/internal/domain"
)

type propertiesView struct {
	Generation domain.Generation       `json:"generation"`
	State      domain.SessionState     `json:"state"`
	Degraded   bool                    `json:"degraded"`
	Total      int                     `json:"total"`
	Sort       *domain.SortConfig      `json:"sort,omitempty"`
	Settings   domain.CashflowSettings `json:"settings"`
	Items      []app.Analysis          `json:"items"`
}

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 0, 10000)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := h.S.Snapshot()
	props := snap.Properties
	if limit > 0 && limit < len(props) {
		props = props[:limit]
	}
	writeCached(w, r, propertiesView{
		Generation: snap.Generation,
		State:      snap.State,
		Degraded:   snap.Degraded,
		Total:      snap.Total,
		Sort:       snap.Sort,
		Settings:   snap.Settings,
		Items:      app.AnalyzeAll(props, h.S.Overrides(), snap.Settings),
	})
}

// settingsParams lets a single analysis try different assumptions without
// touching the session's settings.
var settingsParams = map[string]func(*domain.CashflowSettings) *float64{
	"interest_rate":         func(s *domain.CashflowSettings) *float64 { return &s.InterestRate },
	"loan_term_years":       func(s *domain.CashflowSettings) *float64 { return &s.LoanTermYears },
	"down_payment_percent":  func(s *domain.CashflowSettings) *float64 { return &s.DownPaymentPercent },
	"tax_insurance_percent": func(s *domain.CashflowSettings) *float64 { return &s.TaxInsurancePercent },
	"vacancy_percent":       func(s *domain.CashflowSettings) *float64 { return &s.VacancyPercent },
	"capex_percent":         func(s *domain.CashflowSettings) *float64 { return &s.CapexPercent },
	"management_percent":    func(s *domain.CashflowSettings) *float64 { return &s.ManagementPercent },
	"rehab_amount":          func(s *domain.CashflowSettings) *float64 { return &s.RehabAmount },
}

func (h *Handlers) propertyAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap := h.S.Snapshot()

	settings := snap.Settings
	for name, field := range settingsParams {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := app.ParseAmount(strings.ReplaceAll(name, "_", " "), raw)
		if err != nil {
			writeError(w, err)
			return
		}
		*field(&settings) = *v
	}
	if err := app.ValidateSettings(settings); err != nil {
		writeError(w, err)
		return
	}

	for _, p := range snap.Properties {
		if p.ID == id {
			writeCached(w, r, app.Analyze(p, h.S.Overrides(), settings))
			return
		}
	}
	writeProblem(w, http.StatusNotFound, "Not Found", "property not in current results")
}

type sortRequest struct {
	Key       string `json:"key"`
	Direction string `json:"direction"`
}

func (h *Handlers) setSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := h.S.SetSortConfig(domain.SortConfig{
		Key:       domain.SortKey(req.Key),
		Direction: domain.SortDirection(req.Direction),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) clearSort(w http.ResponseWriter, r *http.Request) {
	h.S.ClearSort()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.S.Snapshot().Settings)
}

// putSettings applies a partial update on top of the current settings.
func (h *Handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.S.Snapshot().Settings
	if err := decodeBody(r, &settings); err != nil {
		writeError(w, err)
		return
	}
	if err := h.S.SetSettings(settings); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, settings)
}

type overrideRequest struct {
	Value amount `json:"value"`
}

func (h *Handlers) listOverrides(w http.ResponseWriter, r *http.Request) {
	ov := h.S.Overrides()
	if ov == nil {
		writeJSON(w, http.StatusOK, map[string]domain.Override{})
		return
	}
	writeJSON(w, http.StatusOK, ov.All())
}

func (h *Handlers) setPriceOverride(w http.ResponseWriter, r *http.Request) {
	h.setOverride(w, r, "price", (*app.OverrideStore).SetPrice)
}

func (h *Handlers) setRentOverride(w http.ResponseWriter, r *http.Request) {
	h.setOverride(w, r, "rent", (*app.OverrideStore).SetRent)
}

func (h *Handlers) clearPriceOverride(w http.ResponseWriter, r *http.Request) {
	h.clearOverride(w, r, (*app.OverrideStore).ClearPrice)
}

func (h *Handlers) clearRentOverride(w http.ResponseWriter, r *http.Request) {
	h.clearOverride(w, r, (*app.OverrideStore).ClearRent)
}

func (h *Handlers) setOverride(w http.ResponseWriter, r *http.Request, field string,
	set func(*app.OverrideStore, context.Context, string, float64) error) {
	ov := h.S.Overrides()
	if ov == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Overrides disabled", "")
		return
	}
	var req overrideRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	v, err := app.ParseAmount(field, string(req.Value))
	if err != nil {
		writeError(w, err)
		return
	}
	if v == nil {
		writeError(w, invalid(field+" value is required"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := set(ov, r.Context(), id, *v); err != nil {
		writeError(w, err)
		return
	}
	h.S.Resort()
	o, _ := ov.Get(id)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) clearOverride(w http.ResponseWriter, r *http.Request,
	clear func(*app.OverrideStore, context.Context, string) error) {
	ov := h.S.Overrides()
	if ov == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Overrides disabled", "")
		return
	}
	if err := clear(ov, r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	h.S.Resort()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) history(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 20, 200)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Journal == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []domain.SearchRun{}})
		return
	}
	runs, err := h.Journal.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []domain.SearchRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": runs, "limit": limit})
}
