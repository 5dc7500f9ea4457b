package httpserver_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpserver "rentcrunch/internal/adapters/http_server"
	"rentcrunch/internal/app"
	"rentcrunch/internal/domain"
)

// ---------- fakes ----------

type fakeProvider struct {
	props []domain.Property
}

func (f *fakeProvider) CountMatches(context.Context, domain.SearchQuery) (int, error) {
	return len(f.props), nil
}

func (f *fakeProvider) FetchPage(_ context.Context, req domain.PageRequest) ([]domain.Property, error) {
	lo := (req.Page - 1) * req.PageSize
	hi := lo + req.PageSize
	if hi > len(f.props) {
		hi = len(f.props)
	}
	if lo >= hi {
		return nil, nil
	}
	return append([]domain.Property(nil), f.props[lo:hi]...), nil
}

func (f *fakeProvider) FetchByAddress(context.Context, domain.Generation, string) (domain.Property, error) {
	return domain.Property{}, domain.ErrNotFound
}

func (f *fakeProvider) Subscribe(func(domain.PropertyUpdate)) func() { return func() {} }

type fakeJournal struct {
	mu   sync.Mutex
	runs map[string]domain.SearchRun
}

func (j *fakeJournal) RecordRun(_ context.Context, run domain.SearchRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs[run.ID] = run
	return nil
}

func (j *fakeJournal) LogMiss(context.Context, string, int, string) error { return nil }

func (j *fakeJournal) ListRuns(context.Context, int) ([]domain.SearchRun, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.SearchRun, 0, len(j.runs))
	for _, r := range j.runs {
		out = append(out, r)
	}
	return out, nil
}

// ---------- helpers ----------

func ptr[T any](v T) *T { return &v }

func listings() []domain.Property {
	return []domain.Property{
		{ID: "a", Address: "1 Oak St", Price: 200000, RentEstimate: 1800, Bedrooms: ptr(3.0)},
		{ID: "b", Address: "2 Elm St", Price: 350000, RentEstimate: 2400, Bedrooms: ptr(4.0)},
		{ID: "c", Address: "3 Ash St", Price: 120000, RentEstimate: 1300},
	}
}

type fixture struct {
	s       *app.Session
	journal *fakeJournal
	h       http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	j := &fakeJournal{runs: map[string]domain.SearchRun{}}
	s := app.NewSession(&fakeProvider{props: listings()}, app.NewOverrideStore(nil), j, app.SessionConfig{
		PageSize:     2,
		DrainTimeout: 200 * time.Millisecond,
		Settings: domain.CashflowSettings{
			InterestRate: 6, LoanTermYears: 30, DownPaymentPercent: 20, TaxInsurancePercent: 1.5,
		},
	})
	s.Start(ctx)
	t.Cleanup(func() { s.Close(); cancel() })

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{S: s, Journal: j})
	return &fixture{s: s, journal: j, h: srv.Mux()}
}

func (f *fixture) do(t *testing.T, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, req)
	return rr
}

// search starts a search and waits for it to complete.
func (f *fixture) search(t *testing.T) domain.Snapshot {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/v1/search", `{"location":"Austin, TX","max_price":"$500,000"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("POST /v1/search = %d: %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Generation domain.Generation `json:"generation"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := f.s.Wait(ctx, out.Generation)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return snap
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type itemsView struct {
	Items []app.Analysis `json:"items"`
}

// ---------- tests ----------

func TestStartSearch_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"missing location": `{"location":"   "}`,
		"min above max":    `{"location":"Austin","min_price":500000,"max_price":"100,000"}`,
		"negative beds":    `{"location":"Austin","min_beds":-1}`,
		"garbage amount":   `{"location":"Austin","max_price":"lots"}`,
		"unknown field":    `{"location":"Austin","zip":"78701"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/v1/search", body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rr.Code, rr.Body.String())
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Fatalf("content type = %q", ct)
			}
		})
	}
	if st := f.s.Snapshot().State; st != domain.StateIdle {
		t.Fatalf("rejected input changed state to %s", st)
	}
}

func TestSearch_ListPropertiesWithETag(t *testing.T) {
	f := newFixture(t)
	snap := f.search(t)
	if snap.State != domain.StateComplete || snap.Degraded || len(snap.Properties) != 3 {
		t.Fatalf("unexpected snapshot: state=%s degraded=%v n=%d", snap.State, snap.Degraded, len(snap.Properties))
	}

	status := decode[map[string]any](t, f.do(t, http.MethodGet, "/v1/search", ""))
	if status["state"] != "complete" || status["received"] != 3.0 || status["pages"] != 2.0 {
		t.Fatalf("unexpected status: %v", status)
	}

	rr := f.do(t, http.MethodGet, "/v1/properties", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /v1/properties = %d", rr.Code)
	}
	etag := rr.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("expected weak ETag, got %q", etag)
	}
	body := decode[itemsView](t, rr)
	if len(body.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(body.Items))
	}
	if body.Items[0].Cashflow.MortgagePayment <= 0 {
		t.Fatalf("expected computed cash flow, got %+v", body.Items[0].Cashflow)
	}

	rr = f.do(t, http.MethodGet, "/v1/properties", "", "If-None-Match", etag)
	if rr.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/v1/properties?limit=1", "")
	if n := len(decode[itemsView](t, rr).Items); n != 1 {
		t.Fatalf("limit ignored: %d items", n)
	}
}

func TestSort_ReordersResults(t *testing.T) {
	f := newFixture(t)
	f.search(t)

	if rr := f.do(t, http.MethodPut, "/v1/sort", `{"key":"bogus"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad key status = %d", rr.Code)
	}
	if rr := f.do(t, http.MethodPut, "/v1/sort", `{"key":"price","direction":"desc"}`); rr.Code != http.StatusAccepted {
		t.Fatalf("PUT /v1/sort = %d", rr.Code)
	}
	eventually(t, func() bool {
		props := f.s.Snapshot().Properties
		return len(props) == 3 && props[0].ID == "b" && props[1].ID == "a" && props[2].ID == "c"
	})
}

func TestOverrides_ApplyToAnalysis(t *testing.T) {
	f := newFixture(t)
	f.search(t)

	rr := f.do(t, http.MethodPut, "/v1/overrides/a/price", `{"value":"$100,000"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT price override = %d: %s", rr.Code, rr.Body.String())
	}
	if rr := f.do(t, http.MethodPut, "/v1/overrides/a/price", `{"value":-5}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("negative price status = %d", rr.Code)
	}
	if rr := f.do(t, http.MethodPut, "/v1/overrides/a/rent", `{"value":2000}`); rr.Code != http.StatusOK {
		t.Fatalf("PUT rent override = %d", rr.Code)
	}

	a := decode[app.Analysis](t, f.do(t, http.MethodGet, "/v1/properties/a/analysis", ""))
	if a.Property.Price != 100000 || a.Property.RentEstimate != 2000 || a.Override == nil {
		t.Fatalf("override not applied: %+v", a)
	}

	all := decode[map[string]domain.Override](t, f.do(t, http.MethodGet, "/v1/overrides", ""))
	if len(all) != 1 || all["a"].Price == nil {
		t.Fatalf("unexpected overrides: %+v", all)
	}

	if rr := f.do(t, http.MethodDelete, "/v1/overrides/a/price", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE price override = %d", rr.Code)
	}
	a = decode[app.Analysis](t, f.do(t, http.MethodGet, "/v1/properties/a/analysis", ""))
	if a.Property.Price != 200000 || a.Property.RentEstimate != 2000 {
		t.Fatalf("unexpected effective values after clear: %+v", a.Property)
	}
}

func TestAnalysis_SettingsFromQueryAndNotFound(t *testing.T) {
	f := newFixture(t)
	f.search(t)

	base := decode[app.Analysis](t, f.do(t, http.MethodGet, "/v1/properties/b/analysis", ""))
	cheap := decode[app.Analysis](t, f.do(t, http.MethodGet, "/v1/properties/b/analysis?interest_rate=0", ""))
	if !(cheap.Cashflow.MortgagePayment < base.Cashflow.MortgagePayment) {
		t.Fatalf("expected lower payment at 0%%: %v vs %v", cheap.Cashflow.MortgagePayment, base.Cashflow.MortgagePayment)
	}
	if rr := f.do(t, http.MethodGet, "/v1/properties/b/analysis?interest_rate=abc", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad param status = %d", rr.Code)
	}
	if rr := f.do(t, http.MethodGet, "/v1/properties/zzz/analysis", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d", rr.Code)
	}
}

func TestSettings_PartialUpdate(t *testing.T) {
	f := newFixture(t)

	if rr := f.do(t, http.MethodPut, "/v1/settings", `{"vacancy_percent":-1}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("negative setting status = %d", rr.Code)
	}
	if rr := f.do(t, http.MethodPut, "/v1/settings", `{"interest_rate":5}`); rr.Code != http.StatusAccepted {
		t.Fatalf("PUT /v1/settings = %d", rr.Code)
	}
	eventually(t, func() bool {
		s := decode[domain.CashflowSettings](t, f.do(t, http.MethodGet, "/v1/settings", ""))
		return s.InterestRate == 5 && s.LoanTermYears == 30
	})
}

func TestHistory_ListsRuns(t *testing.T) {
	f := newFixture(t)
	f.search(t)

	eventually(t, func() bool {
		runs, _ := f.journal.ListRuns(context.Background(), 10)
		return len(runs) == 1
	})
	if rr := f.do(t, http.MethodGet, "/v1/history?limit=0", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rr.Code)
	}
	out := decode[struct {
		Items []domain.SearchRun `json:"items"`
	}](t, f.do(t, http.MethodGet, "/v1/history", ""))
	if len(out.Items) != 1 || out.Items[0].Query.Location != "Austin, TX" {
		t.Fatalf("unexpected history: %+v", out.Items)
	}
}

func TestSearchEvents_StreamsStatus(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/search/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var status map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &status); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if status["state"] != "idle" {
			t.Fatalf("first event state = %v", status["state"])
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", sc.Err())
}
