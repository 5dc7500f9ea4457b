package app_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"rentcrunch/internal/app"
	"rentcrunch/internal/domain"
)

var ctxBG = context.Background()

type fakeMirror struct {
	mu    sync.Mutex
	saved map[string]domain.Override
	err   error
}

func (m *fakeMirror) SaveOverride(_ context.Context, id string, o domain.Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved[id] = o
	return nil
}

func (m *fakeMirror) DeleteOverride(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.saved, id)
	return nil
}

func (m *fakeMirror) LoadOverrides(context.Context) (map[string]domain.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]domain.Override{}
	for k, v := range m.saved {
		out[k] = v
	}
	return out, nil
}

func TestOverrideStore_Validation(t *testing.T) {
	ov := app.NewOverrideStore(nil)
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := ov.SetPrice(ctxBG, "a", bad); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("SetPrice(%v) err = %v", bad, err)
		}
	}
	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		if err := ov.SetRent(ctxBG, "a", bad); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("SetRent(%v) err = %v", bad, err)
		}
	}
	if err := ov.SetRent(ctxBG, "a", 0); err != nil {
		t.Errorf("zero rent should be allowed: %v", err)
	}
	if err := ov.SetPrice(ctxBG, " ", 1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank id err = %v", err)
	}
}

func TestOverrideStore_ClearRestoresCashflow(t *testing.T) {
	ov := app.NewOverrideStore(nil)
	p := domain.Property{ID: "a", Price: 300000, RentEstimate: 2000}
	want := app.ComputeCashflow(ov.Effective(p), baseSettings)

	if err := ov.SetPrice(ctxBG, "a", 180000); err != nil {
		t.Fatal(err)
	}
	if got := app.ComputeCashflow(ov.Effective(p), baseSettings); got == want {
		t.Fatalf("price override did not change cash flow")
	}
	if err := ov.ClearPrice(ctxBG, "a"); err != nil {
		t.Fatal(err)
	}
	if got := app.ComputeCashflow(ov.Effective(p), baseSettings); got != want {
		t.Fatalf("after clear cash flow = %+v, want %+v", got, want)
	}
}

func TestOverrideStore_EffectiveAndClear(t *testing.T) {
	ov := app.NewOverrideStore(nil)
	p := domain.Property{ID: "a", Price: 300000, RentEstimate: 2000}

	if got := ov.Effective(p); got != p {
		t.Fatalf("no override should be identity")
	}
	_ = ov.SetPrice(ctxBG, "a", 250000)
	_ = ov.SetRent(ctxBG, "a", 2200)

	eff := ov.Effective(p)
	if eff.Price != 250000 || eff.RentEstimate != 2200 {
		t.Fatalf("effective = %+v", eff)
	}
	if v, ok := ov.Price("a"); !ok || v != 250000 {
		t.Fatalf("Price = %v, %v", v, ok)
	}
	if p.Price != 300000 {
		t.Fatalf("stored property was modified")
	}

	_ = ov.ClearPrice(ctxBG, "a")
	eff = ov.Effective(p)
	if eff.Price != 300000 || eff.RentEstimate != 2200 {
		t.Fatalf("after ClearPrice effective = %+v", eff)
	}
	_ = ov.ClearRent(ctxBG, "a")
	if _, ok := ov.Get("a"); ok {
		t.Fatalf("entry should be removed once both fields are cleared")
	}
	if len(ov.All()) != 0 {
		t.Fatalf("All() = %+v", ov.All())
	}

	var nilStore *app.OverrideStore
	if got := nilStore.Effective(p); got != p {
		t.Fatalf("nil store should be identity")
	}
}

func TestOverrideStore_MirrorWriteThroughAndLoad(t *testing.T) {
	m := &fakeMirror{saved: map[string]domain.Override{}}
	ov := app.NewOverrideStore(m)
	_ = ov.SetPrice(ctxBG, "a", 100)
	_ = ov.SetRent(ctxBG, "b", 900)
	_ = ov.ClearRent(ctxBG, "b")

	if len(m.saved) != 1 || m.saved["a"].Price == nil || *m.saved["a"].Price != 100 {
		t.Fatalf("mirror = %+v", m.saved)
	}

	restored := app.NewOverrideStore(m)
	if err := restored.Load(ctxBG); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, ok := restored.Price("a"); !ok || v != 100 {
		t.Fatalf("restored price = %v, %v", v, ok)
	}
}

func TestOverrideStore_MirrorFailureKeepsMemory(t *testing.T) {
	m := &fakeMirror{saved: map[string]domain.Override{}, err: errors.New("redis down")}
	ov := app.NewOverrideStore(m)
	if err := ov.SetPrice(ctxBG, "a", 100); err != nil {
		t.Fatalf("mirror failure should not surface: %v", err)
	}
	if v, ok := ov.Price("a"); !ok || v != 100 {
		t.Fatalf("in-memory override lost: %v, %v", v, ok)
	}
	if err := ov.Load(ctxBG); err == nil {
		t.Fatalf("expected Load to report the mirror error")
	}
	if _, ok := ov.Price("a"); !ok {
		t.Fatalf("failed Load should keep the current map")
	}
}

func TestAnalyze_UsesEffectiveValues(t *testing.T) {
	ov := app.NewOverrideStore(nil)
	p := domain.Property{ID: "a", Price: 300000, RentEstimate: 2000}
	_ = ov.SetPrice(ctxBG, "a", 100000)

	a := app.Analyze(p, ov, baseSettings)
	if a.Property.Price != 100000 || a.Override == nil {
		t.Fatalf("analysis = %+v", a)
	}
	want := app.ComputeCashflow(domain.Property{ID: "a", Price: 100000, RentEstimate: 2000}, baseSettings)
	if a.Cashflow != want {
		t.Fatalf("cash flow not computed on effective property")
	}
	if a.RentToPrice != 0.02 {
		t.Fatalf("ratio = %v", a.RentToPrice)
	}

	plain := app.Analyze(domain.Property{ID: "b", Price: 1, RentEstimate: 1}, nil, baseSettings)
	if plain.Override != nil {
		t.Fatalf("unexpected override on nil store")
	}
}
