package shared_test

import (
	"testing"
	"time"

	"rentcrunch/internal/shared"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PROVIDER_API_KEY", "k")
	cfg, err := shared.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PageSize != 42 {
		t.Fatalf("PageSize = %d, want 42", cfg.PageSize)
	}
	if cfg.DrainTimeout != 5*time.Second {
		t.Fatalf("DrainTimeout = %v", cfg.DrainTimeout)
	}
	s := cfg.Defaults.Settings()
	if s.LoanTermYears != 30 || s.DownPaymentPercent != 20 {
		t.Fatalf("unexpected default settings: %+v", s)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PAGE_SIZE", "10")
	t.Setenv("DRAIN_TIMEOUT", "250ms")
	t.Setenv("DEFAULT_INTEREST_RATE", "6")
	cfg, err := shared.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PageSize != 10 || cfg.DrainTimeout != 250*time.Millisecond || cfg.Defaults.InterestRate != 6 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("PAGE_SIZE", "zero")
	if _, err := shared.Load(); err == nil {
		t.Fatalf("expected parse error")
	}
	t.Setenv("PAGE_SIZE", "0")
	if _, err := shared.Load(); err == nil {
		t.Fatalf("expected error for non-positive page size")
	}
}
