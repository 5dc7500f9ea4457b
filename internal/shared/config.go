package shared

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/rs/zerolog/log"

	"rentcrunch/internal/domain"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"prod"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR"`

	// Listing provider
	ProviderBase string `env:"PROVIDER_BASE_URL" envDefault:"https://api.listings.example.com/v1"`
	ProviderKey  string `env:"PROVIDER_API_KEY"`
	ProviderRPS  int    `env:"PROVIDER_RPS" envDefault:"5"`

	// Search session
	PageSize          int           `env:"PAGE_SIZE" envDefault:"42"`
	PageConcurrency   int           `env:"PAGE_CONCURRENCY" envDefault:"0"`
	EnrichConcurrency int           `env:"ENRICH_CONCURRENCY" envDefault:"4"`
	DrainTimeout      time.Duration `env:"DRAIN_TIMEOUT" envDefault:"5s"`

	// Optional stores; empty disables them.
	MySQLDSN  string `env:"MYSQL_DSN"`
	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`
	RedisPass string `env:"REDIS_PASSWORD"`

	RentCacheTTLSeconds int `env:"RENT_CACHE_TTL_SECONDS" envDefault:"86400"`

	Defaults CashflowDefaults
}

// CashflowDefaults seed the session's settings until the user changes them.
type CashflowDefaults struct {
	InterestRate        float64 `env:"DEFAULT_INTEREST_RATE" envDefault:"7"`
	LoanTermYears       float64 `env:"DEFAULT_LOAN_TERM_YEARS" envDefault:"30"`
	DownPaymentPercent  float64 `env:"DEFAULT_DOWN_PAYMENT_PERCENT" envDefault:"20"`
	TaxInsurancePercent float64 `env:"DEFAULT_TAX_INSURANCE_PERCENT" envDefault:"1.5"`
	VacancyPercent      float64 `env:"DEFAULT_VACANCY_PERCENT" envDefault:"5"`
	CapexPercent        float64 `env:"DEFAULT_CAPEX_PERCENT" envDefault:"5"`
	ManagementPercent   float64 `env:"DEFAULT_MANAGEMENT_PERCENT" envDefault:"8"`
	RehabAmount         float64 `env:"DEFAULT_REHAB_AMOUNT" envDefault:"0"`
}

func (d CashflowDefaults) Settings() domain.CashflowSettings {
	return domain.CashflowSettings{
		InterestRate:        d.InterestRate,
		LoanTermYears:       d.LoanTermYears,
		DownPaymentPercent:  d.DownPaymentPercent,
		TaxInsurancePercent: d.TaxInsurancePercent,
		VacancyPercent:      d.VacancyPercent,
		CapexPercent:        d.CapexPercent,
		ManagementPercent:   d.ManagementPercent,
		RehabAmount:         d.RehabAmount,
	}
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if c.PageSize <= 0 {
		return Config{}, fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.ProviderKey == "" {
		log.Warn().Msg("PROVIDER_API_KEY is empty")
	}
	return c, nil
}
