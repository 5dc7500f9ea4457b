// Package bootstrap builds the adapters both binaries share from Config.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"rentcrunch/internal/adapters/listings"
	redisad "rentcrunch/internal/adapters/redis"
	"rentcrunch/internal/app"
	"rentcrunch/internal/domain"
	"rentcrunch/internal/shared"
	mysqlrepo "rentcrunch/internal/storage/mysql"
)

const pingTimeout = 5 * time.Second

// Deps are the live adapters. Cache, DB and Journal are nil when their
// store is not configured.
type Deps struct {
	Provider *listings.Client
	Cache    *redisad.Cache
	DB       *sql.DB
	Journal  *mysqlrepo.Repo
}

func Open(ctx context.Context, cfg shared.Config) (*Deps, error) {
	d := &Deps{}

	if cfg.RedisAddr != "" {
		d.Cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := d.Cache.Ping(pctx)
		cancel()
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis connection ok")
	}

	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		d.DB = db
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = db.PingContext(pctx)
		cancel()
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		d.Journal = mysqlrepo.New(db)
		log.Info().Msg("database connection ok")
	}

	opts := []listings.Option{listings.WithEnrichConcurrency(cfg.EnrichConcurrency)}
	if d.Cache != nil {
		opts = append(opts, listings.WithCache(d.Cache, cfg.RentCacheTTLSeconds))
	}
	p, err := listings.New(cfg.ProviderBase, cfg.ProviderKey, cfg.ProviderRPS, opts...)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("listing provider: %w", err)
	}
	d.Provider = p
	return d, nil
}

// SearchJournal returns the journal as a port, nil when MySQL is off.
func (d *Deps) SearchJournal() domain.SearchJournal {
	if d.Journal == nil {
		return nil
	}
	return d.Journal
}

// NewSession builds a session whose overrides are mirrored to Redis when
// available. Mirrored overrides are loaded before it returns.
func (d *Deps) NewSession(ctx context.Context, cfg shared.Config) *app.Session {
	var mirror domain.OverrideMirror
	if d.Cache != nil {
		mirror = d.Cache
	}
	ov := app.NewOverrideStore(mirror)
	if err := ov.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("starting without mirrored overrides")
	}
	return app.NewSession(d.Provider, ov, d.SearchJournal(), app.SessionConfig{
		PageSize:        cfg.PageSize,
		PageConcurrency: cfg.PageConcurrency,
		DrainTimeout:    cfg.DrainTimeout,
		Settings:        cfg.Defaults.Settings(),
	})
}

func (d *Deps) Close() {
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("db close failed")
		}
	}
}
