package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/harmonia-saude/leadops-cli/internal/db"
	"github.com/harmonia-saude/leadops-cli/internal/lead"
	"github.com/harmonia-saude/leadops-cli/internal/phone"
	"github.com/harmonia-saude/leadops-cli/internal/resilience"
	"github.com/harmonia-saude/leadops-cli/pkg/whatsapp"
)

func initStore(ctx context.Context) (lead.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadops.db"
		}
		return lead.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("database URL is required (LEADOPS_STORE_DATABASE_URL)")
		}
		pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return lead.NewPostgresStore(pool), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initDenylist() (*phone.Denylist, error) {
	if cfg.Phone.DenylistPath == "" {
		return nil, nil
	}
	return phone.LoadDenylist(cfg.Phone.DenylistPath)
}

func initResolver(store lead.Store, denylist *phone.Denylist, extra ...lead.ResolverOption) *lead.Resolver {
	opts := []lead.ResolverOption{
		lead.WithRegions(resolverRegions()...),
		lead.WithSuffixLimit(cfg.Resolver.SuffixLimit),
		lead.WithQueryTimeout(time.Duration(cfg.Resolver.QueryTimeoutSecs) * time.Second),
	}
	if denylist != nil {
		opts = append(opts, lead.WithDenylist(denylist))
	}
	if cfg.Resolver.SelfHeal {
		opts = append(opts, lead.WithSelfHeal(true))
	}
	opts = append(opts, extra...)
	return lead.NewResolver(store, opts...)
}

func initWhatsApp() (whatsapp.Client, error) {
	if cfg.WhatsApp.Token == "" {
		return nil, eris.New("vendor token is required (LEADOPS_WHATSAPP_TOKEN)")
	}
	return whatsapp.NewClient(
		cfg.WhatsApp.BaseURL,
		cfg.WhatsApp.Token,
		cfg.WhatsApp.SenderID,
		whatsapp.WithRateLimit(cfg.WhatsApp.RateLimitRPS),
		whatsapp.WithTimeout(time.Duration(cfg.WhatsApp.TimeoutSecs)*time.Second),
		whatsapp.WithRetry(resilience.DefaultRetryConfig()),
		whatsapp.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())),
	), nil
}
