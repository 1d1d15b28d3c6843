package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/idctl/pkg/config"
	"github.com/platinummonkey/idctl/pkg/gateway"
	"github.com/platinummonkey/idctl/pkg/identity"
	"github.com/platinummonkey/idctl/pkg/observability"
	"github.com/platinummonkey/idctl/pkg/reconciler"
	"github.com/platinummonkey/idctl/pkg/session"
)

// Deps are the process-level pieces NewApp does not build itself
type Deps struct {
	Logger   *logrus.Logger
	Registry prometheus.Registerer
	In       io.Reader
	Out      io.Writer
}

// NewApp wires the session store, gateway, identity client and session
// manager from cfg and restores any persisted session. The returned close
// function releases the store.
func NewApp(ctx context.Context, cfg *config.Config, deps Deps) (*App, func() error, error) {
	log := deps.Logger
	if log == nil {
		log = logrus.New()
	}
	var metrics *observability.ClientMetrics
	if deps.Registry != nil {
		metrics = observability.NewClientMetrics(deps.Registry)
	}

	store, closeStore, err := newStore(ctx, cfg.Session)
	if err != nil {
		return nil, nil, err
	}

	gw := gateway.New(gateway.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  log,
		Metrics: metrics,
	})

	// profile fetches carry their own token, so this client needs no session
	profiles := identity.NewClient(gw, nil, log)
	manager := session.NewManager(session.Options{
		Store:              store,
		Profiles:           profiles,
		IdentityServiceKey: cfg.Session.IdentityServiceKey,
		AdminRole:          cfg.Session.AdminRole,
		ClearUndecodable:   cfg.Session.ClearUndecodable,
		HydrationTimeout:   cfg.Session.HydrationTimeout,
		Logger:             log,
		Metrics:            metrics,
	})
	if err := manager.Init(ctx); err != nil {
		log.WithError(err).Warn("could not restore session")
	}

	app := &App{
		Session: manager,
		Backend: identity.NewClient(gw, manager, log),
		Editor: reconciler.Options{
			Concurrency: cfg.Reconciler.Concurrency,
			Logger:      log,
			Metrics:     metrics,
		},
		In:  deps.In,
		Out: deps.Out,
	}
	return app, closeStore, nil
}

func newStore(ctx context.Context, cfg config.SessionConfig) (session.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StoreType {
	case config.StoreMemory:
		return session.NewMemoryStore(), noop, nil
	case config.StoreFile:
		return session.NewFileStore(cfg.FileDir), noop, nil
	case config.StoreRedis:
		store, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix, cfg.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store: %s", cfg.StoreType)
	}
}
