// Package app wires the session store, remote service client, credential
// exchange, synchronizer, logout sequencer and router into one client, and
// owns its configuration and lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/txn2/bmusic-client/pkg/api"
	"github.com/txn2/bmusic-client/pkg/auth"
	"github.com/txn2/bmusic-client/pkg/events"
	"github.com/txn2/bmusic-client/pkg/library"
	"github.com/txn2/bmusic-client/pkg/logout"
	"github.com/txn2/bmusic-client/pkg/router"
	"github.com/txn2/bmusic-client/pkg/session"
	"github.com/txn2/bmusic-client/pkg/session/filestore"
	"github.com/txn2/bmusic-client/pkg/session/sqlstore"
)

// Version is the client version, set at build time.
var Version = "dev"

// App is a fully wired client.
type App struct {
	config    *Config
	store     session.Store
	lifecycle *Lifecycle

	Sessions *session.Manager
	Events   *events.Bus
	API      *api.Client
	Auth     *auth.Client
	Library  *library.Synchronizer
	Logout   *logout.Sequencer
	Router   *router.Router
}

// New creates a client. The session store is opened, and migrated when it
// is SQL backed, before New returns.
func New(ctx context.Context, opts ...Option) (*App, error) {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.Config == nil {
		o.Config = DefaultConfig()
	}
	if err := o.Config.Validate(); err != nil {
		return nil, err
	}

	if o.Logger == nil {
		logger, err := NewLogger(o.Config.Log, os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		o.Logger = logger
	}
	slog.SetDefault(o.Logger)

	a := &App{
		config:    o.Config,
		lifecycle: NewLifecycle(),
		Events:    events.NewBus(),
	}

	store := o.Store
	if store == nil {
		var err error
		if store, err = OpenStore(ctx, o.Config.Storage); err != nil {
			return nil, err
		}
	}
	a.store = store
	a.Sessions = session.NewManager(store)

	client, err := api.New(api.Config{
		BaseURL:    o.Config.API.BaseURL,
		Timeout:    o.Config.API.Timeout,
		UserAgent:  o.Config.API.UserAgent,
		HTTPClient: o.HTTPClient,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating api client: %w", err)
	}
	a.API = client

	confirmer := o.Confirmer
	if confirmer == nil {
		confirmer = logout.Always
	}

	a.Auth = auth.NewClient(client, a.Sessions, a.Events)
	a.Library = library.NewSynchronizer(client, a.Sessions, a.Events, o.Config.SyncSettings())
	a.Logout = logout.New(confirmer, a.Sessions, a.Events)
	a.Router = router.New(a.Sessions, a.Library)

	a.registerLifecycle()
	return a, nil
}

// registerLifecycle registers the store first so that it is closed last.
func (a *App) registerLifecycle() {
	a.lifecycle.OnStart(func(context.Context) error { return nil })
	a.lifecycle.OnStop(func(context.Context) error {
		a.Events.Close()
		return a.store.Close()
	})

	a.lifecycle.Go("router", a.Router.Attach(a.Events))

	if fs, ok := a.store.(*filestore.Store); ok && a.config.Storage.File.Watch {
		a.lifecycle.Go("session-watch", func(ctx context.Context) error {
			return fs.Watch(ctx, func() {
				slog.Info("session file changed externally, resuming")
				if _, err := a.Router.Resume(ctx); err != nil {
					slog.Warn("resume after external change failed", "error", err)
				}
			})
		})
	}
}

// Config returns the configuration in use.
func (a *App) Config() *Config {
	return a.config
}

// Start starts background processing and bootstraps the router.
func (a *App) Start(ctx context.Context) (router.State, error) {
	if err := a.lifecycle.Start(ctx); err != nil {
		return router.State{}, fmt.Errorf("starting: %w", err)
	}
	return a.Router.Bootstrap(ctx), nil
}

// Close stops background processing and closes the session store.
func (a *App) Close(ctx context.Context) error {
	if !a.lifecycle.IsStarted() {
		a.Events.Close()
		return a.store.Close()
	}
	return a.lifecycle.Stop(ctx)
}

// OpenStore opens the session store selected by cfg.
func OpenStore(ctx context.Context, cfg StorageConfig) (session.Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return session.NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		dialect := sqlstore.DialectSQLite
		if cfg.Driver == DriverPostgres {
			dialect = sqlstore.DialectPostgres
		}
		db, err := sqlstore.Open(ctx, dialect, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := sqlstore.Migrate(db, dialect); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrating session database: %w", err)
		}
		return sqlstore.New(db, sqlstore.Config{Dialect: dialect}), nil
	case DriverFile:
		store, err := filestore.New(filestore.Config{
			Path:       cfg.File.Path,
			Passphrase: cfg.File.Passphrase,
		})
		if err != nil {
			return nil, fmt.Errorf("opening session file: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Driver)
	}
}
