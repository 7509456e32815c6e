package app

import (
	"log/slog"
	"net/http"

	"github.com/txn2/bmusic-client/pkg/logout"
	"github.com/txn2/bmusic-client/pkg/session"
)

// Options configures the client.
type Options struct {
	// Config is the client configuration. DefaultConfig is used when nil.
	Config *Config

	// Store overrides the session store selected by Config.Storage.
	Store session.Store

	// HTTPClient overrides the HTTP client used for the remote service.
	HTTPClient *http.Client

	// Confirmer answers logout confirmations. logout.Always when nil.
	Confirmer logout.Confirmer

	// Logger is installed as the default logger. Built from Config.Log
	// when nil.
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithStore sets the session store.
func WithStore(store session.Store) Option {
	return func(o *Options) {
		o.Store = store
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = c
	}
}

// WithConfirmer sets the logout confirmer.
func WithConfirmer(c logout.Confirmer) Option {
	return func(o *Options) {
		o.Confirmer = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}
