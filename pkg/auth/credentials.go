// Package auth exchanges user credentials with the remote service. A
// successful login persists the token through the session manager and
// announces it on the event bus; registration never authenticates.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/txn2/bmusic-client/pkg/api"
	"github.com/txn2/bmusic-client/pkg/events"
	"github.com/txn2/bmusic-client/pkg/session"
)

// API is the subset of the remote service used for credential exchange.
type API interface {
	Login(ctx context.Context, req api.LoginRequest) (string, error)
	Signup(ctx context.Context, req api.SignupRequest) (json.RawMessage, error)
}

// RegisterRequest holds the registration form. ImageRef is the optional
// locally picked profile image reference.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	City     string
	ImageRef string
}

// NextScreenLogin is where the user continues after registering.
const NextScreenLogin = "login"

// RegisterResult describes a completed registration.
type RegisterResult struct {
	// User is the user document returned by the service.
	User json.RawMessage

	// ImageSaved reports whether the picked image was stored as the
	// profile image preference.
	ImageSaved bool

	// NextScreen is the screen to show next. Registration does not
	// authenticate, so it is always the login screen.
	NextScreen string
}

// Client is the credential exchange client.
type Client struct {
	api      API
	sessions *session.Manager
	events   events.Publisher

	// pending suppresses re-entrant submissions of either operation.
	pending atomic.Bool
}

// NewClient creates a credential exchange client.
func NewClient(remote API, sessions *session.Manager, pub events.Publisher) *Client {
	return &Client{
		api:      remote,
		sessions: sessions,
		events:   pub,
	}
}

// Pending reports whether a login or registration is in flight.
func (c *Client) Pending() bool {
	return c.pending.Load()
}

// Login validates the input, exchanges the credentials for a token, persists
// it and publishes SessionEstablished. Failures are not retried.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	if err := ValidateLogin(email, password); err != nil {
		return "", err
	}
	if !c.pending.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer c.pending.Store(false)

	token, err := c.api.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		slog.Info("login rejected", "error", err)
		return "", loginError(err)
	}

	if err := c.sessions.Establish(ctx, token); err != nil {
		slog.Error("persisting session token failed", "error", err)
		return "", &AuthError{Message: MsgLoginFailed, Err: fmt.Errorf("persisting session: %w", err)}
	}

	slog.Info("login succeeded", "token", session.Fingerprint(token))
	c.events.Publish(events.Established(token))
	return token, nil
}

// Register validates the input and creates the account. When an image
// reference was picked it is stored as the profile image preference before
// returning. The user must log in separately afterwards.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := ValidateRegister(req); err != nil {
		return nil, err
	}
	if !c.pending.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.pending.Store(false)

	user, err := c.api.Signup(ctx, api.SignupRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		City:     req.City,
	})
	if err != nil {
		slog.Info("registration rejected", "error", err)
		return nil, registerError(err)
	}

	result := &RegisterResult{User: user, NextScreen: NextScreenLogin}
	if req.ImageRef != "" {
		if err := c.sessions.SetImageRef(ctx, req.ImageRef); err != nil {
			slog.Warn("storing profile image preference failed", "error", err)
		} else {
			result.ImageSaved = true
		}
	}

	slog.Info("registration succeeded", "image_saved", result.ImageSaved)
	return result, nil
}
