package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", UserAgent: "bmusic-test"})
	require.NoError(t, err)
	return c
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.base)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)

	u, err := c.URL(EndpointProfile)
	require.NoError(t, err)
	assert.Equal(t, "https://dsm-moviles.onrender.com/users/profile", u)
}

func TestURL(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8080/api/"})
	require.NoError(t, err)

	tests := map[string]string{
		EndpointLogin:     "http://localhost:8080/api/users/login",
		EndpointSignup:    "http://localhost:8080/api/users/signup",
		EndpointProfile:   "http://localhost:8080/api/users/profile",
		EndpointPlaylists: "http://localhost:8080/api/playlists",
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := c.URL(name)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err = c.URL("nope")
	assert.Error(t, err)
}

func TestLogin_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "bmusic-test", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, LoginRequest{Email: "ana@example.com", Password: "pw"}, body)

		_, _ = w.Write([]byte(`{"token":"tok1"}`))
	})

	tok, err := c.Login(context.Background(), LoginRequest{Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok1", tok)
}

func TestLogin_NoToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"user":{}}`))
	})

	_, err := c.Login(context.Background(), LoginRequest{Email: "a@b", Password: "x"})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLogin_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.Login(context.Background(), LoginRequest{Email: "a@b", Password: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing login response")
}

func TestLogin_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid credentials","message":"try again"}`))
	})

	_, err := c.Login(context.Background(), LoginRequest{Email: "a@b", Password: "x"})
	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "Invalid credentials", se.ErrorText)
	assert.Equal(t, "try again", se.Message)
	assert.Equal(t, EndpointLogin, se.Endpoint)
	assert.Equal(t, "login: status 400: Invalid credentials", se.Error())
}

func TestSignup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/signup", r.URL.Path)
		var body SignupRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Lima", body.City)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7,"name":"Ana"}`))
	})

	doc, err := c.Signup(context.Background(), SignupRequest{Name: "Ana", Email: "a@b", Password: "x", City: "Lima"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"name":"Ana"}`, string(doc))
}

func TestProfileAndPlaylists_BearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/users/profile":
			_, _ = w.Write([]byte(`{"name":"Ana"}`))
		case "/playlists":
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	profile, err := c.Profile(context.Background(), "tok1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ana"}`, string(profile))

	lists, err := c.Playlists(context.Background(), "tok1")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(lists))
}

func TestProfile_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Profile(context.Background(), "expired")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Profile(context.Background(), "tok1")
	require.Error(t, err)
	_, isStatus := AsStatusError(err)
	assert.False(t, isStatus)
	assert.False(t, IsUnauthorized(err))
}

func TestContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Playlists(ctx, "tok1")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewStatusError_NonStringFields(t *testing.T) {
	se := newStatusError(EndpointSignup, http.StatusConflict, []byte(`{"error":{"code":1},"message":42}`))
	assert.Empty(t, se.ErrorText)
	assert.Empty(t, se.Message)
	assert.Equal(t, "signup: status 409: Conflict", se.Error())

	se = newStatusError(EndpointSignup, http.StatusConflict, []byte(`not json`))
	assert.Empty(t, se.Message)
}
