package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "ringhist/pkg/errors"
	"ringhist/pkg/logger"
)

func newTestAuthenticator(t *testing.T, handler http.Handler) *Authenticator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	a := NewAuthenticator("ringhist-test", logger.NewNopLogger())
	a.SetEndpoint(server.URL)
	return a
}

func TestLoginPasswordGrant(t *testing.T) {
	a := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "user@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "hunter2", r.PostForm.Get("password"))

		io.WriteString(w, `{"access_token": "at", "refresh_token": "rt", "expires_in": 3600}`)
	}))

	token, err := a.Login(context.Background(), "user@example.com", "hunter2", "")
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "rt", token.RefreshToken)
	assert.False(t, token.Expired())
}

func TestLoginRequiresTwoFactor(t *testing.T) {
	a := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("2fa-code") == "" {
			w.WriteHeader(http.StatusPreconditionFailed)
			io.WriteString(w, `{"tsv_state": "sms", "phone": "+44*****1234"}`)
			return
		}
		assert.Equal(t, "123456", r.Header.Get("2fa-code"))
		io.WriteString(w, `{"access_token": "at", "refresh_token": "rt", "expires_in": 3600}`)
	}))

	_, err := a.Login(context.Background(), "user@example.com", "hunter2", "")
	var tfa *TwoFactorRequiredError
	require.ErrorAs(t, err, &tfa)
	assert.Contains(t, tfa.Prompt, "+44*****1234")

	token, err := a.Login(context.Background(), "user@example.com", "hunter2", "123456")
	require.NoError(t, err)
	assert.Equal(t, "rt", token.RefreshToken)
}

func TestLoginBadCredentials(t *testing.T) {
	a := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := a.Login(context.Background(), "user@example.com", "wrong", "")
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
}

func TestRefreshRotatesToken(t *testing.T) {
	a := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-rt", r.PostForm.Get("refresh_token"))

		io.WriteString(w, `{"access_token": "new-at", "refresh_token": "new-rt", "expires_in": 3600}`)
	}))

	token := &Token{Email: "user@example.com", RefreshToken: "old-rt"}
	refreshed, err := a.Refresh(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "new-at", refreshed.AccessToken)
	assert.Equal(t, "new-rt", refreshed.RefreshToken)
	assert.Equal(t, "old-rt", token.RefreshToken)
}

func TestSessionTokenSourceRefreshesOnExpiry(t *testing.T) {
	refreshes := 0
	a := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		io.WriteString(w, `{"access_token": "fresh-at", "refresh_token": "rotated-rt", "expires_in": 3600}`)
	}))

	manager, store := NewMockManager()
	token := &Token{Email: "user@example.com", RefreshToken: "old-rt"}
	source := NewSessionTokenSource(token, a, manager, logger.NewNopLogger())

	got, err := source.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-at", got)
	assert.Equal(t, 1, refreshes)

	// Second call reuses the cached access token
	got, err = source.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-at", got)
	assert.Equal(t, 1, refreshes)

	// The rotated refresh token was persisted
	stored, err := store.Retrieve("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "rotated-rt", stored.RefreshToken)
}

func TestSessionTokenSourceReusesLiveToken(t *testing.T) {
	a := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no refresh expected for a live access token")
	}))

	token := &Token{
		Email:        "user@example.com",
		RefreshToken: "rt",
		AccessToken:  "live-at",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	source := NewSessionTokenSource(token, a, nil, logger.NewNopLogger())

	got, err := source.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "live-at", got)
}

func TestSessionTokenSourceRefreshFailure(t *testing.T) {
	a := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	token := &Token{Email: "user@example.com", RefreshToken: "revoked"}
	source := NewSessionTokenSource(token, a, nil, logger.NewNopLogger())

	_, err := source.AccessToken(context.Background())
	require.Error(t, err)

	var apiErr *errs.Error
	assert.True(t, errors.As(err, &apiErr))
}
