package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	errs "ringhist/pkg/errors"
	"ringhist/pkg/logger"
)

const (
	// oauthURL is the Ring token endpoint
	oauthURL = "https://oauth.ring.com/oauth/token"

	// oauthClientID is the public client id used by Ring's own apps
	oauthClientID = "ring_official_android"
)

// tokenResponse is the OAuth token endpoint payload
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// TwoFactorRequiredError is returned when the account needs a verification
// code to complete the password grant
type TwoFactorRequiredError struct {
	Prompt string
}

func (e *TwoFactorRequiredError) Error() string {
	return "two-factor verification required"
}

// Authenticator performs OAuth flows against the Ring token endpoint
type Authenticator struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	logger     logger.Logger
}

// NewAuthenticator creates an authenticator with the default endpoint
func NewAuthenticator(userAgent string, log logger.Logger) *Authenticator {
	return &Authenticator{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   oauthURL,
		userAgent:  userAgent,
		logger:     log,
	}
}

// SetEndpoint overrides the token endpoint
func (a *Authenticator) SetEndpoint(endpoint string) {
	a.endpoint = endpoint
}

// Login performs the password grant. twoFactorCode may be empty on the first
// attempt; a TwoFactorRequiredError signals the caller to prompt for a code
// and call again.
func (a *Authenticator) Login(ctx context.Context, email, password, twoFactorCode string) (*Token, error) {
	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {oauthClientID},
		"username":   {email},
		"password":   {password},
		"scope":      {"client"},
	}

	headers := map[string]string{}
	if twoFactorCode != "" {
		headers["2fa-support"] = "true"
		headers["2fa-code"] = twoFactorCode
	}

	resp, err := a.postForm(ctx, form, headers)
	if err != nil {
		return nil, err
	}

	token := &Token{
		Email:        email,
		RefreshToken: resp.RefreshToken,
		AccessToken:  resp.AccessToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		LastModified: time.Now(),
	}

	a.logger.InfoWithFields("authenticated", map[string]interface{}{
		"account": email,
	})

	return token, nil
}

// Refresh exchanges a refresh token for a fresh access token. The endpoint
// may rotate the refresh token; the returned token carries whichever is
// current.
func (a *Authenticator) Refresh(ctx context.Context, token *Token) (*Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {oauthClientID},
		"refresh_token": {token.RefreshToken},
	}

	resp, err := a.postForm(ctx, form, nil)
	if err != nil {
		return nil, err
	}

	refreshed := *token
	refreshed.AccessToken = resp.AccessToken
	refreshed.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	if resp.RefreshToken != "" {
		refreshed.RefreshToken = resp.RefreshToken
	}
	refreshed.LastModified = time.Now()

	return &refreshed, nil
}

// postForm submits the grant request and decodes the token payload
func (a *Authenticator) postForm(ctx context.Context, form url.Values, headers map[string]string) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeUnknown, "failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("2fa-support", "true")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeNetwork, "token request failed: %v", err)
	}
	defer resp.Body.Close()

	// Ring answers the first password attempt on a 2FA account with 412
	if resp.StatusCode == http.StatusPreconditionFailed {
		var payload struct {
			TSVState string `json:"tsv_state"`
			Phone    string `json:"phone"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)

		prompt := "enter the verification code sent to your account"
		if payload.Phone != "" {
			prompt = fmt.Sprintf("enter the verification code sent to %s", payload.Phone)
		}
		return nil, &TwoFactorRequiredError{Prompt: prompt}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "credentials rejected by token endpoint",
			Code:    resp.StatusCode,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: fmt.Sprintf("token endpoint returned %s", resp.Status),
			Code:    resp.StatusCode,
		}
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errs.Newf(errs.ErrorTypeParsing, "failed to decode token response: %v", err)
	}

	if payload.AccessToken == "" {
		return nil, errs.New(errs.ErrorTypeAuth, "token endpoint returned no access token")
	}

	return &payload, nil
}

// SessionTokenSource supplies fresh access tokens for API calls, refreshing
// through the authenticator and persisting rotated refresh tokens.
type SessionTokenSource struct {
	mu            sync.Mutex
	token         *Token
	authenticator *Authenticator
	manager       *Manager
	logger        logger.Logger
}

// NewSessionTokenSource creates a token source seeded with the given token.
// manager may be nil when rotated refresh tokens should not be persisted.
func NewSessionTokenSource(token *Token, authenticator *Authenticator, manager *Manager, log logger.Logger) *SessionTokenSource {
	return &SessionTokenSource{
		token:         token,
		authenticator: authenticator,
		manager:       manager,
		logger:        log,
	}
}

// AccessToken returns a valid access token, refreshing if needed
func (s *SessionTokenSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.token.Expired() {
		return s.token.AccessToken, nil
	}

	refreshed, err := s.authenticator.Refresh(ctx, s.token)
	if err != nil {
		return "", err
	}

	rotated := refreshed.RefreshToken != s.token.RefreshToken
	s.token = refreshed

	if rotated && s.manager != nil {
		if err := s.manager.Store(refreshed); err != nil {
			s.logger.WarnWithFields("failed to persist rotated refresh token", map[string]interface{}{
				"account": refreshed.Email,
				"error":   err.Error(),
			})
		}
	}

	return s.token.AccessToken, nil
}
