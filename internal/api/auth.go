package api

import (
	"context"
	"fmt"
)

// AuthScope covers account endpoints. Profile calls use the bearer token
// from the client's TokenSource.
type AuthScope struct {
	client *Client
}

// Auth returns the auth scope.
func (c *Client) Auth() *AuthScope { return &AuthScope{client: c} }

// Login exchanges credentials for a token pair.
func (a *AuthScope) Login(ctx context.Context, creds Credentials) (*TokenPair, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("login: email and password are required")
	}
	var tp TokenPair
	if err := a.client.doJSON(ctx, "POST", a.client.url("/api/auth/login", nil), "login", creds, &tp); err != nil {
		return nil, err
	}
	return &tp, nil
}

// Register creates an account and returns its token pair.
func (a *AuthScope) Register(ctx context.Context, reg Registration) (*TokenPair, error) {
	if reg.Email == "" || reg.Password == "" {
		return nil, fmt.Errorf("register: email and password are required")
	}
	var tp TokenPair
	if err := a.client.doJSON(ctx, "POST", a.client.url("/api/auth/register", nil), "register", reg, &tp); err != nil {
		return nil, err
	}
	return &tp, nil
}

// Refresh trades a refresh token for a new token pair. The request is sent
// without the bearer header so an expired access token cannot interfere.
func (a *AuthScope) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token: refresh token is required")
	}
	body := map[string]string{"refresh_token": refreshToken}
	var tp TokenPair
	if err := a.client.doJSON(ctx, "POST", a.client.url("/api/auth/refresh", nil), "refresh token", body, &tp); err != nil {
		return nil, err
	}
	return &tp, nil
}

// Logout revokes the current session server-side.
func (a *AuthScope) Logout(ctx context.Context) error {
	return a.client.doJSON(ctx, "POST", a.client.url("/api/auth/logout", nil), "logout", nil, nil, a.client.bearer())
}

// Profile returns the authenticated user.
func (a *AuthScope) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := a.client.doJSON(ctx, "GET", a.client.url("/api/auth/profile", nil), "get profile", nil, &u, a.client.bearer()); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile modifies the authenticated user.
func (a *AuthScope) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*User, error) {
	var u User
	if err := a.client.doJSON(ctx, "PUT", a.client.url("/api/auth/profile", nil), "update profile", upd, &u, a.client.bearer()); err != nil {
		return nil, err
	}
	return &u, nil
}
