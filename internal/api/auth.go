package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
	"github.com/pbengoa/Tourline-front-sub001/pkg/httpclient"
)

// Auth endpoint paths, relative to the API base URL.
const (
	PathLogin              = "/auth/login"
	PathRegister           = "/auth/register"
	PathMe                 = "/auth/me"
	PathForgotPassword     = "/auth/forgot-password"
	PathResetPassword      = "/auth/reset-password"
	PathVerifyEmail        = "/auth/verify-email"
	PathResendVerification = "/auth/resend-verification"
)

// RegisterRequest is the sign-up body sent to the backend.
type RegisterRequest struct {
	Email       string      `json:"email"`
	Password    string      `json:"password"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Phone       string      `json:"phone,omitempty"`
	Role        domain.Role `json:"role,omitempty"`
	CompanyName string      `json:"companyName,omitempty"`
}

// AuthAPI wraps the backend authentication endpoints.
type AuthAPI struct {
	client *httpclient.Client
}

// NewAuthAPI creates an AuthAPI on top of the shared HTTP client.
func NewAuthAPI(client *httpclient.Client) *AuthAPI {
	return &AuthAPI{client: client}
}

// authData is the data member of login/register responses.
type authData struct {
	Token        string          `json:"token"`
	AccessToken  string          `json:"accessToken"`
	AccessTokenS string          `json:"access_token"`
	User         json.RawMessage `json:"user"`
}

// Login exchanges email and password for a credential.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (*domain.Credential, error) {
	return a.authenticate(ctx, PathLogin, map[string]string{
		"email":    email,
		"password": password,
	})
}

// Register creates an account and returns its credential.
func (a *AuthAPI) Register(ctx context.Context, req RegisterRequest) (*domain.Credential, error) {
	return a.authenticate(ctx, PathRegister, req)
}

func (a *AuthAPI) authenticate(ctx context.Context, path string, body any) (*domain.Credential, error) {
	env, err := httpclient.DoJSON[authData](ctx, a.client, httpclient.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	token := firstNonEmpty(env.Data.Token, env.Data.AccessToken, env.Data.AccessTokenS)
	if token == "" {
		return nil, fmt.Errorf("%s: response carries no token", path)
	}
	if len(env.Data.User) == 0 {
		return nil, fmt.Errorf("%s: response carries no user", path)
	}
	user, err := NormalizeUser(env.Data.User)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &domain.Credential{Token: token, User: user}, nil
}

// Me fetches the current user. It is the session-check endpoint: a 401 here
// clears the persisted credential inside the HTTP client.
func (a *AuthAPI) Me(ctx context.Context) (*domain.UserSnapshot, error) {
	env, err := httpclient.DoJSON[json.RawMessage](ctx, a.client, httpclient.Request{
		Method: http.MethodGet,
		Path:   PathMe,
	})
	if err != nil {
		return nil, err
	}

	// Some deployments wrap the user as data.user.
	var wrapped struct {
		User json.RawMessage `json:"user"`
	}
	raw := env.Data
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.User) > 0 {
		raw = wrapped.User
	}
	user, err := NormalizeUser(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PathMe, err)
	}
	return user, nil
}

// ForgotPassword asks the backend to email a reset link.
func (a *AuthAPI) ForgotPassword(ctx context.Context, email string) error {
	return a.client.Post(ctx, PathForgotPassword, map[string]string{"email": email}, nil)
}

// ResetPassword sets a new password using the emailed reset token.
func (a *AuthAPI) ResetPassword(ctx context.Context, token, newPassword string) error {
	return a.client.Post(ctx, PathResetPassword, map[string]string{
		"token":    token,
		"password": newPassword,
	}, nil)
}

// VerifyEmail confirms the address with the emailed code.
func (a *AuthAPI) VerifyEmail(ctx context.Context, code string) error {
	return a.client.Post(ctx, PathVerifyEmail, map[string]string{"code": code}, nil)
}

// ResendVerification requests a new verification email.
func (a *AuthAPI) ResendVerification(ctx context.Context, email string) error {
	return a.client.Post(ctx, PathResendVerification, map[string]string{"email": email}, nil)
}
