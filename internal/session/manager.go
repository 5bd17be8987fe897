package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pbengoa/Tourline-front-sub001/internal/api"
	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
	"github.com/pbengoa/Tourline-front-sub001/internal/repository"
	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
	"github.com/pbengoa/Tourline-front-sub001/pkg/validator"
)

// AuthAPI is the backend surface the session depends on.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*domain.Credential, error)
	Register(ctx context.Context, req api.RegisterRequest) (*domain.Credential, error)
	Me(ctx context.Context) (*domain.UserSnapshot, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, code string) error
	ResendVerification(ctx context.Context, email string) error
}

// SignInInput is the validated login form.
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpInput is the validated registration form.
type SignUpInput struct {
	Email       string      `json:"email" validate:"required,email"`
	Password    string      `json:"password" validate:"required,min=8,max=128"`
	FirstName   string      `json:"firstName" validate:"required,max=100"`
	LastName    string      `json:"lastName" validate:"omitempty,max=100"`
	Phone       string      `json:"phone" validate:"omitempty,max=30"`
	Role        domain.Role `json:"role" validate:"omitempty,oneof=tourist guide provider"`
	CompanyName string      `json:"companyName" validate:"required_if=Role provider,max=200"`
}

// RefreshResult reports the outcome of RefreshUser. Stale is true when the
// snapshot could not be replaced; Err then says why.
type RefreshResult struct {
	User  *domain.UserSnapshot
	Stale bool
	Err   error
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeepSessionWhenOffline keeps the persisted session when bootstrap fails
// only because the backend could not be reached.
func WithKeepSessionWhenOffline() Option {
	return func(m *Manager) { m.keepOffline = true }
}

// Manager owns the authenticated/unauthenticated state machine.
type Manager struct {
	api         AuthAPI
	store       repository.CredentialStore
	logger      *slog.Logger
	keepOffline bool

	bootstrapOnce sync.Once
	ready         chan struct{}

	// ops serializes state transitions so a slow bootstrap or refresh
	// cannot overwrite a later sign-in or sign-out.
	ops sync.Mutex

	mu    sync.RWMutex
	state State

	subscribers listeners
}

// NewManager creates a Manager in the Bootstrapping state.
func NewManager(authAPI AuthAPI, store repository.CredentialStore, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		api:    authAPI,
		store:  store,
		logger: logger,
		ready:  make(chan struct{}),
		state:  State{Status: StatusBootstrapping},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers fn to observe every state transition.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	return m.subscribers.add(fn)
}

// Ready is closed once bootstrap has resolved.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Wait blocks until bootstrap has resolved or ctx is done.
func (m *Manager) Wait(ctx context.Context) (State, error) {
	select {
	case <-m.ready:
		return m.State(), nil
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}

// Bootstrap restores the persisted session. It runs once; later calls return
// the current state.
func (m *Manager) Bootstrap(ctx context.Context) State {
	m.bootstrapOnce.Do(func() {
		defer close(m.ready)
		m.ops.Lock()
		defer m.ops.Unlock()
		m.bootstrap(ctx)
	})
	return m.State()
}

func (m *Manager) bootstrap(ctx context.Context) {
	cred, err := m.store.Load(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "load persisted credential failed",
			slog.String("error", err.Error()),
		)
		m.clearStore(ctx)
		m.setState(State{Status: StatusUnauthenticated})
		return
	}
	if cred == nil {
		m.logger.InfoContext(ctx, "no persisted session")
		m.setState(State{Status: StatusUnauthenticated})
		return
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		if m.keepOffline && apperrors.KindOf(err) == apperrors.KindNetwork {
			m.logger.WarnContext(ctx, "session check unreachable, keeping persisted session",
				slog.String("error", err.Error()),
			)
			m.setState(authenticated(cred.Token, cred.User))
			return
		}
		m.logger.WarnContext(ctx, "session check failed, signing out",
			slog.String("error", err.Error()),
			slog.String("kind", string(apperrors.KindOf(err))),
		)
		m.clearStore(ctx)
		m.setState(State{Status: StatusUnauthenticated})
		return
	}

	if err := m.store.Save(ctx, domain.Credential{Token: cred.Token, User: user}); err != nil {
		m.logger.ErrorContext(ctx, "persist refreshed user failed",
			slog.String("error", err.Error()),
		)
	}
	m.logger.InfoContext(ctx, "session restored", slog.String("user_id", user.ID))
	m.setState(authenticated(cred.Token, user))
}

// SignIn authenticates with email and password. On failure the state is unchanged.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*domain.UserSnapshot, error) {
	in := SignInInput{Email: strings.TrimSpace(email), Password: password}
	if err := validator.Validate(in); err != nil {
		return nil, newSessionError(apperrors.InvalidInput(err.Error()))
	}

	m.ops.Lock()
	defer m.ops.Unlock()

	cred, err := m.api.Login(ctx, in.Email, in.Password)
	if err != nil {
		m.logger.InfoContext(ctx, "sign in failed", slog.String("error", err.Error()))
		return nil, newSessionError(err)
	}
	return m.establish(ctx, cred)
}

// SignUp registers a new account and signs it in.
func (m *Manager) SignUp(ctx context.Context, in SignUpInput) (*domain.UserSnapshot, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Role == "" {
		in.Role = domain.RoleTourist
	}
	if err := validator.Validate(in); err != nil {
		return nil, newSessionError(apperrors.InvalidInput(err.Error()))
	}

	m.ops.Lock()
	defer m.ops.Unlock()

	cred, err := m.api.Register(ctx, api.RegisterRequest{
		Email:       in.Email,
		Password:    in.Password,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Phone:       in.Phone,
		Role:        in.Role,
		CompanyName: in.CompanyName,
	})
	if err != nil {
		m.logger.InfoContext(ctx, "sign up failed", slog.String("error", err.Error()))
		return nil, newSessionError(err)
	}
	return m.establish(ctx, cred)
}

func (m *Manager) establish(ctx context.Context, cred *domain.Credential) (*domain.UserSnapshot, error) {
	if err := m.store.Save(ctx, *cred); err != nil {
		m.logger.ErrorContext(ctx, "persist credential failed", slog.String("error", err.Error()))
		return nil, newSessionError(err)
	}
	m.logger.InfoContext(ctx, "signed in",
		slog.String("user_id", cred.User.ID),
		slog.String("role", string(cred.User.Role)),
	)
	m.setState(authenticated(cred.Token, cred.User))
	return cred.User, nil
}

// SignOut clears the local session. It never contacts the backend and always
// ends Unauthenticated.
func (m *Manager) SignOut(ctx context.Context) {
	m.ops.Lock()
	defer m.ops.Unlock()

	m.clearStore(ctx)
	if m.State().Status != StatusUnauthenticated {
		m.logger.InfoContext(ctx, "signed out")
	}
	m.setState(State{Status: StatusUnauthenticated})
}

// RefreshUser re-fetches the current user. Failures keep the stale snapshot
// and are reported in the result, never as a state change.
func (m *Manager) RefreshUser(ctx context.Context) RefreshResult {
	m.ops.Lock()
	defer m.ops.Unlock()

	current := m.State()
	if !current.IsAuthenticated() {
		return RefreshResult{User: current.User, Stale: true, Err: ErrNotAuthenticated}
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "refresh user failed, keeping stale snapshot",
			slog.String("error", err.Error()),
		)
		return RefreshResult{User: current.User, Stale: true, Err: err}
	}

	cred, err := m.store.Load(ctx)
	switch {
	case err != nil:
		m.logger.ErrorContext(ctx, "load credential for refresh failed", slog.String("error", err.Error()))
	case cred != nil:
		if err := m.store.Save(ctx, domain.Credential{Token: cred.Token, User: user}); err != nil {
			m.logger.ErrorContext(ctx, "persist refreshed user failed", slog.String("error", err.Error()))
		}
	}

	next := current
	next.User = user
	m.setState(next)
	return RefreshResult{User: user}
}

// ResetPassword starts the forgot-password flow.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validator.Validate(struct {
		Email string `validate:"required,email"`
	}{email}); err != nil {
		return newSessionError(apperrors.InvalidInput(err.Error()))
	}
	if err := m.api.ForgotPassword(ctx, email); err != nil {
		return newSessionError(err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password with the emailed reset token.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := validator.Validate(struct {
		Token    string `validate:"required"`
		Password string `validate:"required,min=8,max=128"`
	}{token, newPassword}); err != nil {
		return newSessionError(apperrors.InvalidInput(err.Error()))
	}
	if err := m.api.ResetPassword(ctx, token, newPassword); err != nil {
		return newSessionError(err)
	}
	return nil
}

// VerifyEmail confirms the address and refreshes the signed-in user.
func (m *Manager) VerifyEmail(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return newSessionError(apperrors.InvalidInput("verification code is required"))
	}
	if err := m.api.VerifyEmail(ctx, code); err != nil {
		return newSessionError(err)
	}
	if m.State().IsAuthenticated() {
		m.RefreshUser(ctx)
	}
	return nil
}

// ResendVerification asks the backend for a new verification email.
func (m *Manager) ResendVerification(ctx context.Context, email string) error {
	if err := m.api.ResendVerification(ctx, strings.TrimSpace(email)); err != nil {
		return newSessionError(err)
	}
	return nil
}

func (m *Manager) clearStore(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.ErrorContext(ctx, "clear credential failed", slog.String("error", err.Error()))
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.subscribers.emit(s)
}

func authenticated(token string, user *domain.UserSnapshot) State {
	return State{Status: StatusAuthenticated, User: user, TokenExpiresAt: TokenExpiry(token)}
}
