package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pbengoa/Tourline-front-sub001/internal/api"
	"github.com/pbengoa/Tourline-front-sub001/internal/connectivity"
	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
	"github.com/pbengoa/Tourline-front-sub001/internal/session"
	"github.com/pbengoa/Tourline-front-sub001/internal/usermsg"
	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
	"github.com/pbengoa/Tourline-front-sub001/pkg/httpclient"
	"github.com/pbengoa/Tourline-front-sub001/pkg/httputil"
	"github.com/pbengoa/Tourline-front-sub001/pkg/validator"
)

// SessionService is the session surface exposed over HTTP.
type SessionService interface {
	State() session.State
	SignIn(ctx context.Context, email, password string) (*domain.UserSnapshot, error)
	SignUp(ctx context.Context, in session.SignUpInput) (*domain.UserSnapshot, error)
	SignOut(ctx context.Context)
	RefreshUser(ctx context.Context) session.RefreshResult
	ResetPassword(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, code string) error
	ResendVerification(ctx context.Context, email string) error
}

// ConnectivityService is the connectivity surface exposed over HTTP.
type ConnectivityService interface {
	State() domain.NetworkState
	IsOffline() bool
	CheckNow(ctx context.Context) (domain.NetworkState, error)
	QueueLen() int
	RunOrQueue(ctx context.Context, op connectivity.Operation) error
}

// Lifecycle receives foreground/background notifications.
type Lifecycle interface {
	State() domain.AppState
	Foreground()
	Background()
}

// BookingService is the bookings backend.
type BookingService interface {
	List(ctx context.Context, page, limit int) ([]api.Booking, *httpclient.Pagination, error)
	Create(ctx context.Context, req api.BookingRequest) (*api.Booking, error)
	Cancel(ctx context.Context, id string) error
}

// errSignInRequired is reported for endpoints that need a signed-in user.
var errSignInRequired = &apperrors.AppError{
	Kind:    apperrors.KindUnauthorized,
	Code:    "NOT_AUTHENTICATED",
	Message: "sign in required",
	Status:  http.StatusUnauthorized,
	Err:     session.ErrNotAuthenticated,
}

// describe prefers the description a SessionError already carries.
func describe(err error) usermsg.Message {
	var sessErr *session.SessionError
	if errors.As(err, &sessErr) {
		return sessErr.Message
	}
	if errors.Is(err, session.ErrNotAuthenticated) {
		return usermsg.Describe(errSignInRequired)
	}
	return usermsg.Describe(err)
}

func codeOf(err error) string {
	if code := apperrors.CodeOf(err); code != "" {
		return code
	}
	if errors.Is(err, session.ErrNotAuthenticated) {
		return errSignInRequired.Code
	}
	return "INTERNAL_ERROR"
}

// writeError writes err with its user-facing description. Validation errors
// carry per-field messages instead.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteError(w, r, err, nil, logger)
		return
	}

	msg := describe(err)
	httputil.WriteError(w, r, err, &httputil.ErrorResponse{
		Title:   msg.Title,
		Message: msg.Message,
		Action:  string(msg.Action),
	}, logger)
}

// RequireSession rejects requests while no user is signed in.
func RequireSession(sessions SessionService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessions.State().IsAuthenticated() {
				writeError(w, r, errSignInRequired, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
