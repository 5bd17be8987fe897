package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
	"github.com/pbengoa/Tourline-front-sub001/internal/session"
	"github.com/pbengoa/Tourline-front-sub001/pkg/httputil"
)

// SessionHandler handles the /v1/session endpoints.
type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

// NewSessionHandler creates a session HTTP handler.
func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// --- Request DTOs ---

// LoginRequest is the body of POST /v1/session/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// EmailRequest is the body of the endpoints that only take an address.
type EmailRequest struct {
	Email string `json:"email" validate:"required"`
}

// PasswordResetRequest is the body of POST /v1/session/password/reset.
type PasswordResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// VerifyEmailRequest is the body of POST /v1/session/email/verify.
type VerifyEmailRequest struct {
	Code string `json:"code" validate:"required"`
}

// --- Response DTOs ---

type sessionView struct {
	Status          session.Status       `json:"status"`
	IsAuthenticated bool                 `json:"isAuthenticated"`
	IsLoading       bool                 `json:"isLoading"`
	IsAdmin         bool                 `json:"isAdmin"`
	IsGuide         bool                 `json:"isGuide"`
	IsTourist       bool                 `json:"isTourist"`
	IsProvider      bool                 `json:"isProvider"`
	User            *domain.UserSnapshot `json:"user,omitempty"`
	TokenExpiresAt  *time.Time           `json:"tokenExpiresAt,omitempty"`
}

func viewOf(s session.State) sessionView {
	return sessionView{
		Status:          s.Status,
		IsAuthenticated: s.IsAuthenticated(),
		IsLoading:       s.IsLoading(),
		IsAdmin:         s.IsAdmin(),
		IsGuide:         s.IsGuide(),
		IsTourist:       s.IsTourist(),
		IsProvider:      s.IsProvider(),
		User:            s.User,
		TokenExpiresAt:  s.TokenExpiresAt,
	}
}

type refreshView struct {
	User  *domain.UserSnapshot    `json:"user,omitempty"`
	Stale bool                    `json:"stale"`
	Error *httputil.ErrorResponse `json:"error,omitempty"`
}

// --- Handlers ---

// Get handles GET /v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, viewOf(h.sessions.State()))
}

// Login handles POST /v1/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if _, err := h.sessions.SignIn(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, viewOf(h.sessions.State()))
}

// Register handles POST /v1/session/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req session.SignUpInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if _, err := h.sessions.SignUp(r.Context(), req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, viewOf(h.sessions.State()))
}

// Logout handles POST /v1/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.SignOut(r.Context())
	httputil.WriteData(w, http.StatusOK, viewOf(h.sessions.State()))
}

// Refresh handles POST /v1/session/refresh. A failed refresh still answers
// 200 with stale=true; the stale snapshot is kept.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	res := h.sessions.RefreshUser(r.Context())
	view := refreshView{User: res.User, Stale: res.Stale}
	if res.Err != nil {
		msg := describe(res.Err)
		view.Error = &httputil.ErrorResponse{
			Code:    codeOf(res.Err),
			Message: msg.Message,
			Title:   msg.Title,
			Action:  string(msg.Action),
		}
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// ForgotPassword handles POST /v1/session/password/forgot
func (h *SessionHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := h.sessions.ResetPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ResetPassword handles POST /v1/session/password/reset
func (h *SessionHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := h.sessions.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail handles POST /v1/session/email/verify
func (h *SessionHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := h.sessions.VerifyEmail(r.Context(), req.Code); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, viewOf(h.sessions.State()))
}

// ResendVerification handles POST /v1/session/email/resend
func (h *SessionHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := h.sessions.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
