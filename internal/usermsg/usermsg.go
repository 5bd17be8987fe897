// Package usermsg maps failures onto a small closed set of user intents.
package usermsg

import (
	"errors"
	"strings"

	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
)

// Action is what the UI should offer next.
type Action string

const (
	ActionRetry          Action = "retry"
	ActionLogin          Action = "login"
	ActionVerifyEmail    Action = "verify_email"
	ActionLoginOrVerify  Action = "login_or_verify"
	ActionContactSupport Action = "contact_support"
	ActionNone           Action = "none"
)

// Message is the user-presentable description of a failure.
type Message struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Action  Action `json:"action"`
}

var (
	msgEmailTaken = Message{
		Title:   "Email already registered",
		Message: "An account with this email already exists. Sign in, or verify your email if you have not yet.",
		Action:  ActionLoginOrVerify,
	}
	msgNotVerified = Message{
		Title:   "Email not verified",
		Message: "Please verify your email address to continue.",
		Action:  ActionVerifyEmail,
	}
	msgBadCredentials = Message{
		Title:   "Invalid credentials",
		Message: "The email or password is incorrect.",
		Action:  ActionNone,
	}
	msgRateLimited = Message{
		Title:   "Too many attempts",
		Message: "Please wait a moment and try again.",
		Action:  ActionRetry,
	}
	msgNetwork = Message{
		Title:   "No connection",
		Message: "Check your internet connection and try again.",
		Action:  ActionRetry,
	}
	msgServer = Message{
		Title:   "Server error",
		Message: "Something went wrong on our side. Please try again in a moment.",
		Action:  ActionRetry,
	}
	msgSessionExpired = Message{
		Title:   "Session expired",
		Message: "Please sign in again.",
		Action:  ActionLogin,
	}
	msgNotFound = Message{
		Title:   "Not found",
		Message: "The requested item could not be found.",
		Action:  ActionNone,
	}
	msgUnknown = Message{
		Title:   "Something went wrong",
		Message: "An unexpected error occurred. If it keeps happening, contact support.",
		Action:  ActionContactSupport,
	}
)

// codeMessages is keyed by backend error code.
var codeMessages = map[string]Message{
	"EMAIL_ALREADY_REGISTERED": msgEmailTaken,
	"EMAIL_ALREADY_EXISTS":     msgEmailTaken,
	"USER_ALREADY_EXISTS":      msgEmailTaken,
	"EMAIL_NOT_VERIFIED":       msgNotVerified,
	"INVALID_CREDENTIALS":      msgBadCredentials,
	"RATE_LIMITED":             msgRateLimited,
	"TOKEN_EXPIRED":            msgSessionExpired,
	"NETWORK_ERROR":            msgNetwork,
}

// substringMessages is the fallback for legacy errors that carry no code.
var substringMessages = []struct {
	needle string
	msg    Message
}{
	{"already registered", msgEmailTaken},
	{"already exists", msgEmailTaken},
	{"not verified", msgNotVerified},
	{"invalid credentials", msgBadCredentials},
	{"invalid email or password", msgBadCredentials},
	{"incorrect password", msgBadCredentials},
	{"too many", msgRateLimited},
	{"network", msgNetwork},
	{"timeout", msgNetwork},
}

// Describe maps err onto a Message. Structured codes win. Without a code,
// network, server and not-found kinds map directly; auth and generic failures
// are matched on their text before falling back to the kind.
func Describe(err error) Message {
	if err == nil {
		return Message{}
	}

	code := apperrors.CodeOf(err)
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	if code == "INVALID_INPUT" || code == "VALIDATION_ERROR" {
		return Message{Title: "Check your input", Message: messageOf(err), Action: ActionNone}
	}

	kind := apperrors.KindOf(err)
	switch kind {
	case apperrors.KindNetwork:
		return msgNetwork
	case apperrors.KindServer:
		return msgServer
	case apperrors.KindNotFound:
		return msgNotFound
	}

	if msg, ok := matchText(messageOf(err)); ok {
		return msg
	}
	if kind == apperrors.KindUnauthorized {
		return msgSessionExpired
	}
	return msgUnknown
}

func matchText(text string) (Message, bool) {
	lower := strings.ToLower(text)
	for _, s := range substringMessages {
		if strings.Contains(lower, s.needle) {
			return s.msg, true
		}
	}
	return Message{}, false
}

func messageOf(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
