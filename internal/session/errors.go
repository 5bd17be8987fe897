package session

import (
	"errors"

	"github.com/pbengoa/Tourline-front-sub001/internal/usermsg"
)

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// SessionError carries a user-presentable description of a failed auth operation.
// The underlying failure stays reachable through errors.Is/As.
type SessionError struct {
	Message usermsg.Message
	Err     error
}

func (e *SessionError) Error() string {
	return e.Message.Message
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func newSessionError(err error) *SessionError {
	return &SessionError{Message: usermsg.Describe(err), Err: err}
}
