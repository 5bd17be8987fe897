package session

import (
	"time"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusBootstrapping   Status = "bootstrapping"
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
)

// State is an immutable view of the session. Role predicates derive from User.
type State struct {
	Status         Status               `json:"status"`
	User           *domain.UserSnapshot `json:"user,omitempty"`
	TokenExpiresAt *time.Time           `json:"tokenExpiresAt,omitempty"`
}

func (s State) IsAuthenticated() bool { return s.Status == StatusAuthenticated && s.User != nil }
func (s State) IsLoading() bool       { return s.Status == StatusBootstrapping }
func (s State) IsAdmin() bool         { return s.IsAuthenticated() && s.User.IsAdmin() }
func (s State) IsGuide() bool         { return s.IsAuthenticated() && s.User.IsGuide() }
func (s State) IsTourist() bool       { return s.IsAuthenticated() && s.User.IsTourist() }
func (s State) IsProvider() bool      { return s.IsAuthenticated() && s.User.IsProvider() }
