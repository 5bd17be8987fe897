package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
	"github.com/pbengoa/Tourline-front-sub001/internal/repository"
)

// Persisted keys. They are always written and removed together.
const (
	TokenKey = "auth_token"
	UserKey  = "user_data"
)

// ErrIncompleteCredential is returned by Save when token or user is missing.
var ErrIncompleteCredential = errors.New("credential requires both token and user")

// Store persists the {token, user} pair of the signed-in session.
// It satisfies httpclient.TokenSource and httpclient.SessionInvalidator.
type Store struct {
	kv     repository.KeyValue
	logger *slog.Logger
}

// NewStore creates a credential store on top of a key/value provider.
func NewStore(kv repository.KeyValue, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Load returns the persisted credential, or nil when none exists. A half-written
// or undecodable record is treated as absent and its leftovers are removed.
func (s *Store) Load(ctx context.Context) (*domain.Credential, error) {
	vals, err := s.kv.MultiGet(ctx, TokenKey, UserKey)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	token, hasToken := vals[TokenKey]
	rawUser, hasUser := vals[UserKey]

	if !hasToken && !hasUser {
		return nil, nil
	}
	if !hasToken || !hasUser || token == "" {
		s.logger.WarnContext(ctx, "discarding incomplete credential record",
			slog.Bool("has_token", hasToken),
			slog.Bool("has_user", hasUser),
		)
		return nil, s.Clear(ctx)
	}

	var user domain.UserSnapshot
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.WarnContext(ctx, "discarding undecodable user snapshot",
			slog.String("error", err.Error()),
		)
		return nil, s.Clear(ctx)
	}

	return &domain.Credential{Token: token, User: &user}, nil
}

// Token returns the persisted token, or "" when signed out.
func (s *Store) Token(ctx context.Context) (string, error) {
	token, _, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

// Save writes token and user in one MultiSet.
func (s *Store) Save(ctx context.Context, cred domain.Credential) error {
	if !cred.Valid() {
		return ErrIncompleteCredential
	}

	rawUser, err := json.Marshal(cred.User)
	if err != nil {
		return fmt.Errorf("marshal user snapshot: %w", err)
	}

	if err := s.kv.MultiSet(ctx, map[string]string{
		TokenKey: cred.Token,
		UserKey:  string(rawUser),
	}); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	s.logger.DebugContext(ctx, "credential saved", slog.String("user_id", cred.User.ID))
	return nil
}

// Clear removes token and user in one MultiRemove. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.MultiRemove(ctx, TokenKey, UserKey); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.logger.DebugContext(ctx, "credential cleared")
	return nil
}
