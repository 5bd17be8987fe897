package repository

import (
	"context"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
)

// KeyValue is the durable key/value storage provider the credential store
// persists into. Values are opaque strings.
type KeyValue interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// MultiGet reads all keys in one atomic operation. Missing keys are
	// absent from the result.
	MultiGet(ctx context.Context, keys ...string) (map[string]string, error)

	// MultiSet writes all pairs in one atomic operation.
	MultiSet(ctx context.Context, pairs map[string]string) error

	// MultiRemove deletes all keys in one operation. Missing keys are ignored.
	MultiRemove(ctx context.Context, keys ...string) error
}

// CredentialStore persists the signed-in {token, user} pair.
type CredentialStore interface {
	Load(ctx context.Context) (*domain.Credential, error)
	Save(ctx context.Context, cred domain.Credential) error
	Clear(ctx context.Context) error
}
