package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Store defines the persistence layer contract.
// Each call is independent: there is no transaction spanning keys.
type Store interface {
	// Key-value preferences. GetSetting reports absence on any failure.
	GetSetting(ctx context.Context, key string) (string, bool)
	SaveSetting(ctx context.Context, key, value string) error

	// Claude settings document (raw JSON).
	GetClaudeSettings(ctx context.Context) ([]byte, error)
	SaveClaudeSettings(ctx context.Context, doc []byte) error
}
