package deferred

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/gm-agent-org/gm-settings/pkg/store"
	"github.com/tidwall/gjson"
)

// Setting is a sub-editor backed by a single store key. Stage keeps the new
// value in memory; Commit writes it.
type Setting struct {
	mu        sync.Mutex
	key       string
	store     store.Store
	validate  func(string) error
	committed string
	staged    string
	pending   bool
}

func NewSetting(st store.Store, key string, validate func(string) error) *Setting {
	return &Setting{key: key, store: st, validate: validate}
}

// Key returns the store key.
func (s *Setting) Key() string {
	return s.key
}

// Load replaces the committed value with what the store holds and drops
// any staged edit.
func (s *Setting) Load(ctx context.Context) {
	v, _ := s.store.GetSetting(ctx, s.key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = v
	s.staged = v
	s.pending = false
}

// Stage records value for the next commit. Staging the committed value
// clears the pending flag.
func (s *Setting) Stage(value string) error {
	if s.validate != nil {
		if err := s.validate(value); err != nil {
			return fmt.Errorf("%s: %w", s.key, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = value
	s.pending = value != s.committed
	return nil
}

// Value returns the staged value (equal to the committed one when nothing is pending).
func (s *Setting) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staged
}

func (s *Setting) HasPendingChange() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Setting) Commit(ctx context.Context) error {
	s.mu.Lock()
	value := s.staged
	s.mu.Unlock()

	if err := s.store.SaveSetting(ctx, s.key, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = value
	// Another Stage may have landed while the write was in flight.
	s.pending = s.staged != value
	return nil
}

// ValidateJSON accepts an empty string or a JSON document.
func ValidateJSON(v string) error {
	if v == "" || gjson.Valid(v) {
		return nil
	}
	return fmt.Errorf("invalid JSON")
}

// ValidateProxyURL accepts an empty string or an absolute URL.
func ValidateProxyURL(v string) error {
	if v == "" {
		return nil
	}
	u, err := url.Parse(v)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("proxy URL must be absolute: %q", v)
	}
	return nil
}
