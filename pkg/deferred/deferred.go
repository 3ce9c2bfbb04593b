// Package deferred tracks edits that sub-editors stage in memory and commit
// only when the aggregate save runs.
package deferred

import (
	"context"
	"sync"

	"github.com/gm-agent-org/gm-settings/pkg/store"
)

// Sub-module names.
const (
	BinaryPath    = "binaryPath"
	UserHooks     = "userHooks"
	ProxySettings = "proxySettings"
)

// Change is the contract a sub-editor exposes to the save pipeline.
// Commit must leave HasPendingChange true when it fails so the next save
// retries it.
type Change interface {
	HasPendingChange() bool
	Commit(ctx context.Context) error
}

// Tracker is the registry of sub-modules, in registration order.
type Tracker struct {
	mu      sync.RWMutex
	order   []string
	modules map[string]Change
}

func NewTracker() *Tracker {
	return &Tracker{modules: make(map[string]Change)}
}

// Register adds or replaces a sub-module. Replacing keeps its position.
func (t *Tracker) Register(name string, c Change) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.modules[name]; !ok {
		t.order = append(t.order, name)
	}
	t.modules[name] = c
}

func (t *Tracker) Get(name string) (Change, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.modules[name]
	return c, ok
}

// Names returns every registered sub-module.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.order...)
}

// Pending returns the sub-modules with staged changes, in registration order.
func (t *Tracker) Pending() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var names []string
	for _, name := range t.order {
		if t.modules[name].HasPendingChange() {
			names = append(names, name)
		}
	}
	return names
}

// Stager is implemented by sub-modules that accept a staged value.
type Stager interface {
	Stage(value string) error
	Value() string
}

// Loader is implemented by sub-modules that reload their committed value.
type Loader interface {
	Load(ctx context.Context)
}

// Store keys of the built-in sub-modules.
const (
	KeyBinaryPath    = "claude_binary_path"
	KeyUserHooks     = "user_hooks"
	KeyProxySettings = "proxy_settings"
)

// NewDefaultTracker registers the built-in sub-modules backed by st.
func NewDefaultTracker(st store.Store) *Tracker {
	t := NewTracker()
	t.Register(BinaryPath, NewSetting(st, KeyBinaryPath, nil))
	t.Register(UserHooks, NewSetting(st, KeyUserHooks, ValidateJSON))
	t.Register(ProxySettings, NewSetting(st, KeyProxySettings, ValidateProxyURL))
	return t
}
