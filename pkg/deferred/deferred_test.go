package deferred

import (
	"context"
	"errors"
	"testing"

	"github.com/gm-agent-org/gm-settings/pkg/store"
)

type failingStore struct {
	*store.MemoryStore
	err error
}

func (f *failingStore) SaveSetting(ctx context.Context, key, value string) error {
	if f.err != nil {
		return f.err
	}
	return f.MemoryStore.SaveSetting(ctx, key, value)
}

func TestTrackerOrderAndPending(t *testing.T) {
	st := store.NewMemoryStore()
	tr := NewTracker()
	bin := NewSetting(st, "claude_binary_path", nil)
	hooks := NewSetting(st, "user_hooks", ValidateJSON)
	proxy := NewSetting(st, "proxy_settings", ValidateProxyURL)
	tr.Register(BinaryPath, bin)
	tr.Register(UserHooks, hooks)
	tr.Register(ProxySettings, proxy)

	if got := tr.Names(); len(got) != 3 || got[0] != BinaryPath || got[2] != ProxySettings {
		t.Fatalf("unexpected order %v", got)
	}
	if len(tr.Pending()) != 0 {
		t.Fatalf("expected nothing pending")
	}

	if err := proxy.Stage("http://proxy:3128"); err != nil {
		t.Fatalf("stage proxy: %v", err)
	}
	if err := bin.Stage("/usr/local/bin/claude"); err != nil {
		t.Fatalf("stage bin: %v", err)
	}

	pending := tr.Pending()
	if len(pending) != 2 || pending[0] != BinaryPath || pending[1] != ProxySettings {
		t.Fatalf("unexpected pending %v", pending)
	}

	// Re-registering keeps the original slot.
	tr.Register(BinaryPath, bin)
	if got := tr.Names(); len(got) != 3 || got[0] != BinaryPath {
		t.Fatalf("re-register changed order: %v", got)
	}
}

func TestSettingCommit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	s := NewSetting(st, "claude_binary_path", nil)
	s.Load(ctx)

	if err := s.Stage("/opt/claude"); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !s.HasPendingChange() {
		t.Fatalf("expected pending change")
	}
	if err := s.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.HasPendingChange() {
		t.Fatalf("expected pending cleared after commit")
	}
	if v, _ := st.GetSetting(ctx, "claude_binary_path"); v != "/opt/claude" {
		t.Fatalf("unexpected stored value %q", v)
	}

	// Staging the committed value is not a change.
	_ = s.Stage("/opt/claude")
	if s.HasPendingChange() {
		t.Fatalf("staging committed value should not be pending")
	}
}

func TestSettingCommitFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{MemoryStore: store.NewMemoryStore(), err: errors.New("disk full")}
	s := NewSetting(st, "user_hooks", ValidateJSON)

	if err := s.Stage(`{"PreToolUse":[]}`); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := s.Commit(ctx); err == nil {
		t.Fatalf("expected commit failure")
	}
	if !s.HasPendingChange() {
		t.Fatalf("failed commit must keep the change pending")
	}
}

func TestSettingValidation(t *testing.T) {
	st := store.NewMemoryStore()
	hooks := NewSetting(st, "user_hooks", ValidateJSON)
	if err := hooks.Stage("{not json"); err == nil {
		t.Fatalf("expected invalid JSON to be rejected")
	}
	if hooks.HasPendingChange() {
		t.Fatalf("rejected value must not be staged")
	}

	proxy := NewSetting(st, "proxy_settings", ValidateProxyURL)
	if err := proxy.Stage("proxy:3128"); err == nil {
		t.Fatalf("expected relative proxy url to be rejected")
	}
	if err := proxy.Stage(""); err != nil {
		t.Fatalf("empty proxy should clear: %v", err)
	}
}

func TestDefaultTracker(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	_ = st.SaveSetting(ctx, KeyProxySettings, "http://proxy:8080")
	tr := NewDefaultTracker(st)

	c, ok := tr.Get(ProxySettings)
	if !ok {
		t.Fatalf("proxy module not registered")
	}
	c.(Loader).Load(ctx)
	if got := c.(Stager).Value(); got != "http://proxy:8080" {
		t.Fatalf("unexpected loaded value %q", got)
	}
	if _, ok := tr.Get("unknown"); ok {
		t.Fatalf("unexpected module")
	}
}
