// Package settings owns the working copy of the Claude settings document
// and coordinates loading and saving it together with the provider
// integration and the deferred sub-editors.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gm-agent-org/gm-settings/pkg/deferred"
	"github.com/gm-agent-org/gm-settings/pkg/llm"
	"github.com/gm-agent-org/gm-settings/pkg/notify"
	"github.com/gm-agent-org/gm-settings/pkg/provider"
	"github.com/gm-agent-org/gm-settings/pkg/store"
	"github.com/gm-agent-org/gm-settings/pkg/types"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// KeyStartupIntro is the preference key of the startup intro toggle.
const KeyStartupIntro = "startup_intro_enabled"

// ProviderOptions configures the provider controller owned by the aggregator.
type ProviderOptions struct {
	DefaultURL       string
	RefreshInterval  time.Duration
	DiscoveryTimeout time.Duration
	ProbeTimeout     time.Duration
	ReadOnly         bool
}

type Options struct {
	Store    store.Store
	Lister   llm.ModelLister
	Tracker  *deferred.Tracker
	Notifier notify.Notifier
	Logger   *slog.Logger
	Provider ProviderOptions
}

// SaveResult describes what a save achieved.
type SaveResult struct {
	Persisted bool     `json:"persisted"`
	Committed []string `json:"committed,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// View is a read-only snapshot of the editable state.
type View struct {
	Document     types.Settings              `json:"document"`
	Allow        []types.PermissionRule      `json:"allow"`
	Deny         []types.PermissionRule      `json:"deny"`
	Env          []types.EnvironmentVariable `json:"env"`
	StartupIntro bool                        `json:"startup_intro"`
	Degraded     bool                        `json:"degraded"`
	Dirty        bool                        `json:"dirty"`
	Pending      []string                    `json:"pending"`
	Provider     provider.Snapshot           `json:"provider"`
}

// Aggregator holds the working settings document and drives load and the
// three-phase save.
type Aggregator struct {
	store    store.Store
	tracker  *deferred.Tracker
	notifier notify.Notifier
	log      *slog.Logger

	allow    *RuleList
	deny     *RuleList
	env      *EnvMap
	provider *provider.Controller

	saveMu sync.Mutex

	mu           sync.RWMutex
	doc          []byte
	persisted    []byte
	baseline     []byte
	degraded     bool
	startupIntro bool
}

func New(opts Options) *Aggregator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{Log: opts.Logger}
	}
	if opts.Tracker == nil {
		opts.Tracker = deferred.NewTracker()
	}

	a := &Aggregator{
		store:        opts.Store,
		tracker:      opts.Tracker,
		notifier:     opts.Notifier,
		log:          opts.Logger.With("component", "settings"),
		allow:        NewRuleList(),
		deny:         NewRuleList(),
		env:          NewEnvMap(),
		doc:          []byte("{}"),
		startupIntro: true,
	}
	a.provider = provider.New(provider.Options{
		Lister:           opts.Lister,
		Store:            opts.Store,
		Env:              a.env,
		Notifier:         opts.Notifier,
		Logger:           opts.Logger,
		DefaultURL:       opts.Provider.DefaultURL,
		RefreshInterval:  opts.Provider.RefreshInterval,
		DiscoveryTimeout: opts.Provider.DiscoveryTimeout,
		ProbeTimeout:     opts.Provider.ProbeTimeout,
		ReadOnly:         opts.Provider.ReadOnly,
	})
	return a
}

func (a *Aggregator) Allow() *RuleList               { return a.allow }
func (a *Aggregator) Deny() *RuleList                { return a.deny }
func (a *Aggregator) Env() *EnvMap                   { return a.env }
func (a *Aggregator) Provider() *provider.Controller { return a.provider }
func (a *Aggregator) Tracker() *deferred.Tracker     { return a.tracker }

// Load replaces the working copy with the stored document and reloads every
// preference. A missing or unusable document is replaced with an empty one;
// the returned error then matches ErrLoadDegraded and the aggregator remains
// usable.
func (a *Aggregator) Load(ctx context.Context) error {
	raw, err := a.store.GetClaudeSettings(ctx)
	var loadErr error
	switch {
	case err != nil:
		loadErr = fmt.Errorf("%w: %v", ErrLoadDegraded, err)
	case !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject():
		loadErr = fmt.Errorf("%w: document is not a JSON object", ErrLoadDegraded)
	}

	doc := raw
	if loadErr != nil {
		doc = []byte("{}")
		raw = nil
	}

	root := gjson.ParseBytes(doc)
	a.allow.Reset(stringArray(root.Get("permissions.allow")))
	a.deny.Reset(stringArray(root.Get("permissions.deny")))
	var pairs []EnvPair
	root.Get(types.FieldEnv).ForEach(func(k, v gjson.Result) bool {
		pairs = append(pairs, EnvPair{Key: k.String(), Value: v.String()})
		return true
	})
	a.env.Reset(pairs)

	startupIntro := true
	if v, ok := a.store.GetSetting(ctx, KeyStartupIntro); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			startupIntro = b
		}
	}

	for _, name := range a.tracker.Names() {
		c, _ := a.tracker.Get(name)
		if l, ok := c.(deferred.Loader); ok {
			l.Load(ctx)
		}
	}

	a.mu.Lock()
	a.doc = append([]byte(nil), doc...)
	a.persisted = raw
	a.degraded = loadErr != nil
	a.startupIntro = startupIntro
	a.mu.Unlock()

	a.provider.LoadPreferences(ctx)

	a.mu.Lock()
	if canonical, err := a.canonicalLocked(); err == nil {
		a.baseline = canonical
	}
	a.mu.Unlock()

	if loadErr != nil {
		a.notifier.Notify(notify.LevelWarning, "LoadDegraded",
			fmt.Sprintf("Could not load settings, starting from an empty document: %v", loadErr))
		return loadErr
	}

	a.log.Info("settings loaded",
		"allow", len(a.allow.Entries()),
		"deny", len(a.deny.Entries()),
		"env", len(pairs))
	return nil
}

// Update sets an owned scalar field of the working copy. A nil value clears
// the field so that its default applies. No I/O happens.
func (a *Aggregator) Update(field string, value any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, err := applyField(a.doc, field, value)
	if err != nil {
		return err
	}
	a.doc = doc
	return nil
}

// UpdateMany applies several fields at once. Either every field is applied
// or the working copy is left untouched.
func (a *Aggregator) UpdateMany(fields map[string]any) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	a.mu.Lock()
	defer a.mu.Unlock()

	doc := a.doc
	for _, name := range names {
		next, err := applyField(doc, name, fields[name])
		if err != nil {
			return err
		}
		doc = next
	}
	a.doc = doc
	return nil
}

// applyField returns doc with field set to value. doc itself is not
// modified.
func applyField(doc []byte, field string, value any) ([]byte, error) {
	doc = append([]byte(nil), doc...)
	var (
		out []byte
		err error
	)
	switch field {
	case types.FieldIncludeCoAuthoredBy, types.FieldVerbose:
		if value == nil {
			out, err = sjson.DeleteBytes(doc, field)
			break
		}
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidValue, field)
		}
		out, err = sjson.SetBytes(doc, field, b)
	case types.FieldCleanupPeriodDays:
		if value == nil {
			out, err = sjson.DeleteBytes(doc, field)
			break
		}
		days, ok := positiveInt(value)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidValue, field)
		}
		out, err = sjson.SetBytes(doc, field, days)
	case types.FieldAPIKeyHelper:
		if value == nil {
			out, err = sjson.DeleteBytes(doc, field)
			break
		}
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidValue, field)
		}
		out, err = sjson.SetBytes(doc, field, s)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", field, err)
	}
	return out, nil
}

// Canonical builds the document a save would persist.
func (a *Aggregator) Canonical() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.canonicalLocked()
}

func (a *Aggregator) canonicalLocked() ([]byte, error) {
	doc := append([]byte(nil), a.doc...)
	var err error

	if p := gjson.GetBytes(doc, types.FieldPermissions); p.Exists() && !p.IsObject() {
		if doc, err = sjson.DeleteBytes(doc, types.FieldPermissions); err != nil {
			return nil, err
		}
	}
	if doc, err = sjson.SetBytes(doc, "permissions.allow", a.allow.Values()); err != nil {
		return nil, err
	}
	if doc, err = sjson.SetBytes(doc, "permissions.deny", a.deny.Values()); err != nil {
		return nil, err
	}
	env, err := encodeEnv(a.env.Pairs())
	if err != nil {
		return nil, err
	}
	if doc, err = sjson.SetRawBytes(doc, types.FieldEnv, env); err != nil {
		return nil, err
	}
	return pretty.Pretty(doc), nil
}

// Save persists the canonical document and then commits pending deferred
// changes. A persistence failure returns an error matching ErrSaveFailed
// and nothing else runs. Commit failures are collected into a *CommitError
// while the result still reports the document as persisted.
func (a *Aggregator) Save(ctx context.Context) (SaveResult, error) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	doc, err := a.Canonical()
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	if err := a.store.SaveClaudeSettings(ctx, doc); err != nil {
		a.log.Error("failed to persist settings", "error", err)
		a.notifier.Notify(notify.LevelError, "SaveFailed",
			fmt.Sprintf("Could not save settings: %v", err))
		return SaveResult{}, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	a.mu.Lock()
	a.persisted = doc
	a.baseline = doc
	a.degraded = false
	a.mu.Unlock()

	result := SaveResult{Persisted: true}
	var failures []ModuleFailure
	for _, name := range a.tracker.Pending() {
		c, ok := a.tracker.Get(name)
		if !ok {
			continue
		}
		if err := c.Commit(ctx); err != nil {
			a.log.Error("deferred commit failed", "module", name, "error", err)
			failures = append(failures, ModuleFailure{Module: name, Err: err})
			result.Failed = append(result.Failed, name)
			continue
		}
		result.Committed = append(result.Committed, name)
	}

	if len(failures) > 0 {
		cerr := &CommitError{Failures: failures}
		a.notifier.Notify(notify.LevelError, "DeferredCommitFailed", cerr.Error())
		return result, cerr
	}

	a.log.Info("settings saved", "bytes", len(doc), "committed", len(result.Committed))
	a.notifier.Notify(notify.LevelInfo, "", "Settings saved")
	return result, nil
}

// Diff returns a line diff between the stored document and the canonical
// one. It is empty when a save would not change anything.
func (a *Aggregator) Diff() (string, error) {
	a.mu.RLock()
	persisted := string(a.persisted)
	canonical, err := a.canonicalLocked()
	a.mu.RUnlock()
	if err != nil {
		return "", err
	}
	if persisted == string(canonical) {
		return "", nil
	}

	dmp := diffmatchpatch.New()
	before, after, lines := dmp.DiffLinesToChars(persisted, string(canonical))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(before, after, false), lines)

	var b strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			b.WriteString(prefix)
			b.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), nil
}

// Snapshot returns the current editable state.
func (a *Aggregator) Snapshot() View {
	a.mu.RLock()
	canonical, err := a.canonicalLocked()
	if err != nil {
		canonical = a.doc
	}
	v := View{
		Document:     types.ParseSettings(canonical),
		StartupIntro: a.startupIntro,
		Degraded:     a.degraded,
		Dirty:        !bytes.Equal(canonical, a.baseline),
	}
	a.mu.RUnlock()

	v.Allow = a.allow.Entries()
	v.Deny = a.deny.Entries()
	v.Env = a.env.Entries()
	v.Pending = a.tracker.Pending()
	if v.Pending == nil {
		v.Pending = []string{}
	}
	v.Provider = a.provider.Snapshot()
	return v
}

// StartupIntro reports whether the startup intro is enabled.
func (a *Aggregator) StartupIntro() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.startupIntro
}

// SetStartupIntro persists the startup intro preference.
func (a *Aggregator) SetStartupIntro(ctx context.Context, enabled bool) error {
	if err := a.store.SaveSetting(ctx, KeyStartupIntro, strconv.FormatBool(enabled)); err != nil {
		a.log.Error("failed to persist preference", "key", KeyStartupIntro, "error", err)
		a.notifier.Notify(notify.LevelError, "PreferenceSaveFailed",
			fmt.Sprintf("Could not save %s: %v", KeyStartupIntro, err))
		return fmt.Errorf("save %s: %w", KeyStartupIntro, err)
	}
	a.mu.Lock()
	a.startupIntro = enabled
	a.mu.Unlock()
	return nil
}

// StageDeferred stages value on the named sub-module.
func (a *Aggregator) StageDeferred(module, value string) error {
	c, ok := a.tracker.Get(module)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}
	s, ok := c.(deferred.Stager)
	if !ok {
		return fmt.Errorf("%w: %q does not accept values", ErrUnknownModule, module)
	}
	if err := s.Stage(value); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return nil
}

// Degraded reports whether the working copy replaced an unusable document
// that has not been saved over yet.
func (a *Aggregator) Degraded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.degraded
}

// Close stops background provider work.
func (a *Aggregator) Close() {
	a.provider.Close()
}

func stringArray(r gjson.Result) []string {
	var out []string
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}

func positiveInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n > 0
	case int32:
		return int(n), n > 0
	case int64:
		return int(n), n > 0
	case float64:
		if n != math.Trunc(n) || n <= 0 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), i > 0
	}
	return 0, false
}

// encodeEnv renders pairs as a JSON object in the given order.
func encodeEnv(pairs []EnvPair) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	out := []byte{'{'}
	for i, p := range pairs {
		if i > 0 {
			out = append(out, ',')
		}
		for j, s := range []string{p.Key, p.Value} {
			buf.Reset()
			if err := enc.Encode(s); err != nil {
				return nil, err
			}
			out = append(out, bytes.TrimRight(buf.Bytes(), "\n")...)
			if j == 0 {
				out = append(out, ':')
			}
		}
	}
	return append(out, '}'), nil
}
