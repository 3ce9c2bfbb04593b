// Package provider manages the integration with a locally hosted
// OpenAI-compatible inference server: enable/disable, model discovery,
// model selection, derived environment overrides and periodic refresh.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gm-agent-org/gm-settings/pkg/llm"
	"github.com/gm-agent-org/gm-settings/pkg/notify"
	"github.com/gm-agent-org/gm-settings/pkg/store"
)

// State of the integration.
type State string

const (
	StateDisabled State = "disabled"
	StateLoading  State = "enabled-loading"
	StateReady    State = "enabled-ready"
	StateError    State = "enabled-error"
)

// Preference keys.
const (
	KeyEnabled       = "lm_studio_enabled"
	KeyURL           = "lm_studio_url"
	KeySelectedModel = "lm_studio_selected_model"
)

// Derived environment overrides.
const (
	EnvAnthropicAPIBase = "ANTHROPIC_API_BASE"
	EnvAnthropicModel   = "ANTHROPIC_MODEL"
	EnvOpenAIAPIBase    = "OPENAI_API_BASE"
)

// DerivedEnvKeys lists every environment key the controller writes.
var DerivedEnvKeys = []string{EnvAnthropicAPIBase, EnvAnthropicModel, EnvOpenAIAPIBase}

var (
	ErrDisabled    = errors.New("provider integration is disabled")
	ErrStaleResult = errors.New("discovery result superseded")
	ErrEmptyModel  = errors.New("model name is empty")
	ErrInvalidURL  = errors.New("invalid provider URL")

	ErrPersistFailed = errors.New("failed to persist provider preference")
)

// EnvTarget receives the derived environment overrides.
type EnvTarget interface {
	SetKey(key, value string)
	DeleteKey(key string)
}

type Options struct {
	Lister   llm.ModelLister
	Store    store.Store
	Env      EnvTarget
	Notifier notify.Notifier
	Logger   *slog.Logger

	DefaultURL       string
	RefreshInterval  time.Duration // zero disables the periodic refresh
	DiscoveryTimeout time.Duration
	ProbeTimeout     time.Duration

	// ReadOnly keeps discovery from persisting an auto-selected model.
	ReadOnly bool
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	State           State      `json:"state"`
	Enabled         bool       `json:"enabled"`
	BaseURL         string     `json:"base_url"`
	AvailableModels []string   `json:"available_models"`
	SelectedModel   string     `json:"selected_model"`
	Generation      uint64     `json:"generation"`
	LastRefresh     *time.Time `json:"last_refresh,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// Controller owns the provider integration state. All public methods are
// safe for concurrent use; discovery results are applied only if no newer
// discovery was issued after them.
type Controller struct {
	opts Options
	log  *slog.Logger

	mu          sync.Mutex
	state       State
	baseURL     string
	models      []string
	selected    string
	generation  uint64
	lastRefresh time.Time
	lastError   string
	stopTicker  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{Log: opts.Logger}
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = 10 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.DefaultURL == "" {
		opts.DefaultURL = "http://localhost:1234"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		opts:    opts,
		log:     opts.Logger.With("component", "provider"),
		state:   StateDisabled,
		baseURL: opts.DefaultURL,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// LoadPreferences reads the persisted integration preferences and restores
// the controller from them.
func (c *Controller) LoadPreferences(ctx context.Context) {
	enabledRaw, _ := c.opts.Store.GetSetting(ctx, KeyEnabled)
	enabled, _ := strconv.ParseBool(enabledRaw)
	baseURL, _ := c.opts.Store.GetSetting(ctx, KeyURL)
	model, _ := c.opts.Store.GetSetting(ctx, KeySelectedModel)
	c.Restore(enabled, baseURL, model)
}

// Restore resets the controller to the given persisted state without
// writing anything back. An enabled integration starts loading immediately.
func (c *Controller) Restore(enabled bool, baseURL, model string) {
	c.mu.Lock()
	c.stopTickerLocked()
	c.generation++
	c.baseURL = strings.TrimSpace(baseURL)
	if c.baseURL == "" {
		c.baseURL = c.opts.DefaultURL
	}
	c.selected = strings.TrimSpace(model)
	c.models = nil
	c.lastError = ""
	c.lastRefresh = time.Time{}
	if enabled {
		c.state = StateLoading
		c.startTickerLocked()
	} else {
		c.state = StateDisabled
	}
	c.recomputeLocked()
	restoredURL := c.baseURL
	c.mu.Unlock()

	c.log.Info("provider restored", "enabled", enabled, "url", restoredURL, "model", model)
	if enabled {
		c.goDiscover()
	}
}

// SetEnabled toggles the integration and persists the flag. Enabling starts
// discovery in the background; disabling stops the refresh timer and
// removes the derived environment overrides.
func (c *Controller) SetEnabled(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	c.lastError = ""
	if enabled {
		c.state = StateLoading
		c.startTickerLocked()
		c.recomputeLocked()
	} else {
		c.state = StateDisabled
		c.generation++
		c.models = nil
		c.stopTickerLocked()
		for _, key := range DerivedEnvKeys {
			c.opts.Env.DeleteKey(key)
		}
	}
	c.mu.Unlock()

	c.log.Info("provider toggled", "enabled", enabled)
	err := c.persist(ctx, KeyEnabled, strconv.FormatBool(enabled))
	if enabled {
		c.goDiscover()
	}
	return err
}

// DiscoverModels fetches the model list from the current base URL. The
// result is discarded with ErrStaleResult if another discovery started in
// the meantime or the integration was disabled.
func (c *Controller) DiscoverModels(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if c.state == StateDisabled {
		c.mu.Unlock()
		return nil, ErrDisabled
	}
	c.generation++
	gen := c.generation
	baseURL := c.baseURL
	c.state = StateLoading
	c.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, c.opts.DiscoveryTimeout)
	models, err := c.opts.Lister.ListModels(callCtx, baseURL)
	cancel()

	c.mu.Lock()
	if gen != c.generation || c.state == StateDisabled {
		c.mu.Unlock()
		c.log.Debug("discarding stale discovery result", "url", baseURL, "generation", gen)
		return nil, ErrStaleResult
	}

	if err != nil {
		var derr *llm.DiscoveryError
		if !errors.As(err, &derr) {
			err = &llm.DiscoveryError{URL: llm.ModelsURL(baseURL), Err: err}
		}
		c.models = []string{}
		c.state = StateError
		c.lastError = err.Error()
		c.mu.Unlock()

		condition := "ProviderUnreachable"
		if errors.Is(err, llm.ErrProviderMalformedResponse) {
			condition = "ProviderMalformedResponse"
		}
		c.opts.Notifier.Notify(notify.LevelError, condition, err.Error())
		return nil, err
	}

	c.models = append([]string{}, models...)
	c.state = StateReady
	c.lastRefresh = time.Now()
	var autoSelected string
	if len(models) > 0 && c.selected == "" {
		autoSelected = models[0]
		c.selected = autoSelected
		c.recomputeLocked()
	}
	c.mu.Unlock()

	c.log.Info("models discovered", "url", baseURL, "count", len(models))
	if autoSelected != "" {
		c.log.Info("auto-selected model", "model", autoSelected)
		if !c.opts.ReadOnly {
			_ = c.persist(ctx, KeySelectedModel, autoSelected)
		}
	}
	return append([]string{}, models...), nil
}

// SelectModel records the chosen model and refreshes the derived overrides.
func (c *Controller) SelectModel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyModel
	}

	c.mu.Lock()
	if c.state == StateDisabled {
		c.mu.Unlock()
		return ErrDisabled
	}
	c.selected = name
	c.recomputeLocked()
	c.mu.Unlock()

	return c.persist(ctx, KeySelectedModel, name)
}

// ChangeBaseURL updates and persists the server URL. While enabled, any
// in-flight discovery is superseded, the refresh timer is recreated and a
// fresh discovery runs against the new URL.
func (c *Controller) ChangeBaseURL(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	c.mu.Lock()
	c.baseURL = raw
	enabled := c.state != StateDisabled
	if enabled {
		c.generation++
		c.state = StateLoading
		c.startTickerLocked()
	}
	c.recomputeLocked()
	c.mu.Unlock()

	c.log.Info("provider url changed", "url", raw)
	err = c.persist(ctx, KeyURL, raw)
	if enabled {
		c.goDiscover()
	}
	return err
}

// TestConnection probes the models endpoint. On success it refreshes the
// model list when the integration is enabled.
func (c *Controller) TestConnection(ctx context.Context) bool {
	c.mu.Lock()
	baseURL := c.baseURL
	enabled := c.state != StateDisabled
	c.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	err := c.opts.Lister.Ping(callCtx, baseURL)
	cancel()

	if err != nil {
		c.log.Warn("connection test failed", "url", baseURL, "error", err)
		c.opts.Notifier.Notify(notify.LevelWarning, "ProviderUnreachable",
			fmt.Sprintf("Connection test to %s failed: %v", baseURL, err))
		return false
	}

	c.log.Info("connection test succeeded", "url", baseURL)
	c.opts.Notifier.Notify(notify.LevelInfo, "", fmt.Sprintf("Connected to %s", baseURL))
	if enabled {
		c.goDiscover()
	}
	return true
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:           c.state,
		Enabled:         c.state != StateDisabled,
		BaseURL:         c.baseURL,
		AvailableModels: append([]string{}, c.models...),
		SelectedModel:   c.selected,
		Generation:      c.generation,
		LastError:       c.lastError,
	}
	if !c.lastRefresh.IsZero() {
		t := c.lastRefresh
		s.LastRefresh = &t
	}
	return s
}

// Wait blocks until every background discovery started so far has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops the refresh timer, discards in-flight results and waits for
// background work to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopTickerLocked()
	c.generation++
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) goDiscover() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// Errors are logged and notified by DiscoverModels.
		_, _ = c.DiscoverModels(c.ctx)
	}()
}

// recomputeLocked writes the derived overrides while enabled with a model
// selected. Removal happens only on an explicit disable.
func (c *Controller) recomputeLocked() {
	if c.state == StateDisabled || c.selected == "" {
		return
	}
	base := llm.APIBase(c.baseURL)
	c.opts.Env.SetKey(EnvAnthropicAPIBase, base)
	c.opts.Env.SetKey(EnvAnthropicModel, c.selected)
	c.opts.Env.SetKey(EnvOpenAIAPIBase, base)
}

func (c *Controller) startTickerLocked() {
	c.stopTickerLocked()
	if c.opts.RefreshInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	c.stopTicker = stop
	interval := c.opts.RefreshInterval

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-c.ctx.Done():
				return
			case <-t.C:
				c.log.Debug("periodic model refresh")
				// Reported inside DiscoverModels.
				_, _ = c.DiscoverModels(c.ctx)
			}
		}
	}()
}

func (c *Controller) stopTickerLocked() {
	if c.stopTicker != nil {
		close(c.stopTicker)
		c.stopTicker = nil
	}
}

func (c *Controller) persist(ctx context.Context, key, value string) error {
	if err := c.opts.Store.SaveSetting(ctx, key, value); err != nil {
		c.log.Error("failed to persist preference", "key", key, "error", err)
		c.opts.Notifier.Notify(notify.LevelError, "PreferenceSaveFailed",
			fmt.Sprintf("Could not save %s: %v", key, err))
		return fmt.Errorf("%w %s: %w", ErrPersistFailed, key, err)
	}
	return nil
}
