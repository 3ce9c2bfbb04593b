package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gm-agent-org/gm-settings/pkg/config"
	"github.com/gm-agent-org/gm-settings/pkg/deferred"
	"github.com/gm-agent-org/gm-settings/pkg/llm"
	"github.com/gm-agent-org/gm-settings/pkg/llm/factory"
	"github.com/gm-agent-org/gm-settings/pkg/notify"
	"github.com/gm-agent-org/gm-settings/pkg/settings"
	"github.com/gm-agent-org/gm-settings/pkg/store"
)

// app bundles the components a command needs.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  store.Store
	lister llm.ModelLister
	center *notify.Center
	agg    *settings.Aggregator
}

// newApp builds the components for a command. A readOnly app never persists
// preferences as a side effect of model discovery.
func newApp(opts *Options, stderr io.Writer, readOnly bool) (*app, error) {
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: parseLogLevel(opts.LogLevel)}))
	slog.SetDefault(log)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.ClaudeDir != "" {
		cfg.ClaudeDir = opts.ClaudeDir
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.ProviderURL != "" {
		cfg.Provider.DefaultURL = opts.ProviderURL
	}

	var st store.Store
	if opts.Ephemeral {
		st = store.NewMemoryStore()
	} else {
		st = store.NewFSStore(cfg.ClaudeDir, cfg.DataDir, log)
	}

	lister, err := factory.NewModelLister(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("create model lister: %w", err)
	}

	center := notify.NewCenter(log)
	agg := settings.New(settings.Options{
		Store:    st,
		Lister:   lister,
		Tracker:  deferred.NewDefaultTracker(st),
		Notifier: center,
		Logger:   log,
		Provider: settings.ProviderOptions{
			DefaultURL:       cfg.Provider.DefaultURL,
			RefreshInterval:  cfg.Provider.RefreshInterval,
			DiscoveryTimeout: cfg.Provider.DiscoveryTimeout,
			ProbeTimeout:     cfg.Provider.ProbeTimeout,
			ReadOnly:         readOnly,
		},
	})

	return &app{
		cfg:    cfg,
		log:    log,
		store:  st,
		lister: lister,
		center: center,
		agg:    agg,
	}, nil
}

// load reads the settings document. A degraded load is logged and the
// command continues with an empty document.
func (a *app) load(ctx context.Context) error {
	err := a.agg.Load(ctx)
	if errors.Is(err, settings.ErrLoadDegraded) {
		a.log.Warn("continuing with empty settings", "error", err)
		return nil
	}
	return err
}

func (a *app) close() {
	a.agg.Close()
}
