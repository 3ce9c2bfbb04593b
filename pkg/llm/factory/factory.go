package factory

import (
	"fmt"
	"log/slog"

	"github.com/gm-agent-org/gm-settings/pkg/config"
	"github.com/gm-agent-org/gm-settings/pkg/llm"
	"github.com/gm-agent-org/gm-settings/pkg/llm/openai"
)

// NewModelLister creates the discovery client based on configuration.
func NewModelLister(cfg *config.Config, log *slog.Logger) (llm.ModelLister, error) {
	switch cfg.Provider.Type {
	case "", "openai", "lmstudio":
		timeout := cfg.Provider.DiscoveryTimeout
		if cfg.Provider.ProbeTimeout > timeout {
			timeout = cfg.Provider.ProbeTimeout
		}
		return openai.New(openai.Config{
			APIKey:  cfg.Provider.APIKey,
			Timeout: timeout,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider.Type)
	}
}
