package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gm-agent-org/gm-settings/pkg/llm"
	"github.com/sashabaranov/go-openai"
)

// Client lists models from any OpenAI-compatible server (LM Studio,
// llama.cpp server, vLLM...). A fresh SDK client is built per call because
// the base URL is user-editable.
type Client struct {
	config     Config
	httpClient *http.Client
	log        *slog.Logger
}

type Config struct {
	APIKey string
	// Timeout bounds every HTTP exchange regardless of the caller's context.
	Timeout time.Duration
}

const defaultTimeout = 30 * time.Second

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

func (c *Client) sdk(baseURL string) *openai.Client {
	clientConfig := openai.DefaultConfig(c.config.APIKey)
	clientConfig.BaseURL = llm.APIBase(baseURL)
	clientConfig.HTTPClient = c.httpClient
	return openai.NewClientWithConfig(clientConfig)
}

func (c *Client) ListModels(ctx context.Context, baseURL string) ([]string, error) {
	endpoint := llm.ModelsURL(baseURL)
	c.log.Info("fetching models", "url", endpoint)

	list, err := c.sdk(baseURL).ListModels(ctx)
	if err != nil {
		return nil, classify(endpoint, err)
	}
	// A missing or null "data" member decodes to a nil slice; an empty
	// array decodes to an empty one.
	if list.Models == nil {
		return nil, &llm.DiscoveryError{URL: endpoint, Malformed: true, Err: errors.New(`response has no "data" list`)}
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if m.ID == "" {
			continue
		}
		ids = append(ids, m.ID)
	}
	c.log.Info("fetched models", "url", endpoint, "count", len(ids))
	return ids, nil
}

func (c *Client) Ping(ctx context.Context, baseURL string) error {
	_, err := c.sdk(baseURL).ListModels(ctx)
	if err == nil {
		return nil
	}
	derr := classify(llm.ModelsURL(baseURL), err)
	if errors.Is(derr, llm.ErrProviderMalformedResponse) {
		// The endpoint answered with a success status; that is all a probe needs.
		return nil
	}
	return derr
}

func classify(endpoint string, err error) error {
	var transportErr *url.Error
	if errors.As(err, &transportErr) {
		return &llm.DiscoveryError{URL: endpoint, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.DiscoveryError{URL: endpoint, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.DiscoveryError{URL: endpoint, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &llm.DiscoveryError{URL: endpoint, Malformed: true, Err: fmt.Errorf("decode models: %w", err)}
	}

	return &llm.DiscoveryError{URL: endpoint, Err: err}
}
