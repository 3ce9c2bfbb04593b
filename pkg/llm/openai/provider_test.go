package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gm-agent-org/gm-settings/pkg/llm"
)

func newTestClient() *Client {
	return New(Config{Timeout: 2 * time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListModelsPreservesOrder(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"object":"list","data":[{"id":"llama-3-8b","object":"model","owned_by":"me"},{"id":"","object":"model"},{"id":"mistral-7b","object":"model"}]}`)

	models, err := newTestClient().ListModels(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 2 || models[0] != "llama-3-8b" || models[1] != "mistral-7b" {
		t.Fatalf("unexpected models %v", models)
	}
}

func TestListModelsEmptyList(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"object":"list","data":[]}`)

	models, err := newTestClient().ListModels(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("empty list should not fail: %v", err)
	}
	if models == nil || len(models) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", models)
	}
}

func TestListModelsMissingData(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"object":"list"}`)

	_, err := newTestClient().ListModels(context.Background(), srv.URL)
	if !errors.Is(err, llm.ErrProviderMalformedResponse) {
		t.Fatalf("expected malformed response error, got %v", err)
	}
}

func TestListModelsInvalidJSON(t *testing.T) {
	srv := serve(t, http.StatusOK, `not json`)

	_, err := newTestClient().ListModels(context.Background(), srv.URL)
	if !errors.Is(err, llm.ErrProviderMalformedResponse) {
		t.Fatalf("expected malformed response error, got %v", err)
	}
}

func TestListModelsErrorStatus(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`)

	_, err := newTestClient().ListModels(context.Background(), srv.URL)
	if !errors.Is(err, llm.ErrProviderUnreachable) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
	var derr *llm.DiscoveryError
	if !errors.As(err, &derr) || derr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status code on error, got %v", err)
	}
	if !strings.Contains(err.Error(), srv.URL+"/v1/models") {
		t.Fatalf("error should name the endpoint: %v", err)
	}
}

func TestListModelsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient().ListModels(context.Background(), url)
	if !errors.Is(err, llm.ErrProviderUnreachable) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
	if !strings.Contains(err.Error(), url) {
		t.Fatalf("error should name the url: %v", err)
	}
}

func TestPing(t *testing.T) {
	ok := serve(t, http.StatusOK, `{"data":[]}`)
	if err := newTestClient().Ping(context.Background(), ok.URL); err != nil {
		t.Fatalf("expected ping success, got %v", err)
	}

	garbled := serve(t, http.StatusOK, `<html>`)
	if err := newTestClient().Ping(context.Background(), garbled.URL); err != nil {
		t.Fatalf("success status should satisfy the probe, got %v", err)
	}

	bad := serve(t, http.StatusServiceUnavailable, ``)
	if err := newTestClient().Ping(context.Background(), bad.URL); err == nil {
		t.Fatalf("expected ping failure on 503")
	}
}
