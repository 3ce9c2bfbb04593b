package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gm-agent-org/gm-settings/pkg/deferred"
	"github.com/gm-agent-org/gm-settings/pkg/notify"
	"github.com/gm-agent-org/gm-settings/pkg/settings"
	"github.com/gm-agent-org/gm-settings/pkg/store"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubLister struct {
	models []string
	err    error
}

func (s *stubLister) ListModels(ctx context.Context, baseURL string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]string{}, s.models...), nil
}

func (s *stubLister) Ping(ctx context.Context, baseURL string) error { return s.err }

type failingDocStore struct {
	*store.MemoryStore
}

func (f *failingDocStore) SaveClaudeSettings(ctx context.Context, doc []byte) error {
	return errors.New("read-only file system")
}

type testEnv struct {
	srv    *Server
	agg    *settings.Aggregator
	store  store.Store
	center *notify.Center
}

func newTestEnv(t *testing.T, st store.Store, cfg Config) *testEnv {
	t.Helper()
	center := notify.NewCenter(nil)
	agg := settings.New(settings.Options{
		Store:    st,
		Lister:   &stubLister{models: []string{"llama-3-8b", "mistral-7b"}},
		Tracker:  deferred.NewDefaultTracker(st),
		Notifier: center,
	})
	t.Cleanup(agg.Close)
	_ = agg.Load(context.Background())
	return &testEnv{
		srv:    NewServer(cfg, agg, center, nil),
		agg:    agg,
		store:  st,
		center: center,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, store.NewMemoryStore(), Config{Version: "1.2.3"})
	for _, path := range []string{"/health", "/healthz"} {
		w := env.do(t, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s returned %d", path, w.Code)
		}
		if got := decode(t, w)["version"]; got != "1.2.3" {
			t.Fatalf("unexpected version %v", got)
		}
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, store.NewMemoryStore(), Config{APIKey: "secret"})

	if w := env.do(t, http.MethodGet, "/api/v1/settings", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	req.Header.Set("X-API-Key", "secret")
	w := httptest.NewRecorder()
	env.srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", w.Code)
	}

	if w := env.do(t, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("health must not require a key, got %d", w.Code)
	}
}

func TestPermissionsAndSave(t *testing.T) {
	st := store.NewMemoryStore()
	env := newTestEnv(t, st, Config{})

	w := env.do(t, http.MethodPost, "/api/v1/permissions/allow", `{"value":"Bash(ls)"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add rule returned %d: %s", w.Code, w.Body.String())
	}
	id, _ := decode(t, w)["id"].(string)
	if id == "" {
		t.Fatalf("missing rule id")
	}

	if w := env.do(t, http.MethodPost, "/api/v1/permissions/deny", ""); w.Code != http.StatusCreated {
		t.Fatalf("add empty rule returned %d", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/api/v1/permissions/allow/"+id, `{"value":"Bash(git status)"}`); w.Code != http.StatusOK {
		t.Fatalf("update rule returned %d", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/api/v1/permissions/allow/nope", `{"value":"x"}`); w.Code != http.StatusNotFound {
		t.Fatalf("update unknown rule returned %d", w.Code)
	}
	before := len(env.agg.Allow().Entries())
	if w := env.do(t, http.MethodPost, "/api/v1/permissions/allow", `{"value":`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed rule body returned %d", w.Code)
	}
	if got := len(env.agg.Allow().Entries()); got != before {
		t.Fatalf("malformed body added a rule: %d -> %d", before, got)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/permissions/maybe", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown list returned %d", w.Code)
	}

	diff := decode(t, env.do(t, http.MethodGet, "/api/v1/settings/diff", ""))
	if diff["changed"] != true || !strings.Contains(diff["diff"].(string), "Bash(git status)") {
		t.Fatalf("unexpected diff %v", diff)
	}

	w = env.do(t, http.MethodPost, "/api/v1/settings/save", "")
	if w.Code != http.StatusOK {
		t.Fatalf("save returned %d: %s", w.Code, w.Body.String())
	}
	doc, err := st.GetClaudeSettings(context.Background())
	if err != nil {
		t.Fatalf("document not saved: %v", err)
	}
	allow := gjson.GetBytes(doc, "permissions.allow").Array()
	if len(allow) != 1 || allow[0].String() != "Bash(git status)" {
		t.Fatalf("unexpected allow %s", doc)
	}
	if n := len(gjson.GetBytes(doc, "permissions.deny").Array()); n != 0 {
		t.Fatalf("empty deny rule persisted: %s", doc)
	}

	if w := env.do(t, http.MethodDelete, "/api/v1/permissions/allow/"+id, ""); w.Code != http.StatusOK {
		t.Fatalf("remove rule returned %d", w.Code)
	}
}

func TestEnvEndpoints(t *testing.T) {
	env := newTestEnv(t, store.NewMemoryStore(), Config{})

	w := env.do(t, http.MethodPost, "/api/v1/env", `{"key":"FOO","value":"bar"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add env returned %d", w.Code)
	}
	id := decode(t, w)["id"].(string)

	if w := env.do(t, http.MethodPost, "/api/v1/env", `not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed env body returned %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/env", ""); w.Code != http.StatusCreated {
		t.Fatalf("empty env body returned %d", w.Code)
	}

	if w := env.do(t, http.MethodPut, "/api/v1/env/"+id, `{"key":"FOO","value":"baz"}`); w.Code != http.StatusOK {
		t.Fatalf("update env returned %d", w.Code)
	}
	pairs := env.agg.Env().Pairs()
	if len(pairs) != 1 || pairs[0].Value != "baz" {
		t.Fatalf("unexpected env %v", pairs)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/env/"+id, ""); w.Code != http.StatusOK {
		t.Fatalf("remove env returned %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/env/"+id, ""); w.Code != http.StatusNotFound {
		t.Fatalf("second remove returned %d", w.Code)
	}
}

func TestPatchSettings(t *testing.T) {
	env := newTestEnv(t, store.NewMemoryStore(), Config{})

	if w := env.do(t, http.MethodPatch, "/api/v1/settings", `{"verbose":"loud"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid value returned %d", w.Code)
	}
	if w := env.do(t, http.MethodPatch, "/api/v1/settings", `{"theme":"dark"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field returned %d", w.Code)
	}

	if w := env.do(t, http.MethodPatch, "/api/v1/settings", `{"verbose":true,"zzz":1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("mixed patch returned %d", w.Code)
	}
	if env.agg.Snapshot().Document.Verbose {
		t.Fatalf("rejected patch must not change the working copy")
	}

	w := env.do(t, http.MethodPatch, "/api/v1/settings", `{"verbose":true,"cleanupPeriodDays":14}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch returned %d: %s", w.Code, w.Body.String())
	}
	doc := decode(t, w)["document"].(map[string]any)
	if doc["verbose"] != true || doc["cleanupPeriodDays"] != float64(14) {
		t.Fatalf("unexpected document %v", doc)
	}
}

func TestProviderEndpoints(t *testing.T) {
	env := newTestEnv(t, store.NewMemoryStore(), Config{})

	if w := env.do(t, http.MethodPut, "/api/v1/provider/model", `{"model":"mistral-7b"}`); w.Code != http.StatusConflict {
		t.Fatalf("select while disabled returned %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/provider/refresh", ""); w.Code != http.StatusConflict {
		t.Fatalf("refresh while disabled returned %d", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/api/v1/provider/url", `{"url":"not a url"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid url returned %d", w.Code)
	}

	if w := env.do(t, http.MethodPut, "/api/v1/provider/enabled", `{"enabled":true}`); w.Code != http.StatusOK {
		t.Fatalf("enable returned %d: %s", w.Code, w.Body.String())
	}
	env.agg.Provider().Wait()

	snap := decode(t, env.do(t, http.MethodGet, "/api/v1/provider", ""))
	if snap["state"] != "enabled-ready" || snap["selected_model"] != "llama-3-8b" {
		t.Fatalf("unexpected provider state %v", snap)
	}

	if w := env.do(t, http.MethodPut, "/api/v1/provider/model", `{"model":"mistral-7b"}`); w.Code != http.StatusOK {
		t.Fatalf("select returned %d", w.Code)
	}
	pairs := map[string]string{}
	for _, p := range env.agg.Env().Pairs() {
		pairs[p.Key] = p.Value
	}
	if pairs["ANTHROPIC_MODEL"] != "mistral-7b" || pairs["OPENAI_API_BASE"] != "http://localhost:1234/v1" {
		t.Fatalf("unexpected derived env %v", pairs)
	}

	w := env.do(t, http.MethodPost, "/api/v1/provider/refresh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh returned %d", w.Code)
	}
	if models := decode(t, w)["models"].([]any); len(models) != 2 {
		t.Fatalf("unexpected models %v", models)
	}

	conn := decode(t, env.do(t, http.MethodPost, "/api/v1/provider/test", ""))
	if conn["connected"] != true {
		t.Fatalf("expected connected, got %v", conn)
	}
	env.agg.Provider().Wait()

	if w := env.do(t, http.MethodPut, "/api/v1/provider/enabled", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing flag returned %d", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/api/v1/provider/enabled", `{"enabled":false}`); w.Code != http.StatusOK {
		t.Fatalf("disable returned %d", w.Code)
	}
	for _, p := range env.agg.Env().Pairs() {
		if strings.HasPrefix(p.Key, "ANTHROPIC_") || p.Key == "OPENAI_API_BASE" {
			t.Fatalf("derived key %s left after disable", p.Key)
		}
	}
}

func TestDeferredAndSaveFailure(t *testing.T) {
	st := &failingDocStore{MemoryStore: store.NewMemoryStore()}
	env := newTestEnv(t, st, Config{})

	if w := env.do(t, http.MethodPut, "/api/v1/deferred/unknown", `{"value":"x"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown module returned %d", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/api/v1/deferred/proxySettings", `{"value":"proxy:3128"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid proxy returned %d", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/api/v1/deferred/binaryPath", `{"value":"/opt/claude"}`); w.Code != http.StatusOK {
		t.Fatalf("stage returned %d", w.Code)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/settings/save", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("failed save returned %d", w.Code)
	}
	if _, ok := st.GetSetting(context.Background(), deferred.KeyBinaryPath); ok {
		t.Fatalf("deferred change committed after failed save")
	}

	list := decode(t, env.do(t, http.MethodGet, "/api/v1/notifications", ""))
	items := list["notifications"].([]any)
	var saveFailedID string
	for _, it := range items {
		n := it.(map[string]any)
		if n["condition"] == "SaveFailed" {
			saveFailedID = n["id"].(string)
		}
	}
	if saveFailedID == "" {
		t.Fatalf("expected SaveFailed notification in %v", items)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/notifications/"+saveFailedID, ""); w.Code != http.StatusOK {
		t.Fatalf("dismiss returned %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/notifications/"+saveFailedID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("second dismiss returned %d", w.Code)
	}
}

func TestDeferredCommitOnSave(t *testing.T) {
	st := store.NewMemoryStore()
	env := newTestEnv(t, st, Config{})

	if w := env.do(t, http.MethodPut, "/api/v1/deferred/userHooks", `{"value":"{\"Stop\":[]}"}`); w.Code != http.StatusOK {
		t.Fatalf("stage returned %d", w.Code)
	}
	w := env.do(t, http.MethodPost, "/api/v1/settings/save", "")
	if w.Code != http.StatusOK {
		t.Fatalf("save returned %d: %s", w.Code, w.Body.String())
	}
	committed := decode(t, w)["committed"].([]any)
	if len(committed) != 1 || committed[0] != deferred.UserHooks {
		t.Fatalf("unexpected committed %v", committed)
	}
	if v, _ := st.GetSetting(context.Background(), deferred.KeyUserHooks); v != `{"Stop":[]}` {
		t.Fatalf("hooks not committed: %q", v)
	}
}

func TestStartupIntroAndReload(t *testing.T) {
	st := store.NewMemoryStore()
	env := newTestEnv(t, st, Config{})

	w := env.do(t, http.MethodPut, "/api/v1/preferences/startup-intro", `{"enabled":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("startup intro returned %d", w.Code)
	}
	if decode(t, w)["startup_intro"] != false {
		t.Fatalf("startup intro not applied")
	}

	_ = st.SaveClaudeSettings(context.Background(), []byte(`{"permissions":{"allow":["Read(*)"]}}`))
	w = env.do(t, http.MethodPost, "/api/v1/settings/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload returned %d", w.Code)
	}
	view := decode(t, w)
	if allow := view["allow"].([]any); len(allow) != 1 {
		t.Fatalf("reload did not pick up stored rules: %v", allow)
	}
	if view["startup_intro"] != false {
		t.Fatalf("reload lost startup intro preference")
	}
}

func TestNotificationStream(t *testing.T) {
	env := newTestEnv(t, store.NewMemoryStore(), Config{})
	srv := httptest.NewServer(env.srv.Engine())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/notifications/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	env.center.Notify(notify.LevelWarning, "ProviderUnreachable", "server at localhost:1234 is down")

	scanner := bufio.NewScanner(resp.Body)
	var event string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data := strings.TrimPrefix(line, "data:")
			if event != "notification" || gjson.Get(data, "condition").String() != "ProviderUnreachable" {
				t.Fatalf("unexpected event %q: %s", event, data)
			}
			return
		}
	}
	t.Fatalf("stream ended without a notification: %v", scanner.Err())
}
