package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/auth"
)

func writeKeysJSON(t *testing.T, dir string, keys map[string]auth.Key) {
	t.Helper()
	data, err := json.Marshal(keys)
	if err != nil {
		t.Fatalf("json.Marshal keys: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "keys.json"), data, 0644); err != nil {
		t.Fatalf("WriteFile keys.json: %v", err)
	}
}

func newService(t *testing.T, dir string) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(dir)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func newSecuredService(t *testing.T) *auth.Service {
	t.Helper()
	dir := t.TempDir()
	writeKeysJSON(t, dir, map[string]auth.Key{
		"homeassistant": {Key: "control-key"},
		"dashboard":     {Key: "read-key", Scope: auth.ScopeRead},
	})
	return newService(t, dir)
}

// serve runs req through the middleware and reports whether next ran.
func serve(svc *auth.Service, req *http.Request) (*httptest.ResponseRecorder, string, bool) {
	var client string
	called := false
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		client = auth.Client(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, client, called
}

func TestService_OpenMode(t *testing.T) {
	svc := newService(t, t.TempDir())

	if !svc.IsOpenMode() {
		t.Error("IsOpenMode() = false, want true when no keys.json")
	}
	if _, _, ok := svc.Lookup("any-key"); ok {
		t.Error("Lookup succeeded with no keys configured")
	}
}

func TestMiddleware_OpenMode_PassesThrough(t *testing.T) {
	svc := newService(t, t.TempDir())

	rr, client, called := serve(svc, httptest.NewRequest(http.MethodPatch, "/api/main", nil))
	if !called || rr.Code != http.StatusOK {
		t.Errorf("open mode: called=%v code=%d, want true 200", called, rr.Code)
	}
	if client != "" {
		t.Errorf("Client() = %q, want empty in open mode", client)
	}
}

func TestService_Lookup(t *testing.T) {
	svc := newSecuredService(t)

	if svc.IsOpenMode() {
		t.Fatal("IsOpenMode() = true with keys configured")
	}
	name, scope, ok := svc.Lookup("control-key")
	if !ok || name != "homeassistant" || scope != auth.ScopeControl {
		t.Errorf("Lookup(control-key) = %q, %q, %v", name, scope, ok)
	}
	name, scope, ok = svc.Lookup("read-key")
	if !ok || name != "dashboard" || scope != auth.ScopeRead {
		t.Errorf("Lookup(read-key) = %q, %q, %v", name, scope, ok)
	}
	if _, _, ok := svc.Lookup("wrong"); ok {
		t.Error("Lookup(wrong) succeeded")
	}
	if _, _, ok := svc.Lookup(""); ok {
		t.Error("Lookup(\"\") succeeded")
	}
}

func TestMiddleware_KeySources(t *testing.T) {
	svc := newSecuredService(t)

	header := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	header.Header.Set("X-API-Key", "control-key")

	bearer := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	bearer.Header.Set("Authorization", "Bearer control-key")

	query := httptest.NewRequest(http.MethodGet, "/api/events?api-key=control-key", nil)

	for name, req := range map[string]*http.Request{"header": header, "bearer": bearer, "query": query} {
		rr, client, called := serve(svc, req)
		if !called || rr.Code != http.StatusOK {
			t.Errorf("%s: called=%v code=%d, want true 200", name, called, rr.Code)
		}
		if client != "homeassistant" {
			t.Errorf("%s: Client() = %q, want homeassistant", name, client)
		}
	}
}

func TestMiddleware_Unauthorized(t *testing.T) {
	svc := newSecuredService(t)

	wrong := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	wrong.Header.Set("X-API-Key", "wrong-key")

	for name, req := range map[string]*http.Request{
		"none":  httptest.NewRequest(http.MethodGet, "/api/state", nil),
		"wrong": wrong,
	} {
		rr, _, called := serve(svc, req)
		if called {
			t.Errorf("%s: next handler called", name)
		}
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, rr.Code)
		}
		if rr.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("%s: missing WWW-Authenticate header", name)
		}
	}
}

func TestMiddleware_ReadScope(t *testing.T) {
	svc := newSecuredService(t)

	get := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	get.Header.Set("X-API-Key", "read-key")
	if rr, _, called := serve(svc, get); !called || rr.Code != http.StatusOK {
		t.Errorf("read key GET: called=%v code=%d", called, rr.Code)
	}

	patch := httptest.NewRequest(http.MethodPatch, "/api/main", nil)
	patch.Header.Set("X-API-Key", "read-key")
	rr, _, called := serve(svc, patch)
	if called {
		t.Error("read key PATCH reached the handler")
	}
	if rr.Code != http.StatusForbidden {
		t.Errorf("read key PATCH status = %d, want 403", rr.Code)
	}
}

func TestService_Reload(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir)

	if !svc.IsOpenMode() {
		t.Fatal("initially expected open mode")
	}

	writeKeysJSON(t, dir, map[string]auth.Key{"cli": {Key: "reload-test-key"}})
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if svc.IsOpenMode() {
		t.Error("expected secured mode after reload")
	}
	if _, _, ok := svc.Lookup("reload-test-key"); !ok {
		t.Error("Lookup after reload returned false for correct key")
	}
}

func TestService_ReloadBadScopeKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	writeKeysJSON(t, dir, map[string]auth.Key{"cli": {Key: "k1"}})
	svc := newService(t, dir)

	writeKeysJSON(t, dir, map[string]auth.Key{"cli": {Key: "k2", Scope: "admin"}})
	if err := svc.Reload(); err == nil {
		t.Fatal("Reload accepted unknown scope")
	}
	if _, _, ok := svc.Lookup("k1"); !ok {
		t.Error("previous key set dropped after failed reload")
	}
}

func TestService_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir)

	writeKeysJSON(t, dir, map[string]auth.Key{"cli": {Key: "watched"}})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, ok := svc.Lookup("watched"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("watcher did not pick up keys.json")
}

func TestService_CorruptFileIsError(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "keys.json"), []byte("{not json"), 0644)

	if _, err := auth.NewService(dir); err == nil {
		t.Error("NewService accepted corrupt keys.json")
	}
}

func TestService_MissingConfigDir_NoError(t *testing.T) {
	svc := newService(t, filepath.Join(t.TempDir(), "does-not-exist"))

	if !svc.IsOpenMode() {
		t.Error("expected open mode for non-existent config dir")
	}
}
