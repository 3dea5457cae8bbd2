package e2e

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestCatalog_Models(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/catalog/models?roles=video-render", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	var models []map[string]interface{}
	if err := json.Unmarshal([]byte(readBody(t, resp)), &models); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 render models, got %d", len(models))
	}
}

func TestCatalog_Estimate(t *testing.T) {
	ta := setupApp(t)

	body := mustAuth(t, ta.app, http.MethodGet, "/api/catalog/estimate?provider=openai&model=gpt-4o&units=1000&mode=live", "", http.StatusOK)
	if body["cost"] != 0.00625 {
		t.Errorf("expected live cost 0.00625, got %v", body["cost"])
	}

	body = mustAuth(t, ta.app, http.MethodGet, "/api/catalog/estimate?provider=openai&model=gpt-4o&units=1000", "", http.StatusOK)
	if body["cost"] != float64(0) || body["mode"] != "simulated" {
		t.Errorf("expected free simulated estimate, got %v", body)
	}

	mustAuth(t, ta.app, http.MethodGet, "/api/catalog/estimate?provider=openai&model=gpt-9", "", http.StatusNotFound)
	mustAuth(t, ta.app, http.MethodGet, "/api/catalog/estimate?provider=openai", "", http.StatusBadRequest)
	mustAuth(t, ta.app, http.MethodGet, "/api/catalog/estimate?provider=openai&model=gpt-4o&mode=turbo", "", http.StatusBadRequest)
}

func TestMode_SwitchToLiveNotReady(t *testing.T) {
	ta := setupApp(t)

	body := mustAuth(t, ta.app, http.MethodGet, "/api/mode", "", http.StatusOK)
	if body["mode"] != "simulated" || body["ready"] != false {
		t.Errorf("expected simulated and not ready, got %v", body)
	}

	body = mustAuth(t, ta.app, http.MethodPut, "/api/mode", `{"mode":"live"}`, http.StatusServiceUnavailable)
	if errorCode(body) != "CONFIG_ERROR" {
		t.Errorf("expected CONFIG_ERROR, got %v", body)
	}
	if field(body, "error", "remediation") != "not_configured" {
		t.Errorf("expected not_configured remediation, got %v", field(body, "error", "remediation"))
	}
	if ta.modes.Mode() != "simulated" {
		t.Errorf("expected mode to stay simulated, got %v", ta.modes.Mode())
	}

	mustAuth(t, ta.app, http.MethodPut, "/api/mode", `{"mode":"turbo"}`, http.StatusBadRequest)
	body = mustAuth(t, ta.app, http.MethodPut, "/api/mode", `{"mode":"simulated"}`, http.StatusOK)
	if body["mode"] != "simulated" {
		t.Errorf("expected simulated, got %v", body["mode"])
	}
}
