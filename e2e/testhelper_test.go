package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/luzdodia/api/internal/auth"
	"github.com/luzdodia/api/internal/client"
	"github.com/luzdodia/api/internal/config"
	"github.com/luzdodia/api/internal/executor"
	"github.com/luzdodia/api/internal/handler"
	"github.com/luzdodia/api/internal/health"
	"github.com/luzdodia/api/internal/middleware"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/pipeline"
	"github.com/luzdodia/api/internal/poller"
	"github.com/luzdodia/api/internal/registry"
	"github.com/luzdodia/api/internal/service"
	ws "github.com/luzdodia/api/internal/websocket"
	"github.com/luzdodia/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	modes *service.ModeService
}

// setupApp wires the same routes as main.go over the in-memory store, no
// provider credentials and in-process render tracking.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	reg := registry.Default()
	adapters := client.NewSet()
	store := service.NewMemorySessionStore()

	checker := health.NewChecker(reg, adapters, store, nil)
	modes := service.NewModeService(model.ModeSimulated, checker)

	exec := executor.New(reg, adapters, executor.Settings{SimulatedRenderPolls: 2})
	orch := pipeline.New(reg, exec, modes, pipeline.Options{
		Poller: poller.Config{MaxAttempts: 50, Interval: 10 * time.Millisecond},
	})

	hub := ws.NewHub()
	go hub.Run()

	sessions := service.NewSessionService(store, orch, reg, hub, time.Second)

	mux := asynq.NewServeMux()
	queue := worker.NewInlineQueue(mux)
	t.Cleanup(queue.Shutdown)
	renders := service.NewRenderService(sessions, orch, queue)
	mux.HandleFunc(model.TaskTypeTrackRender, worker.NewRenderWorker(renders, orch, hub, nil).ProcessTask)

	validate := validator.New()
	handlers := handler.Handlers{
		Sessions: handler.NewSessionHandler(sessions, orch, validate),
		Render:   handler.NewRenderHandler(renders),
		Catalog:  handler.NewCatalogHandler(reg, modes),
		Mode:     handler.NewModeHandler(modes, validate),
		Health:   handler.NewHealthHandler(checker, modes),
		Auth:     handler.NewAuthHandler(nil, testJWTSecret),
	}

	app := fiber.New()
	limiter := middleware.NewRateLimiter(middleware.NewMemoryCounter())
	// Use very high rate limits so tests don't get blocked
	limits := config.RateLimitConfig{GeneratePerMin: 10000, RenderPerHour: 10000, PublishPerHour: 10000}
	handler.Mount(app, handlers, middleware.NewAuthMiddleware(nil, testJWTSecret).Authenticate(), limiter, limits)

	return &testApp{app: app, modes: modes}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.IssueLegacyToken("test-user-123", "test@example.com", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// mustAuth performs an authenticated request and checks its status.
func mustAuth(t *testing.T, app *fiber.App, method, path, body string, expected int) map[string]interface{} {
	t.Helper()
	resp, err := doAuthRequest(t, app, method, path, body)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	if resp.StatusCode != expected {
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, expected, resp.StatusCode, readBody(t, resp))
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return parseJSON(t, resp)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode returns error.code of an error envelope.
func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

// field walks nested JSON objects.
func field(v interface{}, path ...string) interface{} {
	for _, p := range path {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = m[p]
	}
	return v
}
