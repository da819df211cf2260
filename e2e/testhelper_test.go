package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/lessonforge/api/internal/analytics"
	"github.com/lessonforge/api/internal/auth"
	"github.com/lessonforge/api/internal/client"
	"github.com/lessonforge/api/internal/config"
	"github.com/lessonforge/api/internal/handler"
	"github.com/lessonforge/api/internal/library"
	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/middleware"
	"github.com/lessonforge/api/internal/model"
	"github.com/lessonforge/api/internal/server"
	"github.com/lessonforge/api/internal/service"
	"github.com/lessonforge/api/internal/store"
	"github.com/lessonforge/api/internal/timing"
	"github.com/lessonforge/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

const lessonManifest = `{
	"video_id": "pythagoras-101",
	"templates": [
		{"id": "title", "type": "Text", "content": "Right triangles"},
		{"id": "formula", "type": "MathTex", "content": "a^2 + b^2 = c^2"}
	],
	"shots": [
		{"voiceover": "Every right triangle hides a simple rule.", "actions": [{"type": "Write", "template_id": "title", "duration": 2}]},
		{"voiceover": "", "duration": 1},
		{"voiceover": "The squares of the legs add up to the square of the hypotenuse.", "actions": [{"type": "FadeIn", "template_id": "formula"}]}
	]
}`

// queue records enqueued tasks so tests can hand them to the worker.
type queue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *queue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Queue: service.QueueGeneration}, nil
}

func (q *queue) last() *asynq.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil
	}
	return q.tasks[len(q.tasks)-1]
}

// testApp holds all components needed for testing
type testApp struct {
	app    *fiber.App
	queue  *queue
	worker *worker.GenerationWorker
}

// setupApp builds the application the way main does, backed by miniredis, a
// temporary SQLite file and in-memory object storage. External services are
// unconfigured, so the worker takes its mock path and analysis estimates
// narration.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	records, err := store.Open(filepath.Join(t.TempDir(), "generations.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = records.Close() })

	thresholds := manifest.DefaultThresholds()
	manifestValidator := manifest.NewValidator(thresholds)
	analyzer := timing.NewAnalyzer(timing.DefaultThresholds())
	lib, err := library.Load(filepath.Join("..", "library"), manifestValidator, thresholds)
	if err != nil {
		t.Fatalf("failed to load library: %v", err)
	}

	archive := client.NewMemoryStore()
	q := &queue{}
	rendererCfg := &config.RendererConfig{PollInterval: time.Millisecond, MaxWait: time.Second}

	manifestService := service.NewManifestService(manifestValidator, analyzer, client.NewSpeechClient(&config.SpeechConfig{}), thresholds)
	generationService := service.NewGenerationService(redisClient, q, records, archive, manifestValidator, thresholds)
	reportService := service.NewReportService(records)

	authenticator := auth.NewAuthenticator(nil, testJWTSecret)
	validate := validator.New()

	app := server.New(server.Options{
		Handlers: server.Handlers{
			Auth:       handler.NewAuthHandler(authenticator),
			Manifest:   handler.NewManifestHandler(manifestService, validate),
			Generation: handler.NewGenerationHandler(generationService, validate),
			Report:     handler.NewReportHandler(reportService, validate),
			Library:    handler.NewLibraryHandler(lib),
		},
		Auth:    middleware.Authenticate(authenticator),
		Limiter: middleware.NewRateLimiter(redisClient),
		// Use very high rate limits so tests don't get blocked
		Limits: config.RateLimitConfig{ValidatePerMin: 10000, GeneratePerHour: 10000, ReportsPerMin: 10000},
		Services: func() fiber.Map {
			return fiber.Map{"renderer": false, "speech": false, "r2": false, "auth": true}
		},
	})

	w := worker.NewGenerationWorker(
		generationService,
		client.NewRendererClient(rendererCfg),
		archive,
		analyzer,
		nopBroadcaster{},
		analytics.NewRedisSink(redisClient),
		rendererCfg,
		thresholds.SpeechWordsPerMin,
	)

	return &testApp{app: app, queue: q, worker: w}
}

// runLastTask processes the most recently enqueued generation.
func (ta *testApp) runLastTask(t *testing.T) {
	t.Helper()
	task := ta.queue.last()
	if task == nil {
		t.Fatal("no task enqueued")
	}
	if err := ta.worker.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("worker failed: %v", err)
	}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	return tokenFor(t, auth.Identity{UserID: "test-user-123", Email: "test@example.com"})
}

func tokenFor(t *testing.T, id auth.Identity) string {
	t.Helper()
	signed, err := auth.IssueLegacyToken(testJWTSecret, id, time.Hour)
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

// errorCode returns error.code from an error envelope.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := e["code"].(string)
	return code
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastProgress(string, int, model.JobStatus, string) {}
func (nopBroadcaster) BroadcastComplete(string, *model.GenerationResult) {}
func (nopBroadcaster) BroadcastError(string, string, string) {}
