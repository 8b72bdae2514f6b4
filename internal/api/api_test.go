package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dpolishuk/coderag/internal/agent"
	"github.com/dpolishuk/coderag/internal/auth"
	"github.com/dpolishuk/coderag/internal/db"
	"github.com/dpolishuk/coderag/internal/embedding"
	"github.com/dpolishuk/coderag/internal/indexer"
	"github.com/dpolishuk/coderag/internal/logging"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/dpolishuk/coderag/internal/quality"
	"github.com/dpolishuk/coderag/internal/search"
	"github.com/dpolishuk/coderag/internal/telemetry"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const fooSource = `package a.b; public class Foo { public int add(int x, int y) { return x+y; } }`

type dirFetcher map[string]string

func (f dirFetcher) Fetch(_ context.Context, _, _, _, destDir string) (string, error) {
	for path, content := range f {
		full := filepath.Join(destDir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			return "", err
		}
	}
	return "feedface", nil
}

type cannedGenerator struct{}

func (cannedGenerator) Name() string { return "canned" }

func (cannedGenerator) Model() string { return "canned-1" }

func (cannedGenerator) Ping(context.Context) error { return nil }

func (cannedGenerator) Generate(_ context.Context, _, user string) (string, error) {
	return fmt.Sprintf("answered %d bytes of context", len(user)), nil
}

type staticTokens string

func (s staticTokens) Token(context.Context, string) (string, error) { return string(s), nil }

type testEnv struct {
	app      *fiber.App
	store    *db.MemoryStore
	pipeline *indexer.Pipeline
	sessions *auth.Sessions
	token    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logging.Nop()
	metrics := telemetry.New()
	store := db.NewMemoryStore()
	embedder := embedding.NewLexicalEmbedder(embedding.DefaultDimension)
	gen := embedding.NewGenerator(store, embedder, log, metrics)
	pipeline := indexer.NewPipeline(store, dirFetcher{"src/Foo.java": fooSource}, staticTokens("tok"), gen, log, metrics, indexer.Options{
		WorkDir: t.TempDir(),
		Timeout: time.Minute,
	})
	engine := search.NewEngine(store, embedder, log, metrics)
	assistant := agent.NewAssembler(engine, cannedGenerator{}, time.Minute, 0, log, metrics)
	t.Cleanup(assistant.Close)

	cipher, err := auth.NewCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	sessions := auth.NewSessions(0, []string{"http://localhost:5173", "https://app.example.com"})

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "bad_verification_code"}`)
	}))
	t.Cleanup(tokenServer.Close)
	oauth := auth.NewOAuth(auth.OAuthOptions{
		ClientID: "client",
		Endpoint: oauth2.Endpoint{
			AuthURL:   tokenServer.URL + "/authorize",
			TokenURL:  tokenServer.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, store, cipher, log)

	h := NewHandler(Deps{
		Store:      store,
		Pipeline:   pipeline,
		Embeddings: gen,
		Search:     engine,
		Assistant:  assistant,
		Quality:    quality.NewCalculator(store, log),
		OAuth:      oauth,
		Sessions:   sessions,
		Vault:      auth.NewVault(store, cipher),
		Metrics:    metrics,
		Log:        log,
	})
	app := fiber.New()
	SetupRoutes(app, h)

	return &testEnv{
		app:      app,
		store:    store,
		pipeline: pipeline,
		sessions: sessions,
		token:    sessions.Create("user-1"),
	}
}

func (e *testEnv) request(t *testing.T, method, path, body, token string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	return e.request(t, method, path, body, e.token)
}

// ingest runs a full ingest of the fake repository and returns its codebase id.
func (e *testEnv) ingest(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/codebases/ingest", `{"owner": "octo", "name": "calc"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var cb models.Codebase
	require.NoError(t, json.Unmarshal(body, &cb))
	assert.Equal(t, models.StatusCloning, cb.Status)
	e.pipeline.Wait()
	return cb.ID
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.request(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}

type downStore struct {
	*db.MemoryStore
}

func (downStore) Ping(context.Context) error { return fmt.Errorf("connection refused") }

func TestHealthReportsUnreachableStore(t *testing.T) {
	h := NewHandler(Deps{Store: downStore{db.NewMemoryStore()}, Log: logging.Nop()})
	app := fiber.New()
	app.Get("/health", h.Health)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/codebases", "/api/auth/user", "/api/github/repositories"} {
		resp, body := env.request(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.Contains(t, string(body), `"error"`)

		resp, _ = env.request(t, http.MethodGet, path, "", "forged")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestCodebaseLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.ingest(t)

	resp, body := env.do(t, http.MethodGet, "/api/codebases/"+id+"/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status struct {
		Status    models.Status `json:"status"`
		FileCount int           `json:"fileCount"`
		Parsed    bool          `json:"parsed"`
	}
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 1, status.FileCount)
	assert.True(t, status.Parsed)

	resp, body = env.do(t, http.MethodGet, "/api/codebases", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Codebase
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Java", list[0].Language)

	resp, body = env.do(t, http.MethodGet, "/api/codebases/"+id+"/files", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var files []models.SourceFile
	require.NoError(t, json.Unmarshal(body, &files))
	require.Len(t, files, 1)
	assert.Equal(t, "src/Foo.java", files[0].Path)
	assert.Empty(t, files[0].Content)

	resp, body = env.do(t, http.MethodGet, "/api/codebases/"+id+"/files/"+files[0].ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "public int add")

	resp, body = env.do(t, http.MethodGet, "/api/codebases/"+id+"/classes", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var classes []models.CodeClass
	require.NoError(t, json.Unmarshal(body, &classes))
	require.Len(t, classes, 1)
	assert.Equal(t, "a.b.Foo", classes[0].FQN)

	resp, body = env.do(t, http.MethodGet, "/api/codebases/classes/"+classes[0].ID+"/dependencies", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(body))

	resp, body = env.do(t, http.MethodGet, "/api/codebases/classes/"+classes[0].ID+"/dependents", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(body))

	resp, body = env.do(t, http.MethodGet, "/api/codebases/"+id+"/graph", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var graph db.GraphData
	require.NoError(t, json.Unmarshal(body, &graph))
	assert.Len(t, graph.Nodes, 1)

	resp, _ = env.do(t, http.MethodDelete, "/api/codebases/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/codebases/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchAndChat(t *testing.T) {
	env := newTestEnv(t)
	id := env.ingest(t)

	resp, body := env.do(t, http.MethodGet, "/api/embeddings/codebases/"+id+"/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats models.EmbeddingStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, models.EmbeddingStats{CodebaseID: id, Classes: 1, Methods: 1, Total: 2}, stats)

	resp, body = env.do(t, http.MethodPost, "/api/search/codebases/"+id+"/semantic", `{"query": "add two numbers", "kind": "all", "limit": 5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result struct {
		Results []models.SearchHit `json:"results"`
		Count   int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.NotEmpty(t, result.Results)
	assert.Equal(t, "add", result.Results[0].ElementName)
	assert.Equal(t, len(result.Results), result.Count)

	resp, body = env.do(t, http.MethodGet, "/api/search/embeddings/"+result.Results[0].RecordID+"/similar?limit=3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var similar []models.SearchHit
	require.NoError(t, json.Unmarshal(body, &similar))
	for _, hit := range similar {
		assert.NotEqual(t, result.Results[0].RecordID, hit.RecordID)
	}

	resp, body = env.do(t, http.MethodPost, "/api/search/codebases/"+id+"/chat", `{"question": "add two numbers"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var answer models.ChatAnswer
	require.NoError(t, json.Unmarshal(body, &answer))
	assert.True(t, strings.HasPrefix(answer.Answer, "answered"))
	assert.NotEmpty(t, answer.ConversationID)
	assert.NotEmpty(t, answer.Sources)

	resp, body = env.do(t, http.MethodGet, "/api/search/conversations/"+answer.ConversationID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conv models.Conversation
	require.NoError(t, json.Unmarshal(body, &conv))
	require.Len(t, conv.Exchanges, 1)
	assert.Equal(t, "add two numbers", conv.Exchanges[0].Question)

	resp, _ = env.do(t, http.MethodDelete, "/api/search/conversations/"+answer.ConversationID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, body = env.do(t, http.MethodGet, "/api/search/conversations/"+answer.ConversationID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"exchanges":[]`)

	resp, body = env.do(t, http.MethodDelete, "/api/embeddings/codebases/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"deleted":2`)

	resp, body = env.do(t, http.MethodPost, "/api/embeddings/codebases/"+id+"/generate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"generated":2`)
}

func TestMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	id := env.ingest(t)

	resp, body := env.do(t, http.MethodGet, "/api/metrics/codebases/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var m models.CodeMetrics
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, 1, m.TotalClasses)
	assert.Equal(t, 1, m.TotalMethods)
	assert.Equal(t, 2, m.MaxComplexity)

	resp, _ = env.do(t, http.MethodPost, "/api/metrics/codebases/"+id+"/calculate", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/metrics/codebases/"+id+"/methods/top-complex?limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"name":"add"`)

	resp, body = env.do(t, http.MethodGet, "/api/metrics/codebases/"+id+"/classes/top-coupled", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"name":"Foo"`)

	resp, body = env.request(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "coderag_ingests_total")
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t)
	id := env.ingest(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown field", http.MethodPost, "/api/codebases/ingest", `{"owner": "octo", "name": "calc", "branch": "dev"}`, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/codebases/ingest", `{"owner": "octo"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/codebases/ingest", `{"owner":`, http.StatusBadRequest},
		{"trailing data", http.MethodPost, "/api/codebases/ingest", `{"owner": "o", "name": "n"} {}`, http.StatusBadRequest},
		{"unknown kind", http.MethodPost, "/api/search/codebases/" + id + "/semantic", `{"query": "x", "kind": "FIELD"}`, http.StatusBadRequest},
		{"blank question", http.MethodPost, "/api/search/codebases/" + id + "/chat", `{"question": "  "}`, http.StatusBadRequest},
		{"unknown codebase", http.MethodGet, "/api/codebases/nope", "", http.StatusNotFound},
		{"unknown file", http.MethodGet, "/api/codebases/" + id + "/files/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
		})
	}
}

// seedShop stores a completed codebase of user-1 where OrderService extends
// BaseService, and returns both class ids.
func (e *testEnv) seedShop(t *testing.T) (service, base string) {
	t.Helper()
	ctx := context.Background()
	cb := &models.Codebase{UserID: "user-1", Owner: "octo", Name: "shop", Status: models.StatusCompleted}
	require.NoError(t, e.store.CreateCodebase(ctx, cb))
	classes := []*models.CodeClass{
		{CodebaseID: cb.ID, Name: "BaseService", PackageName: "shop", FQN: "shop.BaseService"},
		{CodebaseID: cb.ID, Name: "OrderService", PackageName: "shop", FQN: "shop.OrderService", ExtendsName: "BaseService",
			Methods: []models.CodeMethod{{Name: "place", ReturnType: "Order", Parameters: "Cart cart"}}},
	}
	require.NoError(t, e.store.SaveClasses(ctx, classes))
	base, service = classes[0].ID, classes[1].ID
	require.NoError(t, e.store.SaveRelationships(ctx, []*models.CodeRelationship{
		{CodebaseID: cb.ID, SourceClassID: service, TargetClassID: &base, TargetClassName: "BaseService", Kind: models.RelExtends},
		{CodebaseID: cb.ID, SourceClassID: service, TargetClassName: "Cart", Kind: models.RelUses},
	}))
	return service, base
}

func TestClassDependents(t *testing.T) {
	env := newTestEnv(t)
	service, base := env.seedShop(t)

	resp, body := env.do(t, http.MethodGet, "/api/codebases/classes/"+base+"/dependents", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rels []models.CodeRelationship
	require.NoError(t, json.Unmarshal(body, &rels))
	require.Len(t, rels, 1)
	assert.Equal(t, service, rels[0].SourceClassID)
	assert.Equal(t, models.RelExtends, rels[0].Kind)

	resp, _ = env.do(t, http.MethodGet, "/api/codebases/classes/missing/dependents", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	intruder := env.sessions.Create("user-2")
	resp, _ = env.request(t, http.MethodGet, "/api/codebases/classes/"+base+"/dependents", "", intruder)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestClassAnalysisEndpoints(t *testing.T) {
	env := newTestEnv(t)
	service, base := env.seedShop(t)

	tests := []struct {
		path       string
		class      string
		deps, dept int
	}{
		{"/api/ai/explain-class/", service, 2, 0},
		{"/api/ai/suggest-refactoring/", service, 2, 0},
		{"/api/ai/explain-class/", base, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.path+tt.class, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, tt.path+tt.class, "")
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			var got models.ClassAnalysis
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Contains(t, got.Answer, "answered")
			assert.Contains(t, got.ClassDetails, "=== Class: ")
			assert.Equal(t, tt.deps, got.Dependencies.Dependencies)
			assert.Equal(t, tt.dept, got.Dependencies.Dependents)
		})
	}

	resp, _ := env.do(t, http.MethodPost, "/api/ai/explain-class/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProviderStatus(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/api/ai/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.ProviderStatus
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, models.ProviderStatus{
		Connected: true,
		Provider:  "canned",
		Model:     "canned-1",
		Message:   "canned is running and ready",
	}, got)

	resp, _ = env.request(t, http.MethodGet, "/api/ai/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOtherUsersCodebaseIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	id := env.ingest(t)
	intruder := env.sessions.Create("user-2")

	for _, path := range []string{
		"/api/codebases/" + id,
		"/api/codebases/" + id + "/files",
		"/api/metrics/codebases/" + id,
		"/api/embeddings/codebases/" + id + "/stats",
	} {
		resp, _ := env.request(t, http.MethodGet, path, "", intruder)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}

	resp, body := env.request(t, http.MethodGet, "/api/codebases", "", intruder)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(body))
}

func TestCORSEchoesConfiguredOriginsOnly(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.request(t, http.MethodGet, "/api/auth/github", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "client_id=client")

	resp, _ = env.request(t, http.MethodGet, "/api/auth/github/callback?code=bad", "", "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://app.example.com/login?error=auth_failed", resp.Header.Get("Location"))

	resp, _ = env.do(t, http.MethodPost, "/api/auth/logout", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/codebases", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}
