package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mia/apps/backend/internal/bootstrap"
	"mia/apps/backend/internal/config"
	"mia/apps/backend/internal/llm"
	"mia/apps/backend/internal/seed"
)

const testSecret = "0123456789abcdef0123"

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router  *gin.Engine
	runtime *bootstrap.Runtime
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:            "test",
		AppName:           "MIA Chatbot API",
		APIPrefix:         "/api",
		UseInMemoryStore:  true,
		PatternCacheTTL:   time.Minute,
		PromptCacheTTL:    time.Minute,
		PromptName:        "main_assistant",
		JWTSecret:         testSecret,
		JWTAlgorithm:      "HS256",
		CORSAllowOrigins:  []string{"http://localhost:5173"},
		UseMockGenerator:  true,
		OpenAIMaxTokens:   800,
		OpenAITemperature: 0.4,
		MaxMessageLength:  2000,
		HistoryTurns:      10,
		ProductLimit:      5,
	}
}

func newTestEnv(t *testing.T, ready func(context.Context) error) testEnv {
	t.Helper()
	fixture, err := seed.Load("../../seed/demo.yaml")
	require.NoError(t, err)

	cfg := testConfig()
	runtime, err := bootstrap.Build(cfg, bootstrap.MemoryStores(fixture), llm.MockGenerator{}, nil, nil, nil)
	require.NoError(t, err)

	app := New(cfg, Deps{
		Chat:     runtime.Service,
		Catalog:  runtime.Engine,
		Clinics:  runtime.Clinics,
		Patterns: runtime.Stores.Patterns,
		Prompts:  runtime.Stores.Prompts,
		Bus:      runtime.Bus,
		Metrics:  runtime.Metrics,
		Ready:    ready,
	}, nil)
	return testEnv{router: app.Router(), runtime: runtime}
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func dataOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "data is not an object: %s", rec.Body.String())
	return data
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	degraded := newTestEnv(t, func(context.Context) error { return errors.New("pool closed") })
	rec = degraded.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestChatHealthAndWelcome(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/chat/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "MIA Chatbot API", body["service"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/api/chat/welcome", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, rec)
	assert.Equal(t, "welcome", data["type"])
	assert.Contains(t, data["message"], "MIA")
}

func TestPostChat(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/chat", "", map[string]any{
		"sessionId": "session-1",
		"message":   "Busco un condroprotector para mi perro",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := dataOf(t, rec)
	assert.NotEmpty(t, data["conversationId"])
	assert.Equal(t, "normal", data["responseType"])

	rec = env.do(t, http.MethodPost, "/api/chat", "", map[string]any{
		"sessionId":      "session-1",
		"conversationId": data["conversationId"],
		"message":        "Mi perro no respira",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	follow := dataOf(t, rec)
	assert.Equal(t, data["conversationId"], follow["conversationId"])
	assert.Equal(t, "emergency_warning", follow["responseType"])
}

func TestPostChatRejectsInvalidRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []struct {
		name   string
		body   any
		detail string
	}{
		{name: "missing session", body: map[string]any{"message": "hola"}, detail: "sessionId es obligatorio"},
		{name: "blank message", body: map[string]any{"sessionId": "s", "message": "   "}, detail: "El mensaje no puede estar vacío"},
		{name: "too long", body: map[string]any{"sessionId": "s", "message": strings.Repeat("a", 2001)}, detail: "El mensaje es demasiado largo (máximo 2000 caracteres)"},
		{name: "malformed json", body: `{"sessionId":`, detail: "Invalid request payload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/chat", "", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.detail, decode(t, rec)["detail"])
		})
	}
}

func TestSearchProducts(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/products/search", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `El parámetro de búsqueda "q" es obligatorio`, decode(t, rec)["detail"])

	rec = env.do(t, http.MethodGet, "/api/products/search?q=condroprotector&maxPrice=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/products/search?q=condroprotector&species=perro", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	products, ok := body["data"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, products)
	assert.EqualValues(t, len(products), body["count"])

	var names []string
	for _, p := range products {
		names = append(names, p.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "Cosequin DS Condroprotector Perro 60 Comprimidos")
	assert.NotContains(t, names, "Seraquin Condroprotector Gato 60 Comprimidos")
}

func TestClinicsByPostalCode(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/clinics/2800", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "El código postal debe tener 5 dígitos", decode(t, rec)["detail"])

	rec = env.do(t, http.MethodGet, "/api/clinics/28009", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["count"])
	assert.Equal(t, true, body["exact"])
	clinics := body["data"].([]any)
	first := clinics[0].(map[string]any)
	assert.Equal(t, "Hospital Veterinario Retiro 24h", first["name"])
	assert.Equal(t, true, first["isEmergency"])
}

func TestAdminRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/admin/red-flags", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer token required", decode(t, rec)["detail"])

	rec = env.do(t, http.MethodGet, "/api/admin/red-flags", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid bearer token", decode(t, rec)["detail"])

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	signed, err := noSubject.SignedString([]byte(testSecret))
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/api/admin/red-flags", signed, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token subject missing", decode(t, rec)["detail"])
}

func TestRedFlagAdminInvalidatesDetector(t *testing.T) {
	env := newTestEnv(t, nil)
	token := adminToken(t)
	message := map[string]any{"sessionId": "s", "message": "Mi gato ha mordido un lirio"}

	rec := env.do(t, http.MethodPost, "/api/chat", "", message)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "emergency_warning", dataOf(t, rec)["responseType"])

	rec = env.do(t, http.MethodPost, "/api/admin/red-flags", token, map[string]any{
		"category": "toxico",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "category, pattern_type y keywords son obligatorios", decode(t, rec)["detail"])

	rec = env.do(t, http.MethodPost, "/api/admin/red-flags", token, map[string]any{
		"category":     "toxico",
		"pattern_type": "keyword",
		"keywords":     []string{"lirio"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := dataOf(t, rec)
	assert.Equal(t, "emergency", created["severity"])
	assert.Equal(t, true, created["is_active"])

	rec = env.do(t, http.MethodPost, "/api/chat", "", message)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "emergency_warning", dataOf(t, rec)["responseType"])
}

func TestRedFlagAdminUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	token := adminToken(t)

	rec := env.do(t, http.MethodGet, "/api/admin/red-flags", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	patterns := decode(t, rec)["data"].([]any)
	require.Len(t, patterns, 8)

	rec = env.do(t, http.MethodPut, "/api/admin/red-flags/1", token, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := dataOf(t, rec)
	assert.Equal(t, false, updated["is_active"])
	assert.Equal(t, "respiratorio", updated["category"])
	assert.Len(t, updated["keywords"], 4)

	rec = env.do(t, http.MethodPut, "/api/admin/red-flags/1", token, map[string]any{"pattern_type": "regex"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/admin/red-flags/999", token, map[string]any{"is_active": true})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Patrón no encontrado", decode(t, rec)["detail"])

	rec = env.do(t, http.MethodPut, "/api/admin/red-flags/abc", token, map[string]any{"is_active": true})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/admin/red-flags/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Patrón eliminado", decode(t, rec)["message"])

	rec = env.do(t, http.MethodDelete, "/api/admin/red-flags/1", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromptAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	token := adminToken(t)

	rec := env.do(t, http.MethodGet, "/api/admin/prompts/main_assistant", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, dataOf(t, rec)["content"], "MundoMascotix")

	rec = env.do(t, http.MethodGet, "/api/admin/prompts/missing", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/admin/prompts/main_assistant", token, map[string]any{"content": "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "content es obligatorio", decode(t, rec)["detail"])

	// Warm the provider cache so the update has something to invalidate.
	before := env.runtime.PromptProvider.SystemPrompt(context.Background())
	require.Contains(t, before, "MundoMascotix")

	rec = env.do(t, http.MethodPut, "/api/admin/prompts/main_assistant", token, map[string]any{"content": "Eres MIA, versión dos."})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, dataOf(t, rec)["version"])
	assert.Equal(t, "Eres MIA, versión dos.", env.runtime.PromptProvider.SystemPrompt(context.Background()))

	rec = env.do(t, http.MethodPut, "/api/admin/prompts/seasonal", token, map[string]any{"content": "Campaña de verano"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 1, dataOf(t, rec)["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/api/chat/welcome", "", nil)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mia_http_request_duration_seconds_count{method="GET",route="/api/chat/welcome",status="200"} 1`)
}

func TestClaimHasAudience(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{name: "string match", value: "mia-admin", want: true},
		{name: "string mismatch", value: "other", want: false},
		{name: "any slice", value: []any{"x", "mia-admin"}, want: true},
		{name: "string slice", value: []string{"x"}, want: false},
		{name: "missing", value: nil, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, claimHasAudience(tc.value, "mia-admin"))
		})
	}
}
