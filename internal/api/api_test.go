package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Meetwin/AI-Lecturer/internal/apierr"
	"github.com/Meetwin/AI-Lecturer/internal/auth"
	"github.com/Meetwin/AI-Lecturer/internal/core"
	"github.com/Meetwin/AI-Lecturer/internal/extract"
	"github.com/Meetwin/AI-Lecturer/internal/logger"
	"github.com/Meetwin/AI-Lecturer/internal/metrics"
	"github.com/Meetwin/AI-Lecturer/internal/store"
)

type stubProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	systems []string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(_ context.Context, req core.ProviderRequest) (*core.ProviderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.systems = append(p.systems, req.System)
	if p.err != nil {
		return nil, p.err
	}
	return &core.ProviderResponse{
		Success:   true,
		Responses: map[string]core.ModelResponse{"gpt-4o": {Message: &core.ProviderMessage{Content: p.reply}}},
	}, nil
}

func (p *stubProvider) lastSystem(t *testing.T) string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.systems)
	return p.systems[len(p.systems)-1]
}

type testEnv struct {
	router  http.Handler
	metrics *metrics.Metrics
}

// newTestEnv wires the full stack over a memory store. A nil provider runs
// the gateway in fallback mode.
func newTestEnv(t *testing.T, provider core.Provider) *testEnv {
	t.Helper()
	s := store.NewMemoryStore(store.DefaultRetentionCap)
	m := metrics.New()
	uploadDir := t.TempDir()

	llm := core.NewLLMService(provider, []string{"gpt-4o"}, nil, m)
	svc := Services{
		Chat:     core.NewChatService(s, llm, core.DefaultExcerptChars, nil, m),
		Stories:  core.NewStoryService(llm, nil),
		Accounts: core.NewAccountService(s, auth.NewSessions("test-secret", time.Hour), nil),
		Groups:   core.NewGroupService(s, nil),
		Uploads:  core.NewUploadService(s, extract.New(), uploadDir, 1<<20, nil, m),
		LLM:      llm,
	}
	h := NewAPIHandler(svc, Options{UploadDir: uploadDir, MaxUploadBytes: 1 << 20, CORSOrigins: []string{"*"}, Metrics: m})
	return &testEnv{router: NewRouter(h), metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (e *testEnv) upload(t *testing.T, userID, filename, contentType, content string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("userId", userID))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestChatSocraticFallback(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/api/chat/lecturer", map[string]any{
		"message": "What is gravity?", "lecturerType": "socratic", "userId": "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "fallback", body["mode"])
	assert.Equal(t, "no_api_key", body["fallbackReason"])
	assert.Contains(t, body["response"], "What is gravity?")
	assert.Equal(t, "socratic", body["persona"].(map[string]any)["id"])

	rec, body = env.do(t, http.MethodGet, "/api/chat/main/history?userId=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	turns := body["turns"].([]any)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", turns[1].(map[string]any)["role"])
}

func TestChatErrors(t *testing.T) {
	env := newTestEnv(t, &stubProvider{reply: "hi"})

	rec, body := env.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hi", "persona": "pirate"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "not_found", body["code"])

	rec, body = env.do(t, http.MethodPost, "/api/chat", map[string]any{"persona": "friendly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", body["code"])

	rec, _ = env.do(t, http.MethodPost, "/api/chat", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	raw := httptest.NewRecorder()
	env.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestUploadThenChatUsesMaterials(t *testing.T) {
	p := &stubProvider{reply: "Your notes say hello."}
	env := newTestEnv(t, p)

	rec, body := env.upload(t, "u1", "notes.txt", "text/plain", "Hello")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	file := body["file"].(map[string]any)
	assert.Equal(t, "notes.txt", file["originalName"])
	assert.Equal(t, "Hello", file["preview"])

	served := httptest.NewRecorder()
	env.router.ServeHTTP(served, httptest.NewRequest(http.MethodGet, file["url"].(string), nil))
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "Hello", served.Body.String())

	rec, body = env.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "What did I upload?", "userId": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Your notes say hello.", body["response"])
	assert.NotContains(t, body, "mode")
	assert.Contains(t, p.lastSystem(t), "Student's uploaded materials: \n\n=== FILE: notes.txt ===\nHello...")
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.upload(t, "u1", "virus.exe", "application/octet-stream", "MZ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = env.do(t, http.MethodPost, "/api/upload", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginSessionSearchAndSettings(t *testing.T) {
	env := newTestEnv(t, &stubProvider{reply: "ok"})

	rec, body := env.do(t, http.MethodPost, "/api/auth/google", map[string]any{
		"googleToken": "opaque",
		"userInfo":    map[string]any{"email": "ada@example.com", "name": "Ada Lovelace"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "ada@example.com", body["user"].(map[string]any)["id"])

	rec, _ = env.do(t, http.MethodPost, "/api/auth", map[string]any{"userInfo": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, body = env.do(t, http.MethodGet, "/api/users/search?query=a", nil)
	assert.Empty(t, body["users"])
	_, body = env.do(t, http.MethodGet, "/api/users/search?query=LOVE", nil)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "Ada Lovelace", users[0].(map[string]any)["name"])

	_, body = env.do(t, http.MethodGet, "/api/settings/ada@example.com", nil)
	assert.Equal(t, "light", body["settings"].(map[string]any)["theme"])
	_, body = env.do(t, http.MethodPost, "/api/settings/ada@example.com", map[string]any{"theme": "dark"})
	settings := body["settings"].(map[string]any)
	assert.Equal(t, "dark", settings["theme"])
	assert.Equal(t, "medium", settings["fontSize"])
	assert.NotEmpty(t, settings["updatedAt"])

	rec, _ = env.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hi"}, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	_, body = env.do(t, http.MethodGet, "/api/chat/main/history", nil, "Authorization", "Bearer "+token)
	assert.Len(t, body["turns"], 2)

	rec, body = env.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hi"}, "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body["code"])
}

func TestGroupInviteFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, email := range []string{"olive@x.io", "gus@x.io"} {
		rec, _ := env.do(t, http.MethodPost, "/api/auth", map[string]any{"userInfo": map[string]any{"email": email, "name": strings.Split(email, "@")[0]}})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := env.do(t, http.MethodPost, "/api/groups", map[string]any{"name": "Physics", "ownerId": "olive@x.io"})
	require.Equal(t, http.StatusCreated, rec.Code)
	groupID := body["group"].(map[string]any)["id"].(string)

	rec, _ = env.do(t, http.MethodPost, "/api/groups/invite", map[string]any{"groupId": "missing", "invitedUserId": "gus@x.io"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/groups/invite", map[string]any{
		"groupId": groupID, "invitedUserId": "gus@x.io", "inviterUserId": "olive@x.io",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	n := body["notification"].(map[string]any)
	assert.Equal(t, `olive invited you to join "Physics"`, n["message"])

	_, body = env.do(t, http.MethodGet, "/api/notifications/gus@x.io", nil)
	require.Len(t, body["notifications"], 1)

	for i := 0; i < 2; i++ {
		rec, body = env.do(t, http.MethodPost, "/api/groups/accept-invite", map[string]any{"notificationId": n["id"], "userId": "gus@x.io"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []any{"olive@x.io", "gus@x.io"}, body["group"].(map[string]any)["members"])
	}

	_, body = env.do(t, http.MethodGet, "/api/groups/"+groupID, nil)
	assert.Len(t, body["group"].(map[string]any)["members"], 2)

	_, body = env.do(t, http.MethodPost, "/api/notifications/"+n["id"].(string)+"/read", map[string]any{"userId": "gus@x.io"})
	assert.Equal(t, true, body["notification"].(map[string]any)["read"])

	rec, body = env.do(t, http.MethodPost, "/api/notifications/nope/read", map[string]any{"userId": "gus@x.io"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["notification"])
}

func TestStoryAndPlaceholders(t *testing.T) {
	env := newTestEnv(t, &stubProvider{reply: "Once upon a time"})

	rec, body := env.do(t, http.MethodPost, "/api/storytelling/enhanced", map[string]any{"concept": "gravity", "mode": "metaphor", "generateAudio": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Once upon a time", body["story"])
	assert.Equal(t, "metaphor", body["mode"])
	assert.Len(t, body["images"], 3)
	assert.Nil(t, body["audioUrl"])

	rec, _ = env.do(t, http.MethodPost, "/api/story", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	img := httptest.NewRecorder()
	env.router.ServeHTTP(img, httptest.NewRequest(http.MethodGet, "/api/placeholder-image/black%20holes_1", nil))
	assert.Equal(t, "image/svg+xml", img.Header().Get("Content-Type"))
	assert.Contains(t, img.Body.String(), "Generated Image: black holes_1")

	_, body = env.do(t, http.MethodGet, "/api/placeholder-audio/gravity", nil)
	assert.Equal(t, true, body["placeholder"])
}

func TestStoryFallbackOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodPost, "/api/story", map[string]any{"concept": "gravity"})
	assert.Equal(t, "fallback", body["mode"])
	assert.Empty(t, body["images"])
	assert.Nil(t, body["audioUrl"])
	assert.Equal(t, "no_api_key", body["fallbackReason"])
}

func TestPersonasRootHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodGet, "/api/personas", nil)
	assert.Len(t, body["personas"], 5)
	_, body = env.do(t, http.MethodGet, "/api/lecturers/types", nil)
	lecturers, ok := body["lecturers"].([]any)
	require.True(t, ok, "lecturers should be a list")
	require.Len(t, lecturers, 5)
	ids := make([]any, 0, len(lecturers))
	for _, l := range lecturers {
		ids = append(ids, l.(map[string]any)["id"])
	}
	assert.Contains(t, ids, "socratic")

	_, body = env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, "operational", body["status"])

	_, body = env.do(t, http.MethodGet, "/api/health/", nil)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "missing_key", body["alleai"])
	assert.Equal(t, "none", body["provider"])

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mentora_http_requests_total{method="GET",route="/api/personas",status="200"} 1`)
}

func TestUnmatchedRoutesShareOneSeries(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/scan/0", "/scan/1", "/wp-admin/setup.php"} {
		rec, _ := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(env.metrics.HTTPRequestsTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(env.metrics.HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")))
}

func TestWriteErrorLogLevels(t *testing.T) {
	obs, logs := observer.New(zap.DebugLevel)
	h := NewAPIHandler(Services{}, Options{Log: &logger.Logger{SugaredLogger: zap.New(obs).Sugar()}})
	req := httptest.NewRequest(http.MethodGet, "/api/groups/g-1", nil)

	h.writeError(httptest.NewRecorder(), req, apierr.NotFound("Group not found"))
	h.writeError(httptest.NewRecorder(), req, apierr.Validation("name is required"))
	h.writeError(httptest.NewRecorder(), req, apierr.Internal("store failed", assert.AnError))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "Resource not found", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
