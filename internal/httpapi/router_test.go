package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/ai"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/auth"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/chat"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/config"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/db"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/email"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/httpapi/handlers"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/identity"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/notify"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/usage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// fakeUsers is an in-memory identity provider.
type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]*identity.User
	order     []string
	mutations int
	gets      int
}

func newFakeUsers(users ...identity.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*identity.User)}
	for _, u := range users {
		f.users[u.ID] = &u
		f.order = append(f.order, u.ID)
	}
	return f
}

func (f *fakeUsers) GetUser(ctx context.Context, id string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	u, ok := f.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) ListUsers(ctx context.Context) ([]identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []identity.User
	for _, id := range f.order {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) SetRole(ctx context.Context, id string, role identity.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return identity.ErrNotFound
	}
	f.mutations++
	u.Role = role
	return nil
}

func (f *fakeUsers) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return identity.ErrNotFound
	}
	f.mutations++
	delete(f.users, id)
	return nil
}

func (f *fakeUsers) role(id string) identity.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u.Role
	}
	return ""
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, msg notify.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func kindTo(kind email.Kind, to string) any {
	return mock.MatchedBy(func(msg notify.Message) bool {
		return msg.Kind == kind && msg.To == to && msg.ID != ""
	})
}

type memRoleCache struct {
	mu    sync.Mutex
	roles map[string]identity.Role
}

func (m *memRoleCache) GetRole(ctx context.Context, id string) (identity.Role, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	return r, ok, nil
}

func (m *memRoleCache) SetRole(ctx context.Context, id string, role identity.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[id] = role
	return nil
}

func (m *memRoleCache) DeleteRole(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles, id)
	return nil
}

type echoProvider struct{}

func (echoProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return "echo: " + messages[len(messages)-1].Content, nil
}

type downProvider struct{}

func (downProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return "", errors.New("connection refused")
}

type testEnv struct {
	router   *gin.Engine
	users    *fakeUsers
	notifier *MockNotifier
	usage    *usage.Service
}

func newTestEnv(t *testing.T, roles handlers.RoleCache) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, roles, config.Config{CORSAllowedOrigins: []string{"http://localhost:3000"}})
}

func newTestEnvWithConfig(t *testing.T, roles handlers.RoleCache, cfg config.Config) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	joined := time.Now().Add(-30 * 24 * time.Hour)
	users := newFakeUsers(
		identity.User{ID: "admin1", FirstName: "Alice", LastName: "Admin", Email: "alice@example.com", Role: identity.RoleAdmin, CreatedAt: joined},
		identity.User{ID: "root", FirstName: "Sam", Email: "sam@example.com", Role: identity.RoleSuperAdmin, CreatedAt: joined},
		identity.User{ID: "u1", FirstName: "Una", Email: "u1@example.com", Role: identity.RoleUser, CreatedAt: joined},
		identity.User{ID: "u2", FirstName: "Bob", LastName: "Builder", Email: "u2@example.com", Role: identity.RoleUser, CreatedAt: time.Now()},
	)

	usageSvc := usage.NewService(usage.NewRepo(gdb))

	reg := ai.NewRegistry()
	reg.Register("basic", "Basic", echoProvider{})
	reg.Register("pro", "Pro", downProvider{})
	chatSvc := chat.NewService(reg, 20, chat.Creator{Name: "Jane Doe"})

	n := &MockNotifier{}
	h := handlers.NewHandler(usageSvc, users, chatSvc, reg, n, roles)

	v, err := auth.NewVerifier("", testSecret)
	require.NoError(t, err)

	return &testEnv{router: NewRouter(cfg, h, v), users: users, notifier: n, usage: usageSvc}
}

func (e *testEnv) do(t *testing.T, method, path, uid string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		tok, err := auth.SignJWT(uid, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

type route struct {
	method string
	path   string
	body   any
}

var adminRoutes = []route{
	{http.MethodGet, "/api/admin/users", nil},
	{http.MethodGet, "/api/admin/stats", nil},
	{http.MethodPost, "/api/admin/users/u2/promote", nil},
	{http.MethodPost, "/api/admin/users/u2/demote", nil},
	{http.MethodPost, "/api/admin/users/u2/reset-counts", nil},
	{http.MethodDelete, "/api/admin/users/u2", nil},
	{http.MethodPost, "/api/admin/reset-all-counts", nil},
}

func TestPing(t *testing.T) {
	e := newTestEnv(t, nil)
	w, body := e.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", body["message"])
}

func pingFrom(e *testEnv, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	e := newTestEnvWithConfig(t, nil, config.Config{RateLimitRPS: 0.001, RateLimitBurst: 1})

	assert.Equal(t, http.StatusOK, pingFrom(e, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, pingFrom(e, "10.0.0.2"), "rotating X-Forwarded-For must not reset the bucket")
}

func TestRateLimit_HonoursForwardedForFromTrustedProxy(t *testing.T) {
	// httptest requests come from 192.0.2.1
	e := newTestEnvWithConfig(t, nil, config.Config{
		RateLimitRPS:   0.001,
		RateLimitBurst: 1,
		TrustedProxies: []string{"192.0.2.0/24"},
	})

	assert.Equal(t, http.StatusOK, pingFrom(e, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, pingFrom(e, "10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, pingFrom(e, "10.0.0.1"))
}

func TestUnknownRoute(t *testing.T) {
	e := newTestEnv(t, nil)
	w, body := e.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", body["error"])
}

func seedCounts(t *testing.T, e *testEnv, uid string, requests, responses int) {
	t.Helper()
	for i := 0; i < requests; i++ {
		_, err := e.usage.Track(context.Background(), uid, "request")
		require.NoError(t, err)
	}
	for i := 0; i < responses; i++ {
		_, err := e.usage.Track(context.Background(), uid, "response")
		require.NoError(t, err)
	}
}

func assertCounts(t *testing.T, e *testEnv, uid string, requests, responses int64) {
	t.Helper()
	c, err := e.usage.Stats(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, requests, c.RequestCount, "requestCount for %s", uid)
	assert.Equal(t, responses, c.ResponseCount, "responseCount for %s", uid)
}

func TestUnauthenticated_401WithoutMutation(t *testing.T) {
	e := newTestEnv(t, nil)
	seedCounts(t, e, "u2", 3, 2)

	routes := append([]route{
		{http.MethodPost, "/api/messages/track", gin.H{"type": "request"}},
		{http.MethodGet, "/api/messages/stats", nil},
		{http.MethodPost, "/api/chat", gin.H{"message": "hi"}},
		{http.MethodGet, "/api/models", nil},
	}, adminRoutes...)

	for _, rt := range routes {
		w, body := e.do(t, rt.method, rt.path, "", rt.body)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", rt.method, rt.path)
		assert.Equal(t, "Unauthorized", body["error"], "%s %s", rt.method, rt.path)
	}

	assert.Equal(t, 0, e.users.mutations)
	assert.Equal(t, identity.RoleUser, e.users.role("u2"))
	assertCounts(t, e, "u2", 3, 2)
	e.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestNonAdmin_403WithoutMutation(t *testing.T) {
	e := newTestEnv(t, nil)
	seedCounts(t, e, "u2", 3, 2)

	for _, rt := range adminRoutes {
		w, body := e.do(t, rt.method, rt.path, "u1", rt.body)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", rt.method, rt.path)
		assert.Equal(t, "Forbidden", body["error"], "%s %s", rt.method, rt.path)
	}

	assert.Equal(t, 0, e.users.mutations)
	assert.Equal(t, identity.RoleUser, e.users.role("u2"))
	assertCounts(t, e, "u2", 3, 2)
	e.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestCallerLookupFailure_500(t *testing.T) {
	e := newTestEnv(t, nil)
	w, body := e.do(t, http.MethodGet, "/api/admin/users", "ghost", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", body["error"])
}

func TestTrack_ExampleScenario(t *testing.T) {
	e := newTestEnv(t, nil)

	w, body := e.do(t, http.MethodPost, "/api/messages/track", "u1", gin.H{"type": "request"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["requestCount"])
	assert.Equal(t, float64(0), body["responseCount"])

	w, body = e.do(t, http.MethodPost, "/api/messages/track", "u1", gin.H{"type": "response"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["requestCount"])
	assert.Equal(t, float64(1), body["responseCount"])
}

func TestTrack_NRequestsMResponses(t *testing.T) {
	e := newTestEnv(t, nil)
	const n, m = 6, 4
	for i := 0; i < n; i++ {
		w, _ := e.do(t, http.MethodPost, "/api/messages/track", "u1", gin.H{"type": "request"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	for i := 0; i < m; i++ {
		w, _ := e.do(t, http.MethodPost, "/api/messages/track", "u1", gin.H{"type": "response"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, body := e.do(t, http.MethodGet, "/api/messages/stats", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(n), body["requestCount"])
	assert.Equal(t, float64(m), body["responseCount"])
	assert.NotEmpty(t, body["updatedAt"])
}

func TestStats_AbsentRecordIsZero(t *testing.T) {
	e := newTestEnv(t, nil)
	w, body := e.do(t, http.MethodGet, "/api/messages/stats", "u2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["requestCount"])
	assert.Equal(t, float64(0), body["responseCount"])
	assert.NotContains(t, body, "createdAt")
}

func TestTrack_InvalidType(t *testing.T) {
	e := newTestEnv(t, nil)
	for _, b := range []any{gin.H{"type": "both"}, gin.H{}, "not an object"} {
		w, body := e.do(t, http.MethodPost, "/api/messages/track", "u1", b)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, `Invalid type. Must be "request" or "response"`, body["error"])
	}
	assertCounts(t, e, "u1", 0, 0)
}

func TestPromoteThenDemote(t *testing.T) {
	e := newTestEnv(t, nil)
	e.notifier.On("Notify", mock.Anything, kindTo(email.KindPromote, "u2@example.com")).Return(nil).Once()
	e.notifier.On("Notify", mock.Anything, kindTo(email.KindDemote, "u2@example.com")).Return(nil).Twice()

	w, body := e.do(t, http.MethodPost, "/api/admin/users/u2/promote", "admin1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, gin.H{"success": true}, gin.H(body))
	assert.Equal(t, identity.RoleAdmin, e.users.role("u2"))

	w, _ = e.do(t, http.MethodPost, "/api/admin/users/u2/demote", "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, identity.RoleUser, e.users.role("u2"))

	// demoting a plain user keeps the role and still emails
	w, _ = e.do(t, http.MethodPost, "/api/admin/users/u2/demote", "admin1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, identity.RoleUser, e.users.role("u2"))

	e.notifier.AssertExpectations(t)
}

func TestPromote_EmailFailureDoesNotFail(t *testing.T) {
	e := newTestEnv(t, nil)
	e.notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("resend down"))

	w, body := e.do(t, http.MethodPost, "/api/admin/users/u2/promote", "admin1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, identity.RoleAdmin, e.users.role("u2"))
}

func TestPromote_UnknownTarget(t *testing.T) {
	e := newTestEnv(t, nil)
	w, body := e.do(t, http.MethodPost, "/api/admin/users/missing/promote", "admin1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", body["error"])
	e.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestResetCounts_Idempotent(t *testing.T) {
	e := newTestEnv(t, nil)
	seedCounts(t, e, "u2", 5, 4)
	e.notifier.On("Notify", mock.Anything, kindTo(email.KindResetCounts, "u2@example.com")).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		w, body := e.do(t, http.MethodPost, "/api/admin/users/u2/reset-counts", "admin1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "User counts reset successfully", body["message"])
		assert.Equal(t, float64(0), body["requestCount"])
		assert.Equal(t, float64(0), body["responseCount"])
	}
	assertCounts(t, e, "u2", 0, 0)
	e.notifier.AssertExpectations(t)
}

func TestResetAllCounts(t *testing.T) {
	e := newTestEnv(t, nil)
	seedCounts(t, e, "u1", 2, 1)
	seedCounts(t, e, "u2", 7, 7)

	for i := 0; i < 2; i++ {
		w, body := e.do(t, http.MethodPost, "/api/admin/reset-all-counts", "admin1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])
	}
	assertCounts(t, e, "u1", 0, 0)
	assertCounts(t, e, "u2", 0, 0)
}

func TestDeleteUser(t *testing.T) {
	e := newTestEnv(t, nil)
	seedCounts(t, e, "u2", 1, 1)
	e.notifier.On("Notify", mock.Anything, kindTo(email.KindDelete, "u2@example.com")).Return(nil).Once()

	w, body := e.do(t, http.MethodDelete, "/api/admin/users/u2", "admin1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	_, err := e.users.GetUser(context.Background(), "u2")
	assert.ErrorIs(t, err, identity.ErrNotFound)
	c, err := e.usage.Stats(context.Background(), "u2")
	require.NoError(t, err)
	assert.False(t, c.Exists(), "counter row should be dropped with the account")
	e.notifier.AssertExpectations(t)
}

func TestListUsers(t *testing.T) {
	e := newTestEnv(t, nil)
	seedCounts(t, e, "u2", 3, 1)

	w, body := e.do(t, http.MethodGet, "/api/admin/users", "admin1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	list, ok := body["users"].([]any)
	require.True(t, ok)
	require.Len(t, list, 4)

	var bob map[string]any
	for _, item := range list {
		if m := item.(map[string]any); m["id"] == "u2" {
			bob = m
		}
	}
	require.NotNil(t, bob)
	assert.Equal(t, "Bob Builder", bob["name"])
	assert.Equal(t, "u2@example.com", bob["email"])
	assert.Equal(t, "user", bob["role"])
	assert.Equal(t, true, bob["isActive"])
	assert.Equal(t, float64(3), bob["requestCount"])
	assert.Equal(t, float64(1), bob["responseCount"])
	assert.NotEmpty(t, bob["joinDate"])
	assert.NotEmpty(t, bob["lastSeen"])
}

func TestAdminStats(t *testing.T) {
	e := newTestEnv(t, nil)
	seedCounts(t, e, "u1", 2, 1)
	seedCounts(t, e, "u2", 3, 3)

	w, body := e.do(t, http.MethodGet, "/api/admin/stats", "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), body["totalUsers"])
	assert.Equal(t, float64(4), body["activeUsers"])
	assert.Equal(t, float64(2), body["adminUsers"])
	assert.Equal(t, float64(5), body["totalRequests"])
	assert.Equal(t, float64(4), body["totalResponses"])
}

func TestRoleCache_InvalidatedOnRoleChange(t *testing.T) {
	cache := &memRoleCache{roles: make(map[string]identity.Role)}
	e := newTestEnv(t, cache)
	e.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	// first admin request fills the cache, second one is served from it
	w, _ := e.do(t, http.MethodGet, "/api/admin/stats", "admin1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	gets := e.users.gets
	w, _ = e.do(t, http.MethodGet, "/api/admin/stats", "admin1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, gets, e.users.gets, "cached role should skip the provider")

	// u1 is cached as a plain user, then promoted
	w, _ = e.do(t, http.MethodGet, "/api/admin/stats", "u1", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	w, _ = e.do(t, http.MethodPost, "/api/admin/users/u1/promote", "admin1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = e.do(t, http.MethodGet, "/api/admin/stats", "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code, "promotion must evict the stale cached role")
}

func TestChat(t *testing.T) {
	e := newTestEnv(t, nil)

	w, body := e.do(t, http.MethodGet, "/api/models", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "basic", body["default"])
	assert.Len(t, body["models"], 2)

	w, body = e.do(t, http.MethodPost, "/api/chat", "u1", gin.H{
		"model":   "basic",
		"message": "hello",
		"history": []gin.H{{"role": "user", "content": "earlier"}, {"role": "assistant", "content": "reply"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "echo: hello", body["response"])
	assert.Equal(t, false, body["fallback"])
	assert.Contains(t, body["html"], "echo: hello")

	w, body = e.do(t, http.MethodPost, "/api/chat", "u1", gin.H{"model": "pro", "message": "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["fallback"])
	assert.Contains(t, body["response"], "Pro")

	w, body = e.do(t, http.MethodPost, "/api/chat", "u1", gin.H{"message": "who built this chatbot?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["response"], "Jane Doe")

	w, _ = e.do(t, http.MethodPost, "/api/chat", "u1", gin.H{"model": "ultra", "message": "hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = e.do(t, http.MethodPost, "/api/chat", "u1", gin.H{"model": "basic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
