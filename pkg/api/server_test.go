package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/inkwell/pkg/apikeys"
	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/content"
	"github.com/platinummonkey/inkwell/pkg/generate"
	"github.com/platinummonkey/inkwell/pkg/middleware"
	"github.com/platinummonkey/inkwell/pkg/notify"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/quota"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/storage/postgres"
	"github.com/platinummonkey/inkwell/pkg/teams"
	"github.com/platinummonkey/inkwell/pkg/users"
	"github.com/platinummonkey/inkwell/pkg/workspaces"
)

// tokenResolver treats the bearer token as a user id and reloads the user
// on every request so tier changes apply immediately
type tokenResolver struct {
	store *postgres.Store
}

func (r *tokenResolver) Resolve(ctx context.Context, token string) (*auth.AuthContext, error) {
	u, err := r.store.GetUser(ctx, token)
	if err != nil {
		return nil, apperr.Unauthenticated(middleware.MsgNotAuthenticated)
	}
	return &auth.AuthContext{User: u, TokenHash: auth.HashToken(token)}, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, _ *auth.User, req generate.Request) (*generate.Result, error) {
	return &generate.Result{Content: "draft: " + req.Prompt, KeySource: generate.KeySourceSystem}, nil
}

type toggleNotifier struct {
	err error
}

func (n *toggleNotifier) Name() string { return "toggle" }

func (n *toggleNotifier) NotifyInvitation(context.Context, *notify.Invitation) error {
	return n.err
}

type testServer struct {
	server   *Server
	store    *postgres.Store
	notifier *toggleNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := postgres.NewTestStore(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	authz := rbac.NewEngine(s, metrics)
	quotas := quota.NewEngine(s, metrics)
	notifier := &toggleNotifier{}

	server := NewServer(Services{
		Workspaces: workspaces.NewService(s, authz, quotas),
		Teams:      teams.NewService(s, authz, quotas, notifier, metrics, "http://app.test"),
		Content:    content.NewService(s, authz, quotas, echoGenerator{}),
		APIKeys:    apikeys.NewService(s, nil),
		Users:      users.NewService(s),
	}, Options{
		Resolver:        &tokenResolver{store: s},
		GenerateLimiter: middleware.NewRateLimiter(middleware.GenerateRateLimitConfig(1)),
		Logger:          observability.NewLogger(observability.ErrorLevel, io.Discard),
		Metrics:         metrics,
		CORSOrigins:     []string{"http://app.test"},
	})
	return &testServer{server: server, store: s, notifier: notifier}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Message string          `json:"message"`
	Warning string          `json:"warning"`
	Error   string          `json:"error"`
}

func (ts *testServer) do(t *testing.T, user *auth.User, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+user.ID)
	}
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode(t *testing.T, env envelope, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func (ts *testServer) createWorkspace(t *testing.T, owner *auth.User, name string) string {
	t.Helper()
	code, env := ts.do(t, owner, http.MethodPost, "/workspaces", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var ws struct {
		ID string `json:"id"`
	}
	decode(t, env, &ws)
	return ws.ID
}

func TestServer_RequiresAuthentication(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/workspaces", "/teams/workspace/abc", "/content/abc", "/api-keys", "/users/me"} {
		code, env := ts.do(t, nil, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
		assert.False(t, env.Success)
		assert.Equal(t, middleware.MsgNotAuthenticated, env.Error)
	}

	req := httptest.NewRequest(http.MethodGet, "/workspaces", nil)
	req.Header.Set("Authorization", "Bearer no-such-user")
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_UnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, nil, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Route not found", env.Error)
}

func TestServer_RequestIDAndCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/workspaces", nil)
	req.Header.Set("Origin", "http://app.test")
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://app.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_InvalidBody(t *testing.T) {
	ts := newTestServer(t)
	owner := postgres.MustCreateUser(t, ts.store, "owner@example.com", auth.TierBase)

	req := httptest.NewRequest(http.MethodPost, "/workspaces", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+owner.ID)
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func TestServer_InvitationScenario(t *testing.T) {
	ts := newTestServer(t)
	u1 := postgres.MustCreateUser(t, ts.store, "u1@example.com", auth.TierBase)
	u2 := postgres.MustCreateUser(t, ts.store, "bob@x.com", auth.TierBase)

	wsID := ts.createWorkspace(t, u1, "W")

	// invite bob
	code, env := ts.do(t, u1, http.MethodPost, "/teams/invite", map[string]string{
		"workspace": wsID, "email": "bob@x.com", "role": "Editor",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.Empty(t, env.Warning)
	var invite struct {
		Membership struct {
			ID             string `json:"id"`
			InviteAccepted bool   `json:"invite_accepted"`
		} `json:"membership"`
		InviteURL string `json:"invite_url"`
	}
	decode(t, env, &invite)
	assert.False(t, invite.Membership.InviteAccepted)
	assert.Equal(t, "http://app.test/invite/"+invite.Membership.ID, invite.InviteURL)

	// second invite before acceptance conflicts
	code, env = ts.do(t, u1, http.MethodPost, "/teams/invite", map[string]string{
		"workspace": wsID, "email": "bob@x.com", "role": "Editor",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, teams.MsgInviteExists, env.Error)

	// pending invitation preview is visible to the invitee
	code, env = ts.do(t, u2, http.MethodGet, "/teams/"+invite.Membership.ID, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var preview struct {
		WorkspaceName string `json:"workspace_name"`
	}
	decode(t, env, &preview)
	assert.Equal(t, "W", preview.WorkspaceName)

	// bob accepts, twice
	code, env = ts.do(t, u2, http.MethodPut, "/teams/accept/"+invite.Membership.ID, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, teams.MsgAcceptedSuccessfully, env.Message)
	var accepted struct {
		User           string `json:"user"`
		InviteAccepted bool   `json:"invite_accepted"`
	}
	decode(t, env, &accepted)
	assert.True(t, accepted.InviteAccepted)
	assert.Equal(t, u2.ID, accepted.User)

	code, env = ts.do(t, u2, http.MethodPut, "/teams/accept/"+invite.Membership.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, teams.MsgAlreadyAccepted, env.Message)

	// an Editor may not update the workspace
	code, env = ts.do(t, u2, http.MethodPut, "/workspaces/"+wsID, map[string]string{"name": "Renamed"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, rbac.MsgForbidden, env.Error)

	// bob now lists the workspace with his role
	code, env = ts.do(t, u2, http.MethodGet, "/workspaces", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)
	var list []struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	}
	decode(t, env, &list)
	assert.Equal(t, "Editor", list[0].Role)

	// second member fits, third exceeds the base member quota
	code, _ = ts.do(t, u1, http.MethodPost, "/teams/invite", map[string]string{
		"workspace": wsID, "email": "carol@x.com", "role": "Viewer",
	})
	assert.Equal(t, http.StatusCreated, code)
	code, env = ts.do(t, u1, http.MethodPost, "/teams/invite", map[string]string{
		"workspace": wsID, "email": "dave@x.com", "role": "Viewer",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Your base plan allows a maximum of 2 members per workspace", env.Error)

	// the team listing shows all rows including the owner's
	code, env = ts.do(t, u1, http.MethodGet, "/teams/workspace/"+wsID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, *env.Count)
}

func TestServer_InviteNotificationWarning(t *testing.T) {
	ts := newTestServer(t)
	owner := postgres.MustCreateUser(t, ts.store, "owner@example.com", auth.TierBase)
	wsID := ts.createWorkspace(t, owner, "Warnings")
	ts.notifier.err = errors.New("smtp down")

	code, env := ts.do(t, owner, http.MethodPost, "/teams/invite", map[string]string{
		"workspace": wsID, "email": "new@example.com", "role": "Viewer",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	assert.Equal(t, teams.MsgNotifyFailed, env.Warning)

	var invite struct {
		Membership struct {
			ID string `json:"id"`
		} `json:"membership"`
	}
	decode(t, env, &invite)

	code, env = ts.do(t, owner, http.MethodPost, "/teams/"+invite.Membership.ID+"/resend", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, teams.MsgNotifyFailed, env.Warning)
}

func TestServer_TeamRoleAndRemoval(t *testing.T) {
	ts := newTestServer(t)
	owner := postgres.MustCreateUser(t, ts.store, "owner@example.com", auth.TierBase)
	member := postgres.MustCreateUser(t, ts.store, "member@example.com", auth.TierBase)
	wsID := ts.createWorkspace(t, owner, "Team")

	code, env := ts.do(t, owner, http.MethodPost, "/teams", map[string]string{
		"workspace": wsID, "email": "member@example.com", "role": "Viewer",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var m struct {
		ID string `json:"id"`
	}
	decode(t, env, &m)

	code, env = ts.do(t, owner, http.MethodPut, "/teams/"+m.ID, map[string]string{"role": "Owner"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, teams.MsgInvalidRole, env.Error)

	code, env = ts.do(t, member, http.MethodPut, "/teams/"+m.ID, map[string]string{"role": "Admin"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = ts.do(t, owner, http.MethodPut, "/teams/"+m.ID, map[string]string{"role": "Editor"})
	require.Equal(t, http.StatusOK, code, env.Error)
	var updated struct {
		Role string `json:"role"`
	}
	decode(t, env, &updated)
	assert.Equal(t, "Editor", updated.Role)

	code, _ = ts.do(t, member, http.MethodDelete, "/teams/"+m.ID, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = ts.do(t, owner, http.MethodDelete, "/teams/"+m.ID, nil)
	assert.Equal(t, http.StatusOK, code)

	// removal of an unknown id is a no-op
	code, env = ts.do(t, owner, http.MethodDelete, "/teams/"+m.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestServer_WorkspaceLifecycle(t *testing.T) {
	ts := newTestServer(t)
	owner := postgres.MustCreateUser(t, ts.store, "owner@example.com", auth.TierBase)
	stranger := postgres.MustCreateUser(t, ts.store, "stranger@example.com", auth.TierBase)

	code, env := ts.do(t, owner, http.MethodPost, "/workspaces", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, workspaces.MsgNameRequired, env.Error)

	var ids []string
	for _, name := range []string{"one", "two", "three"} {
		ids = append(ids, ts.createWorkspace(t, owner, name))
	}
	code, env = ts.do(t, owner, http.MethodPost, "/workspaces", map[string]string{"name": "four"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Your base plan allows a maximum of 3 workspaces", env.Error)

	// upgrading lifts the limit
	code, env = ts.do(t, owner, http.MethodPut, "/users/subscription", map[string]string{"subscription_tier": "pro"})
	require.Equal(t, http.StatusOK, code, env.Error)
	ts.createWorkspace(t, owner, "four")

	code, env = ts.do(t, owner, http.MethodGet, "/workspaces/"+ids[0], nil)
	require.Equal(t, http.StatusOK, code)
	var got struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	decode(t, env, &got)
	assert.Equal(t, "one", got.Name)
	assert.Equal(t, "Owner", got.Role)

	code, _ = ts.do(t, stranger, http.MethodGet, "/workspaces/"+ids[0], nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = ts.do(t, owner, http.MethodPut, "/workspaces/"+ids[0], map[string]string{"name": "uno"})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, _ = ts.do(t, stranger, http.MethodDelete, "/workspaces/"+ids[0], nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(t, owner, http.MethodDelete, "/workspaces/"+ids[0], nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, owner, http.MethodGet, "/workspaces/"+ids[0], nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_ContentAndGeneration(t *testing.T) {
	ts := newTestServer(t)
	owner := postgres.MustCreateUser(t, ts.store, "owner@example.com", auth.TierBase)
	wsID := ts.createWorkspace(t, owner, "Content")

	code, env := ts.do(t, owner, http.MethodPost, "/content", map[string]string{
		"workspace": wsID, "title": "Hello", "body": "World",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var c struct {
		ID          string `json:"id"`
		ContentType string `json:"content_type"`
	}
	decode(t, env, &c)
	assert.Equal(t, "text", c.ContentType)

	code, env = ts.do(t, owner, http.MethodGet, "/content/workspace/"+wsID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, *env.Count)

	code, _ = ts.do(t, owner, http.MethodPut, "/content/"+c.ID, map[string]string{"title": "Hi"})
	assert.Equal(t, http.StatusOK, code)

	code, env = ts.do(t, owner, http.MethodPost, "/content/generate", map[string]interface{}{
		"workspace": wsID, "prompt": "a haiku", "max_tokens": 2000,
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	var gen content.GenerateResult
	decode(t, env, &gen)
	assert.Equal(t, "draft: a haiku", gen.Content)
	assert.Equal(t, 500, gen.MaxTokens)

	// one request per minute
	code, env = ts.do(t, owner, http.MethodPost, "/content/generate", map[string]interface{}{
		"workspace": wsID, "prompt": "again",
	})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, middleware.MsgRateLimited, env.Error)

	code, _ = ts.do(t, owner, http.MethodDelete, "/content/"+c.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = ts.do(t, owner, http.MethodGet, "/content/"+c.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, content.MsgContentNotFound, env.Error)
}

func TestServer_APIKeys(t *testing.T) {
	ts := newTestServer(t)
	owner := postgres.MustCreateUser(t, ts.store, "owner@example.com", auth.TierBase)
	other := postgres.MustCreateUser(t, ts.store, "other@example.com", auth.TierBase)

	code, env := ts.do(t, owner, http.MethodPost, "/api-keys", map[string]string{
		"name": "main", "key": "sk-abcdefghijklmnopqrstuvwxyz", "service": "OpenAI",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var key struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	decode(t, env, &key)
	assert.Equal(t, "sk-ab...vwxyz", key.Key)

	code, env = ts.do(t, owner, http.MethodPost, "/api-keys", map[string]string{
		"name": "main", "key": "sk-other", "service": "openai",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, env = ts.do(t, owner, http.MethodGet, "/api-keys", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, *env.Count)

	code, _ = ts.do(t, other, http.MethodPut, "/api-keys/"+key.ID+"/toggle", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = ts.do(t, owner, http.MethodPut, "/api-keys/"+key.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, code)
	var toggled struct {
		IsActive bool `json:"is_active"`
	}
	decode(t, env, &toggled)
	assert.False(t, toggled.IsActive)

	code, env = ts.do(t, owner, http.MethodPost, "/api-keys/generate", map[string]string{"name": "fresh"})
	require.Equal(t, http.StatusOK, code)
	var generated apikeys.GeneratedKey
	decode(t, env, &generated)
	assert.Len(t, generated.Key, 64)

	code, env = ts.do(t, owner, http.MethodPost, "/api-keys/verify", map[string]string{"key": "sk-anything"})
	require.Equal(t, http.StatusOK, code)
	var verification apikeys.Verification
	decode(t, env, &verification)
	assert.True(t, verification.Valid)

	code, _ = ts.do(t, owner, http.MethodDelete, "/api-keys/"+key.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = ts.do(t, owner, http.MethodDelete, "/api-keys/"+key.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, apikeys.MsgKeyNotFound, env.Error)
}

func TestServer_Users(t *testing.T) {
	ts := newTestServer(t)
	user := postgres.MustCreateUser(t, ts.store, "user@example.com", auth.TierBase)
	admin := postgres.MustCreateUser(t, ts.store, "admin@example.com", auth.TierBase)
	require.NoError(t, ts.store.SetSystemAdmin(context.Background(), admin.ID, true))

	code, env := ts.do(t, user, http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusOK, code)
	var me auth.User
	decode(t, env, &me)
	assert.Equal(t, "user@example.com", me.Email)

	code, env = ts.do(t, user, http.MethodPut, "/users/subscription", map[string]string{"subscription_tier": "gold"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, users.MsgInvalidPlan, env.Error)

	code, _ = ts.do(t, user, http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(t, user, http.MethodPut, "/users/"+admin.ID+"/admin", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = ts.do(t, admin, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, *env.Count)

	code, env = ts.do(t, admin, http.MethodPut, "/users/"+user.ID+"/admin", nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env, &me)
	assert.True(t, me.IsSystemAdmin)

	code, env = ts.do(t, admin, http.MethodPut, "/users/missing/admin", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, users.MsgUserNotFound, env.Error)
}
