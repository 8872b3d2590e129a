package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursewright/coursewright/internal/artifact"
	"github.com/coursewright/coursewright/internal/config"
	"github.com/coursewright/coursewright/internal/generate"
	"github.com/coursewright/coursewright/internal/logging"
	"github.com/coursewright/coursewright/internal/session"
	"github.com/coursewright/coursewright/internal/store"
)

const testToken = "test-token"

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	return newTestServerExpiry(t, time.Hour, opts...)
}

func newTestServerExpiry(t *testing.T, expiry time.Duration, opts ...ServerOption) *Server {
	t.Helper()

	log := logging.New(io.Discard, "debug")
	mgr := session.NewManager(store.NewMemoryStore(), session.Config{Expiry: expiry}, log)

	cfg := config.Defaults()
	cfg.Server.Auth.Token = testToken

	defaults := []ServerOption{
		WithGenerator(&generate.MockGenerator{ProviderName: "mock"}),
		WithMaterializer(artifact.NewMemoryMaterializer()),
	}
	return New(cfg, mgr, log, append(defaults, opts...)...)
}

type testClient struct {
	t    *testing.T
	base string
}

func (c *testClient) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	return resp
}

func decodeResp(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func createSession(t *testing.T, c *testClient) string {
	t.Helper()
	resp := c.do("POST", "/api/sessions", map[string]any{
		"user_id":      1,
		"context_type": "course_creation",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]any
	decodeResp(t, resp, &created)
	id, _ := created["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealthNoAuth(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestAuthRequired(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/sessions?user_id=1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest("GET", ts.URL+"/api/sessions?user_id=1", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateSession(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}

	resp := c.do("POST", "/api/sessions", map[string]any{
		"user_id":      42,
		"context_type": "course_creation",
		"title":        "Gardening 101",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	decodeResp(t, resp, &created)
	assert.Equal(t, "initial", created["current_state"])
	assert.Equal(t, "Gardening 101", created["title"])
	assert.Equal(t, float64(0), created["progress"])
	assert.Equal(t, true, created["is_active"])
}

func TestCreateSessionValidation(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}

	resp := c.do("POST", "/api/sessions", map[string]any{"user_id": 0, "context_type": "x"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp errorResponse
	decodeResp(t, resp, &errResp)
	assert.Equal(t, "validation_error", errResp.Error.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}

	resp := c.do("GET", "/api/sessions/no-such-id", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetSessionSummaryShape(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("GET", "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary map[string]any
	decodeResp(t, resp, &summary)
	for _, key := range []string{
		"session_id", "current_state", "progress", "confidence_score",
		"messages", "context", "total_tokens", "total_cost", "is_active",
	} {
		assert.Contains(t, summary, key)
	}
	assert.Equal(t, true, summary["is_active"])
	// The persistence snapshot shape must not leak to the caller.
	assert.NotContains(t, summary, "active")
	assert.NotContains(t, summary, "state_history")
}

func TestMessageFlowWithGeneration(t *testing.T) {
	gen := &generate.MockGenerator{
		ProviderName: "mock",
		GenerateFunc: func(ctx context.Context, req generate.Request) (*generate.Result, error) {
			return &generate.Result{
				Content: "Here is a draft outline for " + req.Prompt,
				Usage:   generate.Usage{InputTokens: 10, OutputTokens: 25},
				CostUSD: 0.002,
			}, nil
		},
	}
	ts := httptest.NewServer(newTestServer(t, WithGenerator(gen)).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("POST", "/api/sessions/"+id+"/messages", map[string]any{
		"type":     "user",
		"content":  "a beginner gardening course",
		"generate": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out addMessageResponse
	decodeResp(t, resp, &out)
	assert.Equal(t, "user", string(out.Message.Type))
	require.NotNil(t, out.Reply)
	assert.Equal(t, "assistant", string(out.Reply.Type))
	assert.Contains(t, out.Reply.Content, "draft outline")

	// Tokens and cost from the reply accumulate on the session
	resp = c.do("GET", "/api/sessions/"+id, nil)
	var snap map[string]any
	decodeResp(t, resp, &snap)
	assert.Equal(t, float64(35), snap["total_tokens"])
	assert.InDelta(t, 0.002, snap["total_cost"], 1e-9)
}

func TestMessageValidation(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("POST", "/api/sessions/"+id+"/messages", map[string]any{
		"type":    "robot",
		"content": "hello",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerationFailure(t *testing.T) {
	gen := &generate.MockGenerator{
		ProviderName: "mock",
		GenerateFunc: func(ctx context.Context, req generate.Request) (*generate.Result, error) {
			return nil, &generate.GenerationError{Provider: "mock", Err: fmt.Errorf("upstream down")}
		},
	}
	ts := httptest.NewServer(newTestServer(t, WithGenerator(gen)).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("POST", "/api/sessions/"+id+"/messages", map[string]any{
		"type":     "user",
		"content":  "hello",
		"generate": true,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var errResp errorResponse
	decodeResp(t, resp, &errResp)
	assert.Equal(t, "generation_error", errResp.Error.Code)
}

func TestSetState(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("POST", "/api/sessions/"+id+"/state", map[string]any{"state": "requirements_gathering"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	decodeResp(t, resp, &out)
	assert.Equal(t, "requirements_gathering", out["current_state"])
	assert.Equal(t, float64(20), out["progress"])
}

func TestSetStateUnknownRejected(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("POST", "/api/sessions/"+id+"/state", map[string]any{"state": "time_travel"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp errorResponse
	decodeResp(t, resp, &errResp)
	assert.Equal(t, "validation_error", errResp.Error.Code)
}

func TestPauseAndResume(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	c.do("POST", "/api/sessions/"+id+"/state", map[string]any{"state": "structure_generation"}).Body.Close()

	resp := c.do("POST", "/api/sessions/"+id+"/pause", map[string]any{"reason": "lunch"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var paused map[string]any
	decodeResp(t, resp, &paused)
	assert.Equal(t, "paused", paused["current_state"])

	resp = c.do("POST", "/api/sessions/"+id+"/resume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resumed map[string]any
	decodeResp(t, resp, &resumed)
	assert.Equal(t, "structure_generation", resumed["current_state"])
}

func TestMergeContextAndComplete(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("POST", "/api/sessions/"+id+"/context", map[string]any{
		"context": map[string]any{
			"outline": map[string]any{
				"title": "Gardening 101",
				"sections": []any{
					map[string]any{"title": "Soil", "lessons": []any{map[string]any{"title": "Basics"}}},
				},
			},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = c.do("POST", "/api/sessions/"+id+"/complete", map[string]any{"materialize": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	decodeResp(t, resp, &out)
	assert.Equal(t, "completed", out["current_state"])
	assert.Equal(t, float64(100), out["progress"])
	art, ok := out["artifact"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, art["course_id"])
}

func TestCompleteWithoutOutlineRejectsMaterialize(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("POST", "/api/sessions/"+id+"/complete", map[string]any{"materialize": true})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAbandon(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("POST", "/api/sessions/"+id+"/abandon", map[string]any{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	decodeResp(t, resp, &out)
	assert.Equal(t, "abandoned", out["current_state"])
}

func TestCheckpointLifecycle(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	c.do("POST", "/api/sessions/"+id+"/state", map[string]any{"state": "requirements_gathering"}).Body.Close()

	resp := c.do("POST", "/api/sessions/"+id+"/checkpoints", map[string]any{"name": "before_draft"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Mutate past the checkpoint
	c.do("POST", "/api/sessions/"+id+"/state", map[string]any{"state": "structure_generation"}).Body.Close()

	resp = c.do("GET", "/api/sessions/"+id+"/checkpoints", nil)
	var list map[string]any
	decodeResp(t, resp, &list)
	require.Len(t, list["checkpoints"], 1)

	resp = c.do("POST", "/api/sessions/"+id+"/checkpoints/before_draft/restore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var restored map[string]any
	decodeResp(t, resp, &restored)
	assert.Equal(t, "requirements_gathering", restored["current_state"])
}

func TestRestoreUnknownCheckpoint(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("POST", "/api/sessions/"+id+"/checkpoints/nope/restore", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSessions(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	createSession(t, c)
	createSession(t, c)

	resp := c.do("GET", "/api/sessions?user_id=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	decodeResp(t, resp, &out)
	assert.Len(t, out["sessions"], 2)

	resp = c.do("GET", "/api/sessions", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	resp := c.do("DELETE", "/api/sessions/"+id, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do("GET", "/api/sessions/"+id, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExpiredSessionGone(t *testing.T) {
	ts := httptest.NewServer(newTestServerExpiry(t, 10*time.Millisecond).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	time.Sleep(30 * time.Millisecond)

	resp := c.do("GET", "/api/sessions/"+id, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	var errResp errorResponse
	decodeResp(t, resp, &errResp)
	assert.Equal(t, "session_expired", errResp.Error.Code)
}

func TestWatchReceivesEvents(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}
	id := createSession(t, c)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/api/sessions/" + id + "/watch?access_token=" + testToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the subscription a moment to register before mutating
	time.Sleep(20 * time.Millisecond)

	c.do("POST", "/api/sessions/"+id+"/state", map[string]any{"state": "requirements_gathering"}).Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "state_changed", evt.Type)
	assert.Equal(t, id, evt.SessionID)
	assert.Equal(t, "requirements_gathering", evt.Data["to"])
}

func TestWatchUnknownSession(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()
	c := &testClient{t: t, base: ts.URL}

	resp := c.do("GET", "/api/sessions/no-such-id/watch", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
