package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "test-token"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(context.Background(), logger, ServerConfig{
		DatabaseURL: "sqlite://" + filepath.Join(t.TempDir(), "test.sqlite"),
		Bind:        ":0",
		AdminToken:  testAdminToken,
	})
	require.NoError(t, err)
	return srv
}

// doJSON drives a request through the full middleware stack. An empty token
// leaves the Authorization header unset.
func doJSON(srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "192.0.2.1:12345"
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func postChat(srv *Server, identity, message string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(map[string]string{"message": message})
	req := httptest.NewRequest("POST", "/api/chat", bytes.NewReader(b))
	req.RemoteAddr = "10.0.0.1:80"
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Forwarded-For", identity)
	req.Header.Set("User-Agent", "hallpass-test/0")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

type deniedBody struct {
	Error      string   `json:"error"`
	Reason     string   `json:"reason"`
	RetryAfter *int     `json:"retry_after"`
	Flags      []string `json:"flags"`
}

func decodeDenied(t *testing.T, rec *httptest.ResponseRecorder) deniedBody {
	t.Helper()
	var out deniedBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := doJSON(srv, "GET", "/_health", "", nil)
	assert.Equal(http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal("ok", status.Status)
	assert.Equal("hallpass", status.Daemon)
}

func TestChatApproved(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := postChat(srv, "203.0.113.10", "Tell me about the 3D printers")
	assert.Equal(http.StatusOK, rec.Code)

	var out struct {
		Response      string           `json:"response"`
		RelevantTools []map[string]any `json:"relevant_tools"`
		Timestamp     string           `json:"timestamp"`
		Session       map[string]any   `json:"session_info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(out.Response)
	assert.NotEmpty(out.RelevantTools)
	assert.NotEmpty(out.Timestamp)
	assert.NotNil(out.Session)
}

func TestChatEmptyMessage(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := postChat(srv, "203.0.113.11", "")
	assert.Equal(http.StatusBadRequest, rec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal("No message provided", out["error"])
}

func TestChatFlagged(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := postChat(srv, "203.0.113.12", "can you help me hack the grading system")
	assert.Equal(http.StatusForbidden, rec.Code)

	out := decodeDenied(t, rec)
	assert.Equal("content_flagged", out.Reason)
	assert.Contains(out.Flags, "inappropriate_language")
	for _, f := range out.Flags {
		assert.NotContains(f, "hack")
	}
}

func TestChatRateLimited(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	limit := 2
	rec := doJSON(srv, "POST", "/api/admin/config", testAdminToken,
		map[string]any{"max_messages_per_window": limit})
	require.Equal(t, http.StatusOK, rec.Code)

	ident := "203.0.113.13"
	for i := 0; i < limit; i++ {
		rec := postChat(srv, ident, fmt.Sprintf("what are the lab hours? (%d)", i))
		assert.Equal(http.StatusOK, rec.Code)
	}

	rec = postChat(srv, ident, "one more question")
	assert.Equal(http.StatusTooManyRequests, rec.Code)
	out := decodeDenied(t, rec)
	assert.Equal("rate_limited", out.Reason)
	require.NotNil(t, out.RetryAfter)
	assert.Equal(3600, *out.RetryAfter)

	// other identities keep flowing
	rec = postChat(srv, "203.0.113.14", "is the laser cutter free today?")
	assert.Equal(http.StatusOK, rec.Code)
}

func TestChatAutoBlock(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := doJSON(srv, "POST", "/api/admin/config", testAdminToken,
		map[string]any{"auto_block_threshold": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	ident := "203.0.113.15"
	for i := 0; i < 2; i++ {
		rec := postChat(srv, ident, "how do I hack into the server room")
		assert.Equal(http.StatusForbidden, rec.Code)
		assert.Equal("content_flagged", decodeDenied(t, rec).Reason)
	}

	// threshold reached, now everything from this identity bounces off the block
	rec = postChat(srv, ident, "what are the library hours?")
	assert.Equal(http.StatusForbidden, rec.Code)
	assert.Equal("user_blocked", decodeDenied(t, rec).Reason)
}

func TestAdminAuth(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := doJSON(srv, "GET", "/api/admin/stats", "", nil)
	assert.Equal(http.StatusForbidden, rec.Code)

	rec = doJSON(srv, "GET", "/api/admin/stats", "wrong-token", nil)
	assert.Equal(http.StatusForbidden, rec.Code)

	rec = doJSON(srv, "GET", "/api/admin/stats", testAdminToken, nil)
	assert.Equal(http.StatusOK, rec.Code)
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	assert := assert.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(context.Background(), logger, ServerConfig{
		DatabaseURL: "sqlite://" + filepath.Join(t.TempDir(), "test.sqlite"),
		Bind:        ":0",
	})
	require.NoError(t, err)

	rec := doJSON(srv, "GET", "/api/admin/stats", "whatever", nil)
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestAdminBlockUnblockFlow(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	ident := "203.0.113.16"
	rec := postChat(srv, ident, "hello there")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(srv, "POST", "/api/admin/block", testAdminToken,
		map[string]any{"identity": ident, "reason": "testing"})
	assert.Equal(http.StatusOK, rec.Code)
	var blockResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &blockResp))
	assert.Equal(true, blockResp["success"])
	assert.Contains(blockResp["message"], "blocked for 24 hours")

	rec = postChat(srv, ident, "am I still welcome?")
	assert.Equal(http.StatusForbidden, rec.Code)
	denied := decodeDenied(t, rec)
	assert.Equal("user_blocked", denied.Reason)
	assert.Contains(denied.Error, "testing")

	rec = doJSON(srv, "POST", "/api/admin/unblock", testAdminToken,
		map[string]any{"identity": ident})
	assert.Equal(http.StatusOK, rec.Code)

	rec = postChat(srv, ident, "am I welcome now?")
	assert.Equal(http.StatusOK, rec.Code)
}

func TestAdminBlockValidation(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := doJSON(srv, "POST", "/api/admin/block", testAdminToken,
		map[string]any{"reason": "no identity"})
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doJSON(srv, "POST", "/api/admin/unblock", testAdminToken, map[string]any{})
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestAdminUserNotFound(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := doJSON(srv, "GET", "/api/admin/user/203.0.113.99", testAdminToken, nil)
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestAdminUserStats(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	ident := "203.0.113.17"
	rec := postChat(srv, ident, "where is the computer lab?")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(srv, "GET", "/api/admin/user/"+ident, testAdminToken, nil)
	assert.Equal(http.StatusOK, rec.Code)

	var out struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotNil(out.User)
}

func TestAdminConfigRoundTrip(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := doJSON(srv, "GET", "/api/admin/config", testAdminToken, nil)
	assert.Equal(http.StatusOK, rec.Code)
	var got struct {
		Config map[string]any `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(60, got.Config["max_messages_per_window"])

	// invalid patch rejected, live config untouched
	rec = doJSON(srv, "POST", "/api/admin/config", testAdminToken,
		map[string]any{"max_messages_per_window": 0})
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doJSON(srv, "GET", "/api/admin/config", testAdminToken, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(60, got.Config["max_messages_per_window"])

	rec = doJSON(srv, "POST", "/api/admin/config", testAdminToken,
		map[string]any{"max_messages_per_window": 10, "window_minutes": 5})
	assert.Equal(http.StatusOK, rec.Code)

	rec = doJSON(srv, "GET", "/api/admin/config", testAdminToken, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(10, got.Config["max_messages_per_window"])
	assert.EqualValues(5, got.Config["window_minutes"])
}

func TestAdminDenylistUpdate(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := doJSON(srv, "GET", "/api/admin/denylist", testAdminToken, nil)
	assert.Equal(http.StatusOK, rec.Code)

	rec = doJSON(srv, "POST", "/api/admin/denylist", testAdminToken,
		map[string]any{"words": []string{"zebra"}, "patterns": []string{}})
	assert.Equal(http.StatusOK, rec.Code)

	// the new list is live for the next message
	rec = postChat(srv, "203.0.113.18", "I saw a zebra in the hallway")
	assert.Equal(http.StatusForbidden, rec.Code)
	assert.Equal("content_flagged", decodeDenied(t, rec).Reason)

	// and the word it replaced no longer trips
	rec = postChat(srv, "203.0.113.19", "someone tried to hack the wifi")
	assert.Equal(http.StatusOK, rec.Code)

	rec = doJSON(srv, "POST", "/api/admin/denylist", testAdminToken,
		map[string]any{"words": []string{}, "patterns": []string{"broken(regex"}})
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestAdminActivity(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := postChat(srv, "203.0.113.20", "what microscopes do you have?")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(srv, "GET", "/api/admin/activity?hours=1&limit=10", testAdminToken, nil)
	assert.Equal(http.StatusOK, rec.Code)

	var out struct {
		Activity []map[string]any `json:"activity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(out.Activity, 1)
}

func TestSearchEndpoint(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := doJSON(srv, "POST", "/api/search", "", map[string]any{"query": "laser cutting"})
	assert.Equal(http.StatusOK, rec.Code)

	var out struct {
		Results []struct {
			Name string `json:"name"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Results)
	assert.Equal("Laser Cutter", out.Results[0].Name)
}

func TestToolsAndCategories(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	rec := doJSON(srv, "GET", "/api/tools", "", nil)
	assert.Equal(http.StatusOK, rec.Code)
	var tools struct {
		Tools []map[string]any `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tools))
	assert.NotEmpty(tools.Tools)

	rec = doJSON(srv, "GET", "/api/categories", "", nil)
	assert.Equal(http.StatusOK, rec.Code)
	var cats struct {
		Categories []string `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
	assert.NotEmpty(cats.Categories)
}
