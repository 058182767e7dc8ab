package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"feedback_service/internal/auth"
	"feedback_service/internal/messaging"
	"feedback_service/internal/models"
	"feedback_service/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (i *inbox) SendMessage(_ context.Context, msg models.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sent = append(i.sent, msg)
	return nil
}

func (i *inbox) last() models.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sent[len(i.sent)-1]
}

type client struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func (c *client) do(method, path, body string) (int, map[string]any) {
	c.t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, c.server.URL+path, rdr)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()

	out := map[string]any{}
	require.NoError(c.t, json.NewDecoder(res.Body).Decode(&out))

	return res.StatusCode, out
}

func newClient(t *testing.T) (*client, *inbox) {
	t.Helper()

	return newClientWithOptions(t, routerOptions{globalPerMinute: 500})
}

func newClientWithOptions(t *testing.T, opts routerOptions) (*client, *inbox) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	box := &inbox{}

	authService := auth.New(log, store, store, box, memory.NewDenylist(time.Now),
		time.Hour, time.Hour, "test-secret", 4)
	msgService := messaging.New(log, store)

	srv := httptest.NewServer(setupRouter(log, authService, msgService, opts))
	t.Cleanup(srv.Close)

	return &client{t: t, server: srv}, box
}

func TestFeedbackFlow(t *testing.T) {
	c, box := newClient(t)

	code, body := c.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, code, body)

	code, body = c.do(http.MethodPost, "/signup", `{"username":"alice","email":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, true, body["success"])

	code, _ = c.do(http.MethodPost, "/signin", `{"identifier":"alice","password":"secret1"}`)
	require.Equal(t, http.StatusForbidden, code)

	code, body = c.do(http.MethodPost, "/verify-code", `{"username":"alice","code":"`+box.last().Code+`"}`)
	require.Equal(t, http.StatusOK, code, body)

	code, body = c.do(http.MethodGet, "/check-username-unique?username=alice", "")
	require.Equal(t, http.StatusBadRequest, code, body)

	code, body = c.do(http.MethodPost, "/signin", `{"identifier":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, code, body)
	c.token = body["token"].(string)
	require.NotEmpty(t, c.token)

	code, _ = c.do(http.MethodPost, "/send-message", `{"username":"alice","content":"first anonymous note"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = c.do(http.MethodPost, "/send-message", `{"username":"alice","content":"second anonymous note"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = c.do(http.MethodGet, "/get-messages", "")
	require.Equal(t, http.StatusOK, code, body)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)

	code, body = c.do(http.MethodPost, "/accept-messages", `{"acceptMessages":false}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body["isAcceptingMessages"])

	code, _ = c.do(http.MethodPost, "/send-message", `{"username":"alice","content":"third anonymous note"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = c.do(http.MethodGet, "/accept-messages", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["isAcceptingMessages"])

	first := msgs[0].(map[string]any)["_id"].(string)
	code, _ = c.do(http.MethodDelete, "/delete-message?messageId="+first, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = c.do(http.MethodDelete, "/delete-message?messageId="+first, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = c.do(http.MethodGet, "/get-messages", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["messages"].([]any), 1)

	code, _ = c.do(http.MethodPost, "/signout", "")
	require.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodGet, "/get-messages", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	c, _ := newClient(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/get-messages"},
		{http.MethodGet, "/accept-messages"},
		{http.MethodPost, "/accept-messages"},
		{http.MethodDelete, "/delete-message?messageId=x"},
		{http.MethodPost, "/signout"},
	} {
		code, body := c.do(route.method, route.path, "")
		assert.Equal(t, http.StatusUnauthorized, code, route.path)
		assert.Equal(t, false, body["success"])
	}
}

func TestSecurityHeaders(t *testing.T) {
	c, _ := newClient(t)

	res, err := c.server.Client().Get(c.server.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
}

func TestRateLimit_IgnoresForwardingHeaders(t *testing.T) {
	c, _ := newClient(t)

	limited := 0
	for i := range 30 {
		req, err := http.NewRequest(http.MethodPost, c.server.URL+"/verify-code",
			strings.NewReader(`{"username":"ghost","code":"000000"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))

		res, err := c.server.Client().Do(req)
		require.NoError(t, err)
		res.Body.Close()

		if res.StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}

	assert.Equal(t, 20, limited)
}

func TestRateLimit_TrustedProxy(t *testing.T) {
	c, _ := newClientWithOptions(t, routerOptions{globalPerMinute: 500, trustProxy: true})

	for i := range 15 {
		req, err := http.NewRequest(http.MethodPost, c.server.URL+"/verify-code",
			strings.NewReader(`{"username":"ghost","code":"000000"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))

		res, err := c.server.Client().Do(req)
		require.NoError(t, err)
		res.Body.Close()

		assert.NotEqual(t, http.StatusTooManyRequests, res.StatusCode)
	}
}
