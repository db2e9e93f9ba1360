// ABOUTME: Tests for the shared HTTP client
// ABOUTME: Covers bearer credentials, envelope handling, and failure classification

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderhq/toolbench/internal/api"
)

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) errorList() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

func (n *recordingNotifier) successList() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.successes...)
}

// newTestClient starts an httptest server around handler and returns a client
// pointed at it, with a short expiry debounce so latch tests stay fast.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *recordingNotifier) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	notify := &recordingNotifier{}
	c, err := New(Config{
		BaseURL:        srv.URL,
		Tokens:         NewMemoryStore(),
		Notify:         notify,
		ExpiryDebounce: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	return c, notify
}

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, `{"success":true}`)
	})

	c, _ := newTestClient(t, handler)
	require.NoError(t, c.Tokens().Set(AccessToken, "token-abc"))

	_, err := c.Get(context.Background(), "/tools")
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-abc", gotAuth)
}

func TestClient_NoBearerWithoutToken(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, `{"success":true}`)
	})

	c, _ := newTestClient(t, handler)

	_, err := c.Get(context.Background(), "/tools")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_UnwrapsEnvelope(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"name":"calc"},"message":"ok"}`)
	})

	c, _ := newTestClient(t, handler)

	env, err := c.Get(context.Background(), "/tools")
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, "ok", env.Message)

	var payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, env.DecodeData(&payload))
	assert.Equal(t, "calc", payload.Name)
}

func TestClient_StatusErrorNotifications(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantNotify string
	}{
		{
			name:       "forbidden",
			status:     http.StatusForbidden,
			body:       `{"success":false}`,
			wantNotify: "没有权限访问",
		},
		{
			name:       "not found",
			status:     http.StatusNotFound,
			body:       `{"success":false}`,
			wantNotify: "请求的资源不存在",
		},
		{
			name:       "server error",
			status:     http.StatusInternalServerError,
			body:       `{"success":false}`,
			wantNotify: "服务器内部错误",
		},
		{
			name:       "other status uses backend message",
			status:     http.StatusUnprocessableEntity,
			body:       `{"success":false,"message":"参数无效"}`,
			wantNotify: "参数无效",
		},
		{
			name:       "other status without message uses fallback",
			status:     http.StatusUnprocessableEntity,
			body:       `{"success":false}`,
			wantNotify: "请求失败 (422)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tt.status, tt.body)
			})
			c, notify := newTestClient(t, handler)

			_, err := c.Get(context.Background(), "/x")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, []string{tt.wantNotify}, notify.errorList())
		})
	}
}

func TestClient_ErrorCarriesBackendMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, `{"success":false,"message":"Tool not found"}`)
	})
	c, _ := newTestClient(t, handler)

	_, err := c.Get(context.Background(), "/tools?id=99")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Tool not found", apiErr.Message)
}

func TestClient_UnauthorizedClearsTokensOnce(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, `{"success":false}`)
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	notify := &recordingNotifier{}
	var mu sync.Mutex
	calls := 0
	c, err := New(Config{
		BaseURL:        srv.URL,
		Tokens:         NewMemoryStore(),
		Notify:         notify,
		ExpiryDebounce: 50 * time.Millisecond,
		OnSessionExpired: func() {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	require.NoError(t, c.Tokens().Set(AccessToken, "stale"))

	// A burst of concurrent 401s must collapse into one expiry episode.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "/auth/me")
			assert.True(t, IsUnauthorized(err))
		}()
	}
	wg.Wait()

	// Wait out the debounce window for the handler to run.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"登录已过期，请重新登录"}, notify.errorList())

	_, ok := c.Tokens().Get(AccessToken)
	assert.False(t, ok, "access token should be cleared after expiry")
}

func TestClient_TimeoutClassification(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	notify := &recordingNotifier{}
	c, err := New(Config{
		BaseURL: srv.URL,
		Timeout: 20 * time.Millisecond,
		Notify:  notify,
	})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/slow")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []string{"请求超时"}, notify.errorList())
}

func TestClient_NetworkErrorClassification(t *testing.T) {
	// A closed server guarantees a connection failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	notify := &recordingNotifier{}
	c, err := New(Config{BaseURL: url, Notify: notify})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/x")
	require.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, []string{"网络连接失败"}, notify.errorList())
}

func TestClient_ContextCancelPassesThrough(t *testing.T) {
	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})
	c, notify := newTestClient(t, handler)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.Get(ctx, "/x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, notify.errorList(), "cancellation is not a user-facing failure")
}

func TestClient_GetRaw(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"calc"}]`))
	})
	c, _ := newTestClient(t, handler)

	data, err := c.GetRaw(context.Background(), "/tools/export")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"calc"}]`, string(data))
}

func TestClient_MalformedBodyIsError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `not json`)
	})
	c, _ := newTestClient(t, handler)

	_, err := c.Get(context.Background(), "/x")
	require.Error(t, err)
}

func TestEnvelope_ErrorTextPriority(t *testing.T) {
	env := &api.Envelope{Message: "msg", Error: "err"}
	assert.Equal(t, "msg", env.ErrorText("fallback"))

	env = &api.Envelope{Error: "err"}
	assert.Equal(t, "err", env.ErrorText("fallback"))

	env = &api.Envelope{}
	assert.Equal(t, "fallback", env.ErrorText("fallback"))
}
