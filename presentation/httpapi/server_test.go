package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"quizsolver/application/dispatch"
	"quizsolver/domain/entities"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDispatcher accepts one secret and remembers what it was given
type recordingDispatcher struct {
	mu       sync.Mutex
	secret   string
	err      error
	requests []entities.RunRequest
}

func (d *recordingDispatcher) Dispatch(req entities.RunRequest) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	if req.Secret != d.secret {
		return "", entities.ErrInvalidSecret
	}
	d.requests = append(d.requests, req)
	return "session-1", nil
}

func newTestServer(d Dispatcher) *httptest.Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return httptest.NewServer(NewServer("127.0.0.1:0", d, logger).Handler())
}

func post(t *testing.T, srv *httptest.Server, body string) (int, map[string]string) {
	t.Helper()
	res, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	var out map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func TestRunAccepted(t *testing.T) {
	d := &recordingDispatcher{secret: "s3cret"}
	srv := newTestServer(d)
	defer srv.Close()

	status, body := post(t, srv, `{"email":"me@example.com","secret":"s3cret","url":"https://quiz.test/start"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]string{
		"status":     "received",
		"message":    "Solver running",
		"session_id": "session-1",
	}, body)
	require.Len(t, d.requests, 1)
	assert.Equal(t, entities.RunRequest{Email: "me@example.com", Secret: "s3cret", StartURL: "https://quiz.test/start"}, d.requests[0])
}

func TestRunInvalidSecret(t *testing.T) {
	d := &recordingDispatcher{secret: "s3cret"}
	srv := newTestServer(d)
	defer srv.Close()

	for _, secret := range []string{"wrong", ""} {
		status, body := post(t, srv, `{"email":"me@example.com","secret":"`+secret+`","url":"https://quiz.test/start"}`)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, map[string]string{"detail": "Invalid secret"}, body)
	}
	assert.Empty(t, d.requests)
}

func TestRunInvalidSecretLoggedOnce(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	srv := httptest.NewServer(NewServer("127.0.0.1:0", &recordingDispatcher{secret: "s3cret"}, logger).Handler())
	defer srv.Close()

	status, _ := post(t, srv, `{"email":"me@example.com","secret":"wrong","url":"https://quiz.test/start"}`)
	require.Equal(t, http.StatusForbidden, status)

	var warnings []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings = append(warnings, e)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, "me@example.com", warnings[0].Data["email"])
}

func TestRunBadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `email=me@example.com`},
		{"empty body", ``},
		{"null", `null`},
		{"array", `[]`},
		{"missing secret", `{"email":"me@example.com","url":"https://quiz.test/start"}`},
		{"missing url", `{"email":"me@example.com","secret":"s3cret"}`},
		{"missing email", `{"secret":"s3cret","url":"https://quiz.test/start"}`},
		{"invalid email", `{"email":"not-an-email","secret":"s3cret","url":"https://quiz.test/start"}`},
		{"display name email", `{"email":"Me <me@example.com>","secret":"s3cret","url":"https://quiz.test/start"}`},
		{"wrong type", `{"email":42,"secret":"s3cret","url":"https://quiz.test/start"}`},
		{"relative url", `{"email":"me@example.com","secret":"s3cret","url":"/start"}`},
		{"ftp url", `{"email":"me@example.com","secret":"s3cret","url":"ftp://quiz.test/start"}`},
	}

	d := &recordingDispatcher{secret: "s3cret"}
	srv := newTestServer(d)
	defer srv.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, map[string]string{"detail": "Invalid JSON or missing fields"}, body)
		})
	}
	assert.Empty(t, d.requests)
}

func TestRunWhileShuttingDown(t *testing.T) {
	srv := newTestServer(&recordingDispatcher{err: dispatch.ErrShuttingDown})
	defer srv.Close()

	status, _ := post(t, srv, `{"email":"me@example.com","secret":"s3cret","url":"https://quiz.test/start"}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestRunDispatchFailure(t *testing.T) {
	srv := newTestServer(&recordingDispatcher{err: errors.New("boom")})
	defer srv.Close()

	status, body := post(t, srv, `{"email":"me@example.com","secret":"s3cret","url":"https://quiz.test/start"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "boom", body["detail"])
}

func TestOnlyPostOnRoot(t *testing.T) {
	srv := newTestServer(&recordingDispatcher{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	res, err = http.Post(srv.URL+"/other", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(&recordingDispatcher{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "quizsolver_sessions_started_total")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewServer(addr, &recordingDispatcher{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
