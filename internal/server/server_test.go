package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, register func(Service)) (Service, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HTTPPort = 0
	srv := New(cfg, nil)
	if register != nil {
		register(srv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 5*time.Millisecond)
	t.Cleanup(func() {
		assert.NoError(t, srv.Stop(context.Background()))
		cancel()
		select {
		case err := <-errChan:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Error("server did not stop in time")
		}
	})
	return srv, "http://" + srv.Addr()
}

func TestServer_ServesRegisteredHandlers(t *testing.T) {
	_, base := startTestServer(t, func(s Service) {
		s.RegisterHTTPHandler("GET /hello", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "hi")
		}))
		s.HTTPMux().HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
	})

	resp, err := http.Get(base + "/hello")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "hi", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, err = http.Get(base + "/boom")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_StartTwice(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	err := srv.Start(context.Background())
	assert.ErrorContains(t, err, "server already started")
}

func TestServer_PortConflict(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := DefaultConfig()
	cfg.HTTPPort = l.Addr().(*net.TCPAddr).Port
	srv := New(cfg, nil)

	assert.Error(t, srv.Start(context.Background()))
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv := New(DefaultConfig(), nil)
	assert.NoError(t, srv.Stop(context.Background()))
	assert.Equal(t, "", srv.Addr())
}
