package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/overlay-provisioning-backend/api"
	"github.com/ruteri/overlay-provisioning-backend/api/provisioner"
	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"inet.af/netaddr"
)

type staticProvisioner struct{}

func (staticProvisioner) ProvisionNode(ctx context.Context, name string) (*interfaces.NodeBundle, error) {
	return &interfaces.NodeBundle{
		Name:    interfaces.NodeName(name),
		Address: netaddr.MustParseIPPrefix("10.0.0.1/24"),
		Encoded: "YnVuZGxl",
		ID:      interfaces.ComputeID([]byte("bundle")),
	}, nil
}

func newTestServer(t *testing.T, pprof bool) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      logger,
		EnablePprof:              pprof,
		GracefulShutdownDuration: time.Second,
		ReadTimeout:              time.Second,
		WriteTimeout:             time.Second,
	}
	srv, err := New(cfg, provisioner.NewHandler(staticProvisioner{}, logger), nil)
	require.NoError(t, err)
	return srv
}

func do(srv *Server, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHello(t *testing.T) {
	srv := newTestServer(t, false)

	w := do(srv, http.MethodGet, "/hello")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "11", w.Body.String())

	w = do(srv, http.MethodGet, "/hello")
	assert.Equal(t, "12", w.Body.String())
}

func TestHello_Concurrent(t *testing.T) {
	srv := newTestServer(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			do(srv, http.MethodGet, "/hello")
		}()
	}
	wg.Wait()

	assert.Equal(t, "61", do(srv, http.MethodGet, "/hello").Body.String())
}

func TestNewNodeRoute(t *testing.T) {
	srv := newTestServer(t, false)

	w := do(srv, http.MethodPost, "/new/node/node-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "YnVuZGxl", w.Body.String())
	assert.Equal(t, "10.0.0.1/24", w.Header().Get(api.NodeAddressHeader))
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, false)

	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/livez").Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/readyz").Code)

	w := do(srv, http.MethodGet, "/drain")
	assert.Contains(t, w.Body.String(), `"draining"`)
	assert.Equal(t, http.StatusServiceUnavailable, do(srv, http.MethodGet, "/readyz").Code)

	w = do(srv, http.MethodGet, "/drain")
	assert.Contains(t, w.Body.String(), "already draining")

	w = do(srv, http.MethodGet, "/undrain")
	assert.Contains(t, w.Body.String(), `"ready"`)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/readyz").Code)

	w = do(srv, http.MethodGet, "/undrain")
	assert.Contains(t, w.Body.String(), "already ready")

	// liveness is unaffected by draining
	do(srv, http.MethodGet, "/drain")
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/livez").Code)
}

func TestPprof(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, do(newTestServer(t, false), http.MethodGet, "/debug/pprof/").Code)
	assert.Equal(t, http.StatusOK, do(newTestServer(t, true), http.MethodGet, "/debug/pprof/").Code)
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(&api.HTTPServerConfig{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}, nil, nil)
	assert.Error(t, err)
}
