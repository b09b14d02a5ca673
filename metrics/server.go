package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves /metrics from its own registry.
type MetricsServer struct {
	Namespace    string
	Registry     *prometheus.Registry
	Provisioning *Provisioning

	srv *http.Server
}

// New creates the registry with Go runtime and process collectors plus the
// provisioning metrics. namespace is sanitized into a valid metric prefix.
func New(namespace, addr string) (*MetricsServer, error) {
	namespace = strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(namespace)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &MetricsServer{
		Namespace:    namespace,
		Registry:     reg,
		Provisioning: NewProvisioning(namespace, reg),
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// RegisterPool exports pool gauges on this server's registry.
func (m *MetricsServer) RegisterPool(pool PoolStats) {
	RegisterPool(m.Namespace, m.Registry, pool)
}

func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
