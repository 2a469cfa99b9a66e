package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the default Prometheus registry on /metrics.
type MetricsServer struct {
	name string
	srv  *http.Server
}

// New creates a metrics server for the named service listening on addr.
func New(name, addr string) (*MetricsServer, error) {
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		name: name,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Name returns the service the metrics belong to.
func (m *MetricsServer) Name() string {
	return m.name
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
