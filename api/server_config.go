package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig contains the configuration of the conversion HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address the API listens on.
	ListenAddr string

	// MetricsAddr is the address of the Prometheus metrics server.
	// The metrics server is not started when empty.
	MetricsAddr string

	// EnablePprof mounts the pprof handlers under /debug.
	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long /drain keeps the server marked not ready
	// before logging that load balancers had time to notice.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds how long Shutdown waits for in-flight requests.
	GracefulShutdownDuration time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
