package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/tdf-pipeline/api"
	"github.com/ruteri/tdf-pipeline/common"
	"github.com/urfave/cli/v2"
)

// Flags shared by the server and the pipeline worker.
var (
	LogJSONFlag = &cli.BoolFlag{
		Name:    "log-json",
		Usage:   "emit logs as JSON",
		EnvVars: []string{"LOG_JSON"},
	}
	LogDebugFlag = &cli.BoolFlag{
		Name:    "log-debug",
		Usage:   "include debug level logs",
		EnvVars: []string{"LOG_DEBUG"},
	}
	LogUIDFlag = &cli.BoolFlag{
		Name:  "log-uid",
		Usage: "tag every log line with a per-process uuid",
	}
	PprofFlag = &cli.BoolFlag{
		Name:    "pprof",
		Usage:   "serve /debug/pprof on the API listener",
		EnvVars: []string{"PPROF"},
	}
	DrainSecondsFlag = &cli.Int64Flag{
		Name:    "drain-seconds",
		Value:   45,
		Usage:   "how long /drain reports not ready before shutdown may proceed",
		EnvVars: []string{"DRAIN_SECONDS"},
	}
	HTTPTimeoutFlag = &cli.DurationFlag{
		Name:    "http-timeout",
		Value:   time.Minute,
		Usage:   "read and write timeout of the API listener",
		EnvVars: []string{"HTTP_TIMEOUT"},
	}
	MetricsAddrFlag = &cli.StringFlag{
		Name:    "metrics-addr",
		Value:   "127.0.0.1:8090",
		Usage:   "Prometheus listen address, empty disables metrics",
		EnvVars: []string{"METRICS_ADDR"},
	}

	CommonFlags = []cli.Flag{
		LogJSONFlag,
		LogDebugFlag,
		LogUIDFlag,
		PprofFlag,
		DrainSecondsFlag,
		HTTPTimeoutFlag,
		MetricsAddrFlag,
	}
)

// LogServiceFlagFn returns the log-service flag defaulting to the binary name.
func LogServiceFlagFn(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "log-service",
		Value:   service,
		Usage:   "value of the 'service' log field",
		EnvVars: []string{"LOG_SERVICE"},
	}
}

func SetupLogger(cCtx *cli.Context) *slog.Logger {
	log := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJSONFlag.Name),
		Service: cCtx.String("log-service"),
		Version: common.Version,
	})
	if cCtx.Bool(LogUIDFlag.Name) {
		log = log.With("uid", uuid.Must(uuid.NewRandom()).String())
	}
	return log
}

func ConfigureServer(cCtx *cli.Context, log *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	timeout := cCtx.Duration(HTTPTimeoutFlag.Name)
	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      log,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              timeout,
		WriteTimeout:             timeout,
	}
}
