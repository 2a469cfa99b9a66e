// Command tdf-pipeline moves items from an inbox store through TDF conversion
// into success, failure and exceeds_size_limit stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/tdf-pipeline/cmd/flags"
	"github.com/ruteri/tdf-pipeline/common"
	"github.com/ruteri/tdf-pipeline/converter"
	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/ruteri/tdf-pipeline/metrics"
	"github.com/ruteri/tdf-pipeline/opentdf"
	"github.com/ruteri/tdf-pipeline/pipeline"
	"github.com/ruteri/tdf-pipeline/storage"
	"github.com/urfave/cli/v2"
)

var FormatFlag = &cli.StringFlag{
	Name:    "format",
	Value:   "ztdf",
	Usage:   "container format: ztdf or nanotdf",
	EnvVars: []string{"TDF_FORMAT"},
}
var InboxFlag = &cli.StringFlag{
	Name:     "inbox",
	Required: true,
	Usage:    "store items are taken from, e.g. file:///var/lib/tdf/inbox or s3://bucket/inbox?region=us-east-1",
	EnvVars:  []string{"INBOX_URI"},
}
var SuccessFlag = &cli.StringFlag{
	Name:     "success",
	Required: true,
	Usage:    "store converted items are delivered to",
	EnvVars:  []string{"SUCCESS_URI"},
}
var FailureFlag = &cli.StringFlag{
	Name:     "failure",
	Required: true,
	Usage:    "store items that could not be converted are delivered to",
	EnvVars:  []string{"FAILURE_URI"},
}
var SizeExceededFlag = &cli.StringFlag{
	Name:    "exceeds-size-limit",
	Usage:   "store items too large for nanotdf are delivered to, defaults to the failure store",
	EnvVars: []string{"EXCEEDS_SIZE_LIMIT_URI"},
}
var IntervalFlag = &cli.DurationFlag{
	Name:    "interval",
	Value:   5 * time.Second,
	Usage:   "how often the inbox is polled",
	EnvVars: []string{"POLL_INTERVAL"},
}
var OnceFlag = &cli.BoolFlag{
	Name:  "once",
	Usage: "process a single batch and exit",
}

var pipelineFlags = []cli.Flag{FormatFlag, InboxFlag, SuccessFlag, FailureFlag, SizeExceededFlag, IntervalFlag, OnceFlag}

func main() {
	app := &cli.App{
		Name:  "tdf-pipeline",
		Usage: "Convert items between plaintext and TDF containers",
		Flags: append([]cli.Flag{flags.LogServiceFlagFn("tdf-pipeline")}, flags.CommonFlags...),
		Commands: []*cli.Command{
			{
				Name:   "encrypt",
				Usage:  "encrypt inbox items into TDF containers",
				Flags:  append(pipelineFlags, flags.OperatorFlags...),
				Action: runAction(converter.DirectionEncrypt),
			},
			{
				Name:   "decrypt",
				Usage:  "decrypt TDF containers from the inbox",
				Flags:  append(pipelineFlags, flags.OperatorFlags...),
				Action: runAction(converter.DirectionDecrypt),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runAction(direction converter.Direction) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx).With("direction", string(direction))

		format, err := interfaces.ParseContainerFormat(cCtx.String(FormatFlag.Name))
		if err != nil {
			return err
		}

		operator, err := flags.OperatorConfig(cCtx)
		if err != nil {
			logger.Error("Invalid configuration", "err", err)
			return err
		}

		runtime, err := operator.Build(logger, opentdf.NewClientBuilder(logger))
		if err != nil {
			logger.Error("Failed to set up conversion", "err", err)
			return err
		}
		defer func() {
			if err := runtime.Close(); err != nil {
				logger.Error("Failed to close SDK clients", "err", err)
			}
		}()

		batchConverter, err := runtime.Converter(direction, format)
		if err != nil {
			return err
		}

		cfg, err := pipelineConfig(cCtx, logger)
		if err != nil {
			logger.Error("Failed to open item stores", "err", err)
			return err
		}
		cfg.Converter = batchConverter
		cfg.PullSize = operator.PullSize

		runner, err := pipeline.NewRunner(logger.With("format", format.String()), cfg)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if cCtx.Bool(OnceFlag.Name) {
			summary, err := runner.RunOnce(ctx)
			logger.Info("Batch processed", "pulled", summary.Pulled, "routed", summary.Routed, "retained", summary.Retained)
			return err
		}

		metricsAddr := cCtx.String(flags.MetricsAddrFlag.Name)
		if metricsAddr != "" {
			metricsSrv, err := metrics.New(common.PackageName, metricsAddr)
			if err != nil {
				return err
			}
			go func() {
				logger.Info("Starting metrics server", "metricsAddress", metricsAddr)
				if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("Metrics server failed", "err", err)
				}
			}()
			defer metricsSrv.Shutdown(context.Background())
		}

		logger.Info("Pipeline is running, press Ctrl+C to stop")
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("Pipeline stopped")
		return nil
	}
}

func pipelineConfig(cCtx *cli.Context, logger *slog.Logger) (pipeline.Config, error) {
	factory := storage.NewStoreFactory(logger)

	failureURI := cCtx.String(FailureFlag.Name)
	sizeExceededURI := cCtx.String(SizeExceededFlag.Name)
	if sizeExceededURI == "" {
		sizeExceededURI = failureURI
	}

	uris := map[string]string{
		"inbox":                               cCtx.String(InboxFlag.Name),
		interfaces.RouteSuccess.String():      cCtx.String(SuccessFlag.Name),
		interfaces.RouteFailure.String():      failureURI,
		interfaces.RouteSizeExceeded.String(): sizeExceededURI,
	}
	stores := make(map[string]interfaces.ItemStore, len(uris))
	for name, uri := range uris {
		store, err := factory.ItemStoreFor(uri)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("%s store: %w", name, err)
		}
		stores[name] = store
	}

	return pipeline.Config{
		Source: stores["inbox"],
		Sinks: map[interfaces.Route]interfaces.ItemStore{
			interfaces.RouteSuccess:      stores[interfaces.RouteSuccess.String()],
			interfaces.RouteFailure:      stores[interfaces.RouteFailure.String()],
			interfaces.RouteSizeExceeded: stores[interfaces.RouteSizeExceeded.String()],
		},
		Interval: cCtx.Duration(IntervalFlag.Name),
	}, nil
}
