// Command tdf-server serves batch TDF conversion over HTTP.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/tdf-pipeline/cmd/flags"
	"github.com/ruteri/tdf-pipeline/httpserver"
	"github.com/ruteri/tdf-pipeline/opentdf"
	"github.com/urfave/cli/v2"
)

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: []string{"LISTEN_ADDR"},
}

func main() {
	app := &cli.App{
		Name:  "tdf-server",
		Usage: "Serve TDF encryption and decryption",
		Flags: append(append([]cli.Flag{ListenAddrFlag, flags.LogServiceFlagFn("tdf-server")}, flags.OperatorFlags...), flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

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

			handler := httpserver.NewHandler(runtime, runtime.Clients, operator.PullSize, logger)
			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cCtx.String(ListenAddrFlag.Name)), handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
