// Command tdf-admin drives a running tdf-server: it converts local files and
// manages the server's platform connection.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/tdf-pipeline/api"
	"github.com/ruteri/tdf-pipeline/api/clients"
	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/urfave/cli/v2"
)

var flagServer = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "http://127.0.0.1:8080",
	Usage:   "tdf-server address",
	EnvVars: []string{"TDF_SERVER_ADDR"},
}
var flagFormat = &cli.StringFlag{
	Name:  "format",
	Value: "ztdf",
	Usage: "container format: ztdf or nanotdf",
}
var flagAttributes = &cli.StringSliceFlag{
	Name:  "attribute",
	Usage: "item metadata as key=value, e.g. tdf_attribute=https://example.com/attr/a/value/b",
}
var flagOutDir = &cli.StringFlag{
	Name:  "out-dir",
	Value: ".",
	Usage: "directory converted files are written to",
}

func main() {
	app := &cli.App{
		Name:  "tdf-admin",
		Usage: "Client for tdf-server",
		Flags: []cli.Flag{flagServer},
		Commands: []*cli.Command{
			{
				Name:      "encrypt",
				Usage:     "encrypt files",
				ArgsUsage: "FILE...",
				Flags:     []cli.Flag{flagFormat, flagAttributes, flagOutDir},
				Action:    convertFiles(true),
			},
			{
				Name:      "decrypt",
				Usage:     "decrypt files",
				ArgsUsage: "FILE...",
				Flags:     []cli.Flag{flagFormat, flagAttributes, flagOutDir},
				Action:    convertFiles(false),
			},
			{
				Name:  "set-platform",
				Usage: "replace the server's platform settings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "endpoint", Required: true},
					&cli.StringFlag{Name: "client-id", Required: true, EnvVars: []string{"CLIENT_ID"}},
					&cli.StringFlag{Name: "client-secret", Required: true, EnvVars: []string{"CLIENT_SECRET"}},
					&cli.BoolFlag{Name: "plaintext"},
					&cli.StringFlag{Name: "trust-store"},
				},
				Action: func(cCtx *cli.Context) error {
					client := clients.NewConversionClient(cCtx.String(flagServer.Name))
					resp, err := client.SetPlatform(cCtx.Context, api.PlatformSettings{
						Endpoint:      cCtx.String("endpoint"),
						ClientID:      cCtx.String("client-id"),
						ClientSecret:  cCtx.String("client-secret"),
						UsePlaintext:  cCtx.Bool("plaintext"),
						TrustStoreRef: cCtx.String("trust-store"),
					})
					if err != nil {
						return err
					}
					return json.NewEncoder(os.Stdout).Encode(resp)
				},
			},
			{
				Name:  "invalidate",
				Usage: "make the server rebuild its SDK client",
				Action: func(cCtx *cli.Context) error {
					return clients.NewConversionClient(cCtx.String(flagServer.Name)).Invalidate(cCtx.Context)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func convertFiles(encrypt bool) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		format, err := interfaces.ParseContainerFormat(cCtx.String(flagFormat.Name))
		if err != nil {
			return err
		}
		if cCtx.NArg() == 0 {
			return fmt.Errorf("no files given")
		}

		attributes := map[string]string{}
		for _, kv := range cCtx.StringSlice(flagAttributes.Name) {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid attribute %q, expected key=value", kv)
			}
			attributes[key] = value
		}

		var items []api.Item
		for _, path := range cCtx.Args().Slice() {
			payload, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			itemAttributes := map[string]string{string(interfaces.FilenameAttribute): filepath.Base(path)}
			for k, v := range attributes {
				itemAttributes[k] = v
			}
			items = append(items, api.Item{ID: filepath.Base(path), Attributes: itemAttributes, Payload: payload})
		}

		client := clients.NewConversionClient(cCtx.String(flagServer.Name))
		var outcomes []api.Outcome
		if encrypt {
			outcomes, err = client.Encrypt(cCtx.Context, format, items)
		} else {
			outcomes, err = client.Decrypt(cCtx.Context, format, items)
		}
		if err != nil {
			return err
		}

		outDir := cCtx.String(flagOutDir.Name)
		for _, outcome := range outcomes {
			if outcome.Route != interfaces.RouteSuccess.String() {
				fmt.Fprintf(os.Stderr, "%s: %s: %s\n", outcome.ID, outcome.Route, outcome.Error)
				continue
			}
			name := outcome.ID
			if encrypt {
				name += "." + format.String()
			} else {
				name = strings.TrimSuffix(name, "."+format.String())
			}
			if err := os.WriteFile(filepath.Join(outDir, name), outcome.Payload, 0644); err != nil {
				return err
			}
			fmt.Println(filepath.Join(outDir, name))
		}
		return nil
	}
}
