package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ruteri/overlay-provisioning-backend/api/provisioner"
	"github.com/ruteri/overlay-provisioning-backend/cmd/flags"
	"github.com/ruteri/overlay-provisioning-backend/common"
	"github.com/ruteri/overlay-provisioning-backend/config"
	"github.com/ruteri/overlay-provisioning-backend/packaging"
	"github.com/urfave/cli/v2"
)

var clientFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "server",
		Value:   "http://127.0.0.1:8080",
		Usage:   "provisioning server base URL",
		EnvVars: []string{"OVERLAY_SERVER"},
	},
	&cli.StringFlag{
		Name:     "name",
		Required: true,
		Usage:    "node name to request a bundle for",
	},
	&cli.StringFlag{
		Name:  "out-dir",
		Value: ".",
		Usage: "directory the bundle is unpacked into",
	},
	&cli.BoolFlag{
		Name:  "raw",
		Usage: "print the base64 bundle to stdout instead of unpacking it",
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Value: 2 * time.Minute,
		Usage: "request timeout",
	},
	flags.LogJsonFlag,
	flags.LogDebugFlag,
}

func main() {
	app := &cli.App{
		Name:    "node-client",
		Usage:   "Request an overlay node bundle from a provisioning server",
		Version: common.Version,
		Flags:   clientFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(config.LogConfig{
				Debug:   cCtx.Bool(flags.LogDebugFlag.Name),
				JSON:    cCtx.Bool(flags.LogJsonFlag.Name),
				Service: "node-client",
			})

			ctx, cancel := context.WithTimeout(context.Background(), cCtx.Duration("timeout"))
			defer cancel()

			client := &provisioner.ProvisioningClient{ServerAddr: cCtx.String("server")}
			resp, err := client.RequestBundle(ctx, cCtx.String("name"))
			if err != nil {
				logger.Error("Provisioning failed", "err", err)
				return err
			}

			if cCtx.Bool("raw") {
				_, err := fmt.Fprintln(os.Stdout, resp.Encoded)
				return err
			}

			raw, err := packaging.DecodeArchive(resp.Encoded)
			if err != nil {
				return err
			}
			if err := packaging.Unpack(raw, cCtx.String("out-dir")); err != nil {
				logger.Error("Failed to unpack bundle", "err", err)
				return err
			}

			logger.Info("Bundle installed",
				"node", resp.Name,
				"address", resp.Address,
				"bundleID", resp.BundleID,
				"outDir", cCtx.String("out-dir"))
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
