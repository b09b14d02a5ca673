package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/overlay-provisioning-backend/api/provisioner"
	"github.com/ruteri/overlay-provisioning-backend/cmd/flags"
	"github.com/ruteri/overlay-provisioning-backend/common"
	"github.com/ruteri/overlay-provisioning-backend/httpserver"
	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"github.com/ruteri/overlay-provisioning-backend/ippool"
	"github.com/ruteri/overlay-provisioning-backend/issuer"
	"github.com/ruteri/overlay-provisioning-backend/metrics"
	"github.com/ruteri/overlay-provisioning-backend/orchestrator"
	"github.com/ruteri/overlay-provisioning-backend/pipeline"
	"github.com/ruteri/overlay-provisioning-backend/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "provisioning-server",
		Usage:   "Issue overlay network node bundles over HTTP",
		Version: common.Version,
		Flags:   append(append([]cli.Flag{}, flags.ServerFlags...), flags.CommonFlags...),
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	logger := flags.SetupLogger(cfg.Log)

	recyclePolicy, err := ippool.ParseRecyclePolicy(cfg.Node.RecyclePolicy)
	if err != nil {
		return err
	}
	failurePolicy, err := orchestrator.ParseFailurePolicy(cfg.Node.FailurePolicy)
	if err != nil {
		return err
	}

	pool, err := ippool.NewFromCIDR(cfg.Node.Network, *cfg.Node.Offset, ippool.WithRecyclePolicy(recyclePolicy))
	if err != nil {
		logger.Error("Invalid address range", "err", err, "network", cfg.Node.Network, "offset", *cfg.Node.Offset)
		return err
	}

	iss, err := issuer.NewNebulaCertIssuer(cfg.Issuer.Binary, logger)
	if err != nil {
		logger.Error("Issuer executable not available", "err", err, "binary", cfg.Issuer.Binary)
		return err
	}

	var orchOpts []orchestrator.Option
	if len(cfg.Archive) > 0 {
		locations := make([]interfaces.StorageBackendLocation, 0, len(cfg.Archive))
		for _, uri := range cfg.Archive {
			loc, err := interfaces.NewStorageBackendLocation(uri)
			if err != nil {
				return err
			}
			locations = append(locations, loc)
		}

		archive, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
		if err != nil {
			logger.Error("Failed to create bundle archive", "err", err)
			return err
		}
		logger.Info("Archiving bundles", "location", archive.LocationURI())
		orchOpts = append(orchOpts, orchestrator.WithArchive(archive))
	}

	orch, err := orchestrator.New(orchestrator.Config{
		CACertPath:    cfg.Issuer.CACertPath,
		CAKeyPath:     cfg.Issuer.CAKeyPath,
		ConfigPath:    cfg.Node.ConfigPath,
		WorkDir:       cfg.Node.WorkDir,
		FailurePolicy: failurePolicy,
	}, iss, pool, logger, orchOpts...)
	if err != nil {
		logger.Error("Failed to create orchestrator", "err", err)
		return err
	}

	metricsSrv, err := metrics.New(common.ServiceName, cfg.Server.MetricsAddr)
	if err != nil {
		return err
	}
	metricsSrv.RegisterPool(pool)

	pipe := pipeline.New(orch, logger,
		pipeline.WithQueueSize(cfg.Pipeline.QueueSize),
		pipeline.WithObserver(metricsSrv.Provisioning))
	pipe.Start()

	handler := provisioner.NewHandler(pipe, logger)

	server, err := httpserver.New(flags.ConfigureServer(cfg, logger), handler, metricsSrv)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		pipe.Stop()
		return err
	}

	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-exit:
		logger.Info("Shutdown signal received")
	case <-pipe.Done():
		logger.Error("Provisioning worker terminated unexpectedly")
	}

	server.Shutdown()
	pipe.Stop()
	logger.Info("Server shutdown complete")

	return nil
}
