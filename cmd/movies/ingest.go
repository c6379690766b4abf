package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimburion/movies/pkg/cli"
	"github.com/nimburion/movies/pkg/config"
	eventbusfactory "github.com/nimburion/movies/pkg/eventbus/factory"
	"github.com/nimburion/movies/pkg/health"
	"github.com/nimburion/movies/pkg/movie"
	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/observability/metrics"
	"github.com/nimburion/movies/pkg/server"
	ginrouter "github.com/nimburion/movies/pkg/server/router/gin"
	"github.com/nimburion/movies/pkg/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newIngestCommand(load cli.ConfigLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Create movies from queue messages",
		Long: "Consumes movie JSON objects from the configured transport (sqs, kafka or rabbitmq)\n" +
			"and creates them in the record store. Failed messages stay on the broker.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd.Flags())
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, log)
		},
	}
	cmd.AddCommand(newPublishCommand(load))
	return cmd
}

func newPublishCommand(load cli.ConfigLoader) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Validate a movie JSON object and queue it for ingestion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.ValidateIngest(); err != nil {
				return err
			}

			payload, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			bus, err := eventbusfactory.NewEventBusAdapter(cfg.Ingest, log)
			if err != nil {
				return fmt.Errorf("connect %s: %w", cfg.Ingest.Transport, err)
			}
			defer closeLogged(log, "event bus", bus)

			if err := movie.Enqueue(cmd.Context(), bus, eventbusfactory.Topic(cfg.Ingest), payload); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "movie queued")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "movie JSON file; - reads stdin")
	return cmd
}

// runIngest consumes until SIGINT or SIGTERM. When the management server is
// enabled it exposes readiness (store and broker) and the ingest metrics.
func runIngest(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	if err := cfg.ValidateIngest(); err != nil {
		return err
	}

	info := version.Current(cfg.Service.Name)
	shutdownTracing, err := server.InitTracing(ctx, cfg, info, log)
	if err != nil {
		return fmt.Errorf("initialize tracing provider: %w", err)
	}
	defer shutdownTracing()

	svc, adapter, err := openService(cfg, log)
	if err != nil {
		return err
	}
	defer closeLogged(log, "store", adapter)

	bus, err := eventbusfactory.NewEventBusAdapter(cfg.Ingest, log)
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Ingest.Transport, err)
	}
	defer closeLogged(log, "event bus", bus)

	reg := metrics.NewRegistry(server.MetricsNamespace(cfg))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Management.Enabled {
		healthRegistry := health.NewRegistry()
		healthRegistry.Register(health.NewStoreChecker("store", adapter))
		healthRegistry.Register(health.NewMessageBrokerChecker(cfg.Ingest.Transport, bus))
		mgmt := server.NewManagementServer(cfg.Management, ginrouter.NewRouter(), log, healthRegistry, reg, info)
		g.Go(func() error { return mgmt.Start(ctx) })
	}

	ingestor := movie.NewIngestor(svc, log).WithMetrics(reg).WithSystem(cfg.Ingest.Transport)
	g.Go(func() error { return ingestor.Run(ctx, bus, eventbusfactory.Topic(cfg.Ingest)) })
	return g.Wait()
}

func readPayload(stdin io.Reader, file string) (map[string]any, error) {
	src := stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open movie file: %w", err)
		}
		defer f.Close()
		src = f
	}

	var payload map[string]any
	if err := json.NewDecoder(src).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode movie JSON: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("movie JSON must be an object")
	}
	return payload, nil
}

func closeLogged(log logger.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn("close failed", "component", name, "error", err)
	}
}
