// Package fulfillment parses fulfillment command flags and starts the
// orchestration runtime: the command engine, the SLA sweep loop, and a gRPC
// health surface.
package fulfillment

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Turnage-Digital/Holmes-sub001/internal/orchestration"
	entrypoint "github.com/Turnage-Digital/Holmes-sub001/internal/platform/cmd"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage/sqlite"
	"github.com/Turnage-Digital/Holmes-sub001/internal/vendors"
)

// Config holds fulfillment command configuration.
type Config struct {
	Port          int           `env:"HOLMES_FULFILLMENT_PORT" envDefault:"8080"`
	DBPath        string        `env:"HOLMES_DB_PATH" envDefault:"holmes.db"`
	SweepInterval time.Duration `env:"HOLMES_SWEEP_INTERVAL" envDefault:"1m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The health server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "How often the SLA sweep runs")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the fulfillment runtime and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceFulfillment, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	registry := vendors.NewRegistry(
		vendors.NewStub("criminal", "employment", "education", "identity", "address", "sanctions", "driving", "drug_test"),
	)
	engine := orchestration.New(orchestration.Config{
		Orders:   store,
		Services: store,
		Clocks:   store,
		Holidays: store,
		Registry: registry,
	})

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(entrypoint.ServiceFulfillment, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("health server listening on %s", listener.Addr())
		serveErr <- grpcServer.Serve(listener)
	}()

	sweepErr := make(chan error, 1)
	go func() {
		sweepErr <- engine.RunSweep(ctx, cfg.SweepInterval)
	}()

	select {
	case <-ctx.Done():
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
		return ctx.Err()
	case err := <-serveErr:
		return fmt.Errorf("serve health: %w", err)
	case err := <-sweepErr:
		grpcServer.GracefulStop()
		return err
	}
}
