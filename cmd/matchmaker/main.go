package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/stealthdragons/dragon-server/internal/config"
	"github.com/stealthdragons/dragon-server/internal/logging"
	"github.com/stealthdragons/dragon-server/internal/matchmaker"
	"github.com/stealthdragons/dragon-server/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	listenAddr = flag.String("listen", "", "UDP address to listen on (overrides matchmaker.address)")
	version    = "dev"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Matchmaker.Address = *listenAddr
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting matchmaker",
		zap.String("version", version),
		zap.String("address", cfg.Matchmaker.Address),
		zap.Duration("cleanup_interval", cfg.Matchmaker.CleanupInterval),
		zap.Duration("room_timeout", cfg.Matchmaker.RoomTimeout),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := matchmaker.Listen(cfg.Matchmaker, logger)
	if err != nil {
		logger.Fatal("failed to bind matchmaker socket", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})

	if cfg.Matchmaker.HealthAddress != "" {
		grpcServer, health := server.NewGRPCServer(logger, server.ServiceMatchmaker)
		lis, err := net.Listen("tcp", cfg.Matchmaker.HealthAddress)
		if err != nil {
			logger.Fatal("failed to listen", zap.Error(err))
		}
		health.SetServingStatus(server.ServiceMatchmaker, healthpb.HealthCheckResponse_SERVING)
		g.Go(func() error {
			logger.Info("starting gRPC health server", zap.String("address", cfg.Matchmaker.HealthAddress))
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			health.Shutdown()
			grpcServer.GracefulStop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("matchmaker error", zap.Error(err))
	}
	logger.Info("matchmaker stopped", zap.Int("rooms", srv.Registry().Len()))
}
