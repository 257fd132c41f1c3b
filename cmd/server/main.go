package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/stealthdragons/dragon-server/internal/catalog"
	"github.com/stealthdragons/dragon-server/internal/config"
	"github.com/stealthdragons/dragon-server/internal/game"
	"github.com/stealthdragons/dragon-server/internal/logging"
	"github.com/stealthdragons/dragon-server/internal/matchmaker"
	"github.com/stealthdragons/dragon-server/internal/room"
	"github.com/stealthdragons/dragon-server/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	roomName   = flag.String("room", "", "room name announced to the matchmaker (overrides server.room_name)")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting dragon server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cat, err := loadCatalog(ctx, cfg.Catalog, logger)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded",
		zap.Int("cards", cat.Len()),
		zap.Int("starting_deck", len(cat.StartingDeck())),
	)

	wsListener, err := server.ListenInRange(cfg.Server.WebSocket.Address, cfg.Server.WebSocket.PortRangeLength)
	if err != nil {
		logger.Fatal("failed to bind game port", zap.Error(err))
	}
	endpoint := matchmaker.Endpoint{IP: cfg.Server.PublicIP, Port: server.ListenerPort(wsListener)}

	name := cfg.Server.RoomName
	if *roomName != "" {
		name = *roomName
	}
	if name == "" {
		name = defaultRoomName()
	}

	mm := matchmaker.NewClient(cfg.Matchmaker, logger)
	rm := room.New(name, matchmaker.HostAnnouncer{Client: mm, Endpoint: endpoint}, logger)

	hub := server.NewHub(cfg.Server.WebSocket, rm, logger)
	sessions := game.NewManager(cat, game.OptionsFromConfig(cfg.Game), game.TimerScheduler{}, hub, logger)
	hub.Attach(sessions)
	logger.Info("game manager initialized", zap.String("room", name))

	wsMux := http.NewServeMux()
	wsMux.Handle(cfg.Server.WebSocket.Path, hub)
	wsServer := &http.Server{Handler: wsMux, ReadHeaderTimeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting websocket server",
			zap.Stringer("address", wsListener.Addr()),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if err := wsServer.Serve(wsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		err := wsServer.Shutdown(shutdownCtx)
		// Shutdown does not track upgraded connections.
		hub.Close()
		return err
	})

	if cfg.Server.HTTP.Enabled {
		httpServer := &http.Server{
			Addr:              cfg.Server.HTTP.Address,
			Handler:           server.NewRouter(hub, rm, sessions, version, "", logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting status API", zap.String("address", cfg.Server.HTTP.Address))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status API: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if cfg.Server.GRPC.Enabled {
		grpcServer, health := server.NewGRPCServer(logger, server.ServiceGame)
		lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
		if err != nil {
			logger.Fatal("failed to listen", zap.Error(err))
		}
		health.SetServingStatus(server.ServiceGame, healthpb.HealthCheckResponse_SERVING)
		g.Go(func() error {
			logger.Info("starting gRPC health server", zap.String("address", cfg.Server.GRPC.Address))
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			health.Shutdown()
			grpcServer.GracefulStop()
			return nil
		})
	}

	if err := mm.Register(name, endpoint); err != nil {
		logger.Warn("failed to register with matchmaker", zap.Error(err))
	} else {
		logger.Info("registered with matchmaker",
			zap.String("matchmaker", cfg.Matchmaker.Address),
			zap.Stringer("endpoint", endpoint),
		)
	}
	g.Go(func() error {
		return mm.Heartbeat(ctx, cfg.Matchmaker.HeartbeatInterval, endpoint)
	})

	logger.Info("dragon server initialized",
		zap.String("version", version),
		zap.Stringer("game_address", wsListener.Addr()),
	)

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("shutting down gracefully...")
	if err := mm.Deregister(endpoint); err != nil {
		logger.Warn("failed to deregister from matchmaker", zap.Error(err))
	}
	sessions.Shutdown()
	logger.Info("dragon server stopped")
}

// loadCatalog reads cards from Postgres when a database URL is configured and
// from the YAML file otherwise.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig, logger *zap.Logger) (*catalog.Catalog, error) {
	if cfg.DatabaseURL == "" {
		return catalog.LoadFile(cfg.Path)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect catalog database: %w", err)
	}
	defer pool.Close()

	stats := pool.Stat()
	logger.Info("catalog database connected",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
	)
	return catalog.LoadPostgres(ctx, pool)
}

func defaultRoomName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "Dragon Den"
	}
	return host + "'s Room"
}
