package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"jttracker/internal/api/router"
	"jttracker/internal/cache"
	"jttracker/internal/config"
	"jttracker/internal/core/repository"
	"jttracker/internal/core/service"
	"jttracker/internal/observability"
	"jttracker/internal/protocol"
	"jttracker/internal/protocol/dispatcher"
	"jttracker/internal/protocol/server"
	"jttracker/internal/stream"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "jttracker: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("jttracker", flag.ContinueOnError)
	configPath := flags.String("c", "", "path to the YAML config file")
	devices := flags.String("devices", "", "comma-separated uniqueId[:protocol] list to register at startup")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deviceRepo, positionRepo, closeDB, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer closeDB()

	deviceCache := cache.New(ctx, cfg.RedisURL, cfg.CacheTTL(), logger)
	defer deviceCache.Close()

	var publisher stream.Publisher = stream.Discard{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := stream.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			return errors.Wrap(err, "connect to NATS")
		}
		publisher = natsPublisher
	}
	defer publisher.Close()

	deviceService := service.NewDeviceService(deviceRepo, deviceCache, logger)
	registerDevices(ctx, deviceService, *devices, logger)

	decoder := dispatcher.New(deviceService, logger, protocol.Options{HexDump: cfg.StoreRawHex})
	positionService := service.NewPositionService(positionRepo, deviceService, decoder, publisher, logger)

	go observability.StartMetricsServer(cfg.MetricsPort, logger)

	if cfg.APISecret == "" {
		logger.Warn("API_SECRET not set, write endpoints of the HTTP API will refuse every request")
	}
	apiServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.NewRouter(deviceService, positionService, cfg.APISecret, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("API server listening", zap.String("addr", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server stopped", zap.Error(err))
		}
	}()
	shutdownAPI := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = apiServer.Shutdown(shutdownCtx)
	}

	srv := server.NewTCPServer(cfg.ListenAddress(), cfg.IdleTimeout(), positionService, logger)
	if err := srv.Start(); err != nil {
		shutdownAPI()
		return errors.Wrap(err, "start TCP server")
	}

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Stop()
	shutdownAPI()
	return nil
}

func openRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.DeviceRepository, repository.PositionRepository, func(), error) {
	if !cfg.MongoDB.Enabled() {
		logger.Warn("MONGODB_URI not set, keeping devices and positions in memory")
		return repository.NewInMemoryDeviceRepository(), repository.NewInMemoryPositionRepository(), func() {}, nil
	}

	db, err := config.ConnectMongoDB(ctx, cfg.MongoDB, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDB := func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			logger.Warn("failed to disconnect from MongoDB", zap.Error(err))
		}
	}

	deviceRepo := repository.NewMongoDeviceRepository(db)
	positionRepo := repository.NewMongoPositionRepository(db)
	if err := deviceRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("device indexes not created", zap.Error(err))
	}
	if err := positionRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("position indexes not created", zap.Error(err))
	}
	return deviceRepo, positionRepo, closeDB, nil
}

// registerDevices adds the -devices entries that are not registered yet.
func registerDevices(ctx context.Context, devices service.DeviceService, list string, logger *zap.Logger) {
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		raw, proto, _ := strings.Cut(entry, ":")
		uniqueID, err := protocol.NormalizeUniqueID(raw)
		if err != nil {
			logger.Warn("skipping device", zap.String("entry", entry), zap.Error(err))
			continue
		}
		if _, ok := devices.Resolve(ctx, nil, uniqueID); ok {
			continue
		}
		if _, err := devices.CreateDevice(ctx, "device "+uniqueID, uniqueID, proto); err != nil {
			logger.Warn("failed to register device", zap.String("uniqueId", uniqueID), zap.Error(err))
		}
	}
}
