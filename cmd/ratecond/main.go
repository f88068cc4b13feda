package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/export"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm/provider"
	"github.com/joseph-ayodele/ratecon-tracker/internal/pipeline"
	"github.com/joseph-ayodele/ratecon-tracker/internal/render"
	repo "github.com/joseph-ayodele/ratecon-tracker/internal/repository"
	"github.com/joseph-ayodele/ratecon-tracker/internal/server"
	"github.com/joseph-ayodele/ratecon-tracker/internal/storage"
)

func main() {
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vision, closeVision, err := provider.New(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to create extraction client", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeVision(); err != nil {
			logger.Warn("closing extraction client", "error", err)
		}
	}()

	jobsDB, err := repo.OpenJobStore(ctx, cfg.JobStore.Driver, cfg.JobStore.DSN, logger)
	if err != nil {
		logger.Error("failed to open job store", "driver", cfg.JobStore.Driver, "error", err)
		os.Exit(1)
	}
	defer jobsDB.Close()
	if err := repo.MigrateJobs(ctx, jobsDB); err != nil {
		logger.Error("failed to migrate job store", "error", err)
		os.Exit(1)
	}
	jobsRepo := repo.NewExtractJobRepository(jobsDB, cfg.JobStore.Driver, logger)

	// Saved loads and export need Postgres; extraction works without it.
	var (
		loadsRepo server.LoadStore
		exporter  server.Exporter
	)
	if cfg.Database.DSN != "" {
		pool, err := repo.Open(ctx, repo.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer repo.Close(pool, logger)

		if err := repo.HealthCheck(ctx, pool, 5*time.Second, logger); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		if err := repo.Migrate(ctx, pool, logger); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		loads := repo.NewLoadRepository(pool, logger)
		loadsRepo = loads
		exporter = export.NewService(loads, logger)
	} else {
		logger.Warn("DB_URL not set; saved loads are disabled")
	}

	var archive storage.DocumentStore
	if cfg.Storage.Bucket != "" {
		gcs, err := storage.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix, logger)
		if err != nil {
			logger.Error("failed to create storage client", "bucket", cfg.Storage.Bucket, "error", err)
			os.Exit(1)
		}
		defer gcs.Close()
		archive = gcs
	}

	renderer := render.New(render.Config{
		Pdftoppm:      cfg.Render.Pdftoppm,
		HeicConverter: cfg.Render.HeicConverter,
		Scale:         cfg.Render.Scale,
		MaxPages:      cfg.Render.MaxPages,
		MaxPDFBytes:   cfg.Render.MaxPDFBytes,
		MaxImageBytes: cfg.Render.MaxImageBytes,
		TmpDir:        cfg.Render.TmpDir,
		Timeout:       cfg.Render.Timeout,
	}, logger)
	requester := llm.NewRequester(vision, provider.RetryConfig(cfg.LLM), logger)
	pipe := pipeline.New(renderer, requester, jobsRepo, logger)

	api := server.New(server.Config{
		MaxUploadBytes: max(cfg.Render.MaxPDFBytes, cfg.Render.MaxImageBytes),
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RunTimeout:     cfg.RunTimeout(),
	}, pipe, loadsRepo, exporter, archive, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// gRPC health for load balancers that probe over gRPC.
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("ratecond listening",
			"http_addr", cfg.Server.HTTPAddr,
			"grpc_addr", cfg.Server.GRPCAddr,
			"provider", vision.Name(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
}
