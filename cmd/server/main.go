package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/djec2006-hash/News-Flow-sub001/internal/api"
	"github.com/djec2006-hash/News-Flow-sub001/internal/config"
	"github.com/djec2006-hash/News-Flow-sub001/internal/database"
	"github.com/djec2006-hash/News-Flow-sub001/internal/llm"
	"github.com/djec2006-hash/News-Flow-sub001/internal/repository"
	"github.com/djec2006-hash/News-Flow-sub001/internal/service"
	"github.com/djec2006-hash/News-Flow-sub001/internal/storage"
	"github.com/djec2006-hash/News-Flow-sub001/internal/tavily"
	"github.com/djec2006-hash/News-Flow-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(slog.LevelInfo)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	flowRepo := repository.NewFlowRepository(db)

	searchClient := tavily.NewClient(cfg, logr)
	llmClient := llm.NewClient(cfg, logr)

	var archiver *storage.Archiver
	if cfg.ArchiveEnabled() {
		archiver, err = storage.NewArchiver(storage.Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			UsePathStyle: cfg.S3UsePathStyle,
			Prefix:       cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage archiver: %v", err)
		}
	}

	quotaService := service.NewQuotaService(cfg, logr, flowRepo, userRepo)
	synthesisService := service.NewSynthesisService(cfg, logr, searchClient, llmClient)

	// An untyped nil here keeps the gateway's archiver check meaningful.
	gateway := service.NewPersistenceGateway(logr, flowRepo, nil)
	if archiver != nil {
		gateway = service.NewPersistenceGateway(logr, flowRepo, archiver)
	}

	flowService := service.NewFlowService(cfg, logr, quotaService, topicRepo, synthesisService, gateway)

	server := api.NewServer(cfg.ListenAddr, logr, userRepo, flowService, flowRepo, quotaService, db)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}
