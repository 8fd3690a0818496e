package main

import (
	"context"
	"fmt"
	"time"

	"github.com/radview/radview-backend/internal/clients/inference"
	"github.com/radview/radview-backend/internal/handlers"
	"github.com/radview/radview-backend/internal/middleware"
	"github.com/radview/radview-backend/internal/observability"
	"github.com/radview/radview-backend/internal/platform/db"
	"github.com/radview/radview-backend/internal/platform/envutil"
	"github.com/radview/radview-backend/internal/platform/gcp"
	"github.com/radview/radview-backend/internal/platform/logger"
	"github.com/radview/radview-backend/internal/platform/redisx"
	"github.com/radview/radview-backend/internal/repos"
	"github.com/radview/radview-backend/internal/server"
	"github.com/radview/radview-backend/internal/services"
	"github.com/radview/radview-backend/internal/sse"
)

func main() {
	log, err := logger.New(envutil.String("LOG_MODE", "dev"))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx := context.Background()
	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "radview-backend",
		Environment: envutil.String("APP_ENV", "dev"),
		Version:     envutil.String("APP_VERSION", "dev"),
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(shutdownCtx)
	}()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		log.Fatal("schema migration failed", "error", err)
	}

	patientRepo := repos.NewPatientRepo(pg.DB(), log)
	studyRepo := repos.NewStudyRepo(pg.DB(), log)
	seriesRepo := repos.NewSeriesRepo(pg.DB(), log)
	instanceRepo := repos.NewInstanceRepo(pg.DB(), log)

	store, err := gcp.NewBucketService(log)
	if err != nil {
		log.Fatal("object storage init failed", "error", err)
	}

	rdb, err := redisx.NewClient(log)
	if err != nil {
		log.Warn("redis unavailable, signed URL caching disabled", "error", err)
		rdb = nil
	}

	inferenceClient, err := inference.NewClient(log)
	if err != nil {
		log.Warn("inference sidecar not configured, analyze endpoint disabled", "error", err)
		inferenceClient = nil
	}

	resolver := services.NewHierarchyResolver(log, patientRepo, studyRepo, seriesRepo)
	thumbs := services.NewThumbnailGenerator(log)
	uploadService := services.NewUploadService(log, store, resolver, thumbs, instanceRepo)
	accessService := services.NewAccessService(log, store, rdb)
	deletionService := services.NewDeletionService(log, store, instanceRepo)

	hub := sse.NewHub(log)

	srv := server.NewServer(server.RouterConfig{
		AuthMiddleware:   middleware.NewAuthMiddleware(log),
		UploadHandler:    handlers.NewUploadHandler(log, uploadService, hub),
		HierarchyHandler: handlers.NewHierarchyHandler(log, patientRepo, studyRepo, seriesRepo, instanceRepo),
		InstanceHandler:  handlers.NewInstanceHandler(log, instanceRepo, accessService, deletionService, hub),
		AnalyzeHandler:   handlers.NewAnalyzeHandler(log, instanceRepo, accessService, store, inferenceClient),
		EventsHandler:    handlers.NewEventsHandler(log, hub),
		HealthHandler:    handlers.NewHealthHandler(log),
	})

	addr := ":" + envutil.String("PORT", "8080")
	log.Info("server starting", "addr", addr)
	if err := srv.Run(addr); err != nil {
		log.Fatal("server exited", "error", err)
	}
}
