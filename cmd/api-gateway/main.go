package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/player-forms-api/api/swagger"
	"github.com/noah-isme/player-forms-api/internal/handler"
	"github.com/noah-isme/player-forms-api/internal/middleware"
	"github.com/noah-isme/player-forms-api/internal/models"
	"github.com/noah-isme/player-forms-api/internal/repository"
	"github.com/noah-isme/player-forms-api/internal/service"
	"github.com/noah-isme/player-forms-api/pkg/config"
	"github.com/noah-isme/player-forms-api/pkg/jobs"
	"github.com/noah-isme/player-forms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/player-forms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/player-forms-api/pkg/middleware/requestid"
	"github.com/noah-isme/player-forms-api/pkg/pdfform"
	"github.com/noah-isme/player-forms-api/pkg/storage"
)

// @title Player Forms API
// @version 0.1.0
// @description Generates filled classification PDF forms from an uploaded roster workbook
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worksheet, err := pdfform.LoadFile(string(models.TemplateWorksheet), cfg.Templates.WorksheetPath)
	if err != nil {
		logr.Sugar().Fatalw("failed to load worksheet template", "path", cfg.Templates.WorksheetPath, "error", err)
	}
	assessment, err := pdfform.LoadFile(string(models.TemplateAssessment), cfg.Templates.AssessmentPath)
	if err != nil {
		logr.Sugar().Fatalw("failed to load assessment template", "path", cfg.Templates.AssessmentPath, "error", err)
	}
	templates := map[models.TemplateKind]service.FormFiller{
		models.TemplateWorksheet:  worksheet,
		models.TemplateAssessment: assessment,
	}

	store, err := storage.NewLocalStorage(cfg.Generation.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Generation.SignedURLSecret, cfg.Generation.SignedURLTTL)

	metricsSvc := service.NewMetricsService()
	repo := repository.NewJobRepository()

	generationSvc := service.NewGenerationService(repo, nil, templates, store, signer, metricsSvc, logr, service.GenerationServiceConfig{
		MaxUploadBytes:   cfg.Generation.MaxUploadBytes,
		AllowedMIMEs:     cfg.Generation.AllowedMIMEs,
		ResultTTL:        cfg.Generation.SignedURLTTL,
		CleanupInterval:  cfg.Generation.CleanupInterval,
		DownloadBasePath: path.Join(cfg.APIPrefix, "forms", "download"),
	})

	// Single worker keeps generation runs strictly sequential.
	queue := jobs.NewQueue("generation", generationSvc.Handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.Generation.QueueBufferSize,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	generationSvc.SetQueue(queue)
	generationSvc.StartCleanup(ctx)

	formsHandler := handler.NewFormsHandler(generationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	forms := api.Group("/forms")
	forms.POST("/generate", formsHandler.Generate)
	forms.GET("/jobs/:id", formsHandler.Status)
	forms.GET("/download/:token", formsHandler.Download)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		logr.Sugar().Infow("shutting down")
		_ = srv.Shutdown(context.Background())
	}()

	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
